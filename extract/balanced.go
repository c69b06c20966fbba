package extract

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// JSONFromEnd locates the last balanced {...} object in a model response and
// returns it as a gjson result, so callers can walk keys in document order.
//
// The first attempt narrows to a ```json fence when present and strips //
// comments. The fallback starts at the first '{', drops every backslash (LaTeX
// escaping noise) and scans again.
func JSONFromEnd(text string) (gjson.Result, error) {
	if res, ok := jsonFromFence(text); ok {
		return res, nil
	}
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return gjson.Result{}, newError(text, ErrNoBalancedRegion)
	}
	body := strings.ReplaceAll(text[start:], `\`, "")
	region, ok := balancedFromEnd(body, '{', '}')
	if !ok {
		return gjson.Result{}, newError(text, ErrNoBalancedRegion)
	}
	if !gjson.Valid(region) {
		return gjson.Result{}, newError(text, ErrInvalidJSON)
	}
	return gjson.Parse(region), nil
}

func jsonFromFence(text string) (gjson.Result, bool) {
	if _, after, ok := strings.Cut(text, "```json"); ok {
		text, _, _ = strings.Cut(after, "```")
	}
	region, ok := balancedFromEnd(text, '{', '}')
	if !ok {
		return gjson.Result{}, false
	}
	region = stripLineComments(region)
	if !gjson.Valid(region) {
		return gjson.Result{}, false
	}
	return gjson.Parse(region), true
}

// ListFromEnd locates the last balanced [...] array in a model response.
func ListFromEnd(text string) (gjson.Result, error) {
	region, ok := balancedFromEnd(text, '[', ']')
	if !ok {
		return gjson.Result{}, newError(text, ErrNoBalancedRegion)
	}
	if !gjson.Valid(region) {
		return gjson.Result{}, newError(text, ErrInvalidJSON)
	}
	return gjson.Parse(region), nil
}

// Strings flattens a JSON array of scalars into trimmed, non-empty strings.
func Strings(res gjson.Result) []string {
	var out []string
	for _, item := range res.Array() {
		s := strings.TrimSpace(item.String())
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// balancedFromEnd finds the last close bracket and walks backwards to its
// matching open bracket.
func balancedFromEnd(text string, open, close byte) (string, bool) {
	end := strings.LastIndexByte(text, close)
	if end < 0 {
		return "", false
	}
	depth := 1
	for i := end - 1; i >= 0; i-- {
		switch text[i] {
		case close:
			depth++
		case open:
			depth--
			if depth == 0 {
				return text[i : end+1], true
			}
		}
	}
	return "", false
}

func stripLineComments(text string) string {
	for {
		idx := strings.Index(text, "//")
		if idx < 0 {
			return text
		}
		nl := strings.IndexByte(text[idx:], '\n')
		if nl < 0 {
			return text[:idx]
		}
		text = text[:idx] + text[idx+nl+1:]
	}
}

// Require checks that every key is present in a decoded object.
func Require(res gjson.Result, keys ...string) error {
	for _, k := range keys {
		if !res.Get(gjsonKey(k)).Exists() {
			return newError(res.Raw, fmt.Errorf("%w: %q", ErrMissingField, k))
		}
	}
	return nil
}

// gjsonKey escapes path syntax so k is looked up as a literal key.
func gjsonKey(k string) string {
	r := strings.NewReplacer(`.`, `\.`, `*`, `\*`, `?`, `\?`, `|`, `\|`, `#`, `\#`, `@`, `\@`)
	return r.Replace(k)
}

// Field looks up a literal top-level key, which may contain spaces or dots.
func Field(res gjson.Result, key string) gjson.Result {
	return res.Get(gjsonKey(key))
}
