package extract

import (
	"regexp"
	"strconv"
	"strings"
)

var codeBlockPattern = regexp.MustCompile("(?s)```(?:python)?\\s*\\n(.*?)```")

// CodeBlock returns the best fenced Python block in a response. A block that
// imports gurobipy is preferred; otherwise the first block wins.
func CodeBlock(text string) (string, bool) {
	matches := codeBlockPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return "", false
	}
	blocks := make([]string, 0, len(matches))
	for _, m := range matches {
		blocks = append(blocks, strings.TrimSpace(m[1]))
	}
	for _, b := range blocks {
		if strings.Contains(b, "import gurobipy") || strings.Contains(b, "from gurobipy") {
			return b, true
		}
	}
	return blocks[0], true
}

// ShapeList converts a shape written as "[N, M, 19]" (or an already decoded
// list) into dimension symbols and integer sizes.
func ShapeList(v any) []any {
	switch s := v.(type) {
	case nil:
		return []any{}
	case []any:
		return s
	case []string:
		out := make([]any, 0, len(s))
		for _, dim := range s {
			out = append(out, dim)
		}
		return out
	case string:
		return parseShape(s)
	default:
		return []any{}
	}
}

func parseShape(s string) []any {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	out := []any{}
	if strings.TrimSpace(s) == "" {
		return out
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.Trim(strings.TrimSpace(part), `"'`)
		if part == "" {
			continue
		}
		if n, err := strconv.Atoi(part); err == nil && n >= 0 {
			out = append(out, n)
			continue
		}
		out = append(out, part)
	}
	return out
}
