package extract

import (
	"strings"
)

const marker = "====="

// EqualSignClosed returns the text between the first two ===== markers. The
// marker and the single character that follows it (normally a newline) are
// skipped before trimming.
func EqualSignClosed(text string) (string, error) {
	first := strings.Index(text, marker)
	if first < 0 {
		return "", newError(text, ErrNoDelimitedRegion)
	}
	rest := first + len(marker)
	second := strings.Index(text[rest:], marker)
	if second < 0 {
		return "", newError(text, ErrNoDelimitedRegion)
	}
	second += rest
	start := rest + 1
	if start > second {
		start = second
	}
	return strings.TrimSpace(text[start:second]), nil
}

// Objective extracts an objective description from a ===== block, dropping an
// optional "OBJECTIVE:" label.
func Objective(text string) (string, error) {
	body, err := EqualSignClosed(text)
	if err != nil {
		return "", err
	}
	body = strings.TrimSpace(strings.TrimPrefix(body, "OBJECTIVE:"))
	if body == "" {
		return "", newError(text, ErrNoDelimitedRegion)
	}
	return body, nil
}

// StripCodeFences removes one leading ``` line and one trailing ``` fence.
func StripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if nl := strings.IndexByte(text, '\n'); nl >= 0 {
			text = text[nl+1:]
		} else {
			text = text[3:]
		}
	}
	if strings.HasSuffix(text, "```") {
		text = text[:strings.LastIndex(text, "```")]
	}
	return strings.TrimSpace(text)
}
