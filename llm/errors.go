package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"regexp"
	"strings"
	"syscall"
)

// ProviderError reports a backend failure after the retry policy gave up, or a
// non-transient failure that was never retried.
type ProviderError struct {
	Backend    string
	Model      string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString("llm provider ")
	if e.Backend != "" {
		b.WriteString(e.Backend)
		b.WriteString(" ")
	}
	if e.Model != "" {
		fmt.Fprintf(&b, "(%s) ", e.Model)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, "status %d ", e.StatusCode)
	}
	if e.Attempts > 1 {
		fmt.Fprintf(&b, "after %d attempts ", e.Attempts)
	}
	b.WriteString("failed")
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ErrNotConfigured is returned by backends whose credentials are missing.
var ErrNotConfigured = errors.New("backend not configured")

var transientStatus = map[int]bool{
	429: true,
	500: true,
	502: true,
	503: true,
	529: true,
}

// statusInMessage matches a transient code only when the message names it as
// a status, e.g. "status 503", "status code: 429" or "HTTP/1.1 502".
var statusInMessage = regexp.MustCompile(`\b(?:status(?:\s+code)?|http(?:/\d(?:\.\d)?)?|error\s+code)[\s:=]*(?:429|500|502|503|529)\b`)

var transientPhrases = []string{
	"overloaded",
	"rate limit",
	"rate_limit",
	"too many requests",
	"internal server error",
	"bad gateway",
	"service unavailable",
	"connection refused",
	"connection reset",
	"connection error",
	"unexpected eof",
}

// IsTransient reports whether err belongs to the retryable failure classes:
// rate limiting, overload, 5xx and connection problems. Caller cancellation
// and an expired context deadline are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrNotConfigured) {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) && pe.StatusCode != 0 {
		return transientStatus[pe.StatusCode]
	}
	var retryable interface{ IsRetryable() bool }
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}
	if errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, phrase := range transientPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return statusInMessage.MatchString(msg)
}
