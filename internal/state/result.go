package state

import (
	"encoding/json"
	"fmt"
	"math"
)

// Result is the uniform value every executor returns. Code 0 means success;
// any other code, or no code at all, stops the run. Executor-specific
// metadata is carried alongside and persisted verbatim.
type Result map[string]any

// Well-known result keys.
const (
	KeyCode         = "code"
	KeyOut          = "out"
	KeyErr          = "err"
	KeyError        = "error"
	KeyResponse     = "response"
	KeyAttempt      = "attempt"
	KeyLastResponse = "last_response"
)

// MissingCode is the code assumed when a result does not carry one.
const MissingCode = 1

// Success returns {code: 0}.
func Success() Result {
	return Result{KeyCode: 0}
}

// Failure returns {code: 1, error: msg}.
func Failure(msg string) Result {
	return Result{KeyCode: 1, KeyError: msg}
}

// Failuref is Failure with formatting.
func Failuref(format string, args ...any) Result {
	return Failure(fmt.Sprintf(format, args...))
}

// FromError converts an error into a failed result.
func FromError(err error) Result {
	return Failure(err.Error())
}

// Code returns the result code and whether one was present. Values decoded
// from JSON arrive as float64 and are accepted when integral.
func (r Result) Code() (int, bool) {
	v, ok := r[KeyCode]
	if !ok {
		return 0, false
	}
	switch c := v.(type) {
	case int:
		return c, true
	case int32:
		return int(c), true
	case int64:
		return int(c), true
	case float64:
		if c != math.Trunc(c) {
			return 0, false
		}
		return int(c), true
	case json.Number:
		n, err := c.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

// CodeOrDefault returns the code, or MissingCode when absent or malformed.
func (r Result) CodeOrDefault() int {
	if c, ok := r.Code(); ok {
		return c
	}
	return MissingCode
}

// Succeeded is true only for an explicit code of 0.
func (r Result) Succeeded() bool {
	c, ok := r.Code()
	return ok && c == 0
}

// ErrorMessage returns the "error" entry, if it is a string.
func (r Result) ErrorMessage() string {
	s, _ := r[KeyError].(string)
	return s
}

// With returns r with key set, allocating if r is nil.
func (r Result) With(key string, value any) Result {
	if r == nil {
		r = Result{}
	}
	r[key] = value
	return r
}
