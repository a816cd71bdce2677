// Package errors defines the error type the HTTP boundary maps to
// response codes. Anything else surfaces as a 500.
package errors

// ErrorWithStatusCode pairs a user-facing message with the HTTP status
// it should be served with.
type ErrorWithStatusCode struct {
	Message    string
	StatusCode int
}

func (e *ErrorWithStatusCode) Error() string {
	return e.Message
}
