// Package apperrors provides chainable error templates. Besides the message chain an error
// carries a taxonomy code and subcode (surfaced to hosts as a session failure) and an HTTP
// status (used by the sandbox host). Templates are declared once at package level and
// specialized with New, Msg and Err at the failure site.
package apperrors

// Error extends error with template chaining and classification metadata. Every method
// returns a new value; templates are never mutated.
type Error interface {
	error
	Unwrap() error

	New(msg string) Error                  // new message, same template lineage
	Msg(msg string) Error                  // new message, keeps the current error wrapped
	MsgErr(msg string, err ...error) Error // new message, wraps the current error and errs
	Err(err ...error) Error                // same message, wraps errs
	SetExpandError(bool) Error             // ErrorAll includes wrapped errors when set
	SetStatusCode(int) Error
	StatusCode() int
	SetCode(code string) Error // taxonomy code, e.g. "1003"
	Code() string
	SetSubCode(sub string) Error // taxonomy subcode, e.g. "04"
	SubCode() string
	ErrorAll() string
	UnwrapAll() []error
}
