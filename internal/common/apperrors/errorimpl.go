package apperrors

import (
	"errors"
	"strings"
)

type appError struct {
	msg           string
	base          error
	wrappedErrors []error
	statuscode    int
	code          string
	subCode       string
	expandError   bool
}

func (e *appError) Error() string {
	return e.msg
}

// ErrorAll returns the message followed by every wrapped error when expansion is on.
func (e *appError) ErrorAll() string {
	if !e.expandError {
		return e.Error()
	}
	var b strings.Builder
	b.WriteString(e.Error())
	for _, err := range e.wrappedErrors {
		b.WriteString("; ")
		b.WriteString(err.Error())
	}
	return b.String()
}

func (e *appError) Unwrap() error {
	return e.base
}

func (e *appError) UnwrapAll() []error {
	return e.wrappedErrors
}

// derive copies the classification metadata of e into a child error.
func (e *appError) derive(msg string, wrapped []error) *appError {
	return &appError{
		msg:           msg,
		base:          e,
		wrappedErrors: wrapped,
		statuscode:    e.statuscode,
		code:          e.code,
		subCode:       e.subCode,
		expandError:   e.expandError,
	}
}

func (e *appError) New(msg string) Error {
	return e.derive(msg, nil)
}

func (e *appError) Msg(msg string) Error {
	return e.derive(msg, append([]error{e}, e.wrappedErrors...))
}

func (e *appError) MsgErr(msg string, errs ...error) Error {
	return e.derive(msg, append([]error{e}, errs...))
}

func (e *appError) Err(errs ...error) Error {
	return e.derive(e.msg, append([]error{e}, errs...))
}

func (e *appError) SetExpandError(flag bool) Error {
	cp := *e
	cp.expandError = flag
	return &cp
}

func (e *appError) SetStatusCode(code int) Error {
	cp := *e
	cp.statuscode = code
	return &cp
}

func (e *appError) StatusCode() int {
	return e.statuscode
}

func (e *appError) SetCode(code string) Error {
	cp := *e
	cp.code = code
	return &cp
}

func (e *appError) Code() string {
	return e.code
}

func (e *appError) SetSubCode(sub string) Error {
	cp := *e
	cp.subCode = sub
	return &cp
}

func (e *appError) SubCode() string {
	return e.subCode
}

// Is matches target against the template lineage and every wrapped error.
func (e *appError) Is(target error) bool {
	if target == nil {
		return false
	}
	if errors.Is(e.base, target) {
		return true
	}
	for _, err := range e.wrappedErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// New creates a root template.
func New(msg string) Error {
	return &appError{msg: msg}
}

// As returns the first apperrors.Error in err's chain.
func As(err error) (Error, bool) {
	var ae Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
