package types

import (
	"encoding/json"
	"fmt"
)

// ResultKind discriminates the Result variants.
type ResultKind int

const (
	ResultSuccess ResultKind = iota + 1
	ResultFailure
	ResultClosed
)

func (k ResultKind) String() string {
	switch k {
	case ResultSuccess:
		return "success"
	case ResultFailure:
		return "failure"
	case ResultClosed:
		return "closed"
	default:
		return fmt.Sprintf("ResultKind(%d)", int(k))
	}
}

// Result is the single terminal outcome of a session. Only Failure carries a payload.
// The zero value is not a valid Result.
type Result struct {
	kind ResultKind
	err  Error
}

func Success() Result { return Result{kind: ResultSuccess} }

func Failure(err Error) Result { return Result{kind: ResultFailure, err: err} }

// Closed is the result of a user dismissal or host cancellation. It is not an error.
func Closed() Result { return Result{kind: ResultClosed} }

func (r Result) Kind() ResultKind { return r.kind }

// IsValid reports whether r is one of the three variants.
func (r Result) IsValid() bool {
	return r.kind >= ResultSuccess && r.kind <= ResultClosed
}

// Err returns the failure payload. ok is false for Success and Closed.
func (r Result) Err() (err Error, ok bool) {
	if r.kind != ResultFailure {
		return Error{}, false
	}
	return r.err, true
}

// Match dispatches on the variant. Nil branches are skipped.
func (r Result) Match(onSuccess func(), onFailure func(Error), onClosed func()) {
	switch r.kind {
	case ResultSuccess:
		if onSuccess != nil {
			onSuccess()
		}
	case ResultFailure:
		if onFailure != nil {
			onFailure(r.err)
		}
	case ResultClosed:
		if onClosed != nil {
			onClosed()
		}
	}
}

func (r Result) String() string {
	if r.kind == ResultFailure {
		return "failure " + r.err.Detail()
	}
	return r.kind.String()
}

type resultJSON struct {
	Result string `json:"result"`
	Error  *Error `json:"error,omitempty"`
}

// MarshalJSON renders {"result":"failure","error":{...}}.
func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{Result: r.kind.String()}
	if r.kind == ResultFailure {
		e := r.err
		out.Error = &e
	}
	return json.Marshal(out)
}
