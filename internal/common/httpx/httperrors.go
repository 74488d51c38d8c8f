package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/tansive/flowbridge/internal/common/apperrors"
)

// Error represents an HTTP error response with status code and description.
type Error struct {
	Description string `json:"description"`
	StatusCode  int    `json:"http_status_code"`
}

type errorRsp struct {
	Result int    `json:"result"`
	Error  string `json:"error"`
}

// Failure represents the error result code in error responses.
const Failure int = 0

// Send writes the error response to the provided ResponseWriter.
// If the writer is nil, no action is taken.
func (e *Error) Send(w http.ResponseWriter) {
	if w == nil {
		return
	}
	rspJson, err := json.Marshal(&errorRsp{Result: Failure, Error: e.Description})
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Unable to parse error"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_, _ = w.Write(rspJson)
}

// Error returns the error description.
func (e *Error) Error() string {
	return e.Description
}

// SendError sends an application error as an HTTP error response.
// If the error is nil, no action is taken.
func SendError(w http.ResponseWriter, err apperrors.Error) {
	if err == nil {
		return
	}
	statusCode := err.StatusCode()
	if statusCode == 0 {
		statusCode = http.StatusInternalServerError
	}
	httperror := &Error{
		StatusCode:  statusCode,
		Description: err.ErrorAll(),
	}
	httperror.Send(w)
}

func newError(status int, def string, detail []string) *Error {
	if len(detail) > 0 && detail[0] != "" {
		def = detail[0]
	}
	return &Error{Description: def, StatusCode: status}
}

// ErrReqMethodNotSupported returns an error for unsupported request methods.
func ErrReqMethodNotSupported() *Error {
	return newError(http.StatusMethodNotAllowed, "request method not supported", nil)
}

// ErrUnableToParseReqData returns an error for request bodies that are not valid JSON.
func ErrUnableToParseReqData() *Error {
	return newError(http.StatusBadRequest, "unable to parse request data", nil)
}

// ErrApplicationError returns a generic server side error.
func ErrApplicationError(err ...string) *Error {
	return newError(http.StatusInternalServerError, "unable to process request", err)
}

// ErrUnAuthorized returns an error for requests without valid credentials.
func ErrUnAuthorized(str ...string) *Error {
	return newError(http.StatusUnauthorized, "unauthorized", str)
}

// ErrInvalidRequest returns an error for malformed requests.
func ErrInvalidRequest(str ...string) *Error {
	return newError(http.StatusBadRequest, "invalid request", str)
}

// ErrRequestTimeout returns an error for requests that exceeded their deadline.
func ErrRequestTimeout() *Error {
	return newError(http.StatusServiceUnavailable, "request timed out", nil)
}
