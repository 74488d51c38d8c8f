// Package httpx provides HTTP request/response handling utilities for the sandbox flow host.
// Handlers return a Response or an error; WrapHttpRsp turns either into a consistent reply.
package httpx

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/tansive/flowbridge/internal/common/apperrors"
)

// maxRequestBody bounds JSON request bodies.
const maxRequestBody = 1 << 20

// GetRequestData parses a JSON request body into data. Only POST and PUT are accepted.
func GetRequestData(r *http.Request, data any) error {
	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		return ErrReqMethodNotSupported()
	}
	if r.Body == nil {
		log.Ctx(r.Context()).Error().Msg("Empty request body")
		return ErrUnableToParseReqData()
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(data); err != nil {
		return ErrUnableToParseReqData()
	}
	return nil
}

// Response represents an HTTP response with a status code and content type. Response is
// marshalled as JSON unless ContentType says otherwise, in which case it must be a string.
type Response struct {
	StatusCode  int
	Location    string
	Response    any
	ContentType string
}

// RequestHandler defines a function type for handling HTTP requests.
type RequestHandler func(r *http.Request) (*Response, error)

// WrapHttpRsp wraps a RequestHandler to provide standardized HTTP response handling.
func WrapHttpRsp(handler RequestHandler) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rsp, err := handler(r)
		if err != nil {
			SendAnyError(w, err)
			return
		}
		if rsp == nil {
			ErrApplicationError().Send(w)
			return
		}

		if rsp.ContentType == "" || rsp.ContentType == "application/json" {
			var location []string
			if rsp.Location != "" {
				location = append(location, rsp.Location)
			}
			SendJsonRsp(r.Context(), w, rsp.StatusCode, rsp.Response, location...)
			return
		}
		body, ok := rsp.Response.(string)
		if !ok {
			ErrApplicationError("unsupported response type").Send(w)
			return
		}
		w.Header().Set("Content-Type", rsp.ContentType)
		w.WriteHeader(rsp.StatusCode)
		_, _ = w.Write([]byte(body))
	})
}

// SendAnyError replies with err, using its status code when it carries one.
func SendAnyError(w http.ResponseWriter, err error) {
	if httperror, ok := err.(*Error); ok {
		httperror.Send(w)
		return
	}
	if appErr, ok := apperrors.As(err); ok {
		SendError(w, appErr)
		return
	}
	ErrApplicationError(err.Error()).Send(w)
}
