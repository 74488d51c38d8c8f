package jsruntime

import (
	"net/http"

	"github.com/tansive/flowbridge/internal/common/apperrors"
)

var (
	ErrJSRuntime         = apperrors.New("jsruntime error")
	ErrInvalidJSFunction = ErrJSRuntime.New("invalid javascript function")
	ErrJSRuntimeError    = ErrJSRuntime.New("jsruntime error").SetStatusCode(http.StatusBadRequest).SetExpandError(true)
	ErrJSExecutionError  = ErrJSRuntime.New("js execution error").SetStatusCode(http.StatusUnprocessableEntity).SetExpandError(true)
	ErrJSInterrupted     = ErrJSRuntime.New("js execution interrupted")
	ErrInvalidDirective  = ErrJSRuntime.New("invalid start directive")
)
