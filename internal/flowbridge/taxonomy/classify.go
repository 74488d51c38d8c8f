package taxonomy

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"os"
	"syscall"

	"github.com/tansive/flowbridge/internal/common/apperrors"
	"github.com/tansive/flowbridge/pkg/types"
)

// Phase tells the classifier whether the embedded surface had signalled readiness when the
// failure was raised. Unrecognized failures are initialization errors before readiness and
// bridge errors after it.
type Phase int

const (
	PhaseLoading Phase = iota
	PhaseActive
)

// Raw failure kinds reported by embedded flows in result:failure payloads.
const (
	KindUnauthorized     = "unauthorized"
	KindCameraPermission = "camera_permission"
	KindNetwork          = "network"
	KindTimeout          = "timeout"
)

// Network reasons accepted with KindNetwork.
var networkReasons = map[string]apperrors.Error{
	"no_connection":   ErrNoConnection,
	"host_not_found":  ErrHostNotFound,
	"timeout":         ErrNetworkTimeout,
	"cannot_connect":  ErrCannotConnect,
	"connection_lost": ErrConnectionLost,
}

// RawFailure is the error object an embedded flow attaches to result:failure.
type RawFailure struct {
	Kind    string `json:"kind,omitempty" mapstructure:"kind"`
	Reason  string `json:"reason,omitempty" mapstructure:"reason"`
	Code    string `json:"code,omitempty" mapstructure:"code"`
	SubCode string `json:"subCode,omitempty" mapstructure:"subCode"`
	Message string `json:"message,omitempty" mapstructure:"message"`
}

func (r RawFailure) Error() string {
	switch {
	case r.Message != "":
		return r.Message
	case r.Kind != "":
		return "flow failure: " + r.Kind
	default:
		return "flow failure"
	}
}

// Classify maps any failure onto the taxonomy. It is total and deterministic: the same cause
// in the same phase always yields the same code and subcode.
func Classify(err error, phase Phase) types.Error {
	if err == nil {
		return unclassified("unknown failure", phase)
	}

	var te types.Error
	if errors.As(err, &te) && te.Code.IsKnown() {
		return types.NewError(te.Code, normalizeSubCode(te.Code, te.SubCode.String()), te.Message)
	}

	var raw RawFailure
	if errors.As(err, &raw) {
		return classifyRaw(raw, phase)
	}

	if ae, ok := apperrors.As(err); ok && types.ErrorCode(ae.Code()).IsKnown() {
		return FromAppError(ae)
	}

	if tmpl := networkCause(err); tmpl != nil {
		return withMessage(tmpl, err.Error())
	}

	return unclassified(err.Error(), phase)
}

func classifyRaw(raw RawFailure, phase Phase) types.Error {
	if c := types.ErrorCode(raw.Code); c.IsKnown() {
		msg := raw.Message
		if msg == "" {
			msg = c.Name()
		}
		return types.NewError(c, normalizeSubCode(c, raw.SubCode), msg)
	}

	var tmpl apperrors.Error
	switch raw.Kind {
	case KindUnauthorized:
		tmpl = ErrUnauthorized
	case KindCameraPermission:
		tmpl = ErrCameraPermission
	case KindTimeout:
		tmpl = ErrTimeout
	case KindNetwork:
		if t, ok := networkReasons[raw.Reason]; ok {
			tmpl = t
		} else {
			tmpl = ErrNetworkUnknown
		}
	default:
		return unclassified(raw.Error(), phase)
	}
	return withMessage(tmpl, raw.Message)
}

// networkCause inspects transport failures for a recognizable cause. The checks run from the
// most to the least specific so that, for example, a DNS failure that also reports a timeout
// is still a DNS failure.
func networkCause(err error) apperrors.Error {
	if errors.Is(err, ErrNoNetwork) || errors.Is(err, syscall.ENETDOWN) || errors.Is(err, syscall.ENETUNREACH) {
		return ErrNoConnection
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrHostNotFound
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EHOSTUNREACH) {
		return ErrCannotConnect
	}

	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return ErrNetworkTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrNetworkTimeout
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) {
		return ErrConnectionLost
	}

	var opErr *net.OpError
	var urlErr *url.Error
	var addrErr *net.AddrError
	if errors.As(err, &opErr) || errors.As(err, &urlErr) || errors.As(err, &addrErr) || errors.As(err, &netErr) {
		return ErrNetworkUnknown
	}
	return nil
}

func unclassified(msg string, phase Phase) types.Error {
	if phase == PhaseActive {
		return withMessage(ErrBridge, msg)
	}
	return withMessage(ErrInitialization, msg)
}

// withMessage renders tmpl with msg, falling back to the template text.
func withMessage(tmpl apperrors.Error, msg string) types.Error {
	if msg != "" {
		tmpl = tmpl.New(msg)
	}
	return FromAppError(tmpl)
}
