// Package taxonomy is the closed catalog of session failure codes and the classifier that maps
// raw failures from the bridge, the surfaces and the network stack onto it. Everything here is
// read-only and safe for concurrent use.
package taxonomy

import (
	"net/http"

	"github.com/tansive/flowbridge/internal/common/apperrors"
	"github.com/tansive/flowbridge/pkg/types"
)

func code(c types.ErrorCode) string { return string(c) }

var (
	// ErrFlowBridge is the root of every classified failure.
	ErrFlowBridge apperrors.Error = apperrors.New("flowbridge error").SetStatusCode(http.StatusInternalServerError)

	ErrInitialization apperrors.Error = ErrFlowBridge.New("Initialization failed").SetCode(code(types.CodeInitialization))

	ErrInvalidConfig apperrors.Error = ErrFlowBridge.New("Invalid configuration").SetCode(code(types.CodeInvalidConfig)).SetStatusCode(http.StatusBadRequest)

	ErrNetwork        apperrors.Error = ErrFlowBridge.New("Network error").SetCode(code(types.CodeNetwork)).SetStatusCode(http.StatusBadGateway)
	ErrNoConnection   apperrors.Error = ErrNetwork.New("No internet connection").SetSubCode(types.SubCodeNoConnection)
	ErrHostNotFound   apperrors.Error = ErrNetwork.New("Host not found").SetSubCode(types.SubCodeHostNotFound)
	ErrNetworkTimeout apperrors.Error = ErrNetwork.New("Request timed out").SetSubCode(types.SubCodeNetworkTimeout)
	ErrCannotConnect  apperrors.Error = ErrNetwork.New("Cannot connect to server").SetSubCode(types.SubCodeCannotConnect)
	ErrConnectionLost apperrors.Error = ErrNetwork.New("Connection lost").SetSubCode(types.SubCodeConnectionLost)
	ErrNetworkUnknown apperrors.Error = ErrNetwork.New("Unknown network error").SetSubCode(types.SubCodeNetworkUnknown)

	ErrBridge       apperrors.Error = ErrFlowBridge.New("Bridge error").SetCode(code(types.CodeBridge))
	ErrUnauthorized apperrors.Error = ErrBridge.New("Unauthorized: invalid or expired access token").SetSubCode(types.SubCodeUnauthorized).SetStatusCode(http.StatusUnauthorized)

	ErrTimeout apperrors.Error = ErrFlowBridge.New("Timed out waiting for the flow to load").SetCode(code(types.CodeTimeout)).SetStatusCode(http.StatusGatewayTimeout)

	ErrCameraPermission apperrors.Error = ErrFlowBridge.New("Camera permission denied").SetCode(code(types.CodeCameraPermission)).SetStatusCode(http.StatusForbidden)
)

// ErrNoNetwork may be returned by a surface that detects the device has no usable network
// interface before attempting any connection.
var ErrNoNetwork = ErrNoConnection.New("no network interface available")

// FromAppError converts a coded apperrors.Error into the host-facing shape. The subcode is
// dropped when it is not defined for the code.
func FromAppError(ae apperrors.Error) types.Error {
	c := types.ErrorCode(ae.Code())
	return types.NewError(c, normalizeSubCode(c, ae.SubCode()), ae.Error())
}

var validSubCodes = map[types.ErrorCode]map[string]bool{
	types.CodeNetwork: {
		types.SubCodeNoConnection:   true,
		types.SubCodeHostNotFound:   true,
		types.SubCodeNetworkTimeout: true,
		types.SubCodeCannotConnect:  true,
		types.SubCodeConnectionLost: true,
		types.SubCodeNetworkUnknown: true,
	},
	types.CodeBridge: {
		types.SubCodeUnauthorized: true,
	},
}

// normalizeSubCode keeps sub only when it is defined for c. A network error always has a
// subcode; an undefined one becomes "unknown".
func normalizeSubCode(c types.ErrorCode, sub string) string {
	valid, ok := validSubCodes[c]
	if !ok {
		return ""
	}
	if valid[sub] {
		return sub
	}
	if c == types.CodeNetwork {
		return types.SubCodeNetworkUnknown
	}
	return ""
}
