package bridge

import (
	"github.com/tansive/flowbridge/internal/common/apperrors"
)

// Bridge errors carry no taxonomy code on purpose: they are unclassifiable transport failures
// and resolve to 1001 or 1004 depending on the session phase.
var (
	ErrBridge            = apperrors.New("bridge error").SetExpandError(true)
	ErrUnknownPayload    = ErrBridge.New("unrecognized message from embedded surface")
	ErrProtocolMismatch  = ErrBridge.New("embedded surface speaks an unsupported protocol version")
	ErrFlowEnded         = ErrBridge.New("embedded surface finished without a result")
	ErrDirectiveSent     = ErrBridge.New("start directive already sent")
	ErrBridgeClosed      = ErrBridge.New("bridge is closed")
	ErrDirectiveEncoding = ErrBridge.New("unable to encode start directive")
	ErrSurfacePanic      = ErrBridge.New("embedded surface panicked")
)
