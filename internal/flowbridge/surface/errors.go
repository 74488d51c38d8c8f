package surface

import (
	"github.com/tansive/flowbridge/internal/common/apperrors"
	"github.com/tansive/flowbridge/internal/flowbridge/taxonomy"
)

var (
	ErrFlowNotFound   = taxonomy.ErrInitialization.New("flow script not found")
	ErrFlowLoad       = taxonomy.ErrInitialization.New("unable to load flow script")
	ErrFlowCompile    = taxonomy.ErrInitialization.New("flow script does not compile")
	ErrNoSource       = taxonomy.ErrInitialization.New("no flow source configured")
	ErrRelay          = apperrors.New("websocket relay error")
	ErrRelayDirective = ErrRelay.New("expected start directive as first text message")
	ErrRemoteFlow     = ErrRelay.New("remote flow failed")
)
