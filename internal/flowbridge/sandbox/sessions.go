package sandbox

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/tansive/flowbridge/internal/common/httpx"
	"github.com/tansive/flowbridge/internal/common/logtrace"
	"github.com/tansive/flowbridge/internal/flowbridge/config"
	"github.com/tansive/flowbridge/internal/flowbridge/surface"
	"github.com/tansive/flowbridge/pkg/api"
	"github.com/tansive/flowbridge/pkg/types"
)

type runSessionReq struct {
	Flow    string         `json:"flow"`
	Resume  bool           `json:"resume"`
	Config  map[string]any `json:"config"`
	Timeout string         `json:"loadTimeout"`
}

type runSessionRsp struct {
	SessionID string       `json:"sessionId"`
	Outcome   types.Result `json:"outcome"`
}

// runSession runs a complete session against a hosted flow inside the server and reports its
// result. The bearer token doubles as the session access token unless the config carries one.
func (s *Server) runSession(r *http.Request) (*httpx.Response, error) {
	var req runSessionReq
	if err := httpx.GetRequestData(r, &req); err != nil {
		return nil, err
	}
	code, aerr := s.flows.Get(req.Flow)
	if aerr != nil {
		return nil, aerr
	}
	cfg, aerr := config.Decode(req.Config)
	if aerr != nil {
		return nil, aerr.SetStatusCode(http.StatusBadRequest)
	}
	if cfg.AccessToken == "" && !req.Resume {
		cfg.AccessToken = bearerToken(r.Header.Get("Authorization"))
	}
	if cfg.AppIssuer != "" && cfg.AppIssuer != issuerFromContext(r.Context()) {
		return nil, httpx.ErrUnAuthorized("token was not issued for " + cfg.AppIssuer)
	}

	opts := []api.Option{api.WithObserver(s.metrics), api.WithLogWriter(s.sessionLog)}
	if req.Resume {
		opts = append(opts, api.WithResumedSession())
	}
	if req.Timeout != "" {
		d, err := ParseDuration(req.Timeout)
		if err != nil {
			return nil, httpx.ErrInvalidRequest("invalid loadTimeout: " + err.Error())
		}
		opts = append(opts, api.WithLoadTimeout(d))
	}

	flowLogger := logtrace.NewGate(cfg.LogSetting, cfg.Environment, s.sessionLog)
	// the session must not outlive the request
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	h := api.Embed(ctx, cfg, surface.Script(surface.Inline{Name: req.Flow, Code: code}, flowLogger), opts...)

	result, err := h.Wait(r.Context())
	if err != nil {
		h.Cancel()
		result, _ = h.Wait(context.WithoutCancel(r.Context()))
	}
	log.Ctx(r.Context()).Info().Str("flow", req.Flow).Str("session_id", h.ID()).Stringer("result", result).Msg("sandbox session finished")
	s.recordOutcome(r, h.ID(), req.Flow, result)

	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   &runSessionRsp{SessionID: h.ID(), Outcome: result},
	}, nil
}
