package sandbox

import (
	"crypto/ed25519"
	"encoding/base64"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/tansive/flowbridge/internal/common/httpx"
	"github.com/tansive/flowbridge/pkg/types"
)

// AuditLogContentType is the media type of an exported audit log.
const AuditLogContentType = "application/x-snappy-framed"

type auditKeyRsp struct {
	PublicKey string `json:"publicKey"`
	Enabled   bool   `json:"enabled"`
}

func (s *Server) getAuditKey(r *http.Request) (*httpx.Response, error) {
	pub := s.cfg.signingKey.Public().(ed25519.PublicKey)
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   &auditKeyRsp{PublicKey: base64.StdEncoding.EncodeToString(pub), Enabled: s.audit != nil},
	}, nil
}

func (s *Server) exportAuditLog(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		httpx.ErrInvalidRequest("audit log is not enabled").Send(w)
		return
	}
	w.Header().Set("Content-Type", AuditLogContentType)
	w.WriteHeader(http.StatusOK)
	if err := s.audit.Export(w); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("unable to export audit log")
	}
}

// recordOutcome appends a finished server side session to the audit log, if one is configured.
func (s *Server) recordOutcome(r *http.Request, sessionID, flow string, result types.Result) {
	if s.audit == nil {
		return
	}
	entry := map[string]any{
		"sessionId": sessionID,
		"appIssuer": issuerFromContext(r.Context()),
		"flow":      flow,
		"result":    result.Kind().String(),
	}
	if e, ok := result.Err(); ok {
		entry["code"] = string(e.Code)
		entry["detail"] = e.Detail()
	}
	if err := s.audit.Record(entry); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("session_id", sessionID).Msg("unable to record session outcome")
	}
}
