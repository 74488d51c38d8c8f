// Package sandbox is a local flow host for trying embedded flows end to end. It serves flow
// scripts to authenticated clients, mints short lived sandbox access tokens, runs flows server
// side over a websocket and exposes session metrics.
package sandbox

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/tansive/flowbridge/internal/common/httpx"
	"github.com/tansive/flowbridge/internal/common/logtrace"
	"github.com/tansive/flowbridge/internal/common/middleware"
	"github.com/tansive/flowbridge/internal/flowbridge/auditlog"
	"github.com/tansive/flowbridge/internal/flowbridge/bridge"
	"github.com/tansive/flowbridge/internal/flowbridge/metrics"
	"github.com/tansive/flowbridge/internal/flowbridge/surface"
	"github.com/tansive/flowbridge/pkg/types"
)

// ClientVersionHeader carries the protocol version a client speaks.
const ClientVersionHeader = "X-FlowBridge-Protocol"

type issuerContextKey struct{}

// Server is the sandbox flow host.
type Server struct {
	Router *chi.Mux

	cfg      Config
	audit    *auditlog.Writer
	tokens   *TokenIssuer
	flows    *FlowStore
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
	timeout  time.Duration

	// sessionLog receives the gated records of server side sessions and their flows.
	sessionLog io.Writer
}

// NewServer creates a sandbox host from a validated configuration.
func NewServer(cfg Config, m *metrics.Metrics) (*Server, error) {
	if cfg.signingKey == nil {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	ttl, err := cfg.Auth.GetTokenExpiry()
	if err != nil {
		return nil, err
	}
	timeout, err := ParseDuration(cfg.RequestTimeout)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = metrics.New()
	}
	var audit *auditlog.Writer
	if cfg.AuditLog != "" {
		if audit, err = auditlog.Open(cfg.AuditLog, cfg.signingKey); err != nil {
			return nil, fmt.Errorf("opening audit log: %w", err)
		}
	}
	return &Server{
		Router:     chi.NewRouter(),
		cfg:        cfg,
		audit:      audit,
		tokens:     NewTokenIssuer(cfg.signingKey, ttl, cfg.Auth.Issuers),
		flows:      NewFlowStore(cfg.FlowsDir),
		metrics:    m,
		timeout:    timeout,
		sessionLog: os.Stderr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}, nil
}

// Tokens returns the issuer used for sandbox access tokens.
func (s *Server) Tokens() *TokenIssuer { return s.tokens }

// Close releases the audit log.
func (s *Server) Close() error {
	if s.audit == nil {
		return nil
	}
	return s.audit.Close()
}

// MountHandlers sets up all HTTP routes and middleware for the server.
func (s *Server) MountHandlers() {
	s.Router.Use(middleware.RequestLogger)
	s.Router.Use(middleware.PanicHandler)
	if s.cfg.HandleCORS {
		s.Router.Use(s.HandleCORS)
	}
	s.mountResourceHandlers(s.Router)
	if logtrace.IsTraceEnabled() {
		fmt.Println("Routes in sandbox router")
		walkFunc := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
			fmt.Printf("%s %s\n", method, route)
			return nil
		}
		if err := chi.Walk(s.Router, walkFunc); err != nil {
			log.Error().Err(err).Msg("Error walking router")
		}
	}
}

func (s *Server) mountResourceHandlers(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.SetTimeout(s.timeout))
		r.Get("/version", s.getVersion)
		r.Get("/ready", s.getReadiness)
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
		r.Post("/tokens", httpx.WrapHttpRsp(s.createToken))
		r.Get("/flows", httpx.WrapHttpRsp(s.listFlows))
		r.With(s.authenticate).Get("/flows/{flow}.js", httpx.WrapHttpRsp(s.getFlowScript))
		r.With(s.authenticate).Post("/sessions", httpx.WrapHttpRsp(s.runSession))
		r.Get("/audit/key", httpx.WrapHttpRsp(s.getAuditKey))
		r.With(s.authenticate).Get("/audit/log", s.exportAuditLog)
	})
	// websocket routes hijack the connection and cannot run under the request timeout
	r.With(s.authenticate).Get("/ws/{flow}", s.serveFlow)
}

// GetVersionRsp represents the response for version information.
type GetVersionRsp struct {
	ServerVersion   string `json:"serverVersion"`
	ProtocolVersion string `json:"protocolVersion"`
}

func (s *Server) getVersion(w http.ResponseWriter, r *http.Request) {
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, &GetVersionRsp{
		ServerVersion:   "FlowBridge Sandbox: " + Version,
		ProtocolVersion: bridge.ProtocolVersion,
	})
}

func (s *Server) getReadiness(w http.ResponseWriter, r *http.Request) {
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// HandleCORS provides CORS middleware for cross-origin requests.
func (s *Server) HandleCORS(next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", ClientVersionHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	})(next)
}

// authenticate requires a valid sandbox bearer token and, when the client states one, a
// compatible protocol version.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if v := r.Header.Get(ClientVersionHeader); v != "" && !IsClientCompatible(v) {
			httpx.ErrInvalidRequest("unsupported protocol version " + v).Send(w)
			return
		}
		issuer, err := s.tokens.Validate(bearerToken(r.Header.Get("Authorization")))
		if err != nil {
			log.Ctx(r.Context()).Debug().Err(err).Msg("rejected access token")
			httpx.ErrUnAuthorized(err.Error()).Send(w)
			return
		}
		ctx := context.WithValue(r.Context(), issuerContextKey{}, issuer)
		ctx = log.Ctx(ctx).With().Str("app_issuer", issuer).Logger().WithContext(ctx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func issuerFromContext(ctx context.Context) string {
	issuer, _ := ctx.Value(issuerContextKey{}).(string)
	return issuer
}

type createTokenReq struct {
	AppIssuer string `json:"appIssuer"`
}

type createTokenRsp struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

func (s *Server) createToken(r *http.Request) (*httpx.Response, error) {
	var req createTokenReq
	if err := httpx.GetRequestData(r, &req); err != nil {
		return nil, err
	}
	token, expiry, err := s.tokens.Mint(strings.TrimSpace(req.AppIssuer))
	if err != nil {
		return nil, err
	}
	log.Ctx(r.Context()).Info().Str("app_issuer", req.AppIssuer).Time("expires_at", expiry).Msg("sandbox token minted")
	return &httpx.Response{
		StatusCode: http.StatusCreated,
		Response:   &createTokenRsp{AccessToken: token, TokenType: "Bearer", ExpiresAt: expiry},
	}, nil
}

func (s *Server) listFlows(r *http.Request) (*httpx.Response, error) {
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   map[string][]string{"flows": s.flows.Names()},
	}, nil
}

func (s *Server) getFlowScript(r *http.Request) (*httpx.Response, error) {
	code, err := s.flows.Get(chi.URLParam(r, "flow"))
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode:  http.StatusOK,
		Response:    code,
		ContentType: "application/javascript",
	}, nil
}

// serveFlow upgrades to a websocket and runs the named flow against the start directive the
// client sends first.
func (s *Server) serveFlow(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "flow")
	code, err := s.flows.Get(name)
	if err != nil {
		httpx.SendError(w, err)
		return
	}

	conn, uerr := s.upgrader.Upgrade(w, r, nil)
	if uerr != nil {
		// the upgrader has already replied
		log.Ctx(r.Context()).Error().Err(uerr).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	logger := log.Ctx(r.Context()).With().Str("flow", name).Logger()
	flow := gatedFlow(surface.Inline{Name: name, Code: code}, *log.Ctx(r.Context()))
	if err := surface.Relay(r.Context(), conn, flow, logger); err != nil {
		logger.Info().Err(err).Msg("relayed flow ended")
		return
	}
	logger.Info().Msg("relayed flow completed")
}

// gatedFlow builds the flow once its start directive arrives. A directive for the production
// environment runs the flow with a no-op logger so none of its records reach the host log.
func gatedFlow(src surface.Source, logger zerolog.Logger) bridge.Surface {
	return bridge.SurfaceFunc(func(ctx context.Context, directives <-chan []byte, post func([]byte)) error {
		var directive []byte
		select {
		case d, ok := <-directives:
			if !ok {
				return surface.Script(src, zerolog.Nop()).Run(ctx, directives, post)
			}
			directive = d
		case <-ctx.Done():
			return ctx.Err()
		}
		if gjson.GetBytes(directive, "environment").String() == string(types.EnvironmentProduction) {
			logger = zerolog.Nop()
		}
		forward := make(chan []byte, 1)
		forward <- directive
		close(forward)
		return surface.Script(src, logger).Run(ctx, forward, post)
	})
}
