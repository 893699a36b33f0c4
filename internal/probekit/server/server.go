// Package server provides the HTTP transport for the probekit dispatcher.
// It mounts the JSON-RPC endpoint alongside version and health check
// endpoints, with CORS handling and middleware for logging and panic
// recovery. Protocol semantics live in the dispatch package; this layer
// only deframes HTTP bodies into request objects.
package server

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/probekit/probekit/internal/common/httpx"
	"github.com/probekit/probekit/internal/common/jsonrpc"
	"github.com/probekit/probekit/internal/common/middleware"
	"github.com/probekit/probekit/internal/probekit/config"
	"github.com/probekit/probekit/internal/probekit/dispatch"
)

// maxBodyBytes bounds a single HTTP-framed request.
const maxBodyBytes = 4 * 1024 * 1024

// RPCServer is the HTTP front end for one dispatcher.
type RPCServer struct {
	Router     *chi.Mux
	cfg        *config.EffectiveConfig
	dispatcher *dispatch.Dispatcher
}

// New creates the server and mounts all handlers.
func New(cfg *config.EffectiveConfig, d *dispatch.Dispatcher) *RPCServer {
	s := &RPCServer{
		Router:     chi.NewRouter(),
		cfg:        cfg,
		dispatcher: d,
	}
	s.mountHandlers()
	return s
}

func (s *RPCServer) mountHandlers() {
	s.Router.Use(middleware.RequestLogger)
	s.Router.Use(middleware.PanicHandler)
	// Transport ceiling leaves room for a tool call that retries up to the
	// per-call timeout on every attempt.
	if ceiling := s.cfg.MaxRequestTimeout(); ceiling > 0 {
		s.Router.Use(middleware.SetTimeout(8 * ceiling))
	}
	if s.cfg.Server.HandleCORS {
		s.Router.Use(s.handleCORS)
	}
	s.Router.Post("/rpc", s.postRPC)
	s.Router.Get("/version", s.getVersion)
	s.Router.Get("/ready", s.getReadiness)
}

// postRPC deframes one JSON-RPC request from the HTTP body and returns the
// dispatcher's response. Protocol-level failures are JSON-RPC error objects
// with HTTP 200; only transport problems surface as HTTP errors.
func (s *RPCServer) postRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		httpx.ErrInvalidRequest("unable to read request body").Send(w)
		return
	}

	req, err := jsonrpc.ParseRequest(body)
	if err != nil {
		resp := jsonrpc.NewErrorResponse(jsonrpc.ID{}, jsonrpc.ErrCodeParseError, err.Error(), nil)
		httpx.SendJsonRsp(r.Context(), w, http.StatusOK, resp)
		return
	}

	resp := s.dispatcher.Dispatch(r.Context(), req)
	if resp == nil {
		// Notification: acknowledge with no body.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, resp)
}

// GetVersionRsp is the response for version information requests.
type GetVersionRsp struct {
	ServerVersion   string `json:"serverVersion"`
	ProtocolVersion string `json:"protocolVersion"`
}

func (s *RPCServer) getVersion(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("GetVersion")
	rsp := &GetVersionRsp{
		ServerVersion:   dispatch.ServerName + " " + dispatch.ServerVersion,
		ProtocolVersion: dispatch.ProtocolVersion,
	}
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, rsp)
}

func (s *RPCServer) getReadiness(w http.ResponseWriter, r *http.Request) {
	log.Ctx(r.Context()).Debug().Msg("Readiness check")
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

func (s *RPCServer) handleCORS(next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "Accept-Encoding"},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	})(next)
}
