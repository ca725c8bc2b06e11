package callable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/flashbots/go-utils/httplogger"
	"github.com/go-chi/chi/v5"
	"go.uber.org/atomic"
)

const defaultMaxBodyBytes = 1 << 20

type ServerConfig struct {
	ListenAddr string
	Log        *slog.Logger

	DrainDuration            time.Duration
	GracefulShutdownDuration time.Duration
	ReadTimeout              time.Duration
	WriteTimeout             time.Duration
	MaxBodyBytes             int64
}

// Server exposes the registry as POST /{function} plus the health and drain
// endpoints.
type Server struct {
	cfg      ServerConfig
	isReady  atomic.Bool
	log      *slog.Logger
	registry *Registry
	verifier *TokenVerifier

	srv *http.Server
}

func NewServer(cfg ServerConfig, registry *Registry, verifier *TokenVerifier) (*Server, error) {
	if registry == nil {
		return nil, fmt.Errorf("callable: function registry is required")
	}
	if verifier == nil {
		return nil, fmt.Errorf("callable: token verifier is required")
	}
	if cfg.Log == nil {
		cfg.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	srv := &Server{
		cfg:      cfg,
		log:      cfg.Log,
		registry: registry,
		verifier: verifier,
	}
	srv.isReady.Store(true)
	srv.srv = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return srv, nil
}

func (srv *Server) Handler() http.Handler {
	mux := chi.NewRouter()
	mux.Use(srv.httpLogger)

	mux.Get("/livez", srv.handleLivenessCheck)
	mux.Get("/readyz", srv.handleReadinessCheck)
	mux.Get("/drain", srv.handleDrain)
	mux.Get("/undrain", srv.handleUndrain)
	mux.Post("/{function}", srv.handleCall)
	return mux
}

func (srv *Server) httpLogger(next http.Handler) http.Handler {
	return httplogger.LoggingMiddlewareSlog(srv.log, next)
}

func (srv *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "function")
	fn, ok := srv.registry.Get(name)
	if !ok {
		writeError(w, unknownFunctionError(name))
		return
	}

	caller, err := callerFromRequest(r, srv.verifier)
	if err != nil {
		srv.log.Warn("callable identity rejected", "function", name, "err", err)
		writeError(w, err)
		return
	}

	var envelope Request
	body := http.MaxBytesReader(w, r.Body, srv.cfg.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(&envelope); err != nil && !errors.Is(err, io.EOF) {
		if !caller.Authenticated() {
			writeError(w, missingIdentityError())
			return
		}
		writeError(w, malformedRequestError(err))
		return
	}

	result, err := fn(r.Context(), caller, envelope.Data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeResult(w, result)
}

func (srv *Server) handleLivenessCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (srv *Server) handleReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if !srv.isReady.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (srv *Server) handleDrain(w http.ResponseWriter, _ *http.Request) {
	if !srv.isReady.Swap(false) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "already draining"})
		return
	}
	srv.log.Info("Server marked as not ready")
	writeJSON(w, http.StatusOK, map[string]string{"status": "draining"})
}

func (srv *Server) handleUndrain(w http.ResponseWriter, _ *http.Request) {
	if srv.isReady.Swap(true) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "already ready"})
		return
	}
	srv.log.Info("Server marked as ready")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (srv *Server) Ready() bool {
	return srv.isReady.Load()
}

func (srv *Server) RunInBackground() {
	go func() {
		srv.log.Info("Starting HTTP server", "listenAddress", srv.cfg.ListenAddr)
		if err := srv.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srv.log.Error("HTTP server failed", "err", err)
		}
	}()
}

// Shutdown marks the server not ready, waits out the drain period so load
// balancers stop routing, then stops accepting requests.
func (srv *Server) Shutdown(ctx context.Context) error {
	srv.isReady.Store(false)
	if srv.cfg.DrainDuration > 0 {
		select {
		case <-time.After(srv.cfg.DrainDuration):
		case <-ctx.Done():
		}
	}
	timeout := srv.cfg.GracefulShutdownDuration
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := srv.srv.Shutdown(shutdownCtx); err != nil {
		srv.log.Error("Graceful HTTP server shutdown failed", "err", err)
		return err
	}
	srv.log.Info("HTTP server gracefully stopped")
	return nil
}
