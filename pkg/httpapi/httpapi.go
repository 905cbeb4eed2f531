// Package httpapi is the HTTP surface of the instance controller: the
// external collaborator spec.md treats as a caller of the lifecycle core.
// It authenticates each request, runs the optional captcha pre-check in
// front of mutating operations, and maps classified errors onto the status
// codes the error-handling design names.
package httpapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/arenaforge/instancer/pkg/authn"
	"github.com/arenaforge/instancer/pkg/captcha"
	"github.com/arenaforge/instancer/pkg/instancerr"
	"github.com/arenaforge/instancer/pkg/lifecycle"
	"github.com/arenaforge/instancer/pkg/log"
	"github.com/arenaforge/instancer/pkg/metrics"
)

// Lifecycle is the subset of lifecycle.Service the HTTP layer depends on.
type Lifecycle interface {
	Start(ctx context.Context, challengeName, teamID string) (lifecycle.Instance, error)
	Stop(ctx context.Context, challengeName, teamID string) (lifecycle.Instance, error)
	Status(ctx context.Context, challengeName, teamID string) (lifecycle.Instance, error)
}

// Server wires the authenticator, captcha pre-check, and lifecycle core
// into a chi.Router.
type Server struct {
	Router *chi.Mux

	lifecycle Lifecycle
	auth      authn.Authenticator
	captcha   *captcha.Verifier
}

// New builds a Server. The returned *Server satisfies http.Handler.
func New(lc Lifecycle, auth authn.Authenticator, verifier *captcha.Verifier) *Server {
	s := &Server{lifecycle: lc, auth: auth, captcha: verifier}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(trackMetrics)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1/instances/{challenge}", func(r chi.Router) {
		r.Get("/", s.handleStatus)
		r.Put("/", s.handleStart)
		r.Delete("/", s.handleStop)
	})

	s.Router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	teamID, err := s.auth.Authenticate(r.Context(), r)
	if err != nil {
		respondErr(w, err)
		return
	}

	challenge := chi.URLParam(r, "challenge")
	inst, err := s.lifecycle.Status(r.Context(), challenge, teamID)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, inst)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	teamID, err := s.auth.Authenticate(r.Context(), r)
	if err != nil {
		respondErr(w, err)
		return
	}
	if !s.checkCaptcha(w, r) {
		return
	}

	challenge := chi.URLParam(r, "challenge")
	inst, err := s.lifecycle.Start(r.Context(), challenge, teamID)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, inst)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	teamID, err := s.auth.Authenticate(r.Context(), r)
	if err != nil {
		respondErr(w, err)
		return
	}
	if !s.checkCaptcha(w, r) {
		return
	}

	challenge := chi.URLParam(r, "challenge")
	inst, err := s.lifecycle.Stop(r.Context(), challenge, teamID)
	if err != nil {
		respondErr(w, err)
		return
	}
	respond(w, http.StatusOK, inst)
}

// captchaRequest is the body a PUT/DELETE request must carry when captcha
// is configured.
type captchaRequest struct {
	Captcha string `json:"captcha"`
}

// checkCaptcha runs the hCaptcha pre-check when configured, writing an
// error response and returning false if it fails. With no verifier
// configured, it is a no-op that always returns true.
func (s *Server) checkCaptcha(w http.ResponseWriter, r *http.Request) bool {
	if s.captcha == nil || !s.captcha.Enabled() {
		return true
	}

	var body captchaRequest
	_ = json.NewDecoder(r.Body).Decode(&body)

	remoteIP := r.RemoteAddr
	if host, _, err := net.SplitHostPort(remoteIP); err == nil {
		remoteIP = host
	}
	if err := s.captcha.Verify(r.Context(), body.Captcha, remoteIP); err != nil {
		respondErr(w, err)
		return false
	}
	return true
}

func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondErr(w http.ResponseWriter, err error) {
	status := instancerr.AsHTTP(err)
	respond(w, status, errorResponse{Error: err.Error()})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		log.WithComponent("httpapi").Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request handled")
	})
}

func trackMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(ww.Status())).Inc()
	})
}
