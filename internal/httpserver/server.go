package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"profrag/internal/domain"
)

// Options configures the HTTP server.
type Options struct {
	Logger *slog.Logger
	// RequestTimeout bounds a whole chat request, streaming included.
	// Zero disables the limit.
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

// Server exposes the chat service over HTTP.
type Server struct {
	service        domain.ChatService
	logger         *slog.Logger
	requestTimeout time.Duration
	maxBodyBytes   int64
}

// ErrorResponse is the JSON body of every non-streamed error.
type ErrorResponse struct {
	Error string `json:"error"`
}

func New(service domain.ChatService, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	return &Server{
		service:        service,
		logger:         opts.Logger,
		requestTimeout: opts.RequestTimeout,
		maxBodyBytes:   opts.MaxBodyBytes,
	}
}

// Router returns a configured chi router for embedding in HTTP servers.
func (s *Server) Router() http.Handler {
	r := s.newBaseRouter()
	r.Get("/healthz", s.handleHealth)
	r.Post("/api/chat", s.handleChat)
	return r
}

func (s *Server) newBaseRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(s.logger))
	r.Use(middleware.Recoverer)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	if payload == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) respondError(w http.ResponseWriter, status int, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	s.respondJSON(w, status, ErrorResponse{Error: err.Error()})
}
