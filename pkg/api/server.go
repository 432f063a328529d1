// Package api exposes the monitoring and control surface of a producer over
// HTTP: status and health probes, lifecycle verbs, cadence updates, metrics,
// and a websocket tap on the output stream.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"streamgen/internal/models"
	"streamgen/internal/producer"
)

// Config tunes the API server.
type Config struct {
	Addr string
	// Token, when set, is required in the X-API-Key header of every request.
	Token string
	// RateLimit and Burst bound the request rate across all clients.
	RateLimit float64
	Burst     int
	// Gatherer serves GET /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// Response is the JSON envelope for control endpoints.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// RateRequest is the body of POST /rate. Exactly one of rate or interval
// must be set.
type RateRequest struct {
	Rate     int    `json:"rate,omitempty"`
	Interval string `json:"interval,omitempty"`
}

// Server wires a controller to the HTTP control surface.
type Server struct {
	ctrl    *producer.Controller
	hub     *TapHub
	limiter *rate.Limiter
	token   string
	srv     *http.Server
	logger  *log.Entry
}

// NewServer builds the server and attaches its tap to the controller. The
// tap must be attached before the controller starts.
func NewServer(ctrl *producer.Controller, cfg Config) *Server {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 20
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 40
	}

	s := &Server{
		ctrl:    ctrl,
		hub:     NewTapHub(),
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		token:   cfg.Token,
		logger:  log.WithField("component", "api"),
	}
	ctrl.Tap = s.hub.Broadcast

	r := mux.NewRouter()
	r.Use(s.limit)
	if s.token != "" {
		r.Use(s.authenticate)
	}

	r.HandleFunc("/", s.handleRoot).Methods("GET")
	r.HandleFunc("/status", s.handleStatus).Methods("GET")
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/start", s.handleStart).Methods("POST")
	r.HandleFunc("/stop", s.handleStop).Methods("POST")
	r.HandleFunc("/pause", s.handlePause).Methods("POST")
	r.HandleFunc("/resume", s.handleResume).Methods("POST")
	r.HandleFunc("/rate", s.handleRate).Methods("POST")
	r.HandleFunc("/tap", s.hub.HandleConnection)
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// ListenAndServe runs the server until Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.WithField("addr", s.srv.Addr).Info("api server listening")
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains the server and closes tap connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.srv.Shutdown(ctx)
}

func (s *Server) limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != s.token {
			http.Error(w, "invalid API key", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "streamgen producer API is running",
		Data:    map[string]string{"producer": s.ctrl.Name()},
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if !s.ctrl.Healthy() {
		writeJSON(w, http.StatusServiceUnavailable, Response{
			Success: false,
			Message: "producer has failed",
			Data:    map[string]any{"status": s.ctrl.Status().Status},
		})
		return
	}
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "service is healthy",
		Data:    map[string]any{"status": s.ctrl.Status().Status},
	})
}

func (s *Server) handleStart(w http.ResponseWriter, _ *http.Request) {
	s.control(w, "producer started", s.ctrl.Start)
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	s.control(w, "producer stopped", s.ctrl.Stop)
}

func (s *Server) handlePause(w http.ResponseWriter, _ *http.Request) {
	s.control(w, "producer paused", s.ctrl.Pause)
}

func (s *Server) handleResume(w http.ResponseWriter, _ *http.Request) {
	s.control(w, "producer resumed", s.ctrl.Resume)
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	var req RateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Success: false, Message: "invalid request body: " + err.Error()})
		return
	}
	cadence := models.CadenceConfig{Rate: req.Rate}
	if req.Interval != "" {
		interval, err := time.ParseDuration(req.Interval)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, Response{Success: false, Message: "invalid interval: " + err.Error()})
			return
		}
		cadence.Interval = interval
	}
	s.control(w, fmt.Sprintf("cadence updated to %s", cadence), func() error {
		return s.ctrl.UpdateRate(cadence)
	})
}

func (s *Server) control(w http.ResponseWriter, message string, op func() error) {
	if err := op(); err != nil {
		writeJSON(w, statusFor(err), Response{Success: false, Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Message: message})
}

func statusFor(err error) int {
	var stateErr *models.StateError
	if errors.As(err, &stateErr) {
		return http.StatusConflict
	}
	var configErr *models.ConfigError
	if errors.As(err, &configErr) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
