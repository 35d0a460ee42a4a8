// Package api exposes the operator HTTP surface: health, metrics, history and owner-only commands.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Urkchar/mtg-spoilers-bot/internal/domain"
	"github.com/Urkchar/mtg-spoilers-bot/internal/ports"
	"github.com/Urkchar/mtg-spoilers-bot/internal/usecase"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

// Commands is the task surface the owner can drive.
type Commands interface {
	RunNow(ctx context.Context) (domain.RunReport, error)
	CheckNow(ctx context.Context) (domain.RunReport, error)
	PostAll(ctx context.Context) (domain.RunReport, error)
	Notify(ctx context.Context, text string)
}

// TaskState is what /healthz reports per task.
type TaskState interface {
	String() string
	Running() bool
}

// ServerDeps wires the server.
type ServerDeps struct {
	Commands          Commands
	Tasks             []TaskState
	History           ports.HistoryRecorder
	JWTSecret         string
	OwnerID           string
	RequestsPerMinute int
	Logger            *slog.Logger
}

// Server routes operator requests.
type Server struct {
	router   chi.Router
	commands Commands
	tasks    []TaskState
	history  ports.HistoryRecorder
	auth     *authenticator
	logger   *slog.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps ServerDeps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		commands: deps.Commands,
		tasks:    deps.Tasks,
		history:  deps.History,
		auth:     newAuthenticator(deps.JWTSecret, deps.OwnerID),
		logger:   logger.With("component", "api"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	if deps.RequestsPerMinute > 0 {
		r.Use(httprate.LimitByIP(deps.RequestsPerMinute, time.Minute))
	}

	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/history", s.listHistory)
		if s.commands == nil {
			return
		}
		r.Route("/commands", func(r chi.Router) {
			r.Post("/run-now", s.ownerOnly("run-now", s.commands.RunNow))
			r.Post("/check-now", s.ownerOnly("check-now", s.commands.CheckNow))
			r.Post("/post-all", s.ownerOnly("post-all", s.commands.PostAll))
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"status": "ok"}
	if len(s.tasks) > 0 {
		tasks := make(map[string]string, len(s.tasks))
		for _, task := range s.tasks {
			state := "idle"
			if task.Running() {
				state = "running"
			}
			tasks[task.String()] = state
		}
		body["tasks"] = tasks
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history is disabled")
		return
	}

	limit := uint64(defaultHistoryLimit)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || n == 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	deliveries, err := s.history.RecentDeliveries(r.Context(), limit)
	if err != nil {
		s.logger.Error("list history", "error", err)
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	if deliveries == nil {
		deliveries = []domain.Delivery{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"deliveries": deliveries})
}

func (s *Server) ownerOnly(command string, run func(context.Context) (domain.RunReport, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject, err := s.auth.authorize(r)
		switch {
		case errors.Is(err, domain.ErrPermissionDenied):
			s.logger.Warn("command blocked", "command", command, "subject", subject)
			s.commands.Notify(r.Context(), blockedNotice(command, subject))
			writeError(w, http.StatusForbidden, "only the server owner can run this command")
			return
		case err != nil:
			writeError(w, http.StatusUnauthorized, "missing or invalid token")
			return
		}

		// The run commits per item; a disconnecting client must not cut it short.
		report, err := run(context.WithoutCancel(r.Context()))
		if err != nil {
			status := statusFor(err)
			s.logger.Warn("command failed", "command", command, "status", status, "error", err)
			writeError(w, status, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func statusFor(err error) int {
	var fetchErr *domain.FetchError
	switch {
	case errors.Is(err, usecase.ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, usecase.ErrNoStatusChannel):
		return http.StatusServiceUnavailable
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func blockedNotice(command, subject string) string {
	return "⛔ Command '!" + command + "' blocked. Only the server owner can run this command. (User: " + subject + ")"
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", middleware.GetReqID(r.Context()),
			"duration", time.Since(start),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
