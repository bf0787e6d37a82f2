// Package http exposes the tracker as a JSON API.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/nachochiappe/fairsplit-sub000/internal/core"
	"github.com/nachochiappe/fairsplit-sub000/internal/services"
)

// Directory is the part of the store the API manages directly, outside the
// expense services: household members, categories and template lookups.
type Directory interface {
	SaveUser(ctx context.Context, u core.User) error
	SaveCategory(ctx context.Context, c core.Category) error
	GetTemplate(ctx context.Context, id string) (*core.Template, error)
}

type Server struct {
	http.Server

	expenses   *services.ExpenseService
	settlement *services.SettlementService
	directory  Directory

	rateLimiter  *rateLimiter
	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, expenses *services.ExpenseService, settlement *services.SettlementService, dir Directory) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		expenses:    expenses,
		settlement:  settlement,
		directory:   dir,
		rateLimiter: newRateLimiter(),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /api/expenses", s.with(s.handleCreateExpense))
	mux.HandleFunc("GET /api/expenses", s.with(s.handleListExpenses))
	mux.HandleFunc("PATCH /api/expenses/{id}", s.with(s.handleUpdateExpense))
	mux.HandleFunc("DELETE /api/expenses/{id}", s.with(s.handleDeleteExpense))
	mux.HandleFunc("POST /api/installments/preview", s.with(s.handlePreviewSchedule))

	mux.HandleFunc("POST /api/templates/{id}/apply-forward", s.with(s.handleApplyTemplateForward))

	mux.HandleFunc("POST /api/incomes", s.with(s.handleCreateIncome))
	mux.HandleFunc("POST /api/rates", s.with(s.handlePinRate))

	mux.HandleFunc("POST /api/users", s.with(s.handleSaveUser))
	mux.HandleFunc("POST /api/categories", s.with(s.handleSaveCategory))

	mux.HandleFunc("GET /api/settlement", s.with(s.handleSettlement))

	return s
}

// Shutdown stops the rate limiter's cleanup goroutine and drains the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// with adds security headers, rate limiting on mutations, a request ID and
// request logging around a handler.
func (s *Server) with(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ip := clientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", ip)

		if r.Method != http.MethodGet && !s.rateLimiter.allow(ip) {
			slog.WarnContext(ctx, "Rate limit exceeded",
				"client_ip", ip,
				"method", r.Method,
				"url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", ip)
	}
}

type requestIDKey struct{}

// responseWriter captures the status code for request logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}
