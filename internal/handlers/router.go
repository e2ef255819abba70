package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/go-honoraires/internal/fees"
	"github.com/diewo77/go-honoraires/internal/httpx"
	"github.com/diewo77/go-honoraires/internal/i18n"
	"github.com/diewo77/go-honoraires/internal/services"
)

// NewRouter constructs the root http.Handler with all routes and middlewares applied.
func NewRouter(db *gorm.DB, log *zap.Logger, classifier *fees.Classifier, runs *services.RunGuard) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	h := NewReportHandler(db, log, classifier, runs)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(withLogging(log))
	r.Use(withRecover(log))
	r.Use(withLang)

	r.Get("/healthz", h.Health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/axes", h.Axes)
		r.Get("/anomalies", h.Anomalies)
		r.Get("/clients/{id}/anomalies", h.ClientAnomalies)
		r.Get("/clients/{id}/restructuring", h.Restructuring)
		r.Post("/simulations", h.Simulate)
	})
	return r
}

// withLang picks the response language: ?lang= first, then Accept-Language.
func withLang(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lang := r.URL.Query().Get("lang")
		if !i18n.Supported(lang) {
			lang = i18n.DetectLanguage(r.Header.Get("Accept-Language"))
		}
		next.ServeHTTP(w, r.WithContext(i18n.WithLang(r.Context(), lang)))
	})
}

func withLogging(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}

func withRecover(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error("panic", zap.Any("recovered", rec), zap.String("path", r.URL.Path))
					httpx.JSONError(w, http.StatusInternalServerError, "internal_error", i18n.T(i18n.DefaultLang, "internal_error"), nil)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
