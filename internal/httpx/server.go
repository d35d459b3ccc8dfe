package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// NewRouter mounts health and, when metrics is non-nil, /metrics.
func NewRouter(log logrus.FieldLogger, metrics http.Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, RequestLogger(log), middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}
	return r
}

// RequestLogger logs one structured line per request with the chi request id.
func RequestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			entry := log.WithFields(logrus.Fields{
				"request_id":  middleware.GetReqID(r.Context()),
				"http_method": r.Method,
				"uri":         r.URL.RequestURI(),
				"status_code": status,
				"latency_ms":  time.Since(start).Milliseconds(),
				"client_ip":   r.RemoteAddr,
				"bytes":       ww.BytesWritten(),
			})
			switch {
			case status >= 500:
				entry.Error("request completed with server error")
			case status >= 400:
				entry.Warn("request completed with client error")
			default:
				entry.Info("request completed")
			}
		})
	}
}
