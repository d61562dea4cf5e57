package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/DRSN-tech/fashion-search/pkg/logger"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// requestLogger пишет одну итоговую строку на запрос и возвращает X-Request-ID.
// RequestID должен стоять раньше в цепочке.
func requestLogger(log logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			log.With(
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"latency", time.Since(start),
				"response_bytes", ww.BytesWritten(),
			).Infof("http_request")
		})
	}
}

// jsonRecoverer отвечает JSON-ошибкой вместо обрыва соединения при панике в обработчике.
func jsonRecoverer(log logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					if rvr == http.ErrAbortHandler {
						panic(rvr)
					}
					log.Errorf(fmt.Errorf("panic: %v", rvr), "panic recovered on %s %s", r.Method, r.URL.Path)
					WriteError(w, fmt.Errorf("panic: %v", rvr))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
