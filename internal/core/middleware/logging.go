package middleware

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/dailybanking/transaction-service/internal/core/logger"
)

func RequestLogging(log logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Info("HTTP request",
				logger.StringField("method", r.Method),
				logger.StringField("path", r.URL.Path),
				logger.StringField("remote_addr", r.RemoteAddr),
				logger.StringField("duration", time.Since(start).String()),
			)
		})
	}
}
