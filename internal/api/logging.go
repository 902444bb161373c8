package api

import (
    "net/http"
    "time"

    "github.com/go-chi/chi/v5/middleware"
    "go.uber.org/zap"
)

func (s *Server) requestLogger(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
        started := time.Now()
        next.ServeHTTP(ww, r)
        s.logger.Debug("http_request",
            zap.String("method", r.Method),
            zap.String("path", r.URL.Path),
            zap.Int("status", ww.Status()),
            zap.Duration("duration", time.Since(started)),
        )
    })
}

func (s *Server) logEvent(event string, fields ...zap.Field) {
    s.logger.Info(event, fields...)
}
