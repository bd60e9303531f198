package log

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Middleware logs one line per HTTP request once the handler has returned.
func Middleware(l zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				evt := l.Info()
				if ww.Status() >= http.StatusInternalServerError {
					evt = l.Warn()
				}
				evt.Str(FieldEvent, "request.handled").
					Str(FieldRequestID, middleware.GetReqID(r.Context())).
					Str("method", r.Method).
					Str(FieldPath, r.URL.Path).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur(FieldElapsed, time.Since(start)).
					Msg("request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
