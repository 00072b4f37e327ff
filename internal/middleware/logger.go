package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"mentorjournal/internal/models"
)

const accessKey ctxKey = 100

// access collects what inner handlers learn about a request. Auth runs
// below the logger, so it records the caller here instead of in a context
// the logger never sees.
type access struct {
	userID int64
	role   models.Role
}

func noteCaller(ctx context.Context, userID int64, role models.Role) {
	if a, ok := ctx.Value(accessKey).(*access); ok {
		a.userID = userID
		a.role = role
	}
}

// ZapRequestLogger logs one line per request with the route pattern, the
// request id and, once authenticated, the calling user. Server errors are
// logged at error level.
func ZapRequestLogger(logger *zap.Logger) func(next http.Handler) http.Handler {
	isDev := logger.Core().Enabled(zapcore.DebugLevel)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			caller := &access{}
			r = r.WithContext(context.WithValue(r.Context(), accessKey, caller))

			defer func() {
				elapsed := time.Since(start)
				route := r.URL.Path
				if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
					route = rc.RoutePattern()
				}

				fields := []zap.Field{
					zap.String("method", r.Method),
					zap.String("route", route),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", elapsed),
					zap.String("remote_ip", r.RemoteAddr),
				}
				if reqID := middleware.GetReqID(r.Context()); reqID != "" {
					fields = append(fields, zap.String("request_id", reqID))
				}
				if caller.userID != 0 {
					fields = append(fields, zap.Int64("user_id", caller.userID), zap.String("role", string(caller.role)))
				}

				log := logger.Info
				if ww.Status() >= http.StatusInternalServerError {
					log = logger.Error
				}
				if isDev {
					log(fmt.Sprintf("%s %s %d %s", r.Method, route, ww.Status(), elapsed), fields...)
				} else {
					log("request completed", fields...)
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
