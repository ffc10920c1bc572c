package middleware

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	apperrors "github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/errors"
	"github.com/Akash-Layal/leads-analytics-adscrush-sub000/pkg/api"
)

// Recovery turns a handler panic into a 500 envelope. The service already
// recovers its own panics; this catches the ones in routing and encoding.
func Recovery(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("Recovered panic in HTTP handler",
					zap.String("request_id", GetRequestID(r.Context())),
					zap.String("path", r.URL.Path),
					zap.Any("panic", rec),
					zap.ByteString("stack", debug.Stack()),
				)
				// Nothing can be sent once the body has started.
				if w.Header().Get("Content-Type") == "" {
					api.Error(w, http.StatusInternalServerError, apperrors.CodePanic, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
