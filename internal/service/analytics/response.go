package analytics

import (
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	apperrors "github.com/Akash-Layal/leads-analytics-adscrush-sub000/internal/errors"
)

// Response is the envelope every public operation returns. Failures are
// reported in the envelope, never as a Go error or panic.
type Response[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`

	kind apperrors.Kind
}

// Kind classifies a failed response; it is empty on success.
func (r Response[T]) Kind() apperrors.Kind { return r.kind }

// Succeed wraps data in a successful envelope.
func Succeed[T any](data T) Response[T] {
	return Response[T]{Success: true, Data: data}
}

// Fail converts err into a failed envelope carrying its code and kind.
func Fail[T any](err error) Response[T] {
	resp := Response[T]{Error: err.Error(), kind: apperrors.KindOf(err)}
	var appErr *apperrors.AppError
	if apperrors.As(err, &appErr) {
		resp.Code = appErr.Code
		resp.Error = appErr.Message
		if appErr.Details != "" {
			resp.Error += ": " + appErr.Details
		}
	}
	return resp
}

// guard runs op and converts an error or a panic into a failed envelope.
func guard[T any](logger *zap.Logger, op string, fn func() (T, error)) (resp Response[T]) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Recovered panic in analytics operation",
				zap.String("operation", op),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			resp = Fail[T](apperrors.Internal(apperrors.CodePanic, "internal error").
				WithOperation(op).
				WithCause(fmt.Errorf("panic: %v", r)).
				Build())
		}
	}()

	data, err := fn()
	if err != nil {
		logger.Warn("Analytics operation failed", zap.String("operation", op), zap.Error(err))
		return Fail[T](err)
	}
	return Succeed(data)
}
