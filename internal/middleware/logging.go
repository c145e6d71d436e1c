package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/splitthat/internal/metrics"
)

// LoggingInterceptor returns a Connect interceptor that logs and counts every
// RPC call. Client mistakes are logged at WARN; server-side failures
// (internal, data loss, unknown) at ERROR.
func LoggingInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			procedure := req.Spec().Procedure
			userID := GetUserID(ctx) // empty if pre-auth

			resp, err := next(ctx, req)

			duration := time.Since(start).Milliseconds()
			if err == nil {
				metrics.RPCs.WithLabelValues(procedure, "ok").Inc()
				slog.Info("RPC ok",
					"procedure", procedure,
					"user_id", userID,
					"duration_ms", duration,
				)
				return resp, nil
			}

			code := connect.CodeOf(err)
			metrics.RPCs.WithLabelValues(procedure, code.String()).Inc()
			attrs := []any{
				"procedure", procedure,
				"code", code,
				"error", err,
				"user_id", userID,
				"duration_ms", duration,
			}
			var connectErr *connect.Error
			if errors.As(err, &connectErr) {
				if expenseID := connectErr.Meta().Get("expense-id"); expenseID != "" {
					attrs = append(attrs, "expense_id", expenseID)
				}
			}
			switch code {
			case connect.CodeInternal, connect.CodeDataLoss, connect.CodeUnknown:
				slog.Error("RPC error", attrs...)
			default:
				slog.Warn("RPC error", attrs...)
			}
			return resp, err
		}
	}
}
