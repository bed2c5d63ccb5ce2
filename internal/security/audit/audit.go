package audit

import (
	"context"
	"log/slog"
	"time"
)

type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger}
}

type requestIDKey struct{}

// ContextWithRequestID attaches the request id that LogAction reports.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func (al *Logger) LogAction(ctx context.Context, userID, action, resource, resourceID, status, details string) {
	requestID, _ := ctx.Value(requestIDKey{}).(string)

	al.logger.Info("audit",
		slog.String("action", action),
		slog.String("resource", resource),
		slog.String("resource_id", resourceID),
		slog.String("user_id", userID),
		slog.String("status", status),
		slog.String("details", details),
		slog.String("request_id", requestID),
		slog.Time("timestamp", time.Now()),
	)
}

func (al *Logger) LogBusinessCreated(ctx context.Context, userID, businessID, status, details string) {
	al.LogAction(ctx, userID, "create", "business", businessID, status, details)
}

func (al *Logger) LogJoinRequested(ctx context.Context, userID, businessID, status, details string) {
	al.LogAction(ctx, userID, "join_request", "business", businessID, status, details)
}

func (al *Logger) LogJoinApproved(ctx context.Context, approverID, businessID, targetUserID, status string) {
	al.LogAction(ctx, approverID, "approve_join", "business", businessID, status, "target="+targetUserID)
}

func (al *Logger) LogDenied(ctx context.Context, userID, reason string) {
	al.LogAction(ctx, userID, "access_denied", "api", "", "denied", reason)
}
