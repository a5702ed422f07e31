package logging

import (
	"context"
	"log/slog"

	"fetcharr/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldQueue is the standardized structured logging key for work queue names.
	FieldQueue = "queue"
	// FieldInstance is the standardized structured logging key for catalog instance names.
	FieldInstance = "instance"
	// FieldRunID is the standardized structured logging key for run identifiers.
	FieldRunID = "run_id"
	// FieldCandidate is the standardized structured logging key for candidate labels.
	FieldCandidate = "candidate"
	// FieldCommandID is the standardized structured logging key for dispatcher command identifiers.
	FieldCommandID = "command_id"
	// FieldStrategy is the standardized structured logging key for queue strategies.
	FieldStrategy = "strategy"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if queue, ok := services.QueueFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldQueue, queue))
	}
	if id, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from
// the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
