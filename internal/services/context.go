package services

import "context"

type contextKey string

const (
	queueKey contextKey = "queue"
	runIDKey contextKey = "run_id"
)

// WithQueue annotates context with the work queue name.
func WithQueue(ctx context.Context, queue string) context.Context {
	if queue == "" {
		return ctx
	}
	return context.WithValue(ctx, queueKey, queue)
}

// QueueFromContext returns the queue name if present.
func QueueFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(queueKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRunID annotates context with the run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext returns the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
