// Copyright (c) 2026 Heimursaga. All rights reserved.

package auth

import (
	"context"
	"log/slog"
)

// # Side-Effect Events

// Emitter receives fire-and-forget domain events (verification emails,
// admin notifications). Trigger must never block the caller's request and
// must never surface an error into the auth flow; delivery is best-effort
// by contract.
type Emitter interface {
	Trigger(ctx context.Context, event string, payload any)
}

// LogEmitter is the default [Emitter]: it writes every event to the
// structured log. The mailer service consumes these log-shaped events in
// deployments without a broker.
type LogEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter creates an emitter that logs events.
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	return &LogEmitter{logger: logger}
}

// Trigger implements [Emitter].
func (emitter *LogEmitter) Trigger(ctx context.Context, event string, payload any) {
	emitter.logger.InfoContext(ctx, "event_emitted",
		slog.String("event", event),
		slog.Any("payload", payload),
	)
}

var _ Emitter = (*LogEmitter)(nil)
