// Package audit writes structured audit records. Today the sink is the
// process logger; the call site contract stays stable if a DB or external
// sink is wired later.
package audit

import (
	"context"
	"time"

	"github.com/idbridge/idbridge/internal/observability/logger"
)

// Log writes a structured audit event.
func Log(ctx context.Context, event string, fields map[string]any) {
	l := logger.From(ctx).With(
		logger.String("audit_event", event),
		logger.String("ts", time.Now().UTC().Format(time.RFC3339Nano)),
	)
	for k, v := range fields {
		l = l.With(logger.Any(k, v))
	}
	l.Info("audit")
}
