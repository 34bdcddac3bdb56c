// Package events defines the authentication events announced by the sign-in
// flow and a synchronous in-process publisher for them.
package events

import (
	"context"

	"github.com/idbridge/idbridge/internal/audit"
	"github.com/idbridge/idbridge/internal/observability/logger"
)

// Event is implemented by every published event.
type Event interface {
	EventName() string
}

// UserLoginEvent is published after a session has been established for an
// account resolved from an external identity.
type UserLoginEvent struct {
	AccountID  string
	Provider   string
	Email      string
	Name       string
	NewAccount bool
}

func (UserLoginEvent) EventName() string { return "user.login" }

// UserLogoutEvent is published after an authenticated session has been
// terminated. Never published for anonymous sign-out requests.
type UserLogoutEvent struct {
	AccountID string
}

func (UserLogoutEvent) EventName() string { return "user.logout" }

// Handler reacts to a published event. Handler errors are logged, not
// propagated: a misbehaving observer must not fail the handshake.
type Handler func(ctx context.Context, evt Event) error

// Publisher announces events. Publish returns only after the event has been
// recorded and every subscriber has run, so callers can rely on audit records
// existing before the HTTP response goes out.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Bus is a synchronous in-process Publisher with subscriber fan-out.
type Bus struct {
	handlers []Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler. Not safe for concurrent use with Publish;
// subscriptions happen during wiring, before the server starts.
func (b *Bus) Subscribe(h Handler) {
	b.handlers = append(b.handlers, h)
}

// Publish audits the event and runs all subscribers before returning.
func (b *Bus) Publish(ctx context.Context, evt Event) error {
	audit.Log(ctx, evt.EventName(), auditFields(evt))

	for _, h := range b.handlers {
		if err := h(ctx, evt); err != nil {
			logger.From(ctx).Warn("event handler failed",
				logger.String("event", evt.EventName()),
				logger.Err(err),
			)
		}
	}
	return nil
}

func auditFields(evt Event) map[string]any {
	switch e := evt.(type) {
	case UserLoginEvent:
		return map[string]any{
			"account_id":  e.AccountID,
			"provider":    e.Provider,
			"new_account": e.NewAccount,
		}
	case UserLogoutEvent:
		return map[string]any{"account_id": e.AccountID}
	default:
		return nil
	}
}
