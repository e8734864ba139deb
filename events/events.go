// Package events publishes ticket and waitlist lifecycle events. When no
// broker is configured a no-op publisher is used so callers never branch.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type names a lifecycle event. It doubles as the AMQP routing key.
type Type string

const (
	TicketCreated   Type = "ticket.created"
	TicketLocked    Type = "ticket.locked"
	TicketUnlocked  Type = "ticket.unlocked"
	TicketBanned    Type = "ticket.banned"
	TicketPriority  Type = "ticket.priority"
	TicketArchived  Type = "ticket.archived"
	TicketClosed    Type = "ticket.closed"
	WaitlistCreated Type = "waitlist.created"
	WaitlistStatus  Type = "waitlist.status"
)

// Event is the envelope written to the broker.
type Event struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	GuildID   string         `json:"guild_id"`
	Subject   string         `json:"subject"`
	ActorID   string         `json:"actor_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// New stamps an event with a fresh id and the current time.
func New(t Type, guildID, subject, actorID string, payload map[string]any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		GuildID:   guildID,
		Subject:   subject,
		ActorID:   actorID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// Publisher delivers events. Publish failures are reported to the caller,
// which treats them as best-effort.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
