// Package tickets implements the ticket lifecycle: creation with a
// duplicate/ban guard, staff actions, and close with transcript capture.
// Discord and storage are reached through the Platform and Repository ports.
package tickets

import (
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusOpen     Status = "open"
	StatusLocked   Status = "locked"
	StatusArchived Status = "archived"
	StatusBanned   Status = "banned"
)

// Terminal reports whether staff actions other than close are refused.
func (s Status) Terminal() bool {
	return s == StatusArchived || s == StatusBanned
}

type Priority string

const (
	PriorityUnset  Priority = ""
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Priorities {
		if p == known {
			return p, nil
		}
	}
	return PriorityUnset, fmt.Errorf("%w: priority %q", ErrInvalidTransition, s)
}

// Ticket is the stored record for one ticket channel.
type Ticket struct {
	ChannelID  string    `json:"channel_id" bson:"_id"`
	GuildID    string    `json:"guild_id" bson:"guild_id"`
	OwnerID    string    `json:"owner_id" bson:"owner_id"`
	OwnerName  string    `json:"owner_name" bson:"owner_name"`
	CategoryID string    `json:"category_id" bson:"category_id"`
	Status     Status    `json:"status" bson:"status"`
	Priority   Priority  `json:"priority,omitempty" bson:"priority,omitempty"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" bson:"updated_at"`
}

// Topic is the human readable channel topic. It is never parsed back.
func (t Ticket) Topic() string {
	topic := "Owner: " + t.OwnerID
	if t.Priority != PriorityUnset {
		topic += " | Priority: " + string(t.Priority)
	}
	return topic
}

// Ban blocks a user from opening tickets in a guild.
type Ban struct {
	GuildID   string    `json:"guild_id" bson:"guild_id"`
	UserID    string    `json:"user_id" bson:"user_id"`
	BannedBy  string    `json:"banned_by" bson:"banned_by"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Actor is whoever triggered an interaction.
type Actor struct {
	ID    string
	Name  string
	Staff bool
}

// ChannelName is the channel name used for an owner's ticket.
func ChannelName(username string) string {
	return "ticket-" + strings.ToLower(username)
}
