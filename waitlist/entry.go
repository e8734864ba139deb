// Package waitlist tracks storefront orders on a rendered status message.
// The record is the source of truth and the message is rebuilt from it on
// every transition.
package waitlist

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusPaid       Status = "paid"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
)

// Selectable lists the statuses offered by the status menu, in order.
var Selectable = []Status{StatusPaid, StatusProcessing, StatusComplete}

var (
	ErrNotFound         = errors.New("waitlist entry not found")
	ErrTerminal         = errors.New("waitlist entry is complete")
	ErrUnknownStatus    = errors.New("unknown waitlist status")
	ErrPermissionDenied = errors.New("staff role required")
)

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusPaid, StatusProcessing, StatusComplete:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

type Entry struct {
	ID            string    `json:"id" bson:"_id"`
	GuildID       string    `json:"guild_id" bson:"guild_id"`
	ChannelID     string    `json:"channel_id" bson:"channel_id"`
	MessageID     string    `json:"message_id" bson:"message_id"`
	CustomerID    string    `json:"customer_id" bson:"customer_id"`
	Item          string    `json:"item" bson:"item"`
	PaymentMethod string    `json:"payment_method" bson:"payment_method"`
	Status        Status    `json:"status" bson:"status"`
	CreatedBy     string    `json:"created_by" bson:"created_by"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" bson:"updated_at"`
}

// Transition moves e to status. Complete entries never change.
func Transition(e Entry, status Status, now time.Time) (Entry, error) {
	if e.Status == StatusComplete {
		return e, ErrTerminal
	}
	if _, err := ParseStatus(string(status)); err != nil {
		return e, err
	}
	e.Status = status
	e.UpdatedAt = now.UTC()
	return e, nil
}
