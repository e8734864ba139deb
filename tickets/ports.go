package tickets

import (
	"context"

	"storefront-bot/transcript"
)

// Repository persists ticket records and bans. Lookups of missing records
// return an error wrapping ErrNotFound.
type Repository interface {
	CreateTicket(ctx context.Context, t Ticket) error
	GetTicket(ctx context.Context, channelID string) (Ticket, error)
	FindTicketByOwner(ctx context.Context, guildID, ownerID string) (Ticket, error)
	ListTickets(ctx context.Context, guildID string) ([]Ticket, error)
	UpdateTicket(ctx context.Context, t Ticket) error
	DeleteTicket(ctx context.Context, channelID string) error

	PutBan(ctx context.Context, b Ban) error
	GetBan(ctx context.Context, guildID, userID string) (Ban, error)
	DeleteBan(ctx context.Context, guildID, userID string) error
}

// Access is a member's permission level on a ticket channel.
type Access int

const (
	AccessNone Access = iota
	AccessReadOnly
	AccessFull
)

// ChannelSpec describes a ticket channel to allocate.
type ChannelSpec struct {
	GuildID    string
	Name       string
	CategoryID string
	Topic      string
	OwnerID    string
	StaffRole  string
}

// Closure is the summary sent to the log channel with the transcript.
type Closure struct {
	Ticket   Ticket
	ClosedBy Actor
	Messages int
	Filename string
	HTML     []byte
}

// Delivery is the DM sent to a ticket owner when an order ships.
type Delivery struct {
	Link  string
	Items string
}

// Platform is the chat platform as the ticket lifecycle sees it.
type Platform interface {
	transcript.Pager

	ChannelExists(ctx context.Context, guildID, name string) (bool, error)
	CreateChannel(ctx context.Context, spec ChannelSpec) (string, error)
	DeleteChannel(ctx context.Context, channelID string) error
	MoveChannel(ctx context.Context, channelID, parentID string) error
	SetTopic(ctx context.Context, channelID, topic string) error
	SetMemberAccess(ctx context.Context, channelID, userID string, a Access) error
	PostPanel(ctx context.Context, t Ticket) error
	PostLog(ctx context.Context, logChannelID string, c Closure) error
	SendDelivery(ctx context.Context, userID string, d Delivery) error
}
