package tickets

import "errors"

var (
	// ErrNotFound is returned by repositories for a missing record.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateTicket means the owner already has a ticket.
	ErrDuplicateTicket = errors.New("owner already has an open ticket")
	// ErrBanned means the owner is barred from opening tickets.
	ErrBanned = errors.New("owner is banned from tickets")
	// ErrPermissionDenied means the actor lacks the staff role.
	ErrPermissionDenied = errors.New("staff role required")
	// ErrOwnerNotResolvable means the channel has no ticket record.
	ErrOwnerNotResolvable = errors.New("ticket owner not resolvable")
	// ErrInvalidTransition means the action is not allowed in the current status.
	ErrInvalidTransition = errors.New("invalid ticket transition")
	// ErrExternalCall wraps platform or storage failures.
	ErrExternalCall = errors.New("external call failed")
)
