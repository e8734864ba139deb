package handlers

import (
	"errors"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"storefront-bot/autoresponder"
	"storefront-bot/lang"
	"storefront-bot/tickets"
	"storefront-bot/waitlist"
)

// errorKey maps a domain error to the catalog message shown to the user.
// Anything unrecognized gets the generic message.
func errorKey(err error) string {
	switch {
	case errors.Is(err, tickets.ErrPermissionDenied), errors.Is(err, waitlist.ErrPermissionDenied):
		return "error_no_permission"
	case errors.Is(err, tickets.ErrBanned):
		return "error_ticket_banned"
	case errors.Is(err, tickets.ErrDuplicateTicket):
		return "error_ticket_exists"
	case errors.Is(err, tickets.ErrOwnerNotResolvable):
		return "error_not_a_ticket"
	case errors.Is(err, tickets.ErrInvalidTransition):
		return "error_invalid_action"
	case errors.Is(err, tickets.ErrNotFound):
		return "error_not_found"
	case errors.Is(err, waitlist.ErrTerminal):
		return "error_waitlist_complete"
	case errors.Is(err, waitlist.ErrUnknownStatus):
		return "error_waitlist_status"
	case errors.Is(err, waitlist.ErrNotFound):
		return "error_waitlist_missing"
	case errors.Is(err, autoresponder.ErrNotFound):
		return "error_autoresponder_missing"
	default:
		return "error_generic"
	}
}

// logError logs failures the user did not cause. Expected refusals stay out
// of the error log.
func logError(op string, err error) {
	if errorKey(err) == "error_generic" || errors.Is(err, tickets.ErrExternalCall) {
		Log.Error(op+" failed", zap.Error(err))
		return
	}
	Log.Debug(op+" refused", zap.Error(err))
}

func respondError(s *discordgo.Session, i *discordgo.InteractionCreate, op string, err error) {
	logError(op, err)
	respond(s, i, lang.T(errorKey(err)), true)
}
