package handlers

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"storefront-bot/config"
	"storefront-bot/lang"
	"storefront-bot/tickets"
)

// Receipt is an order summary posted for a customer.
type Receipt struct {
	CustomerID string
	Order      string
	Revisions  string
	Payment    string
	AltPrice   string
	Started    string
	Finished   string
	Reference  string
}

// Render formats the receipt. Each order line is quoted; optional lines are
// left out when empty.
func (r Receipt) Render() string {
	var sb strings.Builder
	sb.WriteString(lang.T("receipt_header", "user", "<@"+r.CustomerID+">"))
	sb.WriteString("\n")
	sb.WriteString(quoteLines(r.Order))
	sb.WriteString("\n\n")
	sb.WriteString(lang.T("receipt_revisions", "revisions", r.Revisions))
	sb.WriteString("\n")
	sb.WriteString(lang.T("receipt_payment", "payment", r.Payment))
	if r.AltPrice != "" {
		sb.WriteString("\n")
		sb.WriteString(lang.T("receipt_alt_price", "price", r.AltPrice))
	}
	sb.WriteString("\n")
	sb.WriteString(lang.T("receipt_started", "date", r.Started))
	sb.WriteString("\n")
	sb.WriteString(lang.T("receipt_finished", "date", r.Finished))
	if r.Reference != "" {
		sb.WriteString("\n")
		sb.WriteString(lang.T("receipt_reference", "id", r.Reference))
	}
	return sb.String()
}

func quoteLines(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		out = append(out, "> "+l)
	}
	if len(out) == 0 {
		return ">"
	}
	return strings.Join(out, "\n")
}

// splitDates parses "start | end". A missing end is left empty.
func splitDates(s string) (string, string) {
	start, end, _ := strings.Cut(s, "|")
	return strings.TrimSpace(start), strings.TrimSpace(end)
}

// postReceipt sends r to the receipt channel, when configured, and to
// channelID.
func postReceipt(s *discordgo.Session, channelID string, r Receipt) {
	text := r.Render()
	if ch := Cfg.Receipts.Channel; !config.Placeholder(ch) && ch != channelID {
		if _, err := s.ChannelMessageSend(ch, text); err != nil {
			Log.Warn("receipt not posted to receipt channel", zap.String("channel", ch), zap.Error(err))
		}
	}
	if _, err := s.ChannelMessageSend(channelID, text); err != nil {
		Log.Warn("receipt not posted", zap.String("channel", channelID), zap.Error(err))
	}
}

func receiptCommand() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:                     "receipt",
		Description:              "Post a receipt here and in the receipt channel",
		DefaultMemberPermissions: &staffPerm,
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Customer", Required: true},
			{Type: discordgo.ApplicationCommandOptionString, Name: "order", Description: "Items ordered", Required: true},
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "revisions", Description: "Total changes", Required: true},
			{Type: discordgo.ApplicationCommandOptionString, Name: "mop", Description: "Method of payment", Required: true},
			{Type: discordgo.ApplicationCommandOptionString, Name: "started", Description: "mm.dd.yy", Required: true},
			{Type: discordgo.ApplicationCommandOptionString, Name: "finished", Description: "mm.dd.yy", Required: true},
			{Type: discordgo.ApplicationCommandOptionString, Name: "altprice", Description: "Value in another payment method"},
			{Type: discordgo.ApplicationCommandOptionString, Name: "id", Description: "Customer reference"},
		},
	}
}

func handleReceiptCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !isStaff(i.Member) {
		respond(s, i, lang.T(errorKey(tickets.ErrPermissionDenied)), true)
		return
	}
	om := optionMap(i)
	r := Receipt{
		CustomerID: om["user"].UserValue(nil).ID,
		Order:      optStr(om, "order", ""),
		Revisions:  fmt.Sprint(om["revisions"].IntValue()),
		Payment:    optStr(om, "mop", ""),
		AltPrice:   optStr(om, "altprice", ""),
		Started:    optStr(om, "started", ""),
		Finished:   optStr(om, "finished", ""),
		Reference:  optStr(om, "id", ""),
	}

	if ch := Cfg.Receipts.Channel; !config.Placeholder(ch) && ch != i.ChannelID {
		if _, err := s.ChannelMessageSend(ch, r.Render()); err != nil {
			Log.Warn("receipt not posted to receipt channel", zap.String("channel", ch), zap.Error(err))
			respond(s, i, lang.T("receipt_channel_missing"), true)
			return
		}
	}
	respond(s, i, r.Render(), false)
}
