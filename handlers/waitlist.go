package handlers

import (
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"storefront-bot/config"
	"storefront-bot/lang"
	"storefront-bot/waitlist"
)

func waitlistCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:                     "waitlist",
			Description:              "Add a customer order to the waitlist",
			DefaultMemberPermissions: &staffPerm,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Customer being added", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "item", Description: "Item ordered", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "mop", Description: "Method of payment", Required: true},
			},
		},
	}
}

func handleWaitlistCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	staff := isStaff(i.Member)
	if !staff {
		respond(s, i, lang.T("error_no_permission"), true)
		return
	}
	channelID := Cfg.Waitlist.Channel
	if config.Placeholder(channelID) {
		respond(s, i, lang.T("waitlist_channel_missing"), true)
		return
	}

	om := optionMap(i)
	ctx := context.Background()
	e, err := Waitlist.Create(ctx, staff, waitlist.NewEntry{
		GuildID:       i.GuildID,
		ChannelID:     channelID,
		CustomerID:    om["user"].UserValue(nil).ID,
		Item:          optStr(om, "item", ""),
		PaymentMethod: optStr(om, "mop", ""),
		CreatedBy:     i.Member.User.ID,
	})
	if err != nil {
		respondError(s, i, "waitlist create", err)
		return
	}

	embed, components := waitlist.View(e, Cfg.Waitlist.Image)
	msg, err := s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: components,
	})
	if err != nil {
		Log.Error("waitlist message not sent", zap.String("channel", channelID), zap.Error(err))
		respond(s, i, lang.T("waitlist_channel_missing"), true)
		return
	}
	if err := Waitlist.AttachMessage(ctx, e.ID, msg.ID); err != nil {
		Log.Warn("waitlist message id not stored", zap.String("entry", e.ID), zap.Error(err))
	}
	respond(s, i, lang.T("waitlist_added"), true)
}

// handleWaitlistSelect applies a status from the entry's menu and rebuilds
// the message in place from the stored record.
func handleWaitlistSelect(s *discordgo.Session, i *discordgo.InteractionCreate, entryID string) {
	data := i.MessageComponentData()
	if len(data.Values) == 0 {
		return
	}

	e, err := Waitlist.Select(context.Background(), isStaff(i.Member), i.Member.User.ID, entryID, data.Values[0])
	if err != nil {
		if errors.Is(err, waitlist.ErrTerminal) {
			// a stale message still shows the menu; redraw it without one
			updateWaitlistMessage(s, i, e)
			return
		}
		respondError(s, i, "waitlist select", err)
		return
	}
	updateWaitlistMessage(s, i, e)
}

func updateWaitlistMessage(s *discordgo.Session, i *discordgo.InteractionCreate, e waitlist.Entry) {
	embed, components := waitlist.View(e, Cfg.Waitlist.Image)
	if components == nil {
		components = []discordgo.MessageComponent{}
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{embed},
			Components: components,
		},
	})
	if err != nil {
		Log.Warn("waitlist message not updated", zap.String("entry", e.ID), zap.Error(err))
	}
}
