package handlers

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"storefront-bot/autoresponder"
	"storefront-bot/lang"
	"storefront-bot/metrics"
)

func autoresponderCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:                     "autoresponder",
			Description:              "Manage autoresponders",
			DefaultMemberPermissions: &adminPerm,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name: "add", Description: "Add or replace an autoresponder",
					Type: discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "trigger", Description: "Trigger word or phrase", Required: true},
						{Type: discordgo.ApplicationCommandOptionString, Name: "response", Description: "Response message", Required: true},
						{Type: discordgo.ApplicationCommandOptionBoolean, Name: "exact_match", Description: "Require the whole message to match"},
						{Type: discordgo.ApplicationCommandOptionBoolean, Name: "delete_trigger", Description: "Delete the triggering message"},
					},
				},
				{
					Name: "remove", Description: "Remove an autoresponder",
					Type: discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "trigger", Description: "Trigger to remove", Required: true},
					},
				},
				{
					Name: "toggle", Description: "Enable or disable an autoresponder",
					Type: discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "trigger", Description: "Trigger to toggle", Required: true},
					},
				},
				{
					Name: "list", Description: "List all autoresponders",
					Type: discordgo.ApplicationCommandOptionSubCommand,
				},
			},
		},
	}
}

func handleAutoresponderCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !isAdmin(i.Member) {
		respond(s, i, lang.T("error_no_permission"), true)
		return
	}
	sub := i.ApplicationCommandData().Options[0]
	om := subOptMap(sub.Options)

	switch sub.Name {
	case "add":
		mode := autoresponder.MatchContains
		if optBool(om, "exact_match", false) {
			mode = autoresponder.MatchExact
		}
		r := Responders.Add(optStr(om, "trigger", ""), autoresponder.Rule{
			Response:             optStr(om, "response", ""),
			MatchMode:            mode,
			DeleteTriggerMessage: optBool(om, "delete_trigger", false),
			Enabled:              true,
			CreatedBy:            i.Member.User.ID,
		})
		respondEmbed(s, i, ruleEmbed(lang.T("autoresponder_added"), r), true)

	case "remove":
		trigger := optStr(om, "trigger", "")
		if err := Responders.Remove(trigger); err != nil {
			respondError(s, i, "autoresponder remove", err)
			return
		}
		respond(s, i, lang.T("autoresponder_removed", "trigger", autoresponder.Normalize(trigger)), true)

	case "toggle":
		r, err := Responders.Toggle(optStr(om, "trigger", ""))
		if err != nil {
			respondError(s, i, "autoresponder toggle", err)
			return
		}
		key := "autoresponder_disabled"
		if r.Enabled {
			key = "autoresponder_enabled"
		}
		respond(s, i, lang.T(key, "trigger", r.Trigger), true)

	case "list":
		respondEmbed(s, i, listEmbed(Responders), true)
	}
}

func isAdmin(m *discordgo.Member) bool {
	return m != nil && m.Permissions&adminPerm != 0
}

func ruleEmbed(title string, r autoresponder.Rule) *discordgo.MessageEmbed {
	match := "Contains"
	if r.MatchMode == autoresponder.MatchExact {
		match = "Exact Match"
	}
	del := "No"
	if r.DeleteTriggerMessage {
		del = "Yes"
	}
	return &discordgo.MessageEmbed{
		Title: title,
		Description: fmt.Sprintf("**Trigger:** `%s`\n**Response:** %s\n**Match Type:** %s\n**Delete Trigger:** %s",
			r.Trigger, r.Response, match, del),
		Color: 0x57F287,
	}
}

const maxEmbedDescription = 4096

func listEmbed(store *autoresponder.Store) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: lang.T("autoresponder_list_title"),
		Color: 0x5865F2,
	}
	if store.Len() == 0 {
		embed.Description = lang.T("autoresponder_list_empty")
		return embed
	}

	var sb strings.Builder
	for r := range store.List() {
		state := "✅"
		if !r.Enabled {
			state = "❌"
		}
		line := fmt.Sprintf("%s `%s` → %s (%s)\n", state, r.Trigger, preview(r.Response, 50), r.MatchMode)
		if sb.Len()+len(line) > maxEmbedDescription {
			break
		}
		sb.WriteString(line)
	}
	embed.Description = sb.String()
	embed.Footer = &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("%d total", store.Len())}
	return embed
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// messenger is the part of the session the autoresponder listener needs.
type messenger interface {
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

func handleAutoresponderMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	applyAutoresponse(s, Responders, m.Message)
}

// applyAutoresponse fires the first matching rule for msg. The trigger
// message is deleted before the response is sent; a failed delete is
// logged and the response still goes out.
func applyAutoresponse(api messenger, store *autoresponder.Store, msg *discordgo.Message) bool {
	if msg == nil || msg.Author == nil {
		return false
	}
	a := autoresponder.Evaluate(store, msg.Content, msg.Author.Bot)
	if !a.Fired() {
		return false
	}

	if a.DeleteOriginal {
		if err := api.ChannelMessageDelete(msg.ChannelID, msg.ID); err != nil {
			Log.Warn("trigger message not deleted",
				zap.String("channel", msg.ChannelID),
				zap.String("trigger", a.Trigger),
				zap.Error(err))
		}
	}
	if _, err := api.ChannelMessageSend(msg.ChannelID, a.Respond); err != nil {
		Log.Warn("autoresponse not sent",
			zap.String("channel", msg.ChannelID),
			zap.String("trigger", a.Trigger),
			zap.Error(err))
		return false
	}
	metrics.AutoresponderFired.Inc()
	return true
}
