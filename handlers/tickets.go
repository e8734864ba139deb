package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"storefront-bot/lang"
	"storefront-bot/tickets"
)

const panelSlots = 3

func ticketCommands() []*discordgo.ApplicationCommand {
	panelOpts := make([]*discordgo.ApplicationCommandOption, 0, panelSlots*4)
	// required options must come first
	panelOpts = append(panelOpts,
		&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionString, Name: "label1", Description: "Label for option 1", Required: true},
		&discordgo.ApplicationCommandOption{
			Type: discordgo.ApplicationCommandOptionChannel, Name: "category1", Description: "Category for option 1", Required: true,
			ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildCategory},
		},
		&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionString, Name: "desc1", Description: "Description for option 1"},
		&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionString, Name: "emoji1", Description: "Emoji for option 1"},
	)
	for n := 2; n <= panelSlots; n++ {
		panelOpts = append(panelOpts,
			&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionString, Name: fmt.Sprintf("label%d", n), Description: fmt.Sprintf("Label for option %d", n)},
			&discordgo.ApplicationCommandOption{
				Type: discordgo.ApplicationCommandOptionChannel, Name: fmt.Sprintf("category%d", n), Description: fmt.Sprintf("Category for option %d", n),
				ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildCategory},
			},
			&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionString, Name: fmt.Sprintf("desc%d", n), Description: fmt.Sprintf("Description for option %d", n)},
			&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionString, Name: fmt.Sprintf("emoji%d", n), Description: fmt.Sprintf("Emoji for option %d", n)},
		)
	}

	return []*discordgo.ApplicationCommand{
		{
			Name:                     "ticket",
			Description:              "Ticket system management",
			DefaultMemberPermissions: &adminPerm,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name: "panel", Description: "Post a ticket panel with up to 3 options",
					Type:    discordgo.ApplicationCommandOptionSubCommand,
					Options: panelOpts,
				},
				{
					Name: "list", Description: "List tickets in this server",
					Type: discordgo.ApplicationCommandOptionSubCommand,
				},
				{
					Name: "unban", Description: "Allow a user to open tickets again",
					Type: discordgo.ApplicationCommandOptionSubCommand,
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User to unban", Required: true},
					},
				},
			},
		},
	}
}

func handleTicketCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sub := i.ApplicationCommandData().Options[0]
	switch sub.Name {
	case "panel":
		handleTicketPanel(s, i, sub.Options)
	case "list":
		handleTicketList(s, i)
	case "unban":
		handleTicketUnban(s, i, sub.Options)
	}
}

// panelOption is one entry of the ticket panel menu. The category channel
// id is the menu value, so a posted panel keeps working across restarts.
type panelOption struct {
	Label       string
	Description string
	Emoji       string
	CategoryID  string
}

func panelOptions(om map[string]*discordgo.ApplicationCommandInteractionDataOption) []panelOption {
	var out []panelOption
	for n := 1; n <= panelSlots; n++ {
		label := optStr(om, fmt.Sprintf("label%d", n), "")
		cat, ok := om[fmt.Sprintf("category%d", n)]
		if label == "" || !ok {
			continue
		}
		out = append(out, panelOption{
			Label:       label,
			Description: optStr(om, fmt.Sprintf("desc%d", n), ""),
			Emoji:       optStr(om, fmt.Sprintf("emoji%d", n), ""),
			CategoryID:  cat.ChannelValue(nil).ID,
		})
	}
	return out
}

func panelMenu(opts []panelOption, placeholder string) discordgo.MessageComponent {
	menuOpts := make([]discordgo.SelectMenuOption, 0, len(opts))
	for _, o := range opts {
		menuOpts = append(menuOpts, discordgo.SelectMenuOption{
			Label:       o.Label,
			Value:       o.CategoryID,
			Description: o.Description,
			Emoji:       parseComponentEmoji(o.Emoji),
		})
	}
	return discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				MenuType:    discordgo.StringSelectMenu,
				CustomID:    "ticket_create_select",
				Placeholder: placeholder,
				Options:     menuOpts,
			},
		},
	}
}

func handleTicketPanel(s *discordgo.Session, i *discordgo.InteractionCreate, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	options := panelOptions(subOptMap(opts))
	if len(options) == 0 {
		respond(s, i, lang.T("ticket_panel_empty"), true)
		return
	}

	_, err := s.ChannelMessageSendComplex(i.ChannelID, &discordgo.MessageSend{
		Components: []discordgo.MessageComponent{panelMenu(options, Cfg.Tickets.PanelPlaceholder)},
	})
	if err != nil {
		Log.Warn("ticket panel not sent", zap.String("channel", i.ChannelID), zap.Error(err))
		respond(s, i, lang.T("error_generic"), true)
		return
	}
	respond(s, i, lang.T("ticket_panel_created"), true)
}

func handleTicketList(s *discordgo.Session, i *discordgo.InteractionCreate) {
	list, err := Tickets.List(context.Background(), actorFrom(i), i.GuildID)
	if err != nil {
		respondError(s, i, "ticket list", err)
		return
	}
	if len(list) == 0 {
		respond(s, i, lang.T("ticket_list_empty"), true)
		return
	}

	var sb strings.Builder
	sb.WriteString(lang.T("ticket_list_header", "count", fmt.Sprint(len(list))))
	sb.WriteString("\n")
	for _, t := range list {
		pr := string(t.Priority)
		if pr == "" {
			pr = "-"
		}
		sb.WriteString(fmt.Sprintf("• <#%s> by <@%s> [%s / %s]\n", t.ChannelID, t.OwnerID, t.Status, pr))
	}
	respond(s, i, sb.String(), true)
}

func handleTicketUnban(s *discordgo.Session, i *discordgo.InteractionCreate, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	target := subOptMap(opts)["user"].UserValue(nil)
	if err := Tickets.Unban(context.Background(), actorFrom(i), i.GuildID, target.ID); err != nil {
		respondError(s, i, "ticket unban", err)
		return
	}
	respond(s, i, lang.T("ticket_unbanned", "user", "<@"+target.ID+">"), true)
}

func handleTicketCreateSelect(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.MessageComponentData()
	if len(data.Values) == 0 {
		return
	}
	categoryID := data.Values[0]

	deferEphemeral(s, i)
	t, err := Tickets.Create(context.Background(), actorFrom(i), i.GuildID, categoryID)
	if err != nil {
		logError("ticket create", err)
		followup(s, i, lang.T(errorKey(err)))
		return
	}
	followup(s, i, lang.T("ticket_created", "channel", "<#"+t.ChannelID+">"))
}

func handleTicketAction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.MessageComponentData()
	if len(data.Values) == 0 {
		return
	}
	if !isStaff(i.Member) {
		respond(s, i, lang.T(errorKey(tickets.ErrPermissionDenied)), true)
		return
	}

	ctx := context.Background()
	actor := actorFrom(i)

	switch data.Values[0] {
	case "ticket_close":
		respond(s, i, lang.T("ticket_closing"), true)
		if err := Tickets.Close(ctx, actor, i.ChannelID, channelName(s, i.ChannelID)); err != nil {
			logError("ticket close", err)
			followup(s, i, lang.T(errorKey(err)))
		}

	case "ticket_add_user":
		respondModal(s, i, "add_user_modal", lang.T("modal_add_user_title"), userIDInput())

	case "ticket_remove_user":
		respondModal(s, i, "remove_user_modal", lang.T("modal_remove_user_title"), userIDInput())

	case "ticket_lock":
		if _, err := Tickets.Lock(ctx, actor, i.ChannelID); err != nil {
			respondError(s, i, "ticket lock", err)
			return
		}
		respond(s, i, lang.T("ticket_locked"), true)

	case "ticket_unlock":
		if _, err := Tickets.Unlock(ctx, actor, i.ChannelID); err != nil {
			respondError(s, i, "ticket unlock", err)
			return
		}
		respond(s, i, lang.T("ticket_unlocked"), true)

	case "ticket_send_receipt":
		respondModal(s, i, "receipt_modal", lang.T("modal_receipt_title"),
			discordgo.TextInput{CustomID: "order", Label: "Order Items", Style: discordgo.TextInputParagraph, Required: true},
			discordgo.TextInput{CustomID: "mop", Label: "Method of Payment", Style: discordgo.TextInputShort, Placeholder: "e.g. cashapp", Required: true},
			discordgo.TextInput{CustomID: "revisions", Label: "Number of Revisions", Style: discordgo.TextInputShort, Placeholder: "e.g. 2", Required: true},
			discordgo.TextInput{CustomID: "dates", Label: "Start Date | End Date", Style: discordgo.TextInputShort, Placeholder: "mm.dd.yy | mm.dd.yy", Required: true},
		)

	case "ticket_delivery":
		respondModal(s, i, "delivery_modal", lang.T("modal_delivery_title"),
			discordgo.TextInput{CustomID: "delivery_link", Label: "Delivery Link", Style: discordgo.TextInputShort, Placeholder: "https://", Required: true},
			discordgo.TextInput{CustomID: "order_items", Label: "Order Items", Style: discordgo.TextInputParagraph, Required: true},
		)

	case "ticket_ban":
		t, err := Tickets.Ban(ctx, actor, i.ChannelID)
		if err != nil {
			respondError(s, i, "ticket ban", err)
			return
		}
		respond(s, i, lang.T("ticket_banned", "user", "<@"+t.OwnerID+">"), true)

	case "ticket_priority":
		respondPriorityMenu(s, i)

	case "ticket_archive":
		if _, err := Tickets.Archive(ctx, actor, i.ChannelID); err != nil {
			respondError(s, i, "ticket archive", err)
			return
		}
		respond(s, i, lang.T("ticket_archived"), true)

	default:
		Log.Warn("unknown ticket action", zap.String("action", data.Values[0]))
	}
}

func userIDInput() discordgo.TextInput {
	return discordgo.TextInput{
		CustomID:    "user_id",
		Label:       "User ID",
		Style:       discordgo.TextInputShort,
		Placeholder: "Enter user ID",
		Required:    true,
		MinLength:   1,
		MaxLength:   32,
	}
}

var priorityEmoji = map[tickets.Priority]string{
	tickets.PriorityLow:    "🟢",
	tickets.PriorityMedium: "🟡",
	tickets.PriorityHigh:   "🟠",
	tickets.PriorityUrgent: "🔴",
}

func respondPriorityMenu(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := make([]discordgo.SelectMenuOption, 0, len(tickets.Priorities))
	for _, p := range tickets.Priorities {
		opts = append(opts, discordgo.SelectMenuOption{
			Label:       strings.ToUpper(string(p[:1])) + string(p[1:]),
			Value:       string(p),
			Description: string(p) + " priority",
			Emoji:       parseComponentEmoji(priorityEmoji[p]),
		})
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: lang.T("ticket_priority_prompt"),
			Flags:   discordgo.MessageFlagsEphemeral,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.SelectMenu{
							MenuType:    discordgo.StringSelectMenu,
							CustomID:    "priority_select",
							Placeholder: "priority",
							Options:     opts,
						},
					},
				},
			},
		},
	})
	if err != nil {
		Log.Warn("priority menu not sent", zap.Error(err))
	}
}

func handlePrioritySelect(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.MessageComponentData()
	if len(data.Values) == 0 {
		return
	}
	p, err := tickets.ParsePriority(data.Values[0])
	if err == nil {
		_, err = Tickets.SetPriority(context.Background(), actorFrom(i), i.ChannelID, p)
	}
	if err != nil {
		respondError(s, i, "ticket priority", err)
		return
	}

	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    lang.T("ticket_priority_set", "emoji", priorityEmoji[p], "priority", strings.ToUpper(string(p))),
			Components: []discordgo.MessageComponent{},
		},
	})
	if err != nil {
		Log.Warn("priority menu not updated", zap.Error(err))
	}
}

func handleAddUserModal(s *discordgo.Session, i *discordgo.InteractionCreate, values map[string]string) {
	userID, ok := parseUserID(values["user_id"])
	if !ok {
		respond(s, i, lang.T("user_not_found"), true)
		return
	}
	if err := Tickets.AddMember(context.Background(), actorFrom(i), i.ChannelID, userID); err != nil {
		respondError(s, i, "ticket add member", err)
		return
	}
	respond(s, i, lang.T("ticket_user_added", "user", "<@"+userID+">"), true)
}

func handleRemoveUserModal(s *discordgo.Session, i *discordgo.InteractionCreate, values map[string]string) {
	userID, ok := parseUserID(values["user_id"])
	if !ok {
		respond(s, i, lang.T("user_not_found"), true)
		return
	}
	if err := Tickets.RemoveMember(context.Background(), actorFrom(i), i.ChannelID, userID); err != nil {
		respondError(s, i, "ticket remove member", err)
		return
	}
	respond(s, i, lang.T("ticket_user_removed", "user", "<@"+userID+">"), true)
}

func handleDeliveryModal(s *discordgo.Session, i *discordgo.InteractionCreate, values map[string]string) {
	d := tickets.Delivery{Link: values["delivery_link"], Items: values["order_items"]}
	if !strings.HasPrefix(d.Link, "https://") && !strings.HasPrefix(d.Link, "http://") {
		respond(s, i, lang.T("delivery_bad_link"), true)
		return
	}

	t, err := Tickets.Deliver(context.Background(), actorFrom(i), i.ChannelID, d)
	if err != nil {
		respondError(s, i, "ticket delivery", err)
		return
	}
	if _, err := s.ChannelMessageSend(i.ChannelID, lang.T("delivery_posted", "user", "<@"+t.OwnerID+">")); err != nil {
		Log.Warn("delivery notice not posted", zap.String("channel", i.ChannelID), zap.Error(err))
	}
	respond(s, i, lang.T("delivery_sent"), true)
}

func handleReceiptModal(s *discordgo.Session, i *discordgo.InteractionCreate, values map[string]string) {
	t, err := Tickets.Resolve(context.Background(), actorFrom(i), i.ChannelID)
	if err != nil {
		respondError(s, i, "ticket receipt", err)
		return
	}
	started, finished := splitDates(values["dates"])
	r := Receipt{
		CustomerID: t.OwnerID,
		Order:      values["order"],
		Revisions:  values["revisions"],
		Payment:    values["mop"],
		Started:    started,
		Finished:   finished,
	}
	postReceipt(s, i.ChannelID, r)
	respond(s, i, lang.T("receipt_sent"), true)
}

// channelName prefers the state cache and falls back to the REST API. An
// empty result lets the ticket service derive the name from the owner.
func channelName(s *discordgo.Session, channelID string) string {
	if s.State != nil {
		if ch, err := s.State.Channel(channelID); err == nil {
			return ch.Name
		}
	}
	if ch, err := s.Channel(channelID); err == nil {
		return ch.Name
	}
	return ""
}

func parseComponentEmoji(emoji string) *discordgo.ComponentEmoji {
	if emoji == "" {
		return nil
	}
	return &discordgo.ComponentEmoji{Name: emoji}
}
