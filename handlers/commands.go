package handlers

import (
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"storefront-bot/autoresponder"
	"storefront-bot/config"
	"storefront-bot/metrics"
	"storefront-bot/tickets"
	"storefront-bot/waitlist"
)

// Set by main before Register is called.
var (
	Cfg        *config.Config
	Log        = zap.NewNop()
	Responders *autoresponder.Store
	Tickets    *tickets.Service
	Waitlist   *waitlist.Service
)

var (
	adminPerm int64 = discordgo.PermissionAdministrator
	staffPerm int64 = discordgo.PermissionManageMessages
)

func Commands(cfg *config.Config) []*discordgo.ApplicationCommand {
	cmds := make([]*discordgo.ApplicationCommand, 0)
	cmds = append(cmds, ticketCommands()...)
	cmds = append(cmds, waitlistCommands()...)
	cmds = append(cmds, utilityCommands()...)
	cmds = append(cmds, storefrontCommands()...)
	if !cfg.Autoresponder.Disabled {
		cmds = append(cmds, autoresponderCommands()...)
	}
	return cmds
}

// Register wires every gateway handler. Each one runs inside a recover
// boundary so a failing interaction never takes the session down.
func Register(s *discordgo.Session) {
	s.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if i.GuildID == "" || i.Member == nil {
			return
		}
		guard("interaction", func() {
			switch i.Type {
			case discordgo.InteractionApplicationCommand:
				handleSlashCommand(s, i)
			case discordgo.InteractionMessageComponent:
				handleComponent(s, i)
			case discordgo.InteractionModalSubmit:
				handleModal(s, i)
			}
		})
	})

	if !Cfg.Autoresponder.Disabled {
		s.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
			guard("message", func() { handleAutoresponderMessage(s, m) })
		})
	}

	s.AddHandler(func(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
		guard("member_add", func() { handleMemberJoin(s, m) })
	})
}

func guard(event string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			metrics.HandlerPanics.Inc()
			Log.Error("handler panic",
				zap.String("event", event),
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()
	fn()
}

func handleSlashCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	name := i.ApplicationCommandData().Name

	switch name {
	case "ticket":
		handleTicketCommand(s, i)
	case "waitlist":
		handleWaitlistCommand(s, i)
	case "autoresponder":
		handleAutoresponderCommand(s, i)
	case "createembed":
		handleCreateEmbed(s, i)
	case "say":
		handleSay(s, i)
	case "spacer":
		handleSpacer(s, i)
	case "div":
		handleDivider(s, i)
	case "prices":
		handlePrices(s, i)
	case "receipt":
		handleReceiptCommand(s, i)
	default:
		Log.Warn("unknown command", zap.String("command", name))
	}
}

func handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	customID := i.MessageComponentData().CustomID

	switch customID {
	case "ticket_create_select":
		handleTicketCreateSelect(s, i)
	case "ticket_actions":
		handleTicketAction(s, i)
	case "priority_select":
		handlePrioritySelect(s, i)
	case "price_menu":
		handlePriceSelect(s, i)
	default:
		if id, ok := waitlist.ParseCustomID(customID); ok {
			handleWaitlistSelect(s, i, id)
			return
		}
		Log.Warn("unknown component", zap.String("custom_id", customID))
	}
}

func handleModal(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ModalSubmitData()
	values := modalValues(data)

	switch data.CustomID {
	case "add_user_modal":
		handleAddUserModal(s, i, values)
	case "remove_user_modal":
		handleRemoveUserModal(s, i, values)
	case "delivery_modal":
		handleDeliveryModal(s, i, values)
	case "receipt_modal":
		handleReceiptModal(s, i, values)
	default:
		Log.Warn("unknown modal", zap.String("custom_id", data.CustomID))
	}
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	})
	if err != nil {
		Log.Warn("interaction response failed", zap.Error(err))
	}
}

func respondEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  flags,
		},
	})
	if err != nil {
		Log.Warn("interaction response failed", zap.Error(err))
	}
}

// respondModal opens a modal with one text input per field.
func respondModal(s *discordgo.Session, i *discordgo.InteractionCreate, customID, title string, fields ...discordgo.TextInput) {
	rows := make([]discordgo.MessageComponent, 0, len(fields))
	for _, f := range fields {
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{f}})
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID:   customID,
			Title:      title,
			Components: rows,
		},
	})
	if err != nil {
		Log.Warn("modal open failed", zap.String("modal", customID), zap.Error(err))
	}
}

// deferEphemeral acknowledges an interaction whose work may outlast the
// three second response window.
func deferEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		Log.Warn("defer failed", zap.Error(err))
	}
}

func followup(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	_, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	})
	if err != nil {
		Log.Warn("followup failed", zap.Error(err))
	}
}

func optionMap(i *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	return subOptMap(i.ApplicationCommandData().Options)
}

func subOptMap(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption)
	for _, opt := range opts {
		m[opt.Name] = opt
	}
	return m
}

func optStr(m map[string]*discordgo.ApplicationCommandInteractionDataOption, key, def string) string {
	if o, ok := m[key]; ok {
		return o.StringValue()
	}
	return def
}

func optBool(m map[string]*discordgo.ApplicationCommandInteractionDataOption, key string, def bool) bool {
	if o, ok := m[key]; ok {
		return o.BoolValue()
	}
	return def
}

func modalValues(data discordgo.ModalSubmitInteractionData) map[string]string {
	values := make(map[string]string)
	for _, c := range data.Components {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, rc := range row.Components {
			if in, ok := rc.(*discordgo.TextInput); ok {
				values[in.CustomID] = strings.TrimSpace(in.Value)
			}
		}
	}
	return values
}

// isStaff reports whether the member holds the configured staff role.
// Administrators always count as staff.
func isStaff(member *discordgo.Member) bool {
	if member == nil {
		return false
	}
	if member.Permissions&discordgo.PermissionAdministrator != 0 {
		return true
	}
	role := Cfg.Tickets.StaffRole
	if config.Placeholder(role) {
		return false
	}
	for _, r := range member.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func actorFrom(i *discordgo.InteractionCreate) tickets.Actor {
	u := i.Member.User
	return tickets.Actor{ID: u.ID, Name: u.Username, Staff: isStaff(i.Member)}
}

// parseUserID accepts a raw snowflake or a mention.
func parseUserID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "<@")
	s = strings.TrimPrefix(s, "!")
	s = strings.TrimSuffix(s, ">")
	if s == "" {
		return "", false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return s, true
}
