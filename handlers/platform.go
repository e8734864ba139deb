package handlers

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"storefront-bot/config"
	"storefront-bot/lang"
	"storefront-bot/tickets"
	"storefront-bot/transcript"
)

const (
	ownerAllow = discordgo.PermissionViewChannel | discordgo.PermissionSendMessages |
		discordgo.PermissionAttachFiles | discordgo.PermissionReadMessageHistory
	staffAllow = ownerAllow | discordgo.PermissionManageMessages
)

var _ tickets.Platform = (*Platform)(nil)

// Platform adapts a discordgo session to the ticket lifecycle.
type Platform struct {
	s   *discordgo.Session
	cfg *config.Config
}

func NewPlatform(s *discordgo.Session, cfg *config.Config) *Platform {
	return &Platform{s: s, cfg: cfg}
}

func (p *Platform) MessagesBefore(ctx context.Context, channelID, before string, limit int) ([]transcript.Message, error) {
	msgs, err := p.s.ChannelMessages(channelID, limit, before, "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	out := make([]transcript.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, transcriptMessage(m))
	}
	return out, nil
}

func transcriptMessage(m *discordgo.Message) transcript.Message {
	tm := transcript.Message{
		ID:        m.ID,
		Timestamp: m.Timestamp,
		Content:   m.Content,
	}
	if m.Author != nil {
		tm.AuthorName = m.Author.Username
		tm.AuthorAvatar = m.Author.AvatarURL("64")
		tm.Bot = m.Author.Bot
	}
	for _, e := range m.Embeds {
		if e == nil {
			continue
		}
		tm.Embeds = append(tm.Embeds, transcript.Embed{Title: e.Title, Description: e.Description})
	}
	for _, a := range m.Attachments {
		if a == nil {
			continue
		}
		tm.Attachments = append(tm.Attachments, transcript.Attachment{Name: a.Filename, URL: a.URL})
	}
	return tm
}

func (p *Platform) ChannelExists(ctx context.Context, guildID, name string) (bool, error) {
	chs, err := p.s.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return false, err
	}
	for _, c := range chs {
		if strings.EqualFold(c.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (p *Platform) CreateChannel(ctx context.Context, spec tickets.ChannelSpec) (string, error) {
	overwrites := []*discordgo.PermissionOverwrite{
		{ID: spec.GuildID, Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionViewChannel},
		{ID: spec.OwnerID, Type: discordgo.PermissionOverwriteTypeMember, Allow: ownerAllow},
	}
	if !config.Placeholder(spec.StaffRole) {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID: spec.StaffRole, Type: discordgo.PermissionOverwriteTypeRole, Allow: staffAllow,
		})
	}

	ch, err := p.s.GuildChannelCreateComplex(spec.GuildID, discordgo.GuildChannelCreateData{
		Name:                 spec.Name,
		Type:                 discordgo.ChannelTypeGuildText,
		Topic:                spec.Topic,
		ParentID:             spec.CategoryID,
		PermissionOverwrites: overwrites,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return ch.ID, nil
}

func (p *Platform) DeleteChannel(ctx context.Context, channelID string) error {
	_, err := p.s.ChannelDelete(channelID, discordgo.WithContext(ctx))
	return err
}

func (p *Platform) MoveChannel(ctx context.Context, channelID, parentID string) error {
	_, err := p.s.ChannelEdit(channelID, &discordgo.ChannelEdit{ParentID: parentID}, discordgo.WithContext(ctx))
	return err
}

func (p *Platform) SetTopic(ctx context.Context, channelID, topic string) error {
	_, err := p.s.ChannelEdit(channelID, &discordgo.ChannelEdit{Topic: topic}, discordgo.WithContext(ctx))
	return err
}

func (p *Platform) SetMemberAccess(ctx context.Context, channelID, userID string, a tickets.Access) error {
	switch a {
	case tickets.AccessNone:
		return p.s.ChannelPermissionDelete(channelID, userID, discordgo.WithContext(ctx))
	case tickets.AccessReadOnly:
		return p.s.ChannelPermissionSet(channelID, userID, discordgo.PermissionOverwriteTypeMember,
			discordgo.PermissionViewChannel|discordgo.PermissionReadMessageHistory,
			discordgo.PermissionSendMessages, discordgo.WithContext(ctx))
	default:
		return p.s.ChannelPermissionSet(channelID, userID, discordgo.PermissionOverwriteTypeMember,
			ownerAllow, 0, discordgo.WithContext(ctx))
	}
}

func (p *Platform) PostPanel(ctx context.Context, t tickets.Ticket) error {
	_, err := p.s.ChannelMessageSendComplex(t.ChannelID, ticketPanel(t, p.cfg.Tickets), discordgo.WithContext(ctx))
	return err
}

// ticketPanel is the first message in a new ticket: the pings, a welcome
// embed and the staff action menu.
func ticketPanel(t tickets.Ticket, cfg config.TicketsConfig) *discordgo.MessageSend {
	content := "<@" + t.OwnerID + ">"
	if !config.Placeholder(cfg.StaffRole) {
		content = "<@&" + cfg.StaffRole + "> " + content
	}

	embed := &discordgo.MessageEmbed{
		Description: lang.T("ticket_welcome", "user", "<@"+t.OwnerID+">"),
		Color:       0x57F287,
		Timestamp:   t.CreatedAt.Format(time.RFC3339),
	}
	if cfg.WelcomeImage != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: cfg.WelcomeImage}
	}

	return &discordgo.MessageSend{
		Content: content,
		Embeds:  []*discordgo.MessageEmbed{embed},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.SelectMenu{
						MenuType:    discordgo.StringSelectMenu,
						CustomID:    "ticket_actions",
						Placeholder: lang.T("ticket_actions_placeholder"),
						Options:     ticketActionOptions(),
					},
				},
			},
		},
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeUsers, discordgo.AllowedMentionTypeRoles},
		},
	}
}

var ticketActions = []struct {
	value string
	label string
	emoji string
}{
	{"ticket_close", "close ticket", "🔒"},
	{"ticket_add_user", "add user", "➕"},
	{"ticket_remove_user", "remove user", "➖"},
	{"ticket_lock", "lock ticket", "🔐"},
	{"ticket_unlock", "unlock ticket", "🔓"},
	{"ticket_send_receipt", "send receipt", "🧾"},
	{"ticket_delivery", "send delivery", "📦"},
	{"ticket_ban", "ban user", "🚫"},
	{"ticket_priority", "set priority", "🏷️"},
	{"ticket_archive", "archive ticket", "🗄️"},
}

func ticketActionOptions() []discordgo.SelectMenuOption {
	opts := make([]discordgo.SelectMenuOption, 0, len(ticketActions))
	for _, a := range ticketActions {
		opts = append(opts, discordgo.SelectMenuOption{
			Label: a.label,
			Value: a.value,
			Emoji: parseComponentEmoji(a.emoji),
		})
	}
	return opts
}

func (p *Platform) PostLog(ctx context.Context, logChannelID string, c tickets.Closure) error {
	embed := &discordgo.MessageEmbed{
		Title:       lang.T("ticket_log_title"),
		Description: lang.T("ticket_log_description", "channel", tickets.ChannelName(c.Ticket.OwnerName)),
		Color:       0xED4245,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Opened By", Value: "<@" + c.Ticket.OwnerID + ">", Inline: true},
			{Name: "Closed By", Value: "<@" + c.ClosedBy.ID + ">", Inline: true},
			{Name: "Messages", Value: fmt.Sprintf("%d", c.Messages), Inline: true},
			{Name: "Opened At", Value: fmt.Sprintf("<t:%d:f>", c.Ticket.CreatedAt.Unix()), Inline: true},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if c.Ticket.Priority != tickets.PriorityUnset {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Priority", Value: string(c.Ticket.Priority), Inline: true,
		})
	}

	_, err := p.s.ChannelMessageSendComplex(logChannelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{embed},
		Files: []*discordgo.File{
			{
				Name:        c.Filename,
				ContentType: "text/html",
				Reader:      bytes.NewReader(c.HTML),
			},
		},
	}, discordgo.WithContext(ctx))
	return err
}

func (p *Platform) SendDelivery(ctx context.Context, userID string, d tickets.Delivery) error {
	dm, err := p.s.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return err
	}
	_, err = p.s.ChannelMessageSendComplex(dm.ID, deliveryMessage(userID, d), discordgo.WithContext(ctx))
	return err
}

func deliveryMessage(userID string, d tickets.Delivery) *discordgo.MessageSend {
	msg := &discordgo.MessageSend{
		Content: lang.T("delivery_dm", "user", "<@"+userID+">", "items", d.Items),
	}
	if d.Link != "" {
		msg.Components = []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label: lang.T("delivery_button"),
						Style: discordgo.LinkButton,
						URL:   d.Link,
					},
				},
			},
		}
	}
	return msg
}
