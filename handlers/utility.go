package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"storefront-bot/lang"
)

const defaultEmbedColour = 0x36393f

func utilityCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:                     "createembed",
			Description:              "Create a fully customized embed",
			DefaultMemberPermissions: &adminPerm,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "color", Description: "Hex code or colour name", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "title", Description: "Embed title"},
				{Type: discordgo.ApplicationCommandOptionString, Name: "description", Description: "Embed description (use \\n for new lines)"},
				{Type: discordgo.ApplicationCommandOptionString, Name: "footer", Description: "Footer text"},
				{Type: discordgo.ApplicationCommandOptionString, Name: "footericon", Description: "Footer icon URL"},
				{Type: discordgo.ApplicationCommandOptionBoolean, Name: "timestamp", Description: "Add timestamp"},
				{Type: discordgo.ApplicationCommandOptionString, Name: "thumbnail", Description: "Thumbnail URL"},
				{Type: discordgo.ApplicationCommandOptionString, Name: "image", Description: "Image URL"},
				{Type: discordgo.ApplicationCommandOptionString, Name: "authorname", Description: "Author name"},
				{Type: discordgo.ApplicationCommandOptionString, Name: "authoricon", Description: "Author icon URL"},
			},
		},
		{
			Name:                     "say",
			Description:              "Make the bot say something",
			DefaultMemberPermissions: &adminPerm,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "text", Description: "What should I say?", Required: true},
			},
		},
		{
			Name:        "spacer",
			Description: "Add a spacer message to the channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type: discordgo.ApplicationCommandOptionString, Name: "length", Description: "Spacer length", Required: true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "Short", Value: "short"},
						{Name: "Long", Value: "long"},
					},
				},
			},
		},
		{
			Name:                     "div",
			Description:              "Send a divider image",
			DefaultMemberPermissions: &adminPerm,
		},
	}
}

func handleSay(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !isAdmin(i.Member) {
		respond(s, i, lang.T("error_no_permission"), true)
		return
	}
	text := strings.ReplaceAll(optStr(optionMap(i), "text", ""), "\\n", "\n")
	if _, err := s.ChannelMessageSend(i.ChannelID, text); err != nil {
		Log.Warn("say failed", zap.String("channel", i.ChannelID), zap.Error(err))
		respond(s, i, lang.T("error_generic"), true)
		return
	}
	respond(s, i, lang.T("say_sent"), true)
}

func handleCreateEmbed(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !isAdmin(i.Member) {
		respond(s, i, lang.T("error_no_permission"), true)
		return
	}
	embed := buildEmbed(optionMap(i), time.Now())
	if _, err := s.ChannelMessageSendEmbed(i.ChannelID, embed); err != nil {
		Log.Warn("embed failed", zap.String("channel", i.ChannelID), zap.Error(err))
		respond(s, i, lang.T("error_generic"), true)
		return
	}
	respond(s, i, lang.T("embed_sent"), true)
}

func buildEmbed(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, now time.Time) *discordgo.MessageEmbed {
	colour, ok := parseColour(optStr(opts, "color", ""))
	if !ok {
		colour = defaultEmbedColour
	}
	embed := &discordgo.MessageEmbed{
		Title:       strings.ReplaceAll(optStr(opts, "title", ""), "\\n", "\n"),
		Description: strings.ReplaceAll(optStr(opts, "description", ""), "\\n", "\n"),
		Color:       colour,
	}
	if footer := optStr(opts, "footer", ""); footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: footer, IconURL: optStr(opts, "footericon", "")}
	}
	if thumb := optStr(opts, "thumbnail", ""); thumb != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: thumb}
	}
	if img := optStr(opts, "image", ""); img != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: img}
	}
	if name := optStr(opts, "authorname", ""); name != "" {
		embed.Author = &discordgo.MessageEmbedAuthor{Name: name, IconURL: optStr(opts, "authoricon", "")}
	}
	if optBool(opts, "timestamp", false) {
		embed.Timestamp = now.Format(time.RFC3339)
	}
	return embed
}

var namedColours = map[string]int{
	"red":     0xED4245,
	"green":   0x57F287,
	"blue":    0x3498DB,
	"blurple": 0x5865F2,
	"yellow":  0xFEE75C,
	"orange":  0xE67E22,
	"purple":  0x9B59B6,
	"pink":    0xEB459E,
	"white":   0xFFFFFF,
	"black":   0x000000,
	"grey":    0x95A5A6,
	"gray":    0x95A5A6,
}

// parseColour accepts "#rrggbb", "rrggbb", "0xrrggbb" or a colour name.
func parseColour(s string) (int, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := namedColours[s]; ok {
		return c, true
	}
	hex := strings.TrimPrefix(strings.TrimPrefix(s, "#"), "0x")
	if hex == "" || len(hex) > 6 {
		return 0, false
	}
	v, err := strconv.ParseInt(hex, 16, 64)
	if err != nil {
		return 0, false
	}
	return int(v), true
}

func spacerText(length string, lines int) string {
	if length != "long" {
		return "\u200b"
	}
	return strings.Repeat("\u200b\n", lines)
}

func handleSpacer(s *discordgo.Session, i *discordgo.InteractionCreate) {
	length := optStr(optionMap(i), "length", "short")
	if _, err := s.ChannelMessageSend(i.ChannelID, spacerText(length, Cfg.Utility.SpacerLines)); err != nil {
		Log.Warn("spacer failed", zap.String("channel", i.ChannelID), zap.Error(err))
		respond(s, i, lang.T("error_generic"), true)
		return
	}
	respond(s, i, lang.T("spacer_sent", "length", length), true)
}

func handleDivider(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !isAdmin(i.Member) {
		respond(s, i, lang.T("error_no_permission"), true)
		return
	}
	if Cfg.Utility.DividerImage == "" {
		respond(s, i, lang.T("divider_missing"), true)
		return
	}
	embed := &discordgo.MessageEmbed{
		Color: defaultEmbedColour,
		Image: &discordgo.MessageEmbedImage{URL: Cfg.Utility.DividerImage},
	}
	if _, err := s.ChannelMessageSendEmbed(i.ChannelID, embed); err != nil {
		Log.Warn("divider failed", zap.String("channel", i.ChannelID), zap.Error(err))
		respond(s, i, lang.T("error_generic"), true)
		return
	}
	respond(s, i, lang.T("divider_sent"), true)
}
