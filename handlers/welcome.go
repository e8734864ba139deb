package handlers

import (
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"storefront-bot/config"
)

func handleMemberJoin(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.Member == nil || m.User == nil {
		return
	}
	assignJoinRole(s, Cfg.Welcome, m.GuildID, m.User)

	if !Cfg.Welcome.Enabled || config.Placeholder(Cfg.Welcome.ChannelID) {
		return
	}
	botAvatar := ""
	if s.State != nil && s.State.User != nil {
		botAvatar = s.State.User.AvatarURL("256")
	}
	if _, err := s.ChannelMessageSendComplex(Cfg.Welcome.ChannelID, welcomeMessage(Cfg.Welcome, m.User, botAvatar)); err != nil {
		Log.Warn("welcome not sent", zap.String("channel", Cfg.Welcome.ChannelID), zap.Error(err))
	}
}

// welcomeMessage builds the join message. %joined_user% and %username% are
// replaced in the text and every embed description; a thumbnail of BOT or
// USER uses that account's avatar.
func welcomeMessage(cfg config.WelcomeConfig, user *discordgo.User, botAvatar string) *discordgo.MessageSend {
	r := strings.NewReplacer("%joined_user%", user.Mention(), "%username%", user.Username)

	msg := &discordgo.MessageSend{Content: r.Replace(cfg.Message)}
	for _, ec := range cfg.Embeds {
		colour, ok := parseColour(ec.Colour)
		if !ok {
			colour = defaultEmbedColour
		}
		embed := &discordgo.MessageEmbed{
			Description: r.Replace(ec.Description),
			Color:       colour,
		}
		if ec.Thumbnail != "" {
			thumb := ec.Thumbnail
			if strings.EqualFold(thumb, "BOT") {
				thumb = botAvatar
			} else if strings.EqualFold(thumb, "USER") {
				thumb = user.AvatarURL("256")
			}
			if thumb != "" {
				embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: thumb}
			}
		}
		if ec.ImageURL != "" {
			embed.Image = &discordgo.MessageEmbedImage{URL: ec.ImageURL}
		}
		msg.Embeds = append(msg.Embeds, embed)
	}
	return msg
}
