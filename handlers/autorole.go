package handlers

import (
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"storefront-bot/config"
)

// roleAdder is the part of the session assignJoinRole needs.
type roleAdder interface {
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
}

// assignJoinRole gives a new member the configured join role. Bots are
// skipped.
func assignJoinRole(api roleAdder, cfg config.WelcomeConfig, guildID string, user *discordgo.User) bool {
	if config.Placeholder(cfg.JoinRole) || user == nil || user.Bot {
		return false
	}
	if err := api.GuildMemberRoleAdd(guildID, user.ID, cfg.JoinRole); err != nil {
		Log.Warn("join role not assigned",
			zap.String("guild", guildID),
			zap.String("user", user.ID),
			zap.String("role", cfg.JoinRole),
			zap.Error(err))
		return false
	}
	return true
}
