package bot

import (
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"storefront-bot/config"
)

const intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsMessageContent |
	discordgo.IntentsGuildMembers

type Bot struct {
	Session *discordgo.Session
	Config  *config.Config
	log     *zap.Logger
	ready   chan struct{}
}

func New(cfg *config.Config, log *zap.Logger) (*Bot, error) {
	s, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return nil, err
	}
	s.Identify.Intents = intents
	return &Bot{
		Session: s,
		Config:  cfg,
		log:     log,
		ready:   make(chan struct{}),
	}, nil
}

func (b *Bot) Start() error {
	b.Session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.log.Info("bot online", zap.String("user", r.User.Username), zap.Int("guilds", len(r.Guilds)))
		if err := s.UpdateStatusComplex(presence(b.Config.Discord)); err != nil {
			b.log.Warn("presence not set", zap.Error(err))
		}
		select {
		case <-b.ready:
		default:
			close(b.ready)
		}
	})
	return b.Session.Open()
}

// presence is the status shown once the session is ready. An empty
// activity name shows the status alone.
func presence(cfg config.DiscordConfig) discordgo.UpdateStatusData {
	data := discordgo.UpdateStatusData{Status: cfg.Status}
	if cfg.Activity != "" {
		data.Activities = []*discordgo.Activity{{
			Name: cfg.Activity,
			Type: discordgo.ActivityTypeWatching,
		}}
	}
	return data
}

func (b *Bot) Stop() {
	if err := b.Session.Close(); err != nil {
		b.log.Warn("session close failed", zap.Error(err))
	}
}

func (b *Bot) RegisterCommands(cmds []*discordgo.ApplicationCommand) []*discordgo.ApplicationCommand {
	<-b.ready

	appID := b.Session.State.User.ID
	guildID := b.Config.Discord.GuildID

	b.log.Info("registering commands",
		zap.Int("count", len(cmds)),
		zap.String("app", appID),
		zap.String("guild", guildID))

	registered, err := b.Session.ApplicationCommandBulkOverwrite(appID, guildID, cmds)
	if err != nil {
		b.log.Error("bulk overwrite of commands failed", zap.Error(err))
		return nil
	}

	b.log.Info("commands registered", zap.Int("count", len(registered)))
	return registered
}

func (b *Bot) CleanupCommands() {
	<-b.ready
	appID := b.Session.State.User.ID
	guildID := b.Config.Discord.GuildID
	if _, err := b.Session.ApplicationCommandBulkOverwrite(appID, guildID, []*discordgo.ApplicationCommand{}); err != nil {
		b.log.Error("command cleanup failed", zap.Error(err))
		return
	}
	b.log.Info("slash commands removed")
}
