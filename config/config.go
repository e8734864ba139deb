package config

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Discord       DiscordConfig       `json:"discord"`
	Database      DatabaseConfig      `json:"database"`
	Logging       LoggingConfig       `json:"logging"`
	Metrics       MetricsConfig       `json:"metrics"`
	Events        EventsConfig        `json:"events"`
	Lang          LangConfig          `json:"lang"`
	Tickets       TicketsConfig       `json:"tickets"`
	Autoresponder AutoresponderConfig `json:"autoresponder"`
	Waitlist      WaitlistConfig      `json:"waitlist"`
	Receipts      ReceiptsConfig      `json:"receipts"`
	Prices        PricesConfig        `json:"prices"`
	Welcome       WelcomeConfig       `json:"welcome"`
	Utility       UtilityConfig       `json:"utility"`
}

type DiscordConfig struct {
	Token    string `json:"token"`
	GuildID  string `json:"guild_id"`
	Status   string `json:"status"`
	Activity string `json:"activity"`
}

type DatabaseConfig struct {
	Driver  string        `json:"driver"`
	SQLite  SQLiteConfig  `json:"sqlite"`
	MongoDB MongoDBConfig `json:"mongodb"`
}

type SQLiteConfig struct {
	Path string `json:"path"`
}

type MongoDBConfig struct {
	URI      string `json:"uri"`
	Database string `json:"database"`
}

type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

type MetricsConfig struct {
	Addr string `json:"addr"`
}

type EventsConfig struct {
	AMQPURL  string `json:"amqp_url"`
	Exchange string `json:"exchange"`
}

type LangConfig struct {
	Path string `json:"path"`
}

type TicketsConfig struct {
	StaffRole          string `json:"staff_role"`
	LogChannel         string `json:"log_channel"`
	ArchiveCategory    string `json:"archive_category"`
	CloseDelaySeconds  int    `json:"close_delay_seconds"`
	TranscriptPageSize int    `json:"transcript_page_size"`
	PanelPlaceholder   string `json:"panel_placeholder"`
	WelcomeImage       string `json:"welcome_image"`
}

func (t TicketsConfig) CloseDelay() time.Duration {
	return time.Duration(t.CloseDelaySeconds) * time.Second
}

type AutoresponderConfig struct {
	Disabled bool   `json:"disabled"`
	File     string `json:"file"`
}

type WaitlistConfig struct {
	Channel string `json:"channel"`
	Image   string `json:"image"`
}

type ReceiptsConfig struct {
	Channel string `json:"channel"`
}

type PricesConfig struct {
	Color   string        `json:"color"`
	Methods []PriceMethod `json:"methods"`
}

type PriceMethod struct {
	Value       string `json:"value"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Sheet       string `json:"sheet"`
}

type WelcomeConfig struct {
	Enabled   bool               `json:"enabled"`
	ChannelID string             `json:"channel_id"`
	JoinRole  string             `json:"join_role"`
	Message   string             `json:"message"`
	Embeds    []WelcomeEmbedConf `json:"embeds"`
}

type WelcomeEmbedConf struct {
	Colour      string `json:"colour"`
	Description string `json:"description"`
	Thumbnail   string `json:"thumbnail"`
	ImageURL    string `json:"image_url"`
}

type UtilityConfig struct {
	DividerImage string `json:"divider_image"`
	SpacerLines  int    `json:"spacer_lines"`
}

// LoadConfig reads the JSON config at path, loads .env if present and lets
// environment variables override the file.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	case os.IsNotExist(err):
		// env-only deployments are allowed
	default:
		return nil, err
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	setFromEnv(&cfg.Discord.Token, "DISCORD_TOKEN")
	setFromEnv(&cfg.Discord.GuildID, "GUILD_ID")
	setFromEnv(&cfg.Tickets.StaffRole, "STAFF_ROLE_ID")
	setFromEnv(&cfg.Tickets.LogChannel, "LOG_CHANNEL_ID")
	setFromEnv(&cfg.Tickets.ArchiveCategory, "ARCHIVE_CATEGORY_ID")
	setFromEnv(&cfg.Waitlist.Channel, "WL_ID")
	setFromEnv(&cfg.Welcome.ChannelID, "WELCOME_CHANNEL_ID")
	setFromEnv(&cfg.Receipts.Channel, "RECEIPT_CHANNEL_ID")
	setFromEnv(&cfg.Events.AMQPURL, "AMQP_URL")
	setFromEnv(&cfg.Logging.Level, "LOG_LEVEL")
	setFromEnv(&cfg.Metrics.Addr, "METRICS_ADDR")
}

func setFromEnv(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Discord.Status == "" {
		cfg.Discord.Status = "dnd"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.SQLite.Path == "" {
		cfg.Database.SQLite.Path = "data/bot.db"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Events.Exchange == "" {
		cfg.Events.Exchange = "storefront.events"
	}
	if cfg.Tickets.CloseDelaySeconds <= 0 {
		cfg.Tickets.CloseDelaySeconds = 3
	}
	if cfg.Tickets.TranscriptPageSize <= 0 || cfg.Tickets.TranscriptPageSize > 100 {
		cfg.Tickets.TranscriptPageSize = 100
	}
	if cfg.Tickets.PanelPlaceholder == "" {
		cfg.Tickets.PanelPlaceholder = "select ticket"
	}
	if cfg.Autoresponder.File == "" {
		cfg.Autoresponder.File = "data/autoresponders.json"
	}
	if cfg.Prices.Color == "" {
		cfg.Prices.Color = "#36393f"
	}
	if cfg.Utility.SpacerLines <= 0 {
		cfg.Utility.SpacerLines = 30
	}
}

// Placeholder reports whether a configured ID is unset or still the sample value.
func Placeholder(id string) bool {
	return id == "" || strings.HasPrefix(id, "PUT_") || strings.HasPrefix(id, "YOUR_")
}

// ID returns id, or "" when it is a placeholder.
func ID(id string) string {
	if Placeholder(id) {
		return ""
	}
	return id
}
