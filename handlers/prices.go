package handlers

import (
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"storefront-bot/config"
	"storefront-bot/lang"
)

func storefrontCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:                     "prices",
			Description:              "Post the pricing menu",
			DefaultMemberPermissions: &adminPerm,
		},
		receiptCommand(),
	}
}

func priceMenu(methods []config.PriceMethod) discordgo.MessageComponent {
	opts := make([]discordgo.SelectMenuOption, 0, len(methods))
	for _, m := range methods {
		label := m.Label
		if label == "" {
			label = m.Value
		}
		opts = append(opts, discordgo.SelectMenuOption{
			Label:       label,
			Value:       m.Value,
			Description: m.Description,
		})
	}
	return discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				MenuType:    discordgo.StringSelectMenu,
				CustomID:    "price_menu",
				Placeholder: lang.T("prices_placeholder"),
				Options:     opts,
			},
		},
	}
}

func handlePrices(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if len(Cfg.Prices.Methods) == 0 {
		respond(s, i, lang.T("prices_empty"), true)
		return
	}
	_, err := s.ChannelMessageSendComplex(i.ChannelID, &discordgo.MessageSend{
		Components: []discordgo.MessageComponent{priceMenu(Cfg.Prices.Methods)},
	})
	if err != nil {
		Log.Warn("price menu not sent", zap.String("channel", i.ChannelID), zap.Error(err))
		respond(s, i, lang.T("error_generic"), true)
		return
	}
	respond(s, i, lang.T("prices_sent"), true)
}

// priceSheet returns the sheet configured for a menu value.
func priceSheet(methods []config.PriceMethod, value string) (string, bool) {
	for _, m := range methods {
		if m.Value == value {
			return m.Sheet, true
		}
	}
	return "", false
}

func handlePriceSelect(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.MessageComponentData()
	if len(data.Values) == 0 {
		return
	}
	sheet, ok := priceSheet(Cfg.Prices.Methods, data.Values[0])
	if !ok {
		respond(s, i, lang.T("prices_unknown"), true)
		return
	}
	colour, ok := parseColour(Cfg.Prices.Color)
	if !ok {
		colour = defaultEmbedColour
	}
	respondEmbed(s, i, &discordgo.MessageEmbed{Description: sheet, Color: colour}, true)
}
