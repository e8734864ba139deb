package waitlist

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

const customIDPrefix = "waitlist_status:"

// CustomID is the status menu id for an entry.
func CustomID(entryID string) string {
	return customIDPrefix + entryID
}

// ParseCustomID extracts the entry id from a status menu id.
func ParseCustomID(customID string) (string, bool) {
	id, ok := strings.CutPrefix(customID, customIDPrefix)
	return id, ok && id != ""
}

var statusColor = map[Status]int{
	StatusPending:    0x949BA4,
	StatusPaid:       0xFEE75C,
	StatusProcessing: 0x5865F2,
	StatusComplete:   0x57F287,
}

// View renders e from scratch. Complete entries get no components; every
// other status gets a single menu offering all selectable statuses.
func View(e Entry, image string) (*discordgo.MessageEmbed, []discordgo.MessageComponent) {
	embed := &discordgo.MessageEmbed{
		Title: "new order",
		Description: fmt.Sprintf("**customer:** <@%s>\n**item:** %s\n**payment:** %s\n\n**status:** %s",
			e.CustomerID, e.Item, e.PaymentMethod, e.Status),
		Color:  statusColor[e.Status],
		Footer: &discordgo.MessageEmbedFooter{Text: "order " + shortID(e.ID)},
	}
	if image != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: image}
	}
	if !e.CreatedAt.IsZero() {
		embed.Timestamp = e.CreatedAt.Format("2006-01-02T15:04:05Z07:00")
	}

	if e.Status == StatusComplete {
		return embed, nil
	}

	opts := make([]discordgo.SelectMenuOption, 0, len(Selectable))
	for _, st := range Selectable {
		opts = append(opts, discordgo.SelectMenuOption{
			Label:       string(st),
			Value:       string(st),
			Description: "mark as " + string(st),
			Default:     st == e.Status,
		})
	}
	return embed, []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					MenuType:    discordgo.StringSelectMenu,
					CustomID:    CustomID(e.ID),
					Placeholder: "status",
					Options:     opts,
				},
			},
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
