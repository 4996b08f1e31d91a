package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/dx-community/modmail/internal/gateway"
)

const (
	customIDCategorySelect = "ticket_category_select"
	customIDClaimPrefix    = "ticket_claim:"
)

func buildComponents(components []gateway.Component) []discordgo.MessageComponent {
	row := discordgo.ActionsRow{}
	for _, component := range components {
		switch component.Kind {
		case gateway.ComponentCategorySelect:
			options := make([]discordgo.SelectMenuOption, 0, len(component.Options))
			for _, opt := range component.Options {
				options = append(options, discordgo.SelectMenuOption{
					Label: opt.Label,
					Value: opt.Value,
				})
			}
			row.Components = append(row.Components, discordgo.SelectMenu{
				CustomID:    customIDCategorySelect,
				Placeholder: "Select a category",
				Options:     options,
			})
		case gateway.ComponentClaimButton:
			row.Components = append(row.Components, discordgo.Button{
				Label:    "Claim Ticket",
				Style:    discordgo.PrimaryButton,
				CustomID: customIDClaimPrefix + component.ChannelID,
			})
		case gateway.ComponentLinkButton:
			row.Components = append(row.Components, discordgo.Button{
				Label: component.Label,
				Style: discordgo.LinkButton,
				URL:   component.URL,
			})
		}
	}
	if len(row.Components) == 0 {
		return nil
	}
	return []discordgo.MessageComponent{row}
}

// disableComponents returns a copy of the rows with every interactive
// element disabled.
func disableComponents(rows []discordgo.MessageComponent) []discordgo.MessageComponent {
	out := make([]discordgo.MessageComponent, 0, len(rows))
	for _, component := range rows {
		row, ok := component.(*discordgo.ActionsRow)
		if !ok {
			out = append(out, component)
			continue
		}
		copied := discordgo.ActionsRow{}
		for _, inner := range row.Components {
			switch typed := inner.(type) {
			case *discordgo.Button:
				button := *typed
				button.Disabled = true
				copied.Components = append(copied.Components, button)
			case *discordgo.SelectMenu:
				menu := *typed
				menu.Disabled = true
				copied.Components = append(copied.Components, menu)
			default:
				copied.Components = append(copied.Components, inner)
			}
		}
		out = append(out, copied)
	}
	return out
}
