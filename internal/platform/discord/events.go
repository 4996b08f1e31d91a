package discord

import (
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/dx-community/modmail/internal/gateway"
)

func (a *Adapter) registerHandlers() {
	a.session.AddHandler(a.onMessageCreate)
	a.session.AddHandler(a.onChannelDelete)
	a.session.AddHandler(a.onTypingStart)
	a.session.AddHandler(a.onInteractionCreate)
}

func (a *Adapter) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || (s.State.User != nil && m.Author.ID == s.State.User.ID) {
		return
	}

	msg := gateway.InboundMessage{
		MessageID:   m.ID,
		ChannelID:   m.ChannelID,
		AuthorID:    m.Author.ID,
		AuthorName:  m.Author.Username,
		AuthorIsBot: m.Author.Bot,
		Content:     m.Content,
		Attachments: toAttachments(m.Attachments),
		IsDirect:    m.GuildID == "",
		CreatedAt:   m.Timestamp,
	}
	if ref := m.ReferencedMessage; ref != nil {
		msg.ReferencedMessageID = ref.ID
		if len(ref.Embeds) > 0 && ref.Embeds[0].Footer != nil {
			msg.ReferencedEmbedFooter = ref.Embeds[0].Footer.Text
		}
	}
	a.handler.OnMessage(msg)
}

func (a *Adapter) onChannelDelete(_ *discordgo.Session, ev *discordgo.ChannelDelete) {
	if ev.Channel == nil || ev.Type != discordgo.ChannelTypeGuildText {
		return
	}
	a.handler.OnChannelDeleted(gateway.ChannelDeleted{
		ChannelID:  ev.ID,
		CategoryID: ev.ParentID,
		Topic:      ev.Topic,
	})
}

func (a *Adapter) onTypingStart(_ *discordgo.Session, ev *discordgo.TypingStart) {
	a.handler.OnTyping(gateway.Typing{
		ChannelID: ev.ChannelID,
		UserID:    ev.UserID,
		IsDirect:  ev.GuildID == "",
	})
}

func (a *Adapter) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}
	data := i.MessageComponentData()

	ic := a.toInteraction(s, i)

	switch {
	case data.CustomID == customIDCategorySelect:
		if len(data.Values) == 0 {
			return
		}
		a.handler.OnCategorySelected(ic, data.Values[0])
	case strings.HasPrefix(data.CustomID, customIDClaimPrefix):
		a.handler.OnTicketClaimed(ic, strings.TrimPrefix(data.CustomID, customIDClaimPrefix))
	}
}

func (a *Adapter) toInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) gateway.Interaction {
	user := i.User
	if user == nil && i.Member != nil {
		user = i.Member.User
	}

	ic := gateway.Interaction{
		ID:        i.ID,
		ChannelID: i.ChannelID,
	}
	if user != nil {
		ic.UserID = user.ID
		ic.UserName = user.Username
	}
	if i.Message != nil {
		ic.MessageID = i.Message.ID
	}

	ic.Respond = func(msg gateway.Outbound, ephemeral bool) error {
		data := &discordgo.InteractionResponseData{Content: msg.Content}
		if msg.Embed != nil {
			data.Embeds = []*discordgo.MessageEmbed{buildEmbed(msg.Embed)}
		}
		if ephemeral {
			data.Flags = discordgo.MessageFlagsEphemeral
		}
		return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: data,
		})
	}

	ic.DisableSource = func() error {
		if i.Message == nil {
			return nil
		}
		disabled := disableComponents(i.Message.Components)
		edit := discordgo.NewMessageEdit(i.ChannelID, i.Message.ID)
		edit.Components = &disabled
		_, err := s.ChannelMessageEditComplex(edit)
		return err
	}

	return ic
}
