// Package discord adapts the discordgo session to the gateway interfaces
// the bot core consumes.
package discord

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/dx-community/modmail/internal/config"
	"github.com/dx-community/modmail/internal/gateway"
)

// Adapter wraps a discordgo session behind gateway.Client.
type Adapter struct {
	session *discordgo.Session
	cfg     config.DiscordConfig
	logger  *zap.Logger
	handler gateway.Handler

	// staffRoles is the configured staff role set, used to label history
	// authors when building transcripts.
	staffRoles map[string]struct{}
}

var _ gateway.Client = (*Adapter)(nil)

// New builds the adapter and configures gateway intents. The session is
// not opened until Start.
func New(cfg config.DiscordConfig, logger *zap.Logger) (*Adapter, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsGuildMessageTyping |
		discordgo.IntentsDirectMessageTyping |
		discordgo.IntentMessageContent

	staffRoles := make(map[string]struct{})
	for _, id := range []string{cfg.StaffRoleID, cfg.JuniorModRoleID, cfg.ExtraStaffRoleID} {
		if id != "" {
			staffRoles[id] = struct{}{}
		}
	}

	return &Adapter{
		session:    session,
		cfg:        cfg,
		logger:     logger,
		staffRoles: staffRoles,
	}, nil
}

// Start registers event handlers and opens the gateway connection.
func (a *Adapter) Start(handler gateway.Handler) error {
	a.handler = handler
	a.registerHandlers()
	if err := a.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	return nil
}

// Stop closes the gateway connection.
func (a *Adapter) Stop() error {
	return a.session.Close()
}

func (a *Adapter) SendMessage(ctx context.Context, channelID string, msg gateway.Outbound) (string, error) {
	sent, err := a.session.ChannelMessageSendComplex(channelID, buildMessageSend(msg), discordgo.WithContext(ctx))
	if err != nil {
		return "", translateErr(err)
	}
	if msg.DeleteAfter > 0 {
		a.deleteLater(channelID, sent.ID, msg.DeleteAfter)
	}
	return sent.ID, nil
}

func (a *Adapter) SendDM(ctx context.Context, userID string, msg gateway.Outbound) (string, error) {
	dm, err := a.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return "", translateErr(err)
	}
	sent, err := a.session.ChannelMessageSendComplex(dm.ID, buildMessageSend(msg), discordgo.WithContext(ctx))
	if err != nil {
		return "", translateErr(err)
	}
	return sent.ID, nil
}

func (a *Adapter) EditDM(ctx context.Context, userID, messageID string, msg gateway.Outbound) error {
	dm, err := a.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return translateErr(err)
	}
	edit := discordgo.NewMessageEdit(dm.ID, messageID)
	if msg.Content != "" {
		edit.SetContent(msg.Content)
	}
	if msg.Embed != nil {
		edit.SetEmbed(buildEmbed(msg.Embed))
	}
	_, err = a.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx))
	return translateErr(err)
}

func (a *Adapter) DeleteDM(ctx context.Context, userID, messageID string) error {
	dm, err := a.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return translateErr(err)
	}
	return translateErr(a.session.ChannelMessageDelete(dm.ID, messageID, discordgo.WithContext(ctx)))
}

func (a *Adapter) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return translateErr(a.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)))
}

func (a *Adapter) CreateChannel(ctx context.Context, req gateway.ChannelCreate) (*gateway.Channel, error) {
	data := discordgo.GuildChannelCreateData{
		Name:     req.Name,
		Type:     discordgo.ChannelTypeGuildText,
		Topic:    req.Topic,
		ParentID: req.CategoryID,
	}
	if len(req.RestrictTo) > 0 {
		data.PermissionOverwrites = a.restrictedOverwrites(req.RestrictTo)
	}
	channel, err := a.session.GuildChannelCreateComplex(a.cfg.GuildID, data, discordgo.WithContext(ctx))
	if err != nil {
		return nil, translateErr(err)
	}
	return toChannel(channel), nil
}

// restrictedOverwrites hides the channel from @everyone and grants the
// listed members plus the bot itself.
func (a *Adapter) restrictedOverwrites(memberIDs []string) []*discordgo.PermissionOverwrite {
	overwrites := []*discordgo.PermissionOverwrite{{
		ID:   a.cfg.GuildID, // @everyone shares the guild id
		Type: discordgo.PermissionOverwriteTypeRole,
		Deny: discordgo.PermissionViewChannel,
	}}
	allowed := memberIDs
	if a.session.State != nil && a.session.State.User != nil {
		allowed = append(allowed, a.session.State.User.ID)
	}
	for _, id := range allowed {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    id,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages,
		})
	}
	return overwrites
}

func (a *Adapter) DeleteChannel(ctx context.Context, channelID string) error {
	_, err := a.session.ChannelDelete(channelID, discordgo.WithContext(ctx))
	return translateErr(err)
}

func (a *Adapter) MoveChannel(ctx context.Context, channelID, categoryID string) error {
	_, err := a.session.ChannelEdit(channelID, &discordgo.ChannelEdit{ParentID: categoryID}, discordgo.WithContext(ctx))
	return translateErr(err)
}

func (a *Adapter) CreateCategory(ctx context.Context, name string) (string, error) {
	channel, err := a.session.GuildChannelCreateComplex(a.cfg.GuildID, discordgo.GuildChannelCreateData{
		Name: name,
		Type: discordgo.ChannelTypeGuildCategory,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", translateErr(err)
	}
	return channel.ID, nil
}

func (a *Adapter) CategoryByName(ctx context.Context, name string) (string, error) {
	channels, err := a.session.GuildChannels(a.cfg.GuildID, discordgo.WithContext(ctx))
	if err != nil {
		return "", translateErr(err)
	}
	for _, channel := range channels {
		if channel.Type == discordgo.ChannelTypeGuildCategory && strings.EqualFold(channel.Name, name) {
			return channel.ID, nil
		}
	}
	return "", gateway.ErrChannelNotFound
}

func (a *Adapter) Channel(ctx context.Context, channelID string) (*gateway.Channel, error) {
	channel, err := a.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, translateErr(err)
	}
	return toChannel(channel), nil
}

func (a *Adapter) User(ctx context.Context, userID string) (*gateway.User, error) {
	user, err := a.session.User(userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, translateErr(err)
	}
	return toUser(user), nil
}

func (a *Adapter) Member(ctx context.Context, userID string) (*gateway.Member, error) {
	member, err := a.session.GuildMember(a.cfg.GuildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		var restErr *discordgo.RESTError
		if errors.As(err, &restErr) && restErr.Message != nil &&
			restErr.Message.Code == discordgo.ErrCodeUnknownMember {
			return &gateway.Member{PresentInGuild: false}, nil
		}
		return nil, translateErr(err)
	}

	out := &gateway.Member{
		User:           *toUser(member.User),
		RoleIDs:        member.Roles,
		PresentInGuild: true,
	}
	a.fillRoleDerived(ctx, out)
	return out, nil
}

// fillRoleDerived resolves role names and guild-wide permission bits from
// the member's role set.
func (a *Adapter) fillRoleDerived(ctx context.Context, member *gateway.Member) {
	roles, err := a.session.GuildRoles(a.cfg.GuildID, discordgo.WithContext(ctx))
	if err != nil {
		a.logger.Debug("loading guild roles failed", zap.Error(err))
		return
	}
	byID := make(map[string]*discordgo.Role, len(roles))
	for _, role := range roles {
		byID[role.ID] = role
	}
	for _, roleID := range member.RoleIDs {
		role, ok := byID[roleID]
		if !ok {
			continue
		}
		member.RoleNames = append(member.RoleNames, role.Name)
		if role.Permissions&discordgo.PermissionAdministrator != 0 {
			member.Administrator = true
		}
		if role.Permissions&discordgo.PermissionManageChannels != 0 {
			member.ManageChannels = true
		}
		if role.Permissions&discordgo.PermissionManageServer != 0 {
			member.ManageGuild = true
		}
		if role.Permissions&discordgo.PermissionManageMessages != 0 {
			member.ManageMessages = true
		}
	}
}

// History pages the full channel history and returns it oldest first.
func (a *Adapter) History(ctx context.Context, channelID string) ([]gateway.HistoryMessage, error) {
	var all []*discordgo.Message
	beforeID := ""
	for {
		page, err := a.session.ChannelMessages(channelID, 100, beforeID, "", "", discordgo.WithContext(ctx))
		if err != nil {
			return nil, translateErr(err)
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		beforeID = page[len(page)-1].ID
	}

	staffCache := make(map[string]bool)
	out := make([]gateway.HistoryMessage, 0, len(all))
	// Pages arrive newest first; walk backwards to restore order.
	for i := len(all) - 1; i >= 0; i-- {
		msg := all[i]
		out = append(out, gateway.HistoryMessage{
			ID:          msg.ID,
			AuthorID:    msg.Author.ID,
			AuthorName:  msg.Author.Username,
			AuthorIsBot: msg.Author.Bot,
			AuthorStaff: a.isStaffAuthor(ctx, staffCache, msg.Author),
			Content:     msg.Content,
			Embeds:      toEmbeds(msg.Embeds),
			Attachments: toAttachments(msg.Attachments),
			CreatedAt:   msg.Timestamp,
		})
	}
	return out, nil
}

func (a *Adapter) isStaffAuthor(ctx context.Context, cache map[string]bool, author *discordgo.User) bool {
	if author.Bot {
		return true
	}
	if staff, ok := cache[author.ID]; ok {
		return staff
	}
	staff := false
	if member, err := a.session.GuildMember(a.cfg.GuildID, author.ID, discordgo.WithContext(ctx)); err == nil {
		for _, roleID := range member.Roles {
			if _, ok := a.staffRoles[roleID]; ok {
				staff = true
				break
			}
		}
	}
	cache[author.ID] = staff
	return staff
}

func (a *Adapter) React(ctx context.Context, channelID, messageID, emoji string) error {
	return translateErr(a.session.MessageReactionAdd(channelID, messageID, emoji, discordgo.WithContext(ctx)))
}

func (a *Adapter) deleteLater(channelID, messageID string, after time.Duration) {
	time.AfterFunc(after, func() {
		if err := a.session.ChannelMessageDelete(channelID, messageID); err != nil {
			a.logger.Debug("delayed message delete failed", zap.Error(err))
		}
	})
}

func buildMessageSend(msg gateway.Outbound) *discordgo.MessageSend {
	send := &discordgo.MessageSend{Content: msg.Content}
	if msg.Embed != nil {
		send.Embeds = []*discordgo.MessageEmbed{buildEmbed(msg.Embed)}
	}
	if len(msg.Components) > 0 {
		send.Components = buildComponents(msg.Components)
	}
	for _, file := range msg.Files {
		send.Files = append(send.Files, &discordgo.File{
			Name:   file.Name,
			Reader: bytes.NewReader(file.Data),
		})
	}
	return send
}

func buildEmbed(embed *gateway.Embed) *discordgo.MessageEmbed {
	out := &discordgo.MessageEmbed{
		Title:       embed.Title,
		Description: embed.Description,
		Color:       embed.Color,
	}
	if embed.ImageURL != "" {
		out.Image = &discordgo.MessageEmbedImage{URL: embed.ImageURL}
	}
	if embed.FooterText != "" {
		out.Footer = &discordgo.MessageEmbedFooter{Text: embed.FooterText}
	}
	if embed.AuthorName != "" {
		out.Author = &discordgo.MessageEmbedAuthor{Name: embed.AuthorName, IconURL: embed.AuthorIcon}
	}
	for _, field := range embed.Fields {
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{
			Name:   field.Name,
			Value:  field.Value,
			Inline: field.Inline,
		})
	}
	return out
}

func toEmbeds(embeds []*discordgo.MessageEmbed) []gateway.Embed {
	out := make([]gateway.Embed, 0, len(embeds))
	for _, embed := range embeds {
		converted := gateway.Embed{
			Title:       embed.Title,
			Description: embed.Description,
			Color:       embed.Color,
		}
		if embed.Footer != nil {
			converted.FooterText = embed.Footer.Text
		}
		if embed.Author != nil {
			converted.AuthorName = embed.Author.Name
		}
		for _, field := range embed.Fields {
			converted.Fields = append(converted.Fields, gateway.EmbedField{
				Name:   field.Name,
				Value:  field.Value,
				Inline: field.Inline,
			})
		}
		out = append(out, converted)
	}
	return out
}

func toAttachments(attachments []*discordgo.MessageAttachment) []gateway.Attachment {
	out := make([]gateway.Attachment, 0, len(attachments))
	for _, att := range attachments {
		out = append(out, gateway.Attachment{
			ID:          att.ID,
			URL:         att.URL,
			Filename:    att.Filename,
			ContentType: att.ContentType,
		})
	}
	return out
}

func toChannel(channel *discordgo.Channel) *gateway.Channel {
	return &gateway.Channel{
		ID:         channel.ID,
		Name:       channel.Name,
		CategoryID: channel.ParentID,
		Topic:      channel.Topic,
	}
}

func toUser(user *discordgo.User) *gateway.User {
	createdAt, err := discordgo.SnowflakeTimestamp(user.ID)
	if err != nil {
		createdAt = time.Time{}
	}
	return &gateway.User{
		ID:        user.ID,
		Username:  user.Username,
		AvatarURL: user.AvatarURL(""),
		CreatedAt: createdAt,
	}
}

// translateErr maps discord REST failures onto the gateway sentinels.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil {
		switch restErr.Message.Code {
		case discordgo.ErrCodeUnknownChannel:
			return gateway.ErrChannelNotFound
		case discordgo.ErrCodeCannotSendMessagesToThisUser:
			return gateway.ErrCannotDM
		}
	}
	return err
}
