package commands

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dx-community/modmail/internal/gateway"
	"github.com/dx-community/modmail/internal/repository"
	"github.com/dx-community/modmail/internal/service"
	"github.com/dx-community/modmail/pkg/timeparse"
	"github.com/dx-community/modmail/pkg/util"
)

func (r *Router) reply(cctx *Context, content string) {
	if _, err := r.client.SendMessage(cctx.Ctx, cctx.Msg.ChannelID, gateway.Outbound{Content: content}); err != nil {
		r.logger.Debug("command reply failed", zap.Error(err))
	}
}

func (r *Router) replyEmbed(cctx *Context, embed *gateway.Embed) {
	if _, err := r.client.SendMessage(cctx.Ctx, cctx.Msg.ChannelID, gateway.Outbound{Embed: embed}); err != nil {
		r.logger.Debug("command reply failed", zap.Error(err))
	}
}

func (r *Router) replyError(cctx *Context, err error) {
	switch {
	case errors.Is(err, repository.ErrNotOpen):
		r.reply(cctx, "This channel is not an open ticket.")
	case errors.Is(err, service.ErrNoOwner):
		r.reply(cctx, "Could not determine the owner of this ticket.")
	case errors.Is(err, service.ErrAlreadyOpen):
		r.reply(cctx, "That user already has an open ticket.")
	case errors.Is(err, service.ErrNoRelayRef):
		r.reply(cctx, "Reply to one of my response confirmations to use this command.")
	default:
		r.reply(cctx, util.UserMessage(err))
	}
}

func (r *Router) handleMove(cctx *Context) error {
	if len(cctx.Args) == 0 {
		r.reply(cctx, "Usage: `move <category>`")
		return nil
	}
	name := strings.Join(cctx.Args, " ")
	categoryID, err := r.client.CategoryByName(cctx.Ctx, name)
	if err != nil {
		r.reply(cctx, fmt.Sprintf("No category named `%s` found.", name))
		return nil
	}
	if err := r.client.MoveChannel(cctx.Ctx, cctx.Msg.ChannelID, categoryID); err != nil {
		return fmt.Errorf("move channel: %w", err)
	}
	r.reply(cctx, fmt.Sprintf("Moved this ticket to `%s`.", name))
	return nil
}

func (r *Router) handleNewCategory(cctx *Context) error {
	if len(cctx.Args) == 0 {
		r.reply(cctx, "Usage: `newcc <name>`")
		return nil
	}
	name := strings.Join(cctx.Args, " ")
	categoryID, err := r.client.CreateCategory(cctx.Ctx, name)
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	r.reply(cctx, fmt.Sprintf("Created category `%s` (`%s`).", name, categoryID))
	return nil
}

func (r *Router) handleClose(cctx *Context) error {
	if len(cctx.Args) == 0 {
		return r.lifecycle.ScheduleClose(cctx.Ctx, cctx.Msg.ChannelID, 0)
	}
	delay, err := timeparse.Parse(cctx.Args[0])
	if err != nil {
		r.reply(cctx, "Invalid duration. Examples: `1:30`, `90m`, `1h30m`, `15`.")
		return nil
	}
	if err := r.lifecycle.ScheduleClose(cctx.Ctx, cctx.Msg.ChannelID, delay); err != nil {
		return err
	}
	r.replyEmbed(cctx, &gateway.Embed{
		Description: fmt.Sprintf("This ticket will close in **%s**. Use `%scancelclose` to cancel.", delay, r.prefix),
		Color:       0xe67e22,
	})
	return nil
}

func (r *Router) handleCancelClose(cctx *Context) error {
	cancelled, err := r.lifecycle.CancelClose(cctx.Ctx, cctx.Msg.ChannelID)
	if err != nil {
		return err
	}
	if !cancelled {
		r.reply(cctx, "No scheduled close to cancel.")
		return nil
	}
	r.reply(cctx, "Scheduled close cancelled.")
	return nil
}

func (r *Router) handleLog(cctx *Context) error {
	if err := r.lifecycle.LogTranscript(cctx.Ctx, cctx.Msg.ChannelID, cctx.Msg.AuthorID); err != nil {
		return err
	}
	r.reply(cctx, "Transcript logged.")
	return nil
}

func (r *Router) handleSuspend(cctx *Context) error {
	if err := r.lifecycle.Suspend(cctx.Ctx, cctx.Msg.ChannelID); err != nil {
		return err
	}
	r.replyEmbed(cctx, &gateway.Embed{
		Title:       "Ticket Suspended",
		Description: "This ticket will close automatically unless the user responds.",
		Color:       0xe67e22,
	})
	return nil
}

func (r *Router) handleNotifyMe(cctx *Context) error {
	added, err := r.lifecycle.NotifyMe(cctx.Ctx, cctx.Msg.ChannelID, cctx.Msg.AuthorID)
	if err != nil {
		return err
	}
	if !added {
		r.reply(cctx, "You are already subscribed to this ticket.")
		return nil
	}
	r.reply(cctx, "You will be pinged when the user next responds.")
	return nil
}

func (r *Router) handleTransfer(cctx *Context) error {
	if len(cctx.Args) == 0 {
		r.reply(cctx, "Usage: `transfer <staff>`")
		return nil
	}
	targetID := parseUserRef(cctx.Args[0])
	target, err := r.client.Member(cctx.Ctx, targetID)
	if err != nil || !target.PresentInGuild {
		r.reply(cctx, "Could not find that staff member.")
		return nil
	}
	if err := r.lifecycle.Transfer(cctx.Ctx, cctx.Msg.ChannelID, target.User.ID, target.User.Username); err != nil {
		return err
	}
	r.replyEmbed(cctx, &gateway.Embed{
		Description: fmt.Sprintf("Ticket transferred to <@%s>.", target.User.ID),
		Color:       0xe67e22,
	})
	return nil
}

func (r *Router) handleContact(cctx *Context) error {
	if len(cctx.Args) == 0 {
		r.reply(cctx, "Usage: `contact <user_id> [reason]`")
		return nil
	}
	userID := parseUserRef(cctx.Args[0])
	reason := strings.TrimSpace(strings.TrimPrefix(cctx.Rest, cctx.Args[0]))
	if reason == "" {
		reason = "No reason provided."
	}
	user, err := r.client.User(cctx.Ctx, userID)
	if err != nil {
		r.reply(cctx, "Could not find that user.")
		return nil
	}
	ticket, err := r.lifecycle.OpenContactTicket(cctx.Ctx, cctx.Msg.AuthorID, user, reason)
	if err != nil {
		return err
	}
	r.reply(cctx, fmt.Sprintf("Contact ticket opened: <#%s>", ticket.ChannelID))
	return nil
}

func (r *Router) handleTranscript(cctx *Context) error {
	var userID string
	if len(cctx.Args) > 0 {
		userID = parseUserRef(cctx.Args[0])
	} else {
		owner, err := r.lifecycle.OwnerOfChannel(cctx.Ctx, cctx.Msg.ChannelID)
		if err != nil {
			return err
		}
		userID = owner
		if channel, chErr := r.client.Channel(cctx.Ctx, cctx.Msg.ChannelID); chErr == nil {
			if err := r.transcripts.SaveStructured(cctx.Ctx, userID, channel); err != nil {
				r.logger.Warn("structured transcript failed", zap.Error(err))
			}
		}
	}

	token, expiresAt, err := r.tokens.GenerateToken(userID, cctx.Msg.AuthorID)
	if err != nil {
		return fmt.Errorf("sign transcript link: %w", err)
	}
	if _, err := r.client.SendMessage(cctx.Ctx, cctx.Msg.ChannelID, gateway.Outbound{
		Embed: &gateway.Embed{
			Title:       "Transcript",
			Description: fmt.Sprintf("Transcript log for <@%s>. The link expires <t:%d:R>.", userID, expiresAt.Unix()),
			Color:       0x2ecc71,
		},
		Components: []gateway.Component{{
			Kind:  gateway.ComponentLinkButton,
			Label: "View transcript",
			URL:   r.transcripts.ViewURL(userID, token),
		}},
	}); err != nil {
		return fmt.Errorf("send transcript link: %w", err)
	}
	return nil
}

// parseUserRef accepts a raw snowflake or a <@id> / <@!id> mention.
func parseUserRef(s string) string {
	s = strings.TrimPrefix(s, "<@")
	s = strings.TrimPrefix(s, "!")
	return strings.TrimSuffix(s, ">")
}
