package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dx-community/modmail/internal/repository"
)

func (r *Router) handleMacroAdd(cctx *Context) error {
	if len(cctx.Args) < 2 {
		r.reply(cctx, "Usage: `dxadd <key> <text>`")
		return nil
	}
	key := cctx.Args[0]
	response := strings.TrimSpace(strings.TrimPrefix(cctx.Rest, key))
	if err := r.macros.AddMacro(cctx.Ctx, key, response); err != nil {
		if errors.Is(err, repository.ErrMacroExists) {
			r.reply(cctx, fmt.Sprintf("A response named `%s` already exists.", strings.ToLower(key)))
			return nil
		}
		return err
	}
	r.reply(cctx, fmt.Sprintf("Response `%s` added.", strings.ToLower(key)))
	return nil
}

func (r *Router) handleMacroRemove(cctx *Context) error {
	if len(cctx.Args) == 0 {
		r.reply(cctx, "Usage: `dxremove <key>`")
		return nil
	}
	removed, err := r.macros.RemoveMacro(cctx.Ctx, cctx.Args[0])
	if err != nil {
		return err
	}
	if !removed {
		r.reply(cctx, fmt.Sprintf("No response named `%s`.", strings.ToLower(cctx.Args[0])))
		return nil
	}
	r.reply(cctx, fmt.Sprintf("Response `%s` removed.", strings.ToLower(cctx.Args[0])))
	return nil
}

func (r *Router) handleMacroList(cctx *Context) error {
	keys, err := r.macros.ListMacroKeys(cctx.Ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		r.reply(cctx, "No premade responses stored.")
		return nil
	}
	r.reply(cctx, "Available responses:\n```\n"+strings.Join(keys, "\n")+"\n```")
	return nil
}

func (r *Router) handleMacroSend(cctx *Context) error {
	if len(cctx.Args) == 0 {
		r.reply(cctx, "Usage: `msg <key>`")
		return nil
	}
	sent, err := r.macros.SendMacro(cctx.Ctx, cctx.Msg.ChannelID, cctx.Member.User.Username, cctx.Args[0])
	if err != nil {
		return err
	}
	if !sent {
		r.reply(cctx, fmt.Sprintf("No response named `%s`.", strings.ToLower(cctx.Args[0])))
		return nil
	}
	r.deleteInvocation(cctx)
	return nil
}

func (r *Router) handleReply(cctx *Context) error {
	if cctx.Rest == "" {
		r.reply(cctx, "Usage: `r <text>`")
		return nil
	}
	if err := r.macros.Relay(cctx.Ctx, cctx.Msg.ChannelID, cctx.Member.User.Username, cctx.Rest); err != nil {
		return err
	}
	r.deleteInvocation(cctx)
	return nil
}

func (r *Router) handleReplyEdit(cctx *Context) error {
	if cctx.Rest == "" {
		r.reply(cctx, "Usage: reply to a response confirmation with `re <text>`")
		return nil
	}
	if err := r.macros.EditRelayed(cctx.Ctx, cctx.Msg.ChannelID, cctx.Member.User.Username, cctx.Msg.ReferencedEmbedFooter, cctx.Rest); err != nil {
		return err
	}
	// The fresh confirmation from EditRelayed replaces the stale one.
	if cctx.Msg.ReferencedMessageID != "" {
		if err := r.client.DeleteMessage(cctx.Ctx, cctx.Msg.ChannelID, cctx.Msg.ReferencedMessageID); err != nil {
			r.logger.Debug("deleting stale confirmation failed")
		}
	}
	r.deleteInvocation(cctx)
	return nil
}

func (r *Router) handleReplyDelete(cctx *Context) error {
	if err := r.macros.DeleteRelayed(cctx.Ctx, cctx.Msg.ChannelID, cctx.Msg.ReferencedEmbedFooter); err != nil {
		return err
	}
	if cctx.Msg.ReferencedMessageID != "" {
		if err := r.client.DeleteMessage(cctx.Ctx, cctx.Msg.ChannelID, cctx.Msg.ReferencedMessageID); err != nil {
			r.logger.Debug("deleting confirmation failed")
		}
	}
	r.deleteInvocation(cctx)
	return nil
}
