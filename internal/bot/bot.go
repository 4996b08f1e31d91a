// Package bot bridges gateway events into the command router, lifecycle
// controller and interaction dispatcher.
package bot

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dx-community/modmail/internal/commands"
	"github.com/dx-community/modmail/internal/events"
	"github.com/dx-community/modmail/internal/gateway"
	"github.com/dx-community/modmail/internal/service"
)

// handlerTimeout bounds the work done for one gateway event.
const handlerTimeout = 2 * time.Minute

// Bot implements gateway.Handler over the assembled services.
type Bot struct {
	router     *commands.Router
	lifecycle  *service.LifecycleService
	dispatcher *events.Dispatcher
	logger     *zap.Logger
}

var _ gateway.Handler = (*Bot)(nil)

// New wires the event bridge.
func New(router *commands.Router, lifecycle *service.LifecycleService, dispatcher *events.Dispatcher, logger *zap.Logger) *Bot {
	return &Bot{
		router:     router,
		lifecycle:  lifecycle,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

func (b *Bot) eventContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), handlerTimeout)
}

// OnMessage routes DMs through the ticket lifecycle and guild messages
// through the command router.
func (b *Bot) OnMessage(msg gateway.InboundMessage) {
	if msg.AuthorIsBot {
		return
	}
	ctx, cancel := b.eventContext()
	defer cancel()

	if msg.IsDirect {
		if err := b.lifecycle.HandleUserDM(ctx, msg); err != nil {
			b.logger.Error("dm handling failed",
				zap.String("user_id", msg.AuthorID), zap.Error(err))
		}
		return
	}
	b.router.Handle(ctx, msg)
}

// OnChannelDeleted reconciles the ticket store after an external deletion.
func (b *Bot) OnChannelDeleted(ev gateway.ChannelDeleted) {
	ctx, cancel := b.eventContext()
	defer cancel()
	b.lifecycle.HandleChannelDeleted(ctx, ev)
}

// OnTyping relays DM typing into the matching ticket channel.
func (b *Bot) OnTyping(ev gateway.Typing) {
	ctx, cancel := b.eventContext()
	defer cancel()
	b.lifecycle.HandleTyping(ctx, ev)
}

// OnCategorySelected dispatches the category selection variant.
func (b *Bot) OnCategorySelected(ic gateway.Interaction, categoryKey string) {
	ctx, cancel := b.eventContext()
	defer cancel()
	b.dispatcher.Dispatch(ctx, events.CategorySelected{
		When:        time.Now(),
		Interaction: ic,
		CategoryKey: categoryKey,
	})
}

// OnTicketClaimed dispatches the claim variant.
func (b *Bot) OnTicketClaimed(ic gateway.Interaction, channelID string) {
	ctx, cancel := b.eventContext()
	defer cancel()
	b.dispatcher.Dispatch(ctx, events.TicketClaimed{
		When:        time.Now(),
		Interaction: ic,
		ChannelID:   channelID,
	})
}
