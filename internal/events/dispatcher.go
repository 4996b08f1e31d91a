package events

import (
	"context"
	"sync"
)

// InteractionHandler receives one callback per interaction variant. The
// lifecycle controller registers itself as the handler.
type InteractionHandler interface {
	HandleCategorySelected(ctx context.Context, ev CategorySelected) error
	HandleTicketClaimed(ctx context.Context, ev TicketClaimed) error
}

// ErrorFunc reports a handler failure without aborting dispatch.
type ErrorFunc func(ev Interaction, err error)

// Dispatcher routes interaction variants to registered handlers.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers []InteractionHandler
	onError  ErrorFunc
}

// NewDispatcher creates a dispatcher. onError may be nil.
func NewDispatcher(onError ErrorFunc) *Dispatcher {
	return &Dispatcher{onError: onError}
}

// Register adds a handler for all variants.
func (d *Dispatcher) Register(h InteractionHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, h)
}

// Dispatch invokes every registered handler for the event. Handler errors
// are reported and do not stop the remaining handlers.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Interaction) {
	d.mu.RLock()
	handlers := append([]InteractionHandler{}, d.handlers...)
	d.mu.RUnlock()

	for _, h := range handlers {
		var err error
		switch typed := ev.(type) {
		case CategorySelected:
			err = h.HandleCategorySelected(ctx, typed)
		case TicketClaimed:
			err = h.HandleTicketClaimed(ctx, typed)
		}
		if err != nil && d.onError != nil {
			d.onError(ev, err)
		}
	}
}
