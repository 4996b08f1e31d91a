package events

import (
	"time"

	"github.com/dx-community/modmail/internal/gateway"
)

// Interaction is the closed set of UI callback variants the bot handles.
// New variants require a new type here and a handler on every registrant,
// which keeps dispatch exhaustive at compile time.
type Interaction interface {
	isInteraction()
	Source() gateway.Interaction
}

// CategorySelected fires when a user picks a ticket category from the
// welcome selector.
type CategorySelected struct {
	When        time.Time
	Interaction gateway.Interaction
	CategoryKey string
}

func (CategorySelected) isInteraction() {}

// Source returns the originating platform interaction.
func (e CategorySelected) Source() gateway.Interaction { return e.Interaction }

// TicketClaimed fires when a staff member presses the claim button in a
// ticket channel.
type TicketClaimed struct {
	When        time.Time
	Interaction gateway.Interaction
	ChannelID   string
}

func (TicketClaimed) isInteraction() {}

// Source returns the originating platform interaction.
func (e TicketClaimed) Source() gateway.Interaction { return e.Interaction }
