package gateway

import "time"

// InboundMessage is a message event delivered by the platform.
type InboundMessage struct {
	MessageID   string
	ChannelID   string
	AuthorID    string
	AuthorName  string
	AuthorIsBot bool
	Content     string
	Attachments []Attachment
	IsDirect    bool
	// ReferencedMessageID carries the reply target when the author replied
	// to an earlier message (used by the re/delete commands).
	ReferencedMessageID string
	// ReferencedEmbedFooter is the footer text of the replied-to message's
	// first embed, when present.
	ReferencedEmbedFooter string
	CreatedAt             time.Time
}

// ChannelDeleted is delivered when a guild channel disappears.
type ChannelDeleted struct {
	ChannelID  string
	CategoryID string
	Topic      string
}

// Typing is delivered when a user starts typing in a DM.
type Typing struct {
	ChannelID string
	UserID    string
	IsDirect  bool
}

// Handler is implemented by the bot core; the platform adapter invokes it
// for every event it translates.
type Handler interface {
	OnMessage(msg InboundMessage)
	OnChannelDeleted(ev ChannelDeleted)
	OnTyping(ev Typing)
	// OnCategorySelected fires when a user picks a ticket category.
	OnCategorySelected(ic Interaction, categoryKey string)
	// OnTicketClaimed fires when staff presses the claim button.
	OnTicketClaimed(ic Interaction, channelID string)
}

// Interaction identifies a UI callback and lets handlers respond to it.
type Interaction struct {
	ID        string
	UserID    string
	UserName  string
	ChannelID string
	MessageID string
	// Respond sends the interaction response; ephemeral responses are shown
	// only to the interacting user.
	Respond func(msg Outbound, ephemeral bool) error
	// DisableSource disables the interactive components on the message the
	// interaction originated from.
	DisableSource func() error
}
