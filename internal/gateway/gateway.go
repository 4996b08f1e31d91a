// Package gateway defines the chat-platform surface the bot consumes.
// Event delivery, embed rendering and connection management live behind
// these interfaces; internal/platform/discord provides the real client and
// tests substitute fakes.
package gateway

import (
	"context"
	"errors"
	"time"
)

// ErrChannelNotFound is returned when a channel id no longer resolves,
// typically because staff deleted the channel outside the bot's control.
var ErrChannelNotFound = errors.New("channel not found")

// ErrCannotDM is returned when the platform refuses a direct message,
// usually because the user has DMs disabled.
var ErrCannotDM = errors.New("cannot direct-message user")

// Embed is the platform-neutral rich message block.
type Embed struct {
	Title       string
	Description string
	Color       int
	ImageURL    string
	FooterText  string
	AuthorName  string
	AuthorIcon  string
	Fields      []EmbedField
}

// EmbedField is a labelled embed section.
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// Outbound is a message to send into a channel or DM.
type Outbound struct {
	Content string
	Embed   *Embed
	// Components attaches interactive UI described by component IDs the
	// adapter understands (category selector, claim button).
	Components []Component
	// Files attaches raw file payloads.
	Files []FilePayload
	// DeleteAfter, when positive, asks the platform to remove the message
	// after the duration (used for transient typing notices).
	DeleteAfter time.Duration
}

// ComponentKind discriminates interactive components.
type ComponentKind string

const (
	ComponentCategorySelect ComponentKind = "category_select"
	ComponentClaimButton    ComponentKind = "claim_button"
	ComponentLinkButton     ComponentKind = "link_button"
)

// Component describes one interactive element.
type Component struct {
	Kind ComponentKind
	// ChannelID carries the ticket channel for claim buttons.
	ChannelID string
	// Label and URL configure link buttons.
	Label string
	URL   string
	// Options lists selectable (label, value) pairs for selectors.
	Options []SelectOption
}

// SelectOption is one entry of a selector component.
type SelectOption struct {
	Label string
	Value string
}

// FilePayload is an attachment to upload with a message.
type FilePayload struct {
	Name string
	Data []byte
}

// ChannelCreate describes a ticket channel to create.
type ChannelCreate struct {
	Name       string
	CategoryID string
	Topic      string
	// RestrictTo limits visibility to the listed user ids plus the bot.
	RestrictTo []string
}

// Channel is the resolved view of a platform channel.
type Channel struct {
	ID         string
	Name       string
	CategoryID string
	Topic      string
}

// User is the resolved view of a platform user.
type User struct {
	ID        string
	Username  string
	AvatarURL string
	CreatedAt time.Time
}

// Member is a user within the configured guild.
type Member struct {
	User           User
	RoleIDs        []string
	RoleNames      []string
	ManageChannels bool
	ManageGuild    bool
	ManageMessages bool
	Administrator  bool
	PresentInGuild bool
}

// HistoryMessage is one message of a channel's history, oldest first.
type HistoryMessage struct {
	ID          string
	AuthorID    string
	AuthorName  string
	AuthorIsBot bool
	AuthorStaff bool
	Content     string
	Embeds      []Embed
	Attachments []Attachment
	CreatedAt   time.Time
}

// Attachment is a file attached to an inbound message.
type Attachment struct {
	ID          string
	URL         string
	Filename    string
	ContentType string
}

// Client is the outbound surface of the chat platform.
type Client interface {
	// SendMessage posts into a channel and returns the new message id.
	SendMessage(ctx context.Context, channelID string, msg Outbound) (string, error)
	// SendDM direct-messages a user; ErrCannotDM when DMs are closed.
	SendDM(ctx context.Context, userID string, msg Outbound) (string, error)
	// EditDM rewrites a previously sent direct message.
	EditDM(ctx context.Context, userID, messageID string, msg Outbound) error
	// DeleteDM removes a previously sent direct message.
	DeleteDM(ctx context.Context, userID, messageID string) error
	// DeleteMessage removes a channel message.
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	// CreateChannel creates a ticket channel under a category.
	CreateChannel(ctx context.Context, req ChannelCreate) (*Channel, error)
	// DeleteChannel removes a channel; ErrChannelNotFound if already gone.
	DeleteChannel(ctx context.Context, channelID string) error
	// MoveChannel reparents a channel to another category.
	MoveChannel(ctx context.Context, channelID, categoryID string) error
	// CreateCategory creates a guild category and returns its id.
	CreateCategory(ctx context.Context, name string) (string, error)
	// CategoryByName resolves a category id by display name.
	CategoryByName(ctx context.Context, name string) (string, error)
	// Channel resolves channel metadata; ErrChannelNotFound if gone.
	Channel(ctx context.Context, channelID string) (*Channel, error)
	// User resolves a platform user by id.
	User(ctx context.Context, userID string) (*User, error)
	// Member resolves a user within the configured guild.
	Member(ctx context.Context, userID string) (*Member, error)
	// History returns the full channel history, oldest first.
	History(ctx context.Context, channelID string) ([]HistoryMessage, error)
	// React adds a reaction emoji to a message in a DM or channel.
	React(ctx context.Context, channelID, messageID, emoji string) error
}
