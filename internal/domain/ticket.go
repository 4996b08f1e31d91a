package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen   TicketStatus = "open"
	TicketStatusClosed TicketStatus = "closed"
)

// Ticket is a private support conversation, materialized as a dedicated
// channel plus this row. Rows are never deleted, only status-flipped.
type Ticket struct {
	ChannelID   string
	UserID      string
	Username    string
	ChannelName string
	CategoryID  string
	TicketType  string
	ModID       *string
	ModUsername *string
	Status      TicketStatus
	CreatedAt   time.Time
	ClosedAt    *time.Time
}

// IsClaimed reports whether a staff member has taken the ticket.
func (t *Ticket) IsClaimed() bool {
	return t.ModID != nil && *t.ModID != ""
}
