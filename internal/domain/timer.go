package domain

import "time"

// TimerAction enumerates the scheduled actions a timer can carry.
type TimerAction string

const (
	TimerActionUnclaimed TimerAction = "unclaimed"
	TimerActionSuspend   TimerAction = "suspend"
	TimerActionClose     TimerAction = "close"
)

// Timer is a persisted record of a future action against a ticket channel.
// ExecuteAt is stored and compared in UTC with second resolution.
type Timer struct {
	ChannelID string
	UserID    string
	Action    TimerAction
	ExecuteAt time.Time
}
