package domain

// Watcher is a staff member registered to be pinged on the next reply from
// a ticket's owner. (channel_id, mod_id) pairs have set semantics.
type Watcher struct {
	ChannelID string
	ModID     string
}
