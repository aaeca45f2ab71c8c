package models

import "time"

// AdminIdentity is the single registered recipient of everything the agent
// delivers. Sync is disabled while it is unset.
type AdminIdentity struct {
	ChatID       int64     `json:"chat_id"`
	RegisteredAt time.Time `json:"registered_at"`
}

// ConnectivityState is the transient result of one reachability probe. It is
// recomputed per probe and never persisted.
type ConnectivityState struct {
	Online    bool      `json:"online"`
	CheckedAt time.Time `json:"checked_at"`
}
