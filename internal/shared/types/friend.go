package types

import "time"

// PresenceStatus represents a friend's connectivity state
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceOffline PresenceStatus = "offline"
	PresenceInGame  PresenceStatus = "ingame"
)

// Rank orders statuses for display: in-game first, offline last
func (s PresenceStatus) Rank() int {
	switch s {
	case PresenceInGame:
		return 0
	case PresenceOnline:
		return 1
	default:
		return 2
	}
}

// Friend is one entry of the friends list
type Friend struct {
	UUID            string         `json:"uuid"`
	Username        string         `json:"username"`
	Status          PresenceStatus `json:"status"`
	LastSeen        time.Time      `json:"last_seen"`
	CurrentInstance *string        `json:"current_instance,omitempty"`
}

// RequestStatus represents friend request states
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
)

// FriendRequest is an incoming friend request
type FriendRequest struct {
	ID           string        `json:"id"`
	FromUUID     string        `json:"from_uuid"`
	FromUsername string        `json:"from_username"`
	ToUUID       string        `json:"to_uuid"`
	Status       RequestStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
}

// PendingRemoval is a friend staged for removal awaiting confirmation
type PendingRemoval struct {
	UUID     string `json:"uuid"`
	Username string `json:"username"`
}
