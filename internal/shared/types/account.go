package types

import "time"

// Account is a signed-in game account
type Account struct {
	UUID     string    `json:"uuid"`
	Username string    `json:"username"`
	IsActive bool      `json:"is_active"`
	AddedAt  time.Time `json:"added_at"`
	LastUsed time.Time `json:"last_used"`
}
