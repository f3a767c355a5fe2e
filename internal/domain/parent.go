package domain

import "time"

// ParentDataBlock is the single most recent structured block captured from
// a parent-mode conversation.
type ParentDataBlock struct {
	Block     string    `json:"block"`
	UpdatedAt time.Time `json:"updatedAt"`
}
