package domain

import (
	"time"

	"github.com/google/uuid"
)

// Template is a reusable message body owned by an account.
type Template struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	Tag       string    `json:"tag"`
	Default   bool      `json:"default"`
	CreatedAt time.Time `json:"created_at"`
}
