package models

import (
	"time"

	"github.com/google/uuid"
)

// Member is a registered producer or buyer in the cooperative.
type Member struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
