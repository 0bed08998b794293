package models

import (
	"time"

	"github.com/google/uuid"
)

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// ensureID fills an empty primary key with a fresh UUID.
func ensureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}
