package models

import (
	"time"

	"gorm.io/gorm"
)

// AchievementProgress tracks one account against one static achievement definition.
// Once Completed is true it never goes back.
type AchievementProgress struct {
	ID            string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AccountID     string     `gorm:"type:varchar(36);not null;uniqueIndex:idx_progress_account_achievement" json:"account_id"`
	AchievementID string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_progress_account_achievement" json:"achievement_id"`
	Current       int64      `gorm:"column:current_value;not null;default:0" json:"current"`
	Completed     bool       `gorm:"not null;default:false" json:"completed"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`

	Timestamps
}

func (p *AchievementProgress) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
