package models

import (
	"time"

	"gorm.io/gorm"
)

// Account is the local wallet + gamification record for a user.
// Balance is written only by the ledger, CosmicPoints/CosmicRank only by the achievement evaluator.
type Account struct {
	ID           string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Username     string `gorm:"uniqueIndex;not null" json:"username"`
	Email        string `json:"email,omitempty"`
	Balance      int64  `gorm:"not null;default:0;check:balance >= 0" json:"balance"`
	CosmicPoints int64  `gorm:"not null;default:0" json:"cosmic_points"`
	CosmicRank   string `gorm:"type:varchar(32);not null;default:'Novice'" json:"cosmic_rank"`

	Badges []AccountBadge `gorm:"foreignKey:AccountID" json:"badges,omitempty"`

	Timestamps
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	ensureID(&a.ID)
	if a.CosmicRank == "" {
		a.CosmicRank = "Novice"
	}
	return nil
}

// AccountBadge is one granted badge; (account_id, badge) is unique so a badge is held at most once.
type AccountBadge struct {
	ID            string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AccountID     string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_account_badge" json:"account_id"`
	Badge         string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_account_badge" json:"badge"`
	AchievementID string    `gorm:"type:varchar(64)" json:"achievement_id,omitempty"`
	AwardedAt     time.Time `gorm:"autoCreateTime" json:"awarded_at"`
}

func (b *AccountBadge) BeforeCreate(tx *gorm.DB) error {
	ensureID(&b.ID)
	return nil
}
