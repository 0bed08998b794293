package models

import (
	"time"

	"gorm.io/gorm"
)

// LedgerKind is the business reason for a balance change.
type LedgerKind string

const (
	LedgerKindDeposit           LedgerKind = "deposit"
	LedgerKindBoostSpend        LedgerKind = "boost_spend"
	LedgerKindStarReward        LedgerKind = "star_reward"
	LedgerKindAchievementReward LedgerKind = "achievement_reward"
)

func (k LedgerKind) Valid() bool {
	switch k {
	case LedgerKindDeposit, LedgerKindBoostSpend, LedgerKindStarReward, LedgerKindAchievementReward:
		return true
	}
	return false
}

// LedgerEntry is an append-only balance movement. Amount is signed: credits positive, debits negative.
type LedgerEntry struct {
	ID           string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AccountID    string     `gorm:"type:varchar(36);index;not null" json:"account_id"`
	Amount       int64      `gorm:"not null" json:"amount"`
	Kind         LedgerKind `gorm:"type:varchar(32);index;not null" json:"kind"`
	Description  string     `gorm:"type:text" json:"description"`
	Reference    string     `gorm:"type:varchar(64);index" json:"reference,omitempty"`   // promotion id for boosts and stars
	ExternalRef  *string    `gorm:"type:varchar(128);uniqueIndex" json:"external_ref,omitempty"` // payment-service deposit id
	BalanceAfter int64      `gorm:"not null" json:"balance_after"`
	CreatedAt    time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}

func (e *LedgerEntry) BeforeCreate(tx *gorm.DB) error {
	ensureID(&e.ID)
	return nil
}
