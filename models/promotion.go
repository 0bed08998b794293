package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	PromotionStatusDraft     = "draft"
	PromotionStatusScheduled = "scheduled"
	PromotionStatusPublished = "published"
)

type Promotion struct {
	ID        string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AccountID string `gorm:"type:varchar(36);index;not null" json:"account_id"` // owner
	Content   string `gorm:"type:text;not null" json:"content"`
	MediaURL  string `gorm:"type:text" json:"media_url,omitempty"`
	Category  string `gorm:"type:varchar(64);index;not null" json:"category"`

	Verses []PromotionVerse `gorm:"foreignKey:PromotionID" json:"verses,omitempty"`

	// 🎛️ Publishing state
	Status    string     `gorm:"type:varchar(16);index;not null;default:'draft'" json:"status"` // draft | scheduled | published
	PublishAt *time.Time `gorm:"index" json:"publish_at,omitempty"`                             // only used if scheduled

	// 🚀 Boost state, written only by the boost engine
	BoostLevel int        `gorm:"not null;default:0" json:"boost_level"`
	BoostedAt  *time.Time `json:"boosted_at,omitempty"`

	StarCount int64 `gorm:"not null;default:0" json:"star_count"`
	Flagged   bool  `gorm:"not null;default:false;index" json:"flagged"`

	Analytics *PromotionAnalytics `gorm:"foreignKey:PromotionID" json:"analytics,omitempty"`

	Timestamps
}

func (p *Promotion) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// VerseKeys flattens the verse rows.
func (p *Promotion) VerseKeys() []string {
	out := make([]string, 0, len(p.Verses))
	for _, v := range p.Verses {
		out = append(out, v.Verse)
	}
	return out
}

// PromotionVerse tags a promotion with one verse.
type PromotionVerse struct {
	PromotionID string `gorm:"primaryKey;type:varchar(36)" json:"-"`
	Verse       string `gorm:"primaryKey;type:varchar(64);index" json:"verse"`
}

func (PromotionVerse) TableName() string {
	return "promotion_verses"
}

// Star = one account starred one promotion.
type Star struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AccountID   string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_star_account_promotion" json:"account_id"`
	PromotionID string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_star_account_promotion;index" json:"promotion_id"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (s *Star) BeforeCreate(tx *gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
