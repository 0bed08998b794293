package models

import (
	"time"

	"gorm.io/gorm"
)

// PromotionAnalytics holds the base counters of one promotion. Counters only grow.
type PromotionAnalytics struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"-"`
	PromotionID string    `gorm:"type:varchar(36);uniqueIndex;not null" json:"promotion_id"`
	Views       int64     `gorm:"not null;default:0" json:"views"`
	Clicks      int64     `gorm:"not null;default:0" json:"clicks"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a *PromotionAnalytics) BeforeCreate(tx *gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

const (
	BreakdownVerse    = "verse"
	BreakdownLocation = "location"
)

// AnalyticsBreakdown is one counter pair keyed by (promotion, dimension, key),
// e.g. ("p1", "verse", "music") or ("p1", "location", "40.71,-74.01").
type AnalyticsBreakdown struct {
	ID          string `gorm:"primaryKey;type:varchar(36)" json:"-"`
	PromotionID string `gorm:"type:varchar(36);not null;uniqueIndex:idx_breakdown_key" json:"promotion_id"`
	Dimension   string `gorm:"type:varchar(16);not null;uniqueIndex:idx_breakdown_key" json:"dimension"`
	Key         string `gorm:"column:bucket_key;type:varchar(64);not null;uniqueIndex:idx_breakdown_key" json:"key"`
	Views       int64  `gorm:"not null;default:0" json:"views"`
	Clicks      int64  `gorm:"not null;default:0" json:"clicks"`
}

func (b *AnalyticsBreakdown) BeforeCreate(tx *gorm.DB) error {
	ensureID(&b.ID)
	return nil
}
