package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	NotificationBadgeEarned = "badge_earned"
	NotificationStar        = "star"
	NotificationBoost       = "boost"
	NotificationDeposit     = "deposit"
)

type Notification struct {
	ID          string            `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AccountID   string            `gorm:"type:varchar(36);index;not null" json:"account_id"` // recipient
	ActorID     string            `gorm:"type:varchar(36)" json:"actor_id,omitempty"`
	PromotionID *string           `gorm:"type:varchar(36)" json:"promotion_id,omitempty"`
	Type        string            `gorm:"type:varchar(32);not null" json:"type"`
	Title       string            `json:"title"`
	Message     string            `gorm:"type:text" json:"message"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty"`
	Read        bool              `gorm:"column:is_read;not null;default:false;index" json:"read"`
	CreatedAt   time.Time         `gorm:"autoCreateTime;index" json:"created_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	ensureID(&n.ID)
	return nil
}
