package models

import "gorm.io/gorm"

// All lists every table in migration order.
func All() []interface{} {
	return []interface{}{
		&Account{},
		&AccountBadge{},
		&LedgerEntry{},
		&Promotion{},
		&PromotionVerse{},
		&Star{},
		&PromotionAnalytics{},
		&AnalyticsBreakdown{},
		&AchievementProgress{},
		&Notification{},
	}
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(All()...)
}
