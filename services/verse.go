// services/verse.go
package services

import (
	"context"
	"strings"

	"promoverse/logger"
	"promoverse/models"

	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

const maxVerseKeyLen = 64

// normalizeVerse turns a user supplied verse name into its storage key: "Sci-Fi Books!" -> "sci-fi-books".
// An empty result means the name carried nothing usable.
func normalizeVerse(raw string) string {
	key := slug.Make(strings.TrimSpace(raw))
	if len(key) > maxVerseKeyLen {
		key = strings.TrimRight(key[:maxVerseKeyLen], "-")
	}
	return key
}

// normalizeVerses dedupes and drops empties, keeping first-seen order.
func normalizeVerses(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		k := normalizeVerse(r)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

type VerseStats struct {
	Verse           string          `json:"verse"`
	TotalPromotions int64           `json:"total_promotions"`
	TotalViews      int64           `json:"total_views"`
	TotalClicks     int64           `json:"total_clicks"`
	EngagementRate  string          `json:"engagement_rate"`
	ActiveUsers     int64           `json:"active_users"`
	TopCategories   []CategoryCount `json:"top_categories"`
}

type VerseSummary struct {
	Verse      string `json:"verse"`
	Promotions int64  `json:"promotions"`
}

type VerseService struct {
	DB  *gorm.DB
	Log *logger.Logger
}

func NewVerseService(db *gorm.DB, log *logger.Logger) *VerseService {
	if log == nil {
		log = logger.Nop()
	}
	return &VerseService{DB: db, Log: log}
}

// List returns every verse in use with its published promotion count, busiest first.
func (s *VerseService) List(ctx context.Context) ([]VerseSummary, error) {
	var out []VerseSummary
	err := s.DB.WithContext(ctx).
		Table("promotion_verses pv").
		Select("pv.verse AS verse, COUNT(*) AS promotions").
		Joins("JOIN promotions p ON p.id = pv.promotion_id").
		Where("p.status = ?", models.PromotionStatusPublished).
		Group("pv.verse").
		Order("promotions DESC, verse ASC").
		Scan(&out).Error
	if err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

// Stats aggregates the promotions tagged with verse. Unknown verses yield zeroes.
func (s *VerseService) Stats(ctx context.Context, verse string) (*VerseStats, error) {
	key := normalizeVerse(verse)
	if key == "" {
		return nil, ErrNotFound
	}
	db := s.DB.WithContext(ctx)
	inVerse := func() *gorm.DB {
		return db.Table("promotion_verses").Select("promotion_id").Where("verse = ?", key)
	}

	stats := &VerseStats{Verse: key, TopCategories: []CategoryCount{}}

	var agg struct {
		Promotions int64
		Authors    int64
	}
	if err := db.Model(&models.Promotion{}).
		Select("COUNT(*) AS promotions, COUNT(DISTINCT account_id) AS authors").
		Where("id IN (?)", inVerse()).
		Scan(&agg).Error; err != nil {
		return nil, storeErr(err)
	}
	stats.TotalPromotions = agg.Promotions
	stats.ActiveUsers = agg.Authors

	var totals struct {
		Views  int64
		Clicks int64
	}
	if err := db.Model(&models.PromotionAnalytics{}).
		Select("COALESCE(SUM(views), 0) AS views, COALESCE(SUM(clicks), 0) AS clicks").
		Where("promotion_id IN (?)", inVerse()).
		Scan(&totals).Error; err != nil {
		return nil, storeErr(err)
	}
	stats.TotalViews = totals.Views
	stats.TotalClicks = totals.Clicks
	stats.EngagementRate = EngagementRate(totals.Views, totals.Clicks)

	if err := db.Model(&models.Promotion{}).
		Select("category, COUNT(*) AS count").
		Where("id IN (?)", inVerse()).
		Group("category").
		Order("count DESC, category ASC").
		Limit(5).
		Scan(&stats.TopCategories).Error; err != nil {
		return nil, storeErr(err)
	}
	return stats, nil
}
