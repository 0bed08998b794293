// services/analytics.go
package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"promoverse/logger"
	"promoverse/metrics"
	"promoverse/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EventKind string

const (
	EventView  EventKind = "view"
	EventClick EventKind = "click"
)

func (k EventKind) column() (string, bool) {
	switch k {
	case EventView:
		return "views", true
	case EventClick:
		return "clicks", true
	}
	return "", false
}

type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Key buckets a coordinate pair to two decimals (roughly 1km).
func (l Location) Key() string {
	round := func(v float64) float64 { return math.Round(v*100)/100 + 0 }
	return fmt.Sprintf("%.2f,%.2f", round(l.Lat), round(l.Lon))
}

func (l Location) valid() bool {
	if math.IsNaN(l.Lat) || math.IsNaN(l.Lon) {
		return false
	}
	return l.Lat >= -90 && l.Lat <= 90 && l.Lon >= -180 && l.Lon <= 180
}

type EventInput struct {
	Kind     EventKind
	Verse    *string
	Location *Location
}

type Counters struct {
	Views  int64 `json:"views"`
	Clicks int64 `json:"clicks"`
}

type BreakdownCount struct {
	Key    string `json:"key"`
	Views  int64  `json:"views"`
	Clicks int64  `json:"clicks"`
}

type Snapshot struct {
	PromotionID        string           `json:"promotion_id"`
	Views              int64            `json:"views"`
	Clicks             int64            `json:"clicks"`
	EngagementRate     string           `json:"engagement_rate"`
	BoostEffectiveness string           `json:"boost_effectiveness"`
	ByVerse            []BreakdownCount `json:"by_verse"`
	ByLocation         []BreakdownCount `json:"by_location"`
}

// AnalyticsService counts views and clicks. Every increment is a single
// "col = col + 1" statement; counters never go down.
type AnalyticsService struct {
	DB  *gorm.DB
	Log *logger.Logger

	now func() time.Time
}

func NewAnalyticsService(db *gorm.DB, log *logger.Logger) *AnalyticsService {
	if log == nil {
		log = logger.Nop()
	}
	return &AnalyticsService{DB: db, Log: log, now: time.Now}
}

// RecordEvent counts one event. It is not idempotent: two calls count twice.
func (s *AnalyticsService) RecordEvent(ctx context.Context, promotionID string, in EventInput) (Counters, error) {
	col, ok := in.Kind.column()
	if !ok {
		metrics.AnalyticsEvents.WithLabelValues("unknown", "invalid").Inc()
		return Counters{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, in.Kind)
	}
	var verseKey, locationKey string
	if in.Verse != nil {
		if verseKey = normalizeVerse(*in.Verse); verseKey == "" {
			metrics.AnalyticsEvents.WithLabelValues(string(in.Kind), "invalid").Inc()
			return Counters{}, fmt.Errorf("%w: empty verse", ErrInvalidEvent)
		}
	}
	if in.Location != nil {
		if !in.Location.valid() {
			metrics.AnalyticsEvents.WithLabelValues(string(in.Kind), "invalid").Inc()
			return Counters{}, fmt.Errorf("%w: coordinates out of range", ErrInvalidEvent)
		}
		locationKey = in.Location.Key()
	}

	var out Counters
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Promotion{}).Where("id = ?", promotionID).Count(&count).Error; err != nil {
			return storeErr(err)
		}
		if count == 0 {
			return ErrNotFound
		}

		if err := ensureAnalytics(tx, promotionID); err != nil {
			return err
		}
		if err := tx.Model(&models.PromotionAnalytics{}).
			Where("promotion_id = ?", promotionID).
			Update(col, gorm.Expr(col+" + 1")).Error; err != nil {
			return storeErr(err)
		}
		if verseKey != "" {
			if err := bumpBreakdown(tx, promotionID, models.BreakdownVerse, verseKey, col); err != nil {
				return err
			}
		}
		if locationKey != "" {
			if err := bumpBreakdown(tx, promotionID, models.BreakdownLocation, locationKey, col); err != nil {
				return err
			}
		}

		var rec models.PromotionAnalytics
		if err := tx.Where("promotion_id = ?", promotionID).Take(&rec).Error; err != nil {
			return storeErr(err)
		}
		out = Counters{Views: rec.Views, Clicks: rec.Clicks}
		return nil
	})
	if err != nil {
		metrics.AnalyticsEvents.WithLabelValues(string(in.Kind), outcomeLabel(err)).Inc()
		return Counters{}, storeErr(err)
	}
	metrics.AnalyticsEvents.WithLabelValues(string(in.Kind), "ok").Inc()
	return out, nil
}

// GetAnalytics returns counters and derived rates, creating a zeroed record on first access.
func (s *AnalyticsService) GetAnalytics(ctx context.Context, promotionID string) (*Snapshot, error) {
	db := s.DB.WithContext(ctx)

	var promo models.Promotion
	if err := db.Select("id", "boosted_at").First(&promo, "id = ?", promotionID).Error; err != nil {
		return nil, notFoundOr(err)
	}
	if err := ensureAnalytics(db, promotionID); err != nil {
		return nil, err
	}

	var rec models.PromotionAnalytics
	if err := db.Where("promotion_id = ?", promotionID).Take(&rec).Error; err != nil {
		return nil, storeErr(err)
	}
	var rows []models.AnalyticsBreakdown
	if err := db.Where("promotion_id = ?", promotionID).Order("dimension ASC, bucket_key ASC").Find(&rows).Error; err != nil {
		return nil, storeErr(err)
	}

	snap := &Snapshot{
		PromotionID:        promotionID,
		Views:              rec.Views,
		Clicks:             rec.Clicks,
		EngagementRate:     EngagementRate(rec.Views, rec.Clicks),
		BoostEffectiveness: BoostEffectiveness(rec.Views, promo.BoostedAt, s.now()),
		ByVerse:            []BreakdownCount{},
		ByLocation:         []BreakdownCount{},
	}
	for _, r := range rows {
		bc := BreakdownCount{Key: r.Key, Views: r.Views, Clicks: r.Clicks}
		switch r.Dimension {
		case models.BreakdownVerse:
			snap.ByVerse = append(snap.ByVerse, bc)
		case models.BreakdownLocation:
			snap.ByLocation = append(snap.ByLocation, bc)
		}
	}
	return snap, nil
}

// EngagementRate is clicks per view as a percentage, "0%" when there are no views.
func EngagementRate(views, clicks int64) string {
	if views <= 0 {
		return "0%"
	}
	return fmt.Sprintf("%.1f%%", float64(clicks)/float64(views)*100)
}

// BoostEffectiveness is views per hour since the last boost, "N/A" if never boosted.
func BoostEffectiveness(views int64, boostedAt *time.Time, now time.Time) string {
	if boostedAt == nil {
		return "N/A"
	}
	hours := math.Max(1, now.Sub(*boostedAt).Hours())
	return fmt.Sprintf("%.1f", float64(views)/hours)
}

func ensureAnalytics(db *gorm.DB, promotionID string) error {
	rec := models.PromotionAnalytics{PromotionID: promotionID}
	return storeErr(db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rec).Error)
}

func bumpBreakdown(tx *gorm.DB, promotionID, dimension, key, col string) error {
	row := models.AnalyticsBreakdown{PromotionID: promotionID, Dimension: dimension, Key: key}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return storeErr(err)
	}
	return storeErr(tx.Model(&models.AnalyticsBreakdown{}).
		Where("promotion_id = ? AND dimension = ? AND bucket_key = ?", promotionID, dimension, key).
		Update(col, gorm.Expr(col+" + 1")).Error)
}
