// services/trending.go
package services

import (
	"context"
	"math"
	"sort"
	"time"

	"promoverse/logger"
	"promoverse/metrics"
	"promoverse/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Signals are the engagement inputs of one promotion.
type Signals struct {
	ID        string
	Likes     int64
	Views     int64
	Boosted   bool
	CreatedAt time.Time
}

type Ranked struct {
	Signals
	Score        float64
	DisplayScore string // two decimals
}

// Ranker scores promotions:
//
//	(likes*LikeWeight + views*ViewWeight + boosted?BoostBonus:0) / max(1, hours since creation)
//
// Equal scores order newer first, then by ID.
type Ranker struct {
	LikeWeight float64
	ViewWeight float64
	BoostBonus float64
}

func DefaultRanker() Ranker {
	return Ranker{LikeWeight: 3, ViewWeight: 1, BoostBonus: 50}
}

func (r Ranker) Score(s Signals, now time.Time) float64 {
	raw := float64(s.Likes)*r.LikeWeight + float64(s.Views)*r.ViewWeight
	if s.Boosted {
		raw += r.BoostBonus
	}
	hours := math.Max(1, now.Sub(s.CreatedAt).Hours())
	return raw / hours
}

// Rank scores every item at now and returns them best first. The input is not modified.
func (r Ranker) Rank(items []Signals, now time.Time) []Ranked {
	out := make([]Ranked, len(items))
	for i, s := range items {
		score := r.Score(s, now)
		out[i] = Ranked{
			Signals:      s,
			Score:        score,
			DisplayScore: decimal.NewFromFloat(score).StringFixed(2),
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out
}

type TrendingQuery struct {
	Verse    string
	Category string
	Limit    int
}

type TrendingItem struct {
	Promotion    models.Promotion `json:"promotion"`
	Score        float64          `json:"score"`
	DisplayScore string           `json:"display_score"`
	Multiplier   string           `json:"multiplier,omitempty"`
}

// TrendingService loads published promotions and ranks them on every call.
type TrendingService struct {
	DB     *gorm.DB
	Log    *logger.Logger
	Ranker Ranker
	Boosts *BoostService

	now func() time.Time
}

func NewTrendingService(db *gorm.DB, log *logger.Logger, boosts *BoostService) *TrendingService {
	if log == nil {
		log = logger.Nop()
	}
	return &TrendingService{DB: db, Log: log, Ranker: DefaultRanker(), Boosts: boosts, now: time.Now}
}

func (s *TrendingService) Trending(ctx context.Context, q TrendingQuery) ([]TrendingItem, error) {
	start := time.Now()
	defer func() { metrics.TrendingRankDuration.Observe(time.Since(start).Seconds()) }()

	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}

	db := s.DB.WithContext(ctx).
		Model(&models.Promotion{}).
		Where("promotions.status = ? AND promotions.flagged = ?", models.PromotionStatusPublished, false)
	if q.Category != "" {
		db = db.Where("promotions.category = ?", normalizeVerse(q.Category))
	}
	if q.Verse != "" {
		db = db.Where("EXISTS (SELECT 1 FROM promotion_verses pv WHERE pv.promotion_id = promotions.id AND pv.verse = ?)", normalizeVerse(q.Verse))
	}

	var promos []models.Promotion
	if err := db.Preload("Verses").Preload("Analytics").Find(&promos).Error; err != nil {
		return nil, storeErr(err)
	}

	byID := make(map[string]models.Promotion, len(promos))
	signals := make([]Signals, 0, len(promos))
	for _, p := range promos {
		byID[p.ID] = p
		var views int64
		if p.Analytics != nil {
			views = p.Analytics.Views
		}
		signals = append(signals, Signals{
			ID:        p.ID,
			Likes:     p.StarCount,
			Views:     views,
			Boosted:   p.BoostLevel > 0,
			CreatedAt: p.CreatedAt,
		})
	}

	ranked := s.Ranker.Rank(signals, s.now())
	if len(ranked) > q.Limit {
		ranked = ranked[:q.Limit]
	}

	out := make([]TrendingItem, 0, len(ranked))
	for _, r := range ranked {
		item := TrendingItem{Promotion: byID[r.ID], Score: r.Score, DisplayScore: r.DisplayScore}
		if s.Boosts != nil && item.Promotion.BoostLevel > 0 {
			if tier, err := s.Boosts.Tier(item.Promotion.BoostLevel); err == nil {
				item.Multiplier = tier.Multiplier.String()
			}
		}
		out = append(out, item)
	}
	return out, nil
}
