// services/achievement.go
package services

import (
	"context"
	"fmt"
	"slices"
	"time"

	"promoverse/logger"
	"promoverse/metrics"
	"promoverse/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AchievementCategory string

const (
	CategoryVerse     AchievementCategory = "verse"
	CategoryPromotion AchievementCategory = "promotion"
	CategoryStar      AchievementCategory = "star"
	CategoryBoost     AchievementCategory = "boost"
)

// AchievementDefinition is one static goal. Badge, when set, is granted on completion.
type AchievementDefinition struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Category    AchievementCategory `json:"category"`
	Threshold   int64               `json:"threshold"`
	Points      int64               `json:"points"`
	Badge       string              `json:"badge,omitempty"`
}

var defaultAchievements = []AchievementDefinition{
	{ID: "verse-pioneer", Title: "Verse Pioneer", Description: "Post in your first verse", Category: CategoryVerse, Threshold: 1, Points: 100, Badge: "verse-pioneer"},
	{ID: "verse-master", Title: "Verse Master", Description: "Post across 10 different verses", Category: CategoryVerse, Threshold: 10, Points: 500, Badge: "verse-master"},
	{ID: "promotion-novice", Title: "Promotion Novice", Description: "Create your first promotion", Category: CategoryPromotion, Threshold: 1, Points: 50, Badge: "promotion-novice"},
	{ID: "promotion-expert", Title: "Promotion Expert", Description: "Create 50 promotions", Category: CategoryPromotion, Threshold: 50, Points: 1000, Badge: "promotion-expert"},
	{ID: "social-butterfly", Title: "Social Butterfly", Description: "Receive 100 stars", Category: CategoryStar, Threshold: 100, Points: 300, Badge: "social-butterfly"},
	{ID: "boost-champion", Title: "Boost Champion", Description: "Boost promotions 50 times", Category: CategoryBoost, Threshold: 50, Points: 800, Badge: "boost-champion"},
}

// DefaultAchievements returns a copy of the built-in table.
func DefaultAchievements() []AchievementDefinition {
	return slices.Clone(defaultAchievements)
}

type RankTier struct {
	Name      string `json:"name"`
	MinPoints int64  `json:"min_points"`
}

// ascending by MinPoints
var cosmicRanks = []RankTier{
	{Name: "Novice", MinPoints: 0},
	{Name: "Explorer", MinPoints: 100},
	{Name: "Stargazer", MinPoints: 500},
	{Name: "Cosmic Pioneer", MinPoints: 1000},
	{Name: "Galactic Master", MinPoints: 5000},
}

func CosmicRanks() []RankTier {
	return slices.Clone(cosmicRanks)
}

// RankFor maps cosmic points to the highest rank reached.
func RankFor(points int64) string {
	name := cosmicRanks[0].Name
	for _, r := range cosmicRanks {
		if points >= r.MinPoints {
			name = r.Name
		}
	}
	return name
}

// Metrics are the activity counts achievements are measured against.
type Metrics struct {
	Verses     int64 `json:"verses"`
	Promotions int64 `json:"promotions"`
	Stars      int64 `json:"stars"`
	Boosts     int64 `json:"boosts"`
}

func (m Metrics) Value(c AchievementCategory) int64 {
	switch c {
	case CategoryVerse:
		return m.Verses
	case CategoryPromotion:
		return m.Promotions
	case CategoryStar:
		return m.Stars
	case CategoryBoost:
		return m.Boosts
	}
	return 0
}

type ProgressView struct {
	AchievementDefinition
	Current     int64      `json:"current"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// AchievementService is the only writer of cosmic points, cosmic rank and badges.
type AchievementService struct {
	DB       *gorm.DB
	Log      *logger.Logger
	Notifier Notifier

	defs []AchievementDefinition
	now  func() time.Time
}

func NewAchievementService(db *gorm.DB, log *logger.Logger, notifier Notifier) *AchievementService {
	if log == nil {
		log = logger.Nop()
	}
	return &AchievementService{
		DB:       db,
		Log:      log,
		Notifier: notifier,
		defs:     DefaultAchievements(),
		now:      time.Now,
	}
}

func (s *AchievementService) Definitions() []AchievementDefinition {
	return slices.Clone(s.defs)
}

// EvaluateAccount recomputes metrics from the store and evaluates them.
func (s *AchievementService) EvaluateAccount(ctx context.Context, accountID string) ([]AchievementDefinition, error) {
	m, err := s.MetricsFor(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.Evaluate(ctx, accountID, m)
}

// Evaluate records progress for every definition and completes those whose threshold
// is met. A definition completes at most once per account; repeating a call with the
// same metrics changes nothing.
func (s *AchievementService) Evaluate(ctx context.Context, accountID string, m Metrics) ([]AchievementDefinition, error) {
	var newly []AchievementDefinition
	var rank string
	now := s.now()

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := accountExists(tx, accountID); err != nil {
			return err
		}

		for _, def := range s.defs {
			current := m.Value(def.Category)

			seed := models.AchievementProgress{AccountID: accountID, AchievementID: def.ID, Current: current}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
				return storeErr(err)
			}
			if err := tx.Model(&models.AchievementProgress{}).
				Where("account_id = ? AND achievement_id = ?", accountID, def.ID).
				Update("current_value", current).Error; err != nil {
				return storeErr(err)
			}
			if current < def.Threshold {
				continue
			}

			// only the caller that flips completed gets to award
			res := tx.Model(&models.AchievementProgress{}).
				Where("account_id = ? AND achievement_id = ? AND completed = ?", accountID, def.ID, false).
				Updates(map[string]interface{}{"completed": true, "completed_at": now})
			if res.Error != nil {
				return storeErr(res.Error)
			}
			if res.RowsAffected == 0 {
				continue
			}

			if err := tx.Model(&models.Account{}).
				Where("id = ?", accountID).
				Update("cosmic_points", gorm.Expr("cosmic_points + ?", def.Points)).Error; err != nil {
				return storeErr(err)
			}
			if def.Badge != "" {
				badge := models.AccountBadge{AccountID: accountID, Badge: def.Badge, AchievementID: def.ID}
				if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&badge).Error; err != nil {
					return storeErr(err)
				}
			}
			newly = append(newly, def)
		}

		if len(newly) == 0 {
			return nil
		}
		var acct models.Account
		if err := tx.Select("id", "cosmic_points").First(&acct, "id = ?", accountID).Error; err != nil {
			return notFoundOr(err)
		}
		rank = RankFor(acct.CosmicPoints)
		return storeErr(tx.Model(&models.Account{}).Where("id = ?", accountID).Update("cosmic_rank", rank).Error)
	})
	if err != nil {
		return nil, storeErr(err)
	}

	for _, def := range newly {
		metrics.AchievementsAwarded.WithLabelValues(def.ID).Inc()
		s.Log.Info("🎖️ [Achievements] completed", "account_id", accountID, "achievement", def.ID, "points", def.Points, "rank", rank)
		notifyAfterCommit(ctx, s.Notifier, s.Log, models.Notification{
			AccountID: accountID,
			Type:      models.NotificationBadgeEarned,
			Title:     "Achievement unlocked",
			Message:   fmt.Sprintf("🎉 You earned: '%s' (+%d cosmic points)", def.Title, def.Points),
			Metadata: map[string]interface{}{
				"achievement_id": def.ID,
				"badge":          def.Badge,
				"points":         def.Points,
				"rank":           rank,
			},
		})
	}
	return newly, nil
}

// MetricsFor counts an account's activity from authoritative rows.
func (s *AchievementService) MetricsFor(ctx context.Context, accountID string) (Metrics, error) {
	db := s.DB.WithContext(ctx)
	if err := accountExists(db, accountID); err != nil {
		return Metrics{}, err
	}

	var m Metrics
	if err := db.Raw(`SELECT COUNT(DISTINCT pv.verse) FROM promotion_verses pv
		JOIN promotions p ON p.id = pv.promotion_id
		WHERE p.account_id = ?`, accountID).Scan(&m.Verses).Error; err != nil {
		return Metrics{}, storeErr(err)
	}
	if err := db.Model(&models.Promotion{}).Where("account_id = ?", accountID).Count(&m.Promotions).Error; err != nil {
		return Metrics{}, storeErr(err)
	}
	if err := db.Raw(`SELECT COUNT(*) FROM stars s
		JOIN promotions p ON p.id = s.promotion_id
		WHERE p.account_id = ?`, accountID).Scan(&m.Stars).Error; err != nil {
		return Metrics{}, storeErr(err)
	}
	if err := db.Model(&models.LedgerEntry{}).
		Where("account_id = ? AND kind = ?", accountID, models.LedgerKindBoostSpend).
		Count(&m.Boosts).Error; err != nil {
		return Metrics{}, storeErr(err)
	}
	return m, nil
}

// Progress lists every definition with the account's standing against it.
func (s *AchievementService) Progress(ctx context.Context, accountID string) ([]ProgressView, Metrics, error) {
	m, err := s.MetricsFor(ctx, accountID)
	if err != nil {
		return nil, Metrics{}, err
	}

	var rows []models.AchievementProgress
	if err := s.DB.WithContext(ctx).Where("account_id = ?", accountID).Find(&rows).Error; err != nil {
		return nil, Metrics{}, storeErr(err)
	}
	byID := make(map[string]models.AchievementProgress, len(rows))
	for _, r := range rows {
		byID[r.AchievementID] = r
	}

	out := make([]ProgressView, 0, len(s.defs))
	for _, def := range s.defs {
		v := ProgressView{AchievementDefinition: def, Current: m.Value(def.Category)}
		if r, ok := byID[def.ID]; ok && r.Completed {
			v.Completed = true
			v.CompletedAt = r.CompletedAt
		}
		out = append(out, v)
	}
	return out, m, nil
}

// reevaluate runs EvaluateAccount after a committed change and only logs failures.
func (s *AchievementService) reevaluate(ctx context.Context, accountID string) {
	if s == nil {
		return
	}
	if _, err := s.EvaluateAccount(ctx, accountID); err != nil {
		s.Log.Warn("⚠️ [Achievements] re-check failed", "account_id", accountID, "error", err)
	}
}
