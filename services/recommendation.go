// services/recommendation.go
package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"promoverse/logger"
	"promoverse/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	defaultRecommendations = 10
	maxRecommendations     = 50
	// candidates considered per call, newest first
	recommendationPool = 50
)

// Preferences is what an account's stars and own promotions say about its taste.
// Topics are verse keys and categories; Engaged holds promotions it starred.
type Preferences struct {
	Verses  map[string]struct{}
	Topics  map[string]struct{}
	Engaged map[string]struct{}
}

func (p Preferences) empty() bool {
	return len(p.Verses) == 0 && len(p.Topics) == 0
}

func (p *Preferences) learn(promo models.Promotion) {
	for _, v := range promo.VerseKeys() {
		p.Verses[v] = struct{}{}
		p.Topics[v] = struct{}{}
	}
	if promo.Category != "" {
		p.Topics[promo.Category] = struct{}{}
	}
}

// topics are the tags a promotion is matched on: its verses plus its category.
func topics(p models.Promotion) []string {
	out := p.VerseKeys()
	if p.Category != "" {
		out = append(out, p.Category)
	}
	return out
}

type Recommendation struct {
	Promotion    models.Promotion `json:"promotion"`
	Score        float64          `json:"relevance_score"`
	DisplayScore string           `json:"display_score"`
	MatchReasons []string         `json:"match_reasons"`
}

// ScoreRecommendation rates one promotion against prefs:
//
//	0.4 if any verse is preferred
//	+ 0.3 * share of its topics the account is interested in
//	+ 0.2 if the account starred it
//	+ 0.1 * boost level
func ScoreRecommendation(p models.Promotion, prefs Preferences) (float64, []string) {
	var score float64
	var reasons []string

	for _, v := range p.VerseKeys() {
		if _, ok := prefs.Verses[v]; ok {
			score += 0.4
			reasons = append(reasons, "Matches your preferred verse: "+v)
			break
		}
	}

	all := topics(p)
	var matched []string
	for _, t := range all {
		if _, ok := prefs.Topics[t]; ok {
			matched = append(matched, t)
		}
	}
	if len(matched) > 0 {
		score += 0.3 * float64(len(matched)) / float64(len(all))
		reasons = append(reasons, "Matches your interests: "+strings.Join(matched, ", "))
	}

	if _, ok := prefs.Engaged[p.ID]; ok {
		score += 0.2
		reasons = append(reasons, "You have previously engaged with this promotion")
	}

	if p.BoostLevel > 0 {
		score += 0.1 * float64(p.BoostLevel)
		reasons = append(reasons, fmt.Sprintf("Boosted to level %d", p.BoostLevel))
	}
	return score, reasons
}

// RankRecommendations scores candidates and returns the best limit of them.
// Ties go to the newer promotion, then the lower ID.
func RankRecommendations(candidates []models.Promotion, prefs Preferences, limit int) []Recommendation {
	out := make([]Recommendation, 0, len(candidates))
	for _, p := range candidates {
		score, reasons := ScoreRecommendation(p, prefs)
		if score <= 0 {
			continue
		}
		out = append(out, Recommendation{
			Promotion:    p,
			Score:        score,
			DisplayScore: decimal.NewFromFloat(score).StringFixed(2),
			MatchReasons: reasons,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Promotion.CreatedAt.Equal(b.Promotion.CreatedAt) {
			return a.Promotion.CreatedAt.After(b.Promotion.CreatedAt)
		}
		return a.Promotion.ID < b.Promotion.ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// RecommendationService suggests other accounts' published promotions that
// match what the caller stars and posts.
type RecommendationService struct {
	DB  *gorm.DB
	Log *logger.Logger
}

func NewRecommendationService(db *gorm.DB, log *logger.Logger) *RecommendationService {
	if log == nil {
		log = logger.Nop()
	}
	return &RecommendationService{DB: db, Log: log}
}

// Preferences collects the verses and categories of the promotions accountID
// starred or owns.
func (s *RecommendationService) Preferences(ctx context.Context, accountID string) (Preferences, error) {
	prefs := Preferences{
		Verses:  make(map[string]struct{}),
		Topics:  make(map[string]struct{}),
		Engaged: make(map[string]struct{}),
	}
	db := s.DB.WithContext(ctx)

	var acct models.Account
	if err := db.Select("id").First(&acct, "id = ?", accountID).Error; err != nil {
		return prefs, notFoundOr(err)
	}

	var starred []models.Promotion
	if err := db.Preload("Verses").
		Joins("JOIN stars ON stars.promotion_id = promotions.id").
		Where("stars.account_id = ?", accountID).
		Find(&starred).Error; err != nil {
		return prefs, storeErr(err)
	}
	for _, p := range starred {
		prefs.learn(p)
		prefs.Engaged[p.ID] = struct{}{}
	}

	var own []models.Promotion
	if err := db.Preload("Verses").Where("account_id = ?", accountID).Find(&own).Error; err != nil {
		return prefs, storeErr(err)
	}
	for _, p := range own {
		prefs.learn(p)
	}
	return prefs, nil
}

// Recommend returns up to limit promotions for accountID, best first. The
// caller's own and unpublished or flagged promotions are never returned.
func (s *RecommendationService) Recommend(ctx context.Context, accountID string, limit int) ([]Recommendation, error) {
	if limit <= 0 {
		limit = defaultRecommendations
	}
	if limit > maxRecommendations {
		limit = maxRecommendations
	}

	prefs, err := s.Preferences(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if prefs.empty() {
		return []Recommendation{}, nil
	}

	keys := make([]string, 0, len(prefs.Topics))
	for k := range prefs.Topics {
		keys = append(keys, k)
	}

	var candidates []models.Promotion
	err = s.DB.WithContext(ctx).
		Preload("Verses").
		Where("promotions.status = ? AND promotions.flagged = ? AND promotions.account_id <> ?", models.PromotionStatusPublished, false, accountID).
		Where("promotions.category IN ? OR EXISTS (SELECT 1 FROM promotion_verses pv WHERE pv.promotion_id = promotions.id AND pv.verse IN ?)", keys, keys).
		Order("promotions.created_at DESC").
		Order("promotions.id").
		Limit(recommendationPool).
		Find(&candidates).Error
	if err != nil {
		return nil, storeErr(err)
	}

	recs := RankRecommendations(candidates, prefs, limit)
	s.Log.Debug("🎯 [Recommend] ranked", "account_id", accountID, "candidates", len(candidates), "returned", len(recs))
	return recs, nil
}
