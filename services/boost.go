// services/boost.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"promoverse/logger"
	"promoverse/metrics"
	"promoverse/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BoostTier prices one boost level. Levels start at 1.
type BoostTier struct {
	Level      int             `json:"level"`
	Cost       int64           `json:"cost"`
	Multiplier decimal.Decimal `json:"multiplier"`
}

// ParseBoostTiers reads "cost:multiplier,cost:multiplier,..." in level order.
// Costs must strictly increase and multipliers must not decrease.
func ParseBoostTiers(raw string) ([]BoostTier, error) {
	var tiers []BoostTier
	for i, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		costStr, multStr, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("boost tier %d: want cost:multiplier, got %q", i+1, part)
		}
		cost, err := strconv.ParseInt(strings.TrimSpace(costStr), 10, 64)
		if err != nil || cost <= 0 {
			return nil, fmt.Errorf("boost tier %d: invalid cost %q", i+1, costStr)
		}
		mult, err := decimal.NewFromString(strings.TrimSpace(multStr))
		if err != nil || !mult.IsPositive() {
			return nil, fmt.Errorf("boost tier %d: invalid multiplier %q", i+1, multStr)
		}
		if n := len(tiers); n > 0 {
			prev := tiers[n-1]
			if cost <= prev.Cost || mult.LessThan(prev.Multiplier) {
				return nil, fmt.Errorf("boost tier %d: table must ascend", i+1)
			}
		}
		tiers = append(tiers, BoostTier{Level: len(tiers) + 1, Cost: cost, Multiplier: mult})
	}
	if len(tiers) == 0 {
		return nil, errors.New("boost tier table is empty")
	}
	return tiers, nil
}

type BoostResult struct {
	PromotionID      string          `json:"promotion_id"`
	NewLevel         int             `json:"new_level"`
	Cost             int64           `json:"cost"`
	Multiplier       decimal.Decimal `json:"multiplier"`
	RemainingBalance int64           `json:"remaining_balance"`
	BoostedAt        time.Time       `json:"boosted_at"`
}

// BoostService sells boost levels. It is the only writer of Promotion.BoostLevel.
//
// Pricing: the full table cost of the requested level is charged every time,
// whatever the current level. Buying the current level again refreshes the boost
// timestamp; asking for a lower level is rejected.
type BoostService struct {
	DB           *gorm.DB
	Log          *logger.Logger
	Achievements *AchievementService
	Notifier     Notifier

	tiers []BoostTier
	now   func() time.Time
}

func NewBoostService(db *gorm.DB, log *logger.Logger, tiers []BoostTier, achievements *AchievementService, notifier Notifier) *BoostService {
	if log == nil {
		log = logger.Nop()
	}
	return &BoostService{
		DB:           db,
		Log:          log,
		Achievements: achievements,
		Notifier:     notifier,
		tiers:        tiers,
		now:          time.Now,
	}
}

func (s *BoostService) Tiers() []BoostTier {
	out := make([]BoostTier, len(s.tiers))
	copy(out, s.tiers)
	return out
}

func (s *BoostService) MaxLevel() int {
	return len(s.tiers)
}

// Tier returns the pricing for level or ErrInvalidLevel.
func (s *BoostService) Tier(level int) (BoostTier, error) {
	if level < 1 || level > len(s.tiers) {
		return BoostTier{}, ErrInvalidLevel
	}
	return s.tiers[level-1], nil
}

// Boost debits the spender and raises the promotion to level in one transaction.
// Either both happen or neither does.
func (s *BoostService) Boost(ctx context.Context, promotionID, accountID string, level int) (*BoostResult, error) {
	tier, err := s.Tier(level)
	if err != nil {
		metrics.Boosts.WithLabelValues(strconv.Itoa(level), "invalid_level").Inc()
		return nil, err
	}

	db := s.DB.WithContext(ctx)
	var promo models.Promotion
	if err := db.Select("id", "account_id", "boost_level").First(&promo, "id = ?", promotionID).Error; err != nil {
		return nil, notFoundOr(err)
	}
	if level < promo.BoostLevel {
		metrics.Boosts.WithLabelValues(strconv.Itoa(level), "downgrade").Inc()
		return nil, ErrInvalidLevel
	}

	now := s.now()
	var entry *models.LedgerEntry
	err = db.Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = debitTx(tx, ledgerWrite{
			AccountID:   accountID,
			Amount:      tier.Cost,
			Kind:        models.LedgerKindBoostSpend,
			Description: fmt.Sprintf("Boost level %d (x%s)", level, tier.Multiplier.String()),
			Reference:   promotionID,
		})
		if err != nil {
			return err
		}

		// a concurrent boost to a higher level wins; this one rolls back
		res := tx.Model(&models.Promotion{}).
			Where("id = ? AND boost_level <= ?", promotionID, level).
			Updates(map[string]interface{}{"boost_level": level, "boosted_at": now})
		if res.Error != nil {
			return storeErr(res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrInvalidLevel
		}
		return nil
	})
	if err != nil {
		metrics.Boosts.WithLabelValues(strconv.Itoa(level), outcomeLabel(err)).Inc()
		return nil, storeErr(err)
	}

	metrics.Boosts.WithLabelValues(strconv.Itoa(level), "ok").Inc()
	metrics.BoostCredits.Add(float64(tier.Cost))
	metrics.LedgerEntries.WithLabelValues(string(entry.Kind)).Inc()
	s.Log.Info("🚀 [Boost] promotion boosted",
		"promotion_id", promotionID,
		"account_id", accountID,
		"level", level,
		"cost", tier.Cost,
		"balance_after", entry.BalanceAfter,
	)

	s.Achievements.reevaluate(ctx, accountID)
	notifyAfterCommit(ctx, s.Notifier, s.Log, models.Notification{
		AccountID:   promo.AccountID,
		ActorID:     accountID,
		PromotionID: &promotionID,
		Type:        models.NotificationBoost,
		Title:       "Your promotion was boosted",
		Message:     fmt.Sprintf("🚀 Someone boosted your post to level %d with %s", level, FormatCredits(tier.Cost)),
		Metadata:    map[string]interface{}{"level": level, "cost": tier.Cost},
	})

	return &BoostResult{
		PromotionID:      promotionID,
		NewLevel:         level,
		Cost:             tier.Cost,
		Multiplier:       tier.Multiplier,
		RemainingBalance: entry.BalanceAfter,
		BoostedAt:        now,
	}, nil
}

// Deboost clears a promotion's boost without refund. Moderation only.
func (s *BoostService) Deboost(ctx context.Context, promotionID string) error {
	res := s.DB.WithContext(ctx).Model(&models.Promotion{}).
		Where("id = ?", promotionID).
		Updates(map[string]interface{}{"boost_level": 0, "boosted_at": nil})
	if res.Error != nil {
		return storeErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	s.Log.Info("🧯 [Boost] promotion deboosted", "promotion_id", promotionID)
	return nil
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidLevel):
		return "invalid_level"
	default:
		return "error"
	}
}
