package services

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"promoverse/config"
	"promoverse/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newBoostService(t *testing.T, db *gorm.DB, rawTiers string, notifier Notifier) *BoostService {
	t.Helper()
	tiers, err := ParseBoostTiers(rawTiers)
	require.NoError(t, err)
	achievements := NewAchievementService(db, nil, notifier)
	return NewBoostService(db, nil, tiers, achievements, notifier)
}

func promotionLevel(t *testing.T, db *gorm.DB, id string) int {
	t.Helper()
	var p models.Promotion
	require.NoError(t, db.First(&p, "id = ?", id).Error)
	return p.BoostLevel
}

func TestParseBoostTiers(t *testing.T) {
	tiers, err := ParseBoostTiers(config.DefaultBoostTiers)
	require.NoError(t, err)
	require.Len(t, tiers, 5)
	require.Equal(t, 1, tiers[0].Level)
	require.Equal(t, int64(25), tiers[0].Cost)
	require.Equal(t, "1.5", tiers[0].Multiplier.String())
	require.Equal(t, int64(500), tiers[4].Cost)
	require.Equal(t, "5", tiers[4].Multiplier.String())

	for _, bad := range []string{"", "25", "0:1", "25:abc", "50:2,25:3", "25:2,50:1", "25:-1"} {
		_, err := ParseBoostTiers(bad)
		require.Error(t, err, bad)
	}
}

func TestBoostTwiceAtSameLevel(t *testing.T) {
	db := newTestDB(t)
	boosts := newBoostService(t, db, config.DefaultBoostTiers, nil)
	ctx := context.Background()
	owner := seedAccount(t, db, "owner", 100)
	promo := seedPromotion(t, db, owner)

	res, err := boosts.Boost(ctx, promo.ID, owner, 2)
	require.NoError(t, err)
	require.Equal(t, 2, res.NewLevel)
	require.Equal(t, int64(50), res.RemainingBalance)

	// 50 >= 50 so the repeat purchase goes through
	res, err = boosts.Boost(ctx, promo.ID, owner, 2)
	require.NoError(t, err)
	require.Equal(t, int64(0), res.RemainingBalance)

	_, err = boosts.Boost(ctx, promo.ID, owner, 2)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.Equal(t, int64(0), balanceOf(t, db, owner))
	require.Equal(t, 2, promotionLevel(t, db, promo.ID))
	require.Equal(t, int64(2), countEntries(t, db, owner, models.LedgerKindBoostSpend))
}

func TestBoostInsufficientFundsLeavesNoTrace(t *testing.T) {
	db := newTestDB(t)
	boosts := newBoostService(t, db, "40:1.5,60:2", nil)
	ctx := context.Background()
	owner := seedAccount(t, db, "owner", 100)
	promo := seedPromotion(t, db, owner)

	res, err := boosts.Boost(ctx, promo.ID, owner, 2)
	require.NoError(t, err)
	require.Equal(t, int64(40), res.RemainingBalance)

	before := promotionLevel(t, db, promo.ID)
	_, err = boosts.Boost(ctx, promo.ID, owner, 2)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.Equal(t, int64(40), balanceOf(t, db, owner))
	require.Equal(t, before, promotionLevel(t, db, promo.ID))
	require.Equal(t, int64(1), countEntries(t, db, owner, models.LedgerKindBoostSpend))

	fresh := seedPromotion(t, db, owner)
	_, err = boosts.Boost(ctx, fresh.ID, owner, 2)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.Equal(t, 0, promotionLevel(t, db, fresh.ID))

	var p models.Promotion
	require.NoError(t, db.First(&p, "id = ?", fresh.ID).Error)
	require.Nil(t, p.BoostedAt)
}

func TestBoostValidation(t *testing.T) {
	db := newTestDB(t)
	boosts := newBoostService(t, db, config.DefaultBoostTiers, nil)
	ctx := context.Background()
	owner := seedAccount(t, db, "owner", 1000)
	promo := seedPromotion(t, db, owner)

	for _, level := range []int{0, -1, 6} {
		_, err := boosts.Boost(ctx, promo.ID, owner, level)
		require.ErrorIs(t, err, ErrInvalidLevel, "level %d", level)
	}
	_, err := boosts.Boost(ctx, "missing", owner, 1)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = boosts.Boost(ctx, promo.ID, "missing", 1)
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, int64(1000), balanceOf(t, db, owner))

	_, err = boosts.Boost(ctx, promo.ID, owner, 3)
	require.NoError(t, err)
	_, err = boosts.Boost(ctx, promo.ID, owner, 1)
	require.ErrorIs(t, err, ErrInvalidLevel)
	require.Equal(t, 3, promotionLevel(t, db, promo.ID))
	require.Equal(t, int64(900), balanceOf(t, db, owner))
}

func TestBoostRefreshesTimestampAndNotifiesOwner(t *testing.T) {
	db := newTestDB(t)
	rec := &recorder{}
	boosts := newBoostService(t, db, config.DefaultBoostTiers, rec)
	ctx := context.Background()
	owner := seedAccount(t, db, "owner", 0)
	fan := seedAccount(t, db, "fan", 100)
	promo := seedPromotion(t, db, owner)

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	boosts.now = fixedClock(t0)
	_, err := boosts.Boost(ctx, promo.ID, fan, 1)
	require.NoError(t, err)

	boosts.now = fixedClock(t0.Add(time.Hour))
	res, err := boosts.Boost(ctx, promo.ID, fan, 1)
	require.NoError(t, err)
	require.Equal(t, t0.Add(time.Hour), res.BoostedAt)

	var p models.Promotion
	require.NoError(t, db.First(&p, "id = ?", promo.ID).Error)
	require.NotNil(t, p.BoostedAt)
	require.True(t, p.BoostedAt.Equal(t0.Add(time.Hour)))

	sent := rec.ofType(models.NotificationBoost)
	require.Len(t, sent, 2)
	require.Equal(t, owner, sent[0].AccountID)
	require.Equal(t, fan, sent[0].ActorID)
	require.Equal(t, int64(0), balanceOf(t, db, owner))
}

func TestConcurrentBoostsNeverOverdraw(t *testing.T) {
	db := newPooledTestDB(t)
	boosts := newBoostService(t, db, config.DefaultBoostTiers, nil)
	owner := seedAccount(t, db, "owner", 100)

	promos := make([]*models.Promotion, 10)
	for i := range promos {
		promos[i] = seedPromotion(t, db, owner)
	}

	var wg sync.WaitGroup
	var ok atomic.Int64
	for _, p := range promos {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := boosts.Boost(context.Background(), id, owner, 1)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrInsufficientFunds):
			default:
				t.Errorf("boost %s: %v", id, err)
			}
		}(p.ID)
	}
	wg.Wait()

	require.Equal(t, int64(4), ok.Load())
	require.Equal(t, int64(0), balanceOf(t, db, owner))

	var boosted int64
	require.NoError(t, db.Model(&models.Promotion{}).Where("boost_level > 0").Count(&boosted).Error)
	require.Equal(t, ok.Load(), boosted, "every spend has exactly one boosted promotion")
	require.Equal(t, ok.Load(), countEntries(t, db, owner, models.LedgerKindBoostSpend))
}

func TestDeboost(t *testing.T) {
	db := newTestDB(t)
	boosts := newBoostService(t, db, config.DefaultBoostTiers, nil)
	ctx := context.Background()
	owner := seedAccount(t, db, "owner", 100)
	promo := seedPromotion(t, db, owner)

	_, err := boosts.Boost(ctx, promo.ID, owner, 3)
	require.NoError(t, err)
	require.NoError(t, boosts.Deboost(ctx, promo.ID))
	require.Equal(t, 0, promotionLevel(t, db, promo.ID))
	require.Equal(t, int64(0), balanceOf(t, db, owner), "deboost does not refund")
	require.ErrorIs(t, boosts.Deboost(ctx, "missing"), ErrNotFound)

	// nothing was refunded, so even the cheapest tier is out of reach
	_, err = boosts.Boost(ctx, promo.ID, owner, 1)
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestBoostTierLookup(t *testing.T) {
	db := newTestDB(t)
	boosts := newBoostService(t, db, config.DefaultBoostTiers, nil)
	require.Equal(t, 5, boosts.MaxLevel())
	for i, tier := range boosts.Tiers() {
		got, err := boosts.Tier(i + 1)
		require.NoError(t, err)
		require.Equal(t, tier.Cost, got.Cost, strconv.Itoa(i+1))
	}
	_, err := boosts.Tier(6)
	require.ErrorIs(t, err, ErrInvalidLevel)
}

func TestBoostRollsBackDebitWhenPromotionWriteFails(t *testing.T) {
	db := newTestDB(t)
	boosts := newBoostService(t, db, config.DefaultBoostTiers, nil)
	owner := seedAccount(t, db, "owner", 100)
	promo := seedPromotion(t, db, owner)

	require.NoError(t, db.Callback().Update().Before("gorm:update").Register("test:fail_promotion_write", func(tx *gorm.DB) {
		if tx.Statement.Schema != nil && tx.Statement.Schema.Table == "promotions" {
			tx.AddError(errors.New("disk full"))
		}
	}))

	_, err := boosts.Boost(context.Background(), promo.ID, owner, 2)
	require.ErrorIs(t, err, ErrStoreFailure)

	require.Equal(t, int64(100), balanceOf(t, db, owner))
	require.Zero(t, countEntries(t, db, owner, models.LedgerKindBoostSpend))
	require.Equal(t, 0, promotionLevel(t, db, promo.ID))
}

func TestBoostLosingToConcurrentHigherBoostChargesNothing(t *testing.T) {
	db := newTestDB(t)
	boosts := newBoostService(t, db, config.DefaultBoostTiers, nil)
	owner := seedAccount(t, db, "owner", 100)
	promo := seedPromotion(t, db, owner)

	// Another buyer's level 3 commits right after our level check read the old level.
	fired := false
	require.NoError(t, db.Callback().Query().After("gorm:query").Register("test:competing_boost", func(tx *gorm.DB) {
		if fired || tx.Statement.Schema == nil || tx.Statement.Schema.Table != "promotions" {
			return
		}
		fired = true
		tx.AddError(db.Exec("UPDATE promotions SET boost_level = 3 WHERE id = ?", promo.ID).Error)
	}))

	_, err := boosts.Boost(context.Background(), promo.ID, owner, 2)
	require.True(t, fired)
	require.ErrorIs(t, err, ErrInvalidLevel)

	require.Equal(t, int64(100), balanceOf(t, db, owner))
	require.Zero(t, countEntries(t, db, owner, models.LedgerKindBoostSpend))
	require.Equal(t, 3, promotionLevel(t, db, promo.ID))
}
