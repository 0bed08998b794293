package services

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"promoverse/models"

	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestGetAnalyticsCreatesZeroedRecord(t *testing.T) {
	db := newTestDB(t)
	analytics := NewAnalyticsService(db, nil)
	owner := seedAccount(t, db, "owner", 0)
	promo := seedPromotion(t, db, owner)

	snap, err := analytics.GetAnalytics(context.Background(), promo.ID)
	require.NoError(t, err)
	require.Zero(t, snap.Views)
	require.Equal(t, "0%", snap.EngagementRate)
	require.Equal(t, "N/A", snap.BoostEffectiveness)
	require.Empty(t, snap.ByVerse)

	var count int64
	require.NoError(t, db.Model(&models.PromotionAnalytics{}).Where("promotion_id = ?", promo.ID).Count(&count).Error)
	require.Equal(t, int64(1), count)

	_, err = analytics.GetAnalytics(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRecordEventCountsEveryCall(t *testing.T) {
	db := newTestDB(t)
	analytics := NewAnalyticsService(db, nil)
	ctx := context.Background()
	owner := seedAccount(t, db, "owner", 0)
	promo := seedPromotion(t, db, owner)

	nyc := &Location{Lat: 40.71277, Lon: -74.00597}
	for i := 0; i < 2; i++ {
		_, err := analytics.RecordEvent(ctx, promo.ID, EventInput{Kind: EventView, Verse: strPtr("Music"), Location: nyc})
		require.NoError(t, err)
	}
	counters, err := analytics.RecordEvent(ctx, promo.ID, EventInput{Kind: EventView})
	require.NoError(t, err)
	require.Equal(t, int64(3), counters.Views)

	counters, err = analytics.RecordEvent(ctx, promo.ID, EventInput{Kind: EventClick, Verse: strPtr("music")})
	require.NoError(t, err)
	require.Equal(t, Counters{Views: 3, Clicks: 1}, counters)

	snap, err := analytics.GetAnalytics(ctx, promo.ID)
	require.NoError(t, err)
	require.Equal(t, "33.3%", snap.EngagementRate)
	require.Equal(t, []BreakdownCount{{Key: "music", Views: 2, Clicks: 1}}, snap.ByVerse)
	require.Equal(t, []BreakdownCount{{Key: "40.71,-74.01", Views: 2}}, snap.ByLocation)
}

func TestRecordEventValidation(t *testing.T) {
	db := newTestDB(t)
	analytics := NewAnalyticsService(db, nil)
	ctx := context.Background()
	owner := seedAccount(t, db, "owner", 0)
	promo := seedPromotion(t, db, owner)

	cases := []EventInput{
		{Kind: "share"},
		{Kind: EventView, Verse: strPtr("  !!! ")},
		{Kind: EventView, Location: &Location{Lat: 91, Lon: 0}},
		{Kind: EventClick, Location: &Location{Lat: 0, Lon: -180.5}},
		{Kind: EventClick, Location: &Location{Lat: math.NaN(), Lon: 0}},
	}
	for _, in := range cases {
		_, err := analytics.RecordEvent(ctx, promo.ID, in)
		require.ErrorIs(t, err, ErrInvalidEvent, "%+v", in)
	}

	_, err := analytics.RecordEvent(ctx, "missing", EventInput{Kind: EventView})
	require.ErrorIs(t, err, ErrNotFound)

	snap, err := analytics.GetAnalytics(ctx, promo.ID)
	require.NoError(t, err)
	require.Zero(t, snap.Views+snap.Clicks)
}

func TestRecordEventConcurrentIncrements(t *testing.T) {
	db := newTestDB(t)
	analytics := NewAnalyticsService(db, nil)
	owner := seedAccount(t, db, "owner", 0)
	promo := seedPromotion(t, db, owner)

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := analytics.RecordEvent(context.Background(), promo.ID, EventInput{Kind: EventView, Verse: strPtr("art")})
			if err != nil {
				t.Errorf("record: %v", err)
			}
		}()
	}
	wg.Wait()

	snap, err := analytics.GetAnalytics(context.Background(), promo.ID)
	require.NoError(t, err)
	require.Equal(t, int64(25), snap.Views)
	require.Equal(t, int64(25), snap.ByVerse[0].Views)
}

func TestDerivedRates(t *testing.T) {
	require.Equal(t, "0%", EngagementRate(0, 5))
	require.Equal(t, "50.0%", EngagementRate(4, 2))
	require.Equal(t, "12.5%", EngagementRate(8, 1))

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	require.Equal(t, "N/A", BoostEffectiveness(100, nil, now))

	fourHours := now.Add(-4 * time.Hour)
	require.Equal(t, "25.0", BoostEffectiveness(100, &fourHours, now))

	justNow := now.Add(-5 * time.Minute)
	require.Equal(t, "100.0", BoostEffectiveness(100, &justNow, now))
}

func TestLocationKey(t *testing.T) {
	require.Equal(t, "40.71,-74.01", Location{Lat: 40.71277, Lon: -74.00597}.Key())
	require.Equal(t, "0.00,0.00", Location{Lat: -0.001, Lon: 0.004}.Key())
}
