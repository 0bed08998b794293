// Package metrics holds the Prometheus collectors for the boost economy.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LedgerEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "promoverse",
		Name:      "ledger_entries_total",
		Help:      "Ledger entries appended, by kind.",
	}, []string{"kind"})

	LedgerRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "promoverse",
		Name:      "ledger_rejections_total",
		Help:      "Debits or credits refused before any write, by reason.",
	}, []string{"reason"})

	Boosts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "promoverse",
		Name:      "boosts_total",
		Help:      "Boost purchases by target level and outcome.",
	}, []string{"level", "outcome"})

	BoostCredits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "promoverse",
		Name:      "boost_credits_spent_total",
		Help:      "Credits debited by successful boosts.",
	})

	AnalyticsEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "promoverse",
		Name:      "analytics_events_total",
		Help:      "Analytics events by kind and outcome.",
	}, []string{"kind", "outcome"})

	AchievementsAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "promoverse",
		Name:      "achievements_awarded_total",
		Help:      "Achievement completions recorded.",
	}, []string{"achievement"})

	TrendingRankDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "promoverse",
		Name:      "trending_rank_seconds",
		Help:      "Time spent loading and ranking the trending feed.",
		Buckets:   prometheus.DefBuckets,
	})

	PromotionsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "promoverse",
		Name:      "scheduled_promotions_published_total",
		Help:      "Scheduled promotions published by the sweep.",
	})

	SyncBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "promoverse",
		Name:      "sync_batches_total",
		Help:      "Background sync batches by worker and outcome.",
	}, []string{"worker", "outcome"})
)
