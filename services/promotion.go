// services/promotion.go
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"promoverse/logger"
	"promoverse/metrics"
	"promoverse/models"

	"gorm.io/gorm"
)

const maxVersesPerPromotion = 10

type CreatePromotionInput struct {
	Content   string
	Category  string
	Verses    []string
	MediaURL  string
	Status    string // draft | scheduled | published, defaults to published
	PublishAt *time.Time
}

type PromotionQuery struct {
	Category string
	Verse    string
	AuthorID string
	Boosted  bool
	Status   string // defaults to published
	Limit    int
	Offset   int
}

type PromotionService struct {
	DB           *gorm.DB
	Log          *logger.Logger
	Achievements *AchievementService

	now func() time.Time
}

func NewPromotionService(db *gorm.DB, log *logger.Logger, achievements *AchievementService) *PromotionService {
	if log == nil {
		log = logger.Nop()
	}
	return &PromotionService{DB: db, Log: log, Achievements: achievements, now: time.Now}
}

// Create stores a promotion with its verses and an empty analytics record.
func (s *PromotionService) Create(ctx context.Context, accountID string, in CreatePromotionInput) (*models.Promotion, error) {
	content := strings.TrimSpace(in.Content)
	category := normalizeVerse(in.Category)
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	if category == "" {
		return nil, fmt.Errorf("%w: category is required", ErrInvalidInput)
	}
	verses := normalizeVerses(in.Verses)
	if len(verses) > maxVersesPerPromotion {
		return nil, fmt.Errorf("%w: at most %d verses", ErrInvalidInput, maxVersesPerPromotion)
	}

	status := in.Status
	if status == "" {
		status = models.PromotionStatusPublished
	}
	var publishAt *time.Time
	switch status {
	case models.PromotionStatusDraft, models.PromotionStatusPublished:
	case models.PromotionStatusScheduled:
		if in.PublishAt == nil || !in.PublishAt.After(s.now()) {
			return nil, fmt.Errorf("%w: publish_at must be in the future", ErrInvalidInput)
		}
		t := in.PublishAt.UTC()
		publishAt = &t
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}

	promo := &models.Promotion{
		AccountID: accountID,
		Content:   content,
		MediaURL:  in.MediaURL,
		Category:  category,
		Status:    status,
		PublishAt: publishAt,
	}
	for _, v := range verses {
		promo.Verses = append(promo.Verses, models.PromotionVerse{Verse: v})
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := accountExists(tx, accountID); err != nil {
			return err
		}
		if err := tx.Create(promo).Error; err != nil {
			return storeErr(err)
		}
		return ensureAnalytics(tx, promo.ID)
	})
	if err != nil {
		return nil, storeErr(err)
	}

	s.Log.Info("📣 [Promotions] created", "promotion_id", promo.ID, "account_id", accountID, "status", status, "verses", len(verses))
	s.Achievements.reevaluate(ctx, accountID)
	return promo, nil
}

func (s *PromotionService) Get(ctx context.Context, id string) (*models.Promotion, error) {
	var promo models.Promotion
	err := s.DB.WithContext(ctx).
		Preload("Verses").
		Preload("Analytics").
		First(&promo, "id = ?", id).Error
	if err != nil {
		return nil, notFoundOr(err)
	}
	return &promo, nil
}

// List returns promotions newest first.
func (s *PromotionService) List(ctx context.Context, q PromotionQuery) ([]models.Promotion, error) {
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	status := q.Status
	if status == "" {
		status = models.PromotionStatusPublished
	}

	db := s.DB.WithContext(ctx).Model(&models.Promotion{}).Where("promotions.status = ?", status)
	if status == models.PromotionStatusPublished {
		db = db.Where("promotions.flagged = ?", false)
	}
	if q.Category != "" {
		db = db.Where("promotions.category = ?", normalizeVerse(q.Category))
	}
	if q.AuthorID != "" {
		db = db.Where("promotions.account_id = ?", q.AuthorID)
	}
	if q.Boosted {
		db = db.Where("promotions.boost_level > 0")
	}
	if q.Verse != "" {
		db = db.Where("EXISTS (SELECT 1 FROM promotion_verses pv WHERE pv.promotion_id = promotions.id AND pv.verse = ?)", normalizeVerse(q.Verse))
	}

	var out []models.Promotion
	if err := db.Preload("Verses").Preload("Analytics").
		Order("promotions.created_at DESC").
		Limit(q.Limit).Offset(q.Offset).
		Find(&out).Error; err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

// SetFlagged hides or restores a promotion. Moderation only.
func (s *PromotionService) SetFlagged(ctx context.Context, id string, flagged bool) error {
	res := s.DB.WithContext(ctx).Model(&models.Promotion{}).Where("id = ?", id).Update("flagged", flagged)
	if res.Error != nil {
		return storeErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	s.Log.Info("🚩 [Promotions] moderation", "promotion_id", id, "flagged", flagged)
	return nil
}

// PublishDue publishes every scheduled promotion whose publish time has passed.
func (s *PromotionService) PublishDue(ctx context.Context) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&models.Promotion{}).
		Where("status = ? AND publish_at <= ?", models.PromotionStatusScheduled, s.now().UTC()).
		Updates(map[string]interface{}{"status": models.PromotionStatusPublished, "publish_at": nil})
	if res.Error != nil {
		return 0, storeErr(res.Error)
	}
	if res.RowsAffected > 0 {
		metrics.PromotionsPublished.Add(float64(res.RowsAffected))
		s.Log.Info("✅ [Scheduler] auto-published promotions", "count", res.RowsAffected)
	}
	return res.RowsAffected, nil
}
