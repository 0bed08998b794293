// services/star.go
package services

import (
	"context"
	"fmt"

	"promoverse/logger"
	"promoverse/metrics"
	"promoverse/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StarResult struct {
	PromotionID string `json:"promotion_id"`
	Starred     bool   `json:"starred"`
	StarCount   int64  `json:"star_count"`
	Rewarded    bool   `json:"rewarded"`
}

// StarService toggles stars. The first star an account ever gives a promotion
// it does not own pays the owner RewardCredits; unstar and restar pay nothing.
type StarService struct {
	DB            *gorm.DB
	Log           *logger.Logger
	Achievements  *AchievementService
	Notifier      Notifier
	RewardCredits int64
}

func NewStarService(db *gorm.DB, log *logger.Logger, rewardCredits int64, achievements *AchievementService, notifier Notifier) *StarService {
	if log == nil {
		log = logger.Nop()
	}
	return &StarService{DB: db, Log: log, Achievements: achievements, Notifier: notifier, RewardCredits: rewardCredits}
}

func (s *StarService) Toggle(ctx context.Context, promotionID, accountID string) (*StarResult, error) {
	res := &StarResult{PromotionID: promotionID}
	var ownerID string

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var promo models.Promotion
		if err := tx.Select("id", "account_id").First(&promo, "id = ?", promotionID).Error; err != nil {
			return notFoundOr(err)
		}
		ownerID = promo.AccountID
		if err := accountExists(tx, accountID); err != nil {
			return err
		}

		star := models.Star{AccountID: accountID, PromotionID: promotionID}
		ins := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&star)
		if ins.Error != nil {
			return storeErr(ins.Error)
		}

		if ins.RowsAffected == 1 {
			res.Starred = true
			if err := tx.Model(&models.Promotion{}).Where("id = ?", promotionID).
				UpdateColumn("star_count", gorm.Expr("star_count + 1")).Error; err != nil {
				return storeErr(err)
			}
			if ownerID != accountID && s.RewardCredits > 0 {
				paid, err := s.rewardOwner(tx, ownerID, accountID, promotionID)
				if err != nil {
					return err
				}
				res.Rewarded = paid
			}
		} else {
			del := tx.Where("account_id = ? AND promotion_id = ?", accountID, promotionID).Delete(&models.Star{})
			if del.Error != nil {
				return storeErr(del.Error)
			}
			// zero rows: a concurrent unstar removed it and already decremented
			if del.RowsAffected == 1 {
				if err := tx.Model(&models.Promotion{}).Where("id = ? AND star_count > 0", promotionID).
					UpdateColumn("star_count", gorm.Expr("star_count - 1")).Error; err != nil {
					return storeErr(err)
				}
			}
		}

		var after models.Promotion
		if err := tx.Select("id", "star_count").First(&after, "id = ?", promotionID).Error; err != nil {
			return storeErr(err)
		}
		res.StarCount = after.StarCount
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}

	if res.Rewarded {
		metrics.LedgerEntries.WithLabelValues(string(models.LedgerKindStarReward)).Inc()
	}
	if res.Starred && ownerID != accountID {
		msg := "⭐ Someone starred your post"
		if res.Rewarded {
			msg = fmt.Sprintf("⭐ Someone starred your post (+%s)", FormatCredits(s.RewardCredits))
		}
		notifyAfterCommit(ctx, s.Notifier, s.Log, models.Notification{
			AccountID:   ownerID,
			ActorID:     accountID,
			PromotionID: &promotionID,
			Type:        models.NotificationStar,
			Title:       "New star",
			Message:     msg,
			Metadata:    map[string]interface{}{"star_count": res.StarCount},
		})
		s.Achievements.reevaluate(ctx, ownerID)
	}
	return res, nil
}

// rewardOwner credits the owner once per (promotion, starring account).
func (s *StarService) rewardOwner(tx *gorm.DB, ownerID, actorID, promotionID string) (bool, error) {
	ref := fmt.Sprintf("star:%s:%s", promotionID, actorID)
	var count int64
	if err := tx.Model(&models.LedgerEntry{}).Where("external_ref = ?", ref).Count(&count).Error; err != nil {
		return false, storeErr(err)
	}
	if count > 0 {
		return false, nil
	}
	_, err := creditTx(tx, ledgerWrite{
		AccountID:   ownerID,
		Amount:      s.RewardCredits,
		Kind:        models.LedgerKindStarReward,
		Description: "Star received",
		Reference:   promotionID,
		ExternalRef: &ref,
	})
	return err == nil, err
}

func (s *StarService) HasStarred(ctx context.Context, promotionID, accountID string) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.Star{}).
		Where("promotion_id = ? AND account_id = ?", promotionID, accountID).
		Count(&count).Error
	if err != nil {
		return false, storeErr(err)
	}
	return count > 0, nil
}
