// services/account.go
package services

import (
	"context"
	"strings"

	"promoverse/logger"
	"promoverse/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AccountProfile is the identity data mirrored from the profile service.
type AccountProfile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type AccountView struct {
	models.Account
	NextRank     string `json:"next_rank,omitempty"`
	PointsToRank int64  `json:"points_to_next_rank,omitempty"`
	BadgeCount   int    `json:"badge_count"`
}

type AccountService struct {
	DB  *gorm.DB
	Log *logger.Logger
}

func NewAccountService(db *gorm.DB, log *logger.Logger) *AccountService {
	if log == nil {
		log = logger.Nop()
	}
	return &AccountService{DB: db, Log: log}
}

// Ensure creates a bare account for id if none exists yet. Existing rows are untouched.
func (s *AccountService) Ensure(ctx context.Context, id, username string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrUnauthorized
	}
	if username = strings.TrimSpace(username); username == "" {
		username = id
	}
	acct := models.Account{ID: id, Username: username}
	err := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&acct).Error
	return storeErr(err)
}

// Upsert mirrors profile fields onto the local account. Balance and cosmic fields are never touched here.
func (s *AccountService) Upsert(ctx context.Context, p AccountProfile) error {
	if strings.TrimSpace(p.ID) == "" {
		return ErrInvalidInput
	}
	if p.Username == "" {
		p.Username = p.ID
	}
	acct := models.Account{ID: p.ID, Username: p.Username, Email: p.Email}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "email", "updated_at"}),
	}).Create(&acct).Error
	return storeErr(err)
}

// Profile loads the account with its badges and the next rank to reach.
func (s *AccountService) Profile(ctx context.Context, id string) (*AccountView, error) {
	var acct models.Account
	err := s.DB.WithContext(ctx).
		Preload("Badges", func(db *gorm.DB) *gorm.DB { return db.Order("awarded_at ASC") }).
		First(&acct, "id = ?", id).Error
	if err != nil {
		return nil, notFoundOr(err)
	}

	view := &AccountView{Account: acct, BadgeCount: len(acct.Badges)}
	for _, r := range cosmicRanks {
		if r.MinPoints > acct.CosmicPoints {
			view.NextRank = r.Name
			view.PointsToRank = r.MinPoints - acct.CosmicPoints
			break
		}
	}
	return view, nil
}

// Search matches username or email, case-insensitively.
func (s *AccountService) Search(ctx context.Context, query string, limit int) ([]models.Account, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	db := s.DB.WithContext(ctx).Model(&models.Account{}).Limit(limit).Order("username ASC")
	if query = strings.TrimSpace(query); query != "" {
		term := "%" + strings.ToLower(query) + "%"
		db = db.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ?", term, term)
	}
	var out []models.Account
	if err := db.Find(&out).Error; err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}
