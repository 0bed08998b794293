package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"promoverse/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, models.AutoMigrate(db))
	return db
}

// newPooledTestDB opens a file-backed WAL database behind several connections, so
// goroutines really hold separate transactions at the same time. Writers queue on
// BEGIN IMMEDIATE for up to the busy timeout instead of failing.
func newPooledTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "promoverse.db")
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=10000&_txlock=immediate", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(8)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, models.AutoMigrate(db))
	return db
}

// seedAccount creates an account funded through the ledger so entries always sum to the balance.
func seedAccount(t *testing.T, db *gorm.DB, username string, balance int64) string {
	t.Helper()
	acct := models.Account{Username: username}
	require.NoError(t, db.Create(&acct).Error)
	if balance > 0 {
		_, err := NewLedgerService(db, nil).Credit(context.Background(), acct.ID, balance, models.LedgerKindDeposit, "seed")
		require.NoError(t, err)
	}
	return acct.ID
}

func seedPromotion(t *testing.T, db *gorm.DB, ownerID string, verses ...string) *models.Promotion {
	t.Helper()
	promo := &models.Promotion{
		AccountID: ownerID,
		Content:   "Check out my new track",
		Category:  "music",
		Status:    models.PromotionStatusPublished,
	}
	for _, v := range verses {
		promo.Verses = append(promo.Verses, models.PromotionVerse{Verse: v})
	}
	require.NoError(t, db.Create(promo).Error)
	return promo
}

func balanceOf(t *testing.T, db *gorm.DB, accountID string) int64 {
	t.Helper()
	var acct models.Account
	require.NoError(t, db.First(&acct, "id = ?", accountID).Error)
	return acct.Balance
}

func countEntries(t *testing.T, db *gorm.DB, accountID string, kind models.LedgerKind) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.LedgerEntry{}).Where("account_id = ? AND kind = ?", accountID, kind).Count(&n).Error)
	return n
}

// recorder is a Notifier that keeps what it was sent.
type recorder struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (r *recorder) Notify(_ context.Context, n models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recorder) ofType(typ string) []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Notification
	for _, n := range r.sent {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
