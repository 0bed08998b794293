// services/ledger.go
package services

import (
	"context"
	"errors"
	"fmt"

	"promoverse/logger"
	"promoverse/metrics"
	"promoverse/models"

	"gorm.io/gorm"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

// LedgerService is the only writer of Account.Balance. Every balance change
// appends exactly one LedgerEntry in the same transaction.
type LedgerService struct {
	DB  *gorm.DB
	Log *logger.Logger
}

func NewLedgerService(db *gorm.DB, log *logger.Logger) *LedgerService {
	if log == nil {
		log = logger.Nop()
	}
	return &LedgerService{DB: db, Log: log}
}

type AuditResult struct {
	AccountID  string `json:"account_id"`
	Balance    int64  `json:"balance"`
	EntrySum   int64  `json:"entry_sum"`
	EntryCount int64  `json:"entry_count"`
	Consistent bool   `json:"consistent"`
}

// ledgerWrite describes one entry to append.
type ledgerWrite struct {
	AccountID   string
	Amount      int64 // always positive; debits are negated on write
	Kind        models.LedgerKind
	Description string
	Reference   string
	ExternalRef *string
}

func (w ledgerWrite) validate() error {
	if w.Amount <= 0 {
		metrics.LedgerRejections.WithLabelValues("invalid_amount").Inc()
		return ErrInvalidAmount
	}
	if !w.Kind.Valid() {
		return fmt.Errorf("%w: unknown ledger kind %q", ErrInvalidAmount, w.Kind)
	}
	return nil
}

func (s *LedgerService) GetBalance(ctx context.Context, accountID string) (int64, error) {
	var acct models.Account
	if err := s.DB.WithContext(ctx).Select("id", "balance").First(&acct, "id = ?", accountID).Error; err != nil {
		return 0, notFoundOr(err)
	}
	return acct.Balance, nil
}

// Credit adds amount to the account and returns the new balance.
func (s *LedgerService) Credit(ctx context.Context, accountID string, amount int64, kind models.LedgerKind, description string) (int64, error) {
	w := ledgerWrite{AccountID: accountID, Amount: amount, Kind: kind, Description: description}
	if err := w.validate(); err != nil {
		return 0, err
	}

	var entry *models.LedgerEntry
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = creditTx(tx, w)
		return err
	})
	if err != nil {
		return 0, storeErr(err)
	}
	s.applied(entry)
	return entry.BalanceAfter, nil
}

// Debit removes amount from the account and returns the new balance.
// The balance never goes negative: an underfunded debit changes nothing.
func (s *LedgerService) Debit(ctx context.Context, accountID string, amount int64, kind models.LedgerKind, description string) (int64, error) {
	w := ledgerWrite{AccountID: accountID, Amount: amount, Kind: kind, Description: description}
	if err := w.validate(); err != nil {
		return 0, err
	}

	var entry *models.LedgerEntry
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = debitTx(tx, w)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			s.Log.Info("🚫 [Ledger] debit refused", "account_id", accountID, "amount", amount)
		}
		return 0, storeErr(err)
	}
	s.applied(entry)
	return entry.BalanceAfter, nil
}

// CreditExternal imports a deposit identified by an external reference. Replaying the
// same reference is a no-op and returns the original entry with applied=false.
func (s *LedgerService) CreditExternal(ctx context.Context, accountID string, amount int64, externalRef, description string) (*models.LedgerEntry, bool, error) {
	if externalRef == "" {
		return nil, false, fmt.Errorf("%w: missing external reference", ErrInvalidAmount)
	}
	ref := externalRef
	w := ledgerWrite{AccountID: accountID, Amount: amount, Kind: models.LedgerKindDeposit, Description: description, ExternalRef: &ref}
	if err := w.validate(); err != nil {
		return nil, false, err
	}

	db := s.DB.WithContext(ctx)
	if existing, err := s.findExternal(db, externalRef); err != nil || existing != nil {
		return existing, false, err
	}

	var entry *models.LedgerEntry
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = creditTx(tx, w)
		return err
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// lost a race with another importer of the same deposit
		existing, ferr := s.findExternal(db, externalRef)
		return existing, false, ferr
	}
	if err != nil {
		return nil, false, storeErr(err)
	}
	s.applied(entry)
	return entry, true, nil
}

func (s *LedgerService) findExternal(db *gorm.DB, externalRef string) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := db.Where("external_ref = ?", externalRef).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return &entry, nil
}

// History returns the newest entries first.
func (s *LedgerService) History(ctx context.Context, accountID string, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	db := s.DB.WithContext(ctx)
	if err := accountExists(db, accountID); err != nil {
		return nil, err
	}

	var entries []models.LedgerEntry
	if err := db.Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, storeErr(err)
	}
	return entries, nil
}

// Audit compares the cached balance with the sum of the account's entries.
func (s *LedgerService) Audit(ctx context.Context, accountID string) (AuditResult, error) {
	res := AuditResult{AccountID: accountID}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var acct models.Account
		if err := tx.Select("id", "balance").First(&acct, "id = ?", accountID).Error; err != nil {
			return notFoundOr(err)
		}
		res.Balance = acct.Balance

		var agg struct {
			Total int64
			Count int64
		}
		if err := tx.Model(&models.LedgerEntry{}).
			Select("COALESCE(SUM(amount), 0) AS total, COUNT(*) AS count").
			Where("account_id = ?", accountID).
			Scan(&agg).Error; err != nil {
			return storeErr(err)
		}
		res.EntrySum = agg.Total
		res.EntryCount = agg.Count
		return nil
	})
	if err != nil {
		return AuditResult{}, storeErr(err)
	}
	res.Consistent = res.Balance == res.EntrySum
	if !res.Consistent {
		s.Log.Error("❌ [Ledger] balance drift", "account_id", accountID, "balance", res.Balance, "entry_sum", res.EntrySum)
	}
	return res, nil
}

func (s *LedgerService) applied(entry *models.LedgerEntry) {
	metrics.LedgerEntries.WithLabelValues(string(entry.Kind)).Inc()
	s.Log.Debug("💰 [Ledger] entry appended",
		"account_id", entry.AccountID,
		"kind", entry.Kind,
		"amount", entry.Amount,
		"balance_after", entry.BalanceAfter,
	)
}

// creditTx applies a credit inside an open transaction.
func creditTx(tx *gorm.DB, w ledgerWrite) (*models.LedgerEntry, error) {
	res := tx.Model(&models.Account{}).
		Where("id = ?", w.AccountID).
		Update("balance", gorm.Expr("balance + ?", w.Amount))
	if res.Error != nil {
		return nil, storeErr(res.Error)
	}
	if res.RowsAffected == 0 {
		metrics.LedgerRejections.WithLabelValues("not_found").Inc()
		return nil, ErrNotFound
	}
	return appendEntry(tx, w, w.Amount)
}

// debitTx applies a debit inside an open transaction. The funds check and the
// decrement are one conditional statement, so concurrent debits cannot overdraw.
func debitTx(tx *gorm.DB, w ledgerWrite) (*models.LedgerEntry, error) {
	res := tx.Model(&models.Account{}).
		Where("id = ? AND balance >= ?", w.AccountID, w.Amount).
		Update("balance", gorm.Expr("balance - ?", w.Amount))
	if res.Error != nil {
		return nil, storeErr(res.Error)
	}
	if res.RowsAffected == 0 {
		if err := accountExists(tx, w.AccountID); err != nil {
			metrics.LedgerRejections.WithLabelValues("not_found").Inc()
			return nil, err
		}
		metrics.LedgerRejections.WithLabelValues("insufficient_funds").Inc()
		return nil, ErrInsufficientFunds
	}
	return appendEntry(tx, w, -w.Amount)
}

func appendEntry(tx *gorm.DB, w ledgerWrite, signed int64) (*models.LedgerEntry, error) {
	var acct models.Account
	if err := tx.Select("id", "balance").First(&acct, "id = ?", w.AccountID).Error; err != nil {
		return nil, notFoundOr(err)
	}
	entry := &models.LedgerEntry{
		AccountID:    w.AccountID,
		Amount:       signed,
		Kind:         w.Kind,
		Description:  w.Description,
		Reference:    w.Reference,
		ExternalRef:  w.ExternalRef,
		BalanceAfter: acct.Balance,
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, storeErr(err)
	}
	return entry, nil
}

func accountExists(db *gorm.DB, accountID string) error {
	var count int64
	if err := db.Model(&models.Account{}).Where("id = ?", accountID).Count(&count).Error; err != nil {
		return storeErr(err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}
