package workers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"promoverse/logger"
	"promoverse/metrics"
	"promoverse/models"
	"promoverse/services"
	"promoverse/utils"
)

const (
	depositChangesPath = "/api/v1/public/deposits"
	depositConfirmed   = "confirmed"
	// first poll looks this far back; replays are no-ops so the overlap is harmless
	depositLookback = 24 * time.Hour
)

// RemoteDeposit is one settled (or settling) payment as reported by the payment service.
type RemoteDeposit struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Amount    int64     `json:"amount"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

type depositChangesResponse struct {
	Deposits []RemoteDeposit `json:"deposits"`
}

// DepositSyncWorker polls confirmed deposits and credits them exactly once,
// keyed by the payment service's deposit id.
type DepositSyncWorker struct {
	ledger       *services.LedgerService
	accounts     *services.AccountService
	notifier     services.Notifier
	log          *logger.Logger
	client       *http.Client
	baseURL      string
	serviceToken string
	interval     time.Duration

	since time.Time
	now   func() time.Time
}

func NewDepositSyncWorker(ledger *services.LedgerService, accounts *services.AccountService, notifier services.Notifier, log *logger.Logger, baseURL, serviceToken string, interval time.Duration) *DepositSyncWorker {
	if log == nil {
		log = logger.Nop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &DepositSyncWorker{
		ledger:       ledger,
		accounts:     accounts,
		notifier:     notifier,
		log:          log,
		client:       utils.HTTPClient,
		baseURL:      baseURL,
		serviceToken: serviceToken,
		interval:     interval,
		since:        time.Now().UTC().Add(-depositLookback),
		now:          time.Now,
	}
}

func (w *DepositSyncWorker) Start(ctx context.Context) {
	w.log.Info("💳 [Deposits] starting deposit polling", "base_url", w.baseURL, "interval", w.interval.String())
	go w.run(ctx)
}

func (w *DepositSyncWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info("⏹️ [Deposits] deposit polling stopped")
			return
		case <-ticker.C:
			if _, err := w.SyncOnce(ctx); err != nil {
				w.log.Error("❌ [Deposits] polling failed", "error", err)
			}
		}
	}
}

// SyncOnce imports one batch and returns how many deposits were newly applied.
func (w *DepositSyncWorker) SyncOnce(ctx context.Context) (int, error) {
	// taken before the request so nothing updated mid-poll is skipped
	pollStart := w.now().UTC()

	q := url.Values{}
	q.Set("since", w.since.UTC().Format(time.RFC3339))
	q.Set("status", depositConfirmed)

	var resp depositChangesResponse
	if err := utils.GetJSON(ctx, w.client, w.baseURL, depositChangesPath, q, w.serviceToken, &resp); err != nil {
		metrics.SyncBatches.WithLabelValues("deposits", "fetch_failed").Inc()
		return 0, err
	}

	var applied, failed int
	for _, d := range resp.Deposits {
		ok, err := w.apply(ctx, d)
		if err != nil {
			failed++
			w.log.Warn("⚠️ [Deposits] deposit not applied", "deposit_id", d.ID, "account_id", d.UserID, "amount", d.Amount, "error", err)
			continue
		}
		if ok {
			applied++
		}
	}

	if failed > 0 {
		// keep the window so the failed deposits come back next tick
		metrics.SyncBatches.WithLabelValues("deposits", "partial").Inc()
	} else {
		w.since = pollStart
		metrics.SyncBatches.WithLabelValues("deposits", "ok").Inc()
	}
	if len(resp.Deposits) > 0 {
		w.log.Info("📥 [Deposits] batch processed", "received", len(resp.Deposits), "applied", applied, "errors", failed)
	}
	return applied, nil
}

func (w *DepositSyncWorker) apply(ctx context.Context, d RemoteDeposit) (bool, error) {
	if d.Status != depositConfirmed {
		return false, nil
	}
	if d.ID == "" || d.UserID == "" {
		return false, errors.New("deposit without id or user")
	}
	// payments can land before the profile sync has seen the account
	if err := w.accounts.Ensure(ctx, d.UserID, ""); err != nil {
		return false, err
	}

	entry, applied, err := w.ledger.CreditExternal(ctx, d.UserID, d.Amount, "deposit:"+d.ID, "Deposit")
	if err != nil || !applied {
		return false, err
	}

	if w.notifier != nil {
		n := models.Notification{
			AccountID: d.UserID,
			Type:      models.NotificationDeposit,
			Title:     "Deposit received",
			Message:   "💰 " + services.FormatCredits(d.Amount) + " added to your wallet",
			Metadata: map[string]interface{}{
				"deposit_id":    d.ID,
				"amount":        d.Amount,
				"balance_after": entry.BalanceAfter,
			},
		}
		if err := w.notifier.Notify(ctx, n); err != nil {
			w.log.Warn("⚠️ [Deposits] notification failed", "deposit_id", d.ID, "error", err)
		}
	}
	return true, nil
}

// Since reports the lower bound of the next poll.
func (w *DepositSyncWorker) Since() time.Time {
	return w.since
}
