// workers/account_sync_worker.go
package workers

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"promoverse/logger"
	"promoverse/metrics"
	"promoverse/services"
	"promoverse/utils"
)

const profileChangesPath = "/api/v1/public/profiles"

// RemoteProfile matches one entry of the profile service's change feed.
type RemoteProfile struct {
	ID            string    `json:"id"`
	ExternalID    string    `json:"external_id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	AccountStatus string    `json:"account_status"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type profileChangesResponse struct {
	Users []RemoteProfile `json:"users"`
}

// AccountID is the id the gateway forwards as X-User-ID.
func (p RemoteProfile) AccountID() string {
	if p.ExternalID != "" {
		return p.ExternalID
	}
	return p.ID
}

// AccountSyncWorker mirrors profile changes into local accounts so that
// gateway-provided ids exist before their first request.
type AccountSyncWorker struct {
	accounts     *services.AccountService
	log          *logger.Logger
	client       *http.Client
	baseURL      string
	serviceToken string
	interval     time.Duration

	since time.Time
}

func NewAccountSyncWorker(accounts *services.AccountService, log *logger.Logger, baseURL, serviceToken string, interval time.Duration) *AccountSyncWorker {
	if log == nil {
		log = logger.Nop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &AccountSyncWorker{
		accounts:     accounts,
		log:          log,
		client:       utils.HTTPClient,
		baseURL:      baseURL,
		serviceToken: serviceToken,
		interval:     interval,
	}
}

func (w *AccountSyncWorker) Start(ctx context.Context) {
	w.log.Info("🔁 [SYNC] starting account sync worker", "base_url", w.baseURL, "interval", w.interval.String())
	go w.run(ctx)
}

func (w *AccountSyncWorker) run(ctx context.Context) {
	// backfill from the beginning of time
	if _, err := w.SyncOnce(ctx); err != nil {
		w.log.Warn("⚠️ [SYNC] initial account sync failed", "error", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := w.SyncOnce(ctx); err != nil {
				w.log.Error("❌ [SYNC] account sync batch failed", "error", err)
			}
		case <-ctx.Done():
			w.log.Info("⏹️ [SYNC] account sync worker stopped")
			return
		}
	}
}

// SyncOnce pulls one batch of changes and upserts them. The cursor only moves
// forward when every profile in the batch was stored, so failures are retried.
func (w *AccountSyncWorker) SyncOnce(ctx context.Context) (int, error) {
	q := url.Values{}
	q.Set("since", w.since.UTC().Format(time.RFC3339))

	var resp profileChangesResponse
	if err := utils.GetJSON(ctx, w.client, w.baseURL, profileChangesPath, q, w.serviceToken, &resp); err != nil {
		metrics.SyncBatches.WithLabelValues("accounts", "fetch_failed").Inc()
		return 0, err
	}
	if len(resp.Users) == 0 {
		metrics.SyncBatches.WithLabelValues("accounts", "empty").Inc()
		return 0, nil
	}

	var upserted, failed int
	latest := w.since
	for _, p := range resp.Users {
		err := w.accounts.Upsert(ctx, services.AccountProfile{
			ID:       p.AccountID(),
			Username: p.Username,
			Email:    p.Email,
		})
		if err != nil {
			failed++
			w.log.Warn("⚠️ [SYNC] account upsert failed", "account_id", p.AccountID(), "username", p.Username, "error", err)
			continue
		}
		upserted++
		if p.UpdatedAt.After(latest) {
			latest = p.UpdatedAt
		}
	}

	if failed == 0 {
		w.since = latest
		metrics.SyncBatches.WithLabelValues("accounts", "ok").Inc()
	} else {
		metrics.SyncBatches.WithLabelValues("accounts", "partial").Inc()
	}
	w.log.Info("✅ [SYNC] accounts synced", "received", len(resp.Users), "upserted", upserted, "errors", failed, "cursor", w.since.Format(time.RFC3339))
	return upserted, nil
}

// Since reports the cursor the next batch will ask for.
func (w *AccountSyncWorker) Since() time.Time {
	return w.since
}
