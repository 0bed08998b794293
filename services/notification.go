// services/notification.go
package services

import (
	"context"
	"errors"
	"sync"

	"promoverse/logger"
	"promoverse/models"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gorm.io/gorm"
)

const notificationListLimit = 50

// Notifier accepts events addressed to an account. Delivery and persistence are its business.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// NotifierFunc adapts a plain function to Notifier.
type NotifierFunc func(ctx context.Context, n models.Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n models.Notification) error { return f(ctx, n) }

// NotificationService persists notifications and fans them out to live subscribers,
// through the bus when one is configured so every replica sees them.
type NotificationService struct {
	DB  *gorm.DB
	Log *logger.Logger
	Bus NotificationBus

	mu   sync.RWMutex
	subs map[string]map[chan models.Notification]struct{}
}

func NewNotificationService(db *gorm.DB, log *logger.Logger, bus NotificationBus) *NotificationService {
	if log == nil {
		log = logger.Nop()
	}
	return &NotificationService{
		DB:   db,
		Log:  log,
		Bus:  bus,
		subs: make(map[string]map[chan models.Notification]struct{}),
	}
}

// Notify stores n and pushes it to subscribers. Self-notifications are dropped.
func (s *NotificationService) Notify(ctx context.Context, n models.Notification) error {
	if n.AccountID == "" || (n.ActorID != "" && n.ActorID == n.AccountID) {
		return nil
	}
	if err := s.DB.WithContext(ctx).Create(&n).Error; err != nil {
		return storeErr(err)
	}

	if s.Bus != nil {
		if err := s.Bus.Publish(ctx, n); err != nil {
			s.Log.Warn("⚠️ [Notify] bus publish failed, delivering locally", "error", err, "notification_id", n.ID)
			s.Deliver(n)
		}
		return nil
	}
	s.Deliver(n)
	return nil
}

// Deliver hands n to local subscribers of its recipient. Slow subscribers miss events
// rather than block the caller; the stored row is still there on the next list.
func (s *NotificationService) Deliver(n models.Notification) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for ch := range s.subs[n.AccountID] {
		select {
		case ch <- n:
		default:
		}
	}
}

// Subscribe registers a live feed for accountID. Call cancel when done.
func (s *NotificationService) Subscribe(accountID string) (<-chan models.Notification, func()) {
	ch := make(chan models.Notification, 16)
	s.mu.Lock()
	if s.subs[accountID] == nil {
		s.subs[accountID] = make(map[chan models.Notification]struct{})
	}
	s.subs[accountID][ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs[accountID], ch)
			if len(s.subs[accountID]) == 0 {
				delete(s.subs, accountID)
			}
			s.mu.Unlock()
		})
	}
	return ch, cancel
}

// StartForwarder relays bus traffic into local subscribers until ctx ends.
func (s *NotificationService) StartForwarder(ctx context.Context) error {
	if s.Bus == nil {
		return nil
	}
	return s.Bus.StartForwarder(ctx, s.Deliver)
}

// List returns the latest notifications for accountID, newest first.
func (s *NotificationService) List(ctx context.Context, accountID string, unreadOnly bool) ([]models.Notification, error) {
	q := s.DB.WithContext(ctx).Where("account_id = ?", accountID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	var out []models.Notification
	if err := q.Order("created_at DESC").Limit(notificationListLimit).Find(&out).Error; err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

// MarkRead flags one notification owned by accountID as read.
func (s *NotificationService) MarkRead(ctx context.Context, accountID, id string) error {
	res := s.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND account_id = ?", id, accountID).
		Update("is_read", true)
	if res.Error != nil {
		return storeErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, accountID string) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("account_id = ? AND is_read = ?", accountID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, storeErr(res.Error)
	}
	return res.RowsAffected, nil
}

func (s *NotificationService) Close() error {
	if s.Bus == nil {
		return nil
	}
	return s.Bus.Close()
}

var creditPrinter = message.NewPrinter(language.English)

// FormatCredits renders an amount the way it is shown to users: "1,250 credits".
func FormatCredits(n int64) string {
	if n == 1 || n == -1 {
		return creditPrinter.Sprintf("%d credit", n)
	}
	return creditPrinter.Sprintf("%d credits", n)
}

// notifyAfterCommit sends n and only logs failures; notifications never undo committed work.
func notifyAfterCommit(ctx context.Context, notifier Notifier, log *logger.Logger, n models.Notification) {
	if notifier == nil {
		return
	}
	if err := notifier.Notify(ctx, n); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("⚠️ [Notify] failed", "type", n.Type, "account_id", n.AccountID, "error", err)
	}
}
