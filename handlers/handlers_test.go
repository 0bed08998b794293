package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"promoverse/config"
	"promoverse/models"
	"promoverse/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
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

	tiers, err := services.ParseBoostTiers(config.DefaultBoostTiers)
	require.NoError(t, err)

	notes := services.NewNotificationService(db, nil, nil)
	achievements := services.NewAchievementService(db, nil, notes)
	boosts := services.NewBoostService(db, nil, tiers, achievements, notes)
	svc := &Services{
		DB:              db,
		Accounts:        services.NewAccountService(db, nil),
		Ledger:          services.NewLedgerService(db, nil),
		Boosts:          boosts,
		Trending:        services.NewTrendingService(db, nil, boosts),
		Recommendations: services.NewRecommendationService(db, nil),
		Analytics:       services.NewAnalyticsService(db, nil),
		Verses:          services.NewVerseService(db, nil),
		Achievements:    achievements,
		Promotions:      services.NewPromotionService(db, nil, achievements),
		Stars:           services.NewStarService(db, nil, 1, achievements, notes),
		Notifications:   notes,
	}

	app := fiber.New()
	SetupRoutes(app, svc, nil)
	return app, db
}

type call struct {
	method string
	path   string
	body   interface{}
	user   string
	roles  string
}

func do(t *testing.T, app *fiber.App, c call) (int, map[string]interface{}) {
	t.Helper()
	var body io.Reader
	if c.body != nil {
		raw, err := json.Marshal(c.body)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	req.Header.Set("Content-Type", "application/json")
	if c.user != "" {
		req.Header.Set("X-User-ID", c.user)
	}
	if c.roles != "" {
		req.Header.Set("X-User-Roles", c.roles)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func createPromotion(t *testing.T, app *fiber.App, user string) string {
	t.Helper()
	status, body := do(t, app, call{method: http.MethodPost, path: "/s/promotions", user: user, body: map[string]interface{}{
		"content":  "Launch party tonight",
		"category": "events",
		"verses":   []string{"Music"},
	}})
	require.Equal(t, fiber.StatusCreated, status, body)
	return body["id"].(string)
}

func TestBoostFlow(t *testing.T) {
	app, _ := newTestApp(t)
	id := createPromotion(t, app, "alice")

	status, body := do(t, app, call{method: http.MethodPost, path: "/s/wallet/deposit", user: "alice", body: map[string]int64{"amount": 100}})
	require.Equal(t, fiber.StatusOK, status)
	require.EqualValues(t, 100, body["balance"])

	status, body = do(t, app, call{method: http.MethodPost, path: "/s/promotions/" + id + "/boost", user: "alice", body: map[string]int{"level": 2}})
	require.Equal(t, fiber.StatusOK, status, body)
	require.EqualValues(t, 2, body["newLevel"])
	require.EqualValues(t, 50, body["remainingBalance"])

	status, _ = do(t, app, call{method: http.MethodPost, path: "/s/promotions/" + id + "/boost", user: "alice", body: map[string]int{"level": 9}})
	require.Equal(t, fiber.StatusBadRequest, status)

	status, _ = do(t, app, call{method: http.MethodPost, path: "/s/promotions/" + id + "/boost", user: "bob", body: map[string]int{"level": 2}})
	require.Equal(t, fiber.StatusPaymentRequired, status)

	status, _ = do(t, app, call{method: http.MethodPost, path: "/s/promotions/missing/boost", user: "alice", body: map[string]int{"level": 1}})
	require.Equal(t, fiber.StatusNotFound, status)

	status, _ = do(t, app, call{method: http.MethodPost, path: "/s/promotions/" + id + "/boost", body: map[string]int{"level": 1}})
	require.Equal(t, fiber.StatusUnauthorized, status)

	status, body = do(t, app, call{method: http.MethodGet, path: "/s/wallet", user: "alice"})
	require.Equal(t, fiber.StatusOK, status)
	require.EqualValues(t, 50, body["balance"])
	require.Len(t, body["transactions"], 2)
}

func TestAnalyticsEndpoints(t *testing.T) {
	app, _ := newTestApp(t)
	id := createPromotion(t, app, "alice")

	status, body := do(t, app, call{method: http.MethodGet, path: "/s/analytics/" + id, user: "alice"})
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "0%", body["engagement_rate"])
	require.Equal(t, "N/A", body["boost_effectiveness"])

	status, body = do(t, app, call{method: http.MethodPost, path: "/analytics/" + id, body: map[string]interface{}{
		"type": "view", "verseId": "music", "lat": 48.8566, "lon": 2.3522,
	}})
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, true, body["recorded"])
	require.EqualValues(t, 1, body["views"])

	status, _ = do(t, app, call{method: http.MethodPost, path: "/analytics/" + id, body: map[string]interface{}{"type": "hover"}})
	require.Equal(t, fiber.StatusBadRequest, status)

	status, _ = do(t, app, call{method: http.MethodPost, path: "/analytics/" + id, body: map[string]interface{}{"type": "view", "lat": 10.0}})
	require.Equal(t, fiber.StatusBadRequest, status)

	status, _ = do(t, app, call{method: http.MethodPost, path: "/analytics/missing", body: map[string]interface{}{"type": "view"}})
	require.Equal(t, fiber.StatusNotFound, status)
}

func TestAnalyticsStoreFailureIsSwallowed(t *testing.T) {
	app, db := newTestApp(t)
	id := createPromotion(t, app, "alice")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	status, body := do(t, app, call{method: http.MethodPost, path: "/analytics/" + id, body: map[string]interface{}{"type": "click"}})
	require.Equal(t, fiber.StatusAccepted, status)
	require.Equal(t, false, body["recorded"])
}

func TestTrendingAndStars(t *testing.T) {
	app, _ := newTestApp(t)
	first := createPromotion(t, app, "alice")
	second := createPromotion(t, app, "alice")

	status, body := do(t, app, call{method: http.MethodPost, path: "/s/promotions/" + second + "/star", user: "bob"})
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, true, body["starred"])

	req := httptest.NewRequest(http.MethodGet, "/trending", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var items []struct {
		Promotion    models.Promotion `json:"promotion"`
		DisplayScore string           `json:"display_score"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&items))
	require.Len(t, items, 2)
	require.Equal(t, second, items[0].Promotion.ID)
	require.Equal(t, "3.00", items[0].DisplayScore)
	require.Equal(t, first, items[1].Promotion.ID)

	status, body = do(t, app, call{method: http.MethodGet, path: "/s/me", user: "alice"})
	require.Equal(t, fiber.StatusOK, status)
	require.EqualValues(t, 1, body["balance"], "star reward")
	require.Equal(t, "Explorer", body["cosmic_rank"])
}

func TestAdminRoutesRequireRole(t *testing.T) {
	app, _ := newTestApp(t)
	id := createPromotion(t, app, "alice")

	status, _ := do(t, app, call{method: http.MethodPost, path: "/s/admin/promotions/" + id + "/flag", user: "alice"})
	require.Equal(t, fiber.StatusForbidden, status)

	status, _ = do(t, app, call{method: http.MethodPost, path: "/s/admin/promotions/" + id + "/flag", user: "mod", roles: "admin"})
	require.Equal(t, fiber.StatusOK, status)

	status, body := do(t, app, call{method: http.MethodGet, path: "/s/admin/ledger/alice/audit", user: "mod", roles: "admin"})
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, true, body["consistent"])

	status, _ = do(t, app, call{method: http.MethodPost, path: "/s/admin/promotions/missing/deboost", user: "mod", roles: "admin"})
	require.Equal(t, fiber.StatusNotFound, status)
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		services.ErrUnauthorized:                         fiber.StatusUnauthorized,
		services.ErrNotFound:                             fiber.StatusNotFound,
		services.ErrInvalidLevel:                         fiber.StatusBadRequest,
		services.ErrInsufficientFunds:                    fiber.StatusPaymentRequired,
		services.ErrInvalidAmount:                        fiber.StatusBadRequest,
		services.ErrInvalidEvent:                         fiber.StatusBadRequest,
		services.ErrStoreFailure:                         fiber.StatusInternalServerError,
		fmt.Errorf("wrapped: %w", services.ErrNotFound): fiber.StatusNotFound,
	}
	for err, want := range cases {
		require.Equal(t, want, statusFor(err), err.Error())
	}
}

func TestRecommendationsRoute(t *testing.T) {
	app, _ := newTestApp(t)
	createPromotion(t, app, "alice")
	other := createPromotion(t, app, "bob")

	status, body := do(t, app, call{method: http.MethodGet, path: "/s/recommendations?limit=5", user: "alice"})
	require.Equal(t, fiber.StatusOK, status, body)
	recs, ok := body["recommendations"].([]interface{})
	require.True(t, ok, body)
	require.Len(t, recs, 1)
	first := recs[0].(map[string]interface{})
	require.Equal(t, other, first["promotion"].(map[string]interface{})["id"])
	require.Equal(t, "0.70", first["display_score"])

	status, body = do(t, app, call{method: http.MethodGet, path: "/s/recommendations", user: "carol"})
	require.Equal(t, fiber.StatusOK, status)
	require.Empty(t, body["recommendations"])

	status, _ = do(t, app, call{method: http.MethodGet, path: "/s/recommendations"})
	require.Equal(t, fiber.StatusUnauthorized, status)
}
