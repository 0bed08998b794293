package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"promoverse/services"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func newApp(handlers ...fiber.Handler) *fiber.App {
	app := fiber.New()
	chain := append(handlers, func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"user_id": UserID(c), "roles": Roles(c)})
	})
	app.Get("/*", chain...)
	return app
}

func TestGatewayAuth(t *testing.T) {
	app := newApp(GatewayAuthMiddleware("secret", nil, "/healthz"))

	cases := []struct {
		header string
		path   string
		want   int
	}{
		{"", "/x", fiber.StatusUnauthorized},
		{"Bearer nope", "/x", fiber.StatusUnauthorized},
		{"Bearer secret", "/x", fiber.StatusOK},
		{"secret", "/x", fiber.StatusOK},
		{"", "/healthz", fiber.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, tc.want, resp.StatusCode, "%q %s", tc.header, tc.path)
	}
}

func TestUserContextAndRoles(t *testing.T) {
	app := newApp(UserContextMiddleware(nil), RequireRole("admin"))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set("X-User-Roles", "user")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set("X-User-Roles", "user, admin")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		UserID string   `json:"user_id"`
		Roles  []string `json:"roles"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "u1", body.UserID)
	require.Equal(t, []string{"user", "admin"}, body.Roles)
}

func TestSSEAuth(t *testing.T) {
	auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		if r.URL.Path != "/auth/validate" || req["access_token"] != "good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"user_id": "u7", "device_id": req["device_id"]})
	}))
	defer auth.Close()

	app := newApp(SSEAuthMiddleware(services.NewAuthServiceClient(auth.URL, "svc"), nil))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/stream", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/stream?token=bad&device_id=d", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/stream?token=good&device_id=d", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}
