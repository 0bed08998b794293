package utils

import (
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMediaKey(t *testing.T) {
	key, err := MediaKey("acct-1", &multipart.FileHeader{Filename: "Poster.PNG", Size: 1024})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(key, "promotions/acct-1/"))
	require.True(t, strings.HasSuffix(key, ".png"))
	require.Equal(t, "image", MediaKind(key))

	_, err = MediaKey("acct-1", &multipart.FileHeader{Filename: "run.exe", Size: 10})
	require.ErrorIs(t, err, ErrUnsupportedMedia)

	_, err = MediaKey("acct-1", &multipart.FileHeader{Filename: "big.mp4", Size: MaxMediaBytes + 1})
	require.ErrorIs(t, err, ErrUnsupportedMedia)
}

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Service-Token") != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/api/v1/items" || r.URL.Query().Get("since") != "2024-01-01T00:00:00Z" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"items":["a","b"]}`))
	}))
	defer srv.Close()

	var out struct {
		Items []string `json:"items"`
	}
	q := url.Values{"since": {"2024-01-01T00:00:00Z"}}
	require.NoError(t, GetJSON(context.Background(), srv.Client(), srv.URL, "/api/v1/items", q, "tok", &out))
	require.Equal(t, []string{"a", "b"}, out.Items)

	err := GetJSON(context.Background(), srv.Client(), srv.URL, "/api/v1/items", q, "wrong", &out)
	require.ErrorContains(t, err, "401")
}
