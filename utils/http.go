// utils/http.go
package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HTTPClient is shared by the background sync workers.
var HTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}

// GetJSON issues an authenticated GET against base+path with query and decodes a 200 body into out.
func GetJSON(ctx context.Context, client *http.Client, base, path string, query url.Values, serviceToken string, out interface{}) error {
	u, err := url.Parse(base)
	if err != nil {
		return fmt.Errorf("invalid base URL '%s': %w", base, err)
	}
	u = u.JoinPath(path)
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request to %s: %w", u, err)
	}
	req.Header.Set("X-Service-Token", serviceToken)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", u, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s returned %d: %s", u, resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", u, err)
	}
	return nil
}
