package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/punchamoorthee/irrigationcal/internal/models"
)

// StatusError is returned when the upstream answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("error fetching account data: %s", e.Status)
	}
	return fmt.Sprintf("error fetching account data: %s: %s", e.Status, e.Body)
}

// Client talks to the irrigation schedule API.
type Client struct {
	http    *http.Client
	baseURL string
	logger  *slog.Logger
}

// NewClient returns a client for baseURL. A nil httpClient falls back to
// http.DefaultClient, so no timeout beyond the transport defaults applies.
func NewClient(httpClient *http.Client, baseURL string, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{http: httpClient, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

// QuickviewURL is the schedule endpoint for one account.
func (c *Client) QuickviewURL(accountID string) string {
	return c.baseURL + "/schedule/account/" + url.PathEscape(accountID) + "/quickview"
}

// FetchQuickview issues a single GET for the account. There are no retries.
func (c *Client) FetchQuickview(ctx context.Context, accountID string) (models.Snapshot, error) {
	endpoint := c.QuickviewURL(accountID)
	c.logger.Info("requesting data for account", "account", accountID, "url", endpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("build quickview request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("quickview request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.Snapshot{}, &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	var snap models.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return models.Snapshot{}, fmt.Errorf("decode quickview for account %s: %w", accountID, err)
	}
	return snap, nil
}
