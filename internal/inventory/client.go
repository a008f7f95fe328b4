// Package inventory talks to the inventory backend over HTTP.
package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrItemNotFound reports a scanned code with no matching inventory item.
var ErrItemNotFound = errors.New("inventory: item not found")

// Item is an inventory record keyed by its scan code.
type Item struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Quantity int    `json:"quantity"`
}

// ScanRecord is reported to the backend after each successful scan.
type ScanRecord struct {
	Code      string    `json:"code"`
	StationID string    `json:"station_id"`
	Strategy  string    `json:"strategy"`
	ScannedAt time.Time `json:"scanned_at"`
}

// Client is an HTTP client for the inventory backend.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client. Fails fast on a malformed base URL.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("inventory: base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("inventory: invalid base URL: %w", err)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// LookupItem fetches the item for a scanned code. Returns ErrItemNotFound
// when the backend has no record for it.
func (c *Client) LookupItem(ctx context.Context, code string) (*Item, error) {
	endpoint := fmt.Sprintf("%s/api/items/%s", c.baseURL, url.PathEscape(code))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("inventory: failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inventory: lookup failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, code)
	default:
		return nil, fmt.Errorf("inventory: lookup returned status %d", resp.StatusCode)
	}

	var item Item
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&item); err != nil {
		return nil, fmt.Errorf("inventory: failed to decode item: %w", err)
	}
	return &item, nil
}

// RecordScan reports a completed scan to the backend.
func (c *Client) RecordScan(ctx context.Context, record ScanRecord) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("inventory: failed to marshal scan record: %w", err)
	}

	endpoint := c.baseURL + "/api/scans"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("inventory: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("inventory: record scan failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("inventory: record scan returned status %d", resp.StatusCode)
	}
	return nil
}
