// Package cli holds the pieces of the terminal shell that talk to a remote
// deployment: a thin JSON API client and an on-disk session.
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fortuna/internal/auth"
	"fortuna/internal/engine"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Signup(ctx context.Context, email, username, password string) (auth.Session, error) {
	var out auth.Session
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/auth/signup", "", map[string]any{
		"email":    email,
		"username": username,
		"password": password,
	}, &out, "")
	return out, err
}

func (c *Client) Login(ctx context.Context, email, password string) (auth.Session, error) {
	var out auth.Session
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"email":    email,
		"password": password,
	}, &out, "")
	return out, err
}

func (c *Client) Dashboard(ctx context.Context, token string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/dashboard", token, nil, &out, "")
	return out, err
}

func (c *Client) ListAssets(ctx context.Context, token string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/assets", token, nil, &out, "")
	return out, err
}

func (c *Client) AssetDetail(ctx context.Context, token, symbol string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/assets/"+url.PathEscape(symbol), token, nil, &out, "")
	return out, err
}

func (c *Client) PlaceOrder(ctx context.Context, token, symbol, side, idem string, qty int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/orders", token, map[string]any{
		"symbol":   symbol,
		"side":     side,
		"quantity": qty,
	}, &out, idem)
	return out, err
}

func (c *Client) BankOp(ctx context.Context, token, op string, amountCents int64, idem string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/bank/"+url.PathEscape(op), token, map[string]any{
		"amount_cents": amountCents,
	}, &out, idem)
	return out, err
}

func (c *Client) BuyMiner(ctx context.Context, token, idem string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/mining/buy", token, map[string]any{}, &out, idem)
	return out, err
}

func (c *Client) SellMined(ctx context.Context, token string, units float64, idem string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/mining/sell", token, map[string]any{
		"units": units,
	}, &out, idem)
	return out, err
}

func (c *Client) Achievements(ctx context.Context, token string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/achievements", token, nil, &out, "")
	return out, err
}

func (c *Client) Leaderboard(ctx context.Context, token string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/leaderboard", token, nil, &out, "")
	return out, err
}

// ExportSnapshot pulls the server-side account as a portable snapshot.
func (c *Client) ExportSnapshot(ctx context.Context, token string) (engine.Snapshot, error) {
	var out engine.Snapshot
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/sync/export", token, nil, &out, "")
	return out, err
}

// ImportSnapshot overwrites the server-side account from a local snapshot.
func (c *Client) ImportSnapshot(ctx context.Context, token string, snap engine.Snapshot) error {
	return c.jsonRequest(ctx, http.MethodPost, "/v1/sync/import", token, snap, nil, "")
}

func (c *Client) jsonRequest(ctx context.Context, method, path, token string, in any, out any, idem string) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if idem != "" {
		req.Header.Set("Idempotency-Key", idem)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("api status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
