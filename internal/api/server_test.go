package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"fortuna/internal/auth"
	"fortuna/internal/config"
	"fortuna/internal/engine"
	"fortuna/internal/game"
	"fortuna/internal/store"
)

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	st := store.NewMemory()
	defs := engine.NewUniverse(
		&engine.Asset{
			Symbol: "NIMBUS", Name: "Nimbus Cloud", Category: "stock",
			PriceCents: 100 * engine.CentsPerDollar,
			Volatility: engine.Volatility{Kind: engine.DistUniform, Param: 0.01},
		},
	)
	svc := game.NewService(st, defs, game.Options{Market: engine.NewMarketWithSeed(1)})
	if err := svc.EnsureUniverse(t.Context()); err != nil {
		t.Fatalf("ensure universe: %v", err)
	}
	srv := httptest.NewServer(New(config.APIConfig{}, nil, auth.New(st), svc).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, token, idem string, in any) (*http.Response, map[string]any) {
	t.Helper()
	var body *bytes.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if idem != "" {
		req.Header.Set("Idempotency-Key", idem)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, out
}

func signup(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, out := doJSON(t, http.MethodPost, srv.URL+"/v1/auth/signup", "", "", map[string]any{
		"email":    "alice@example.com",
		"password": "hunter2hunter2",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status %d: %v", resp.StatusCode, out)
	}
	token, _ := out["token"].(string)
	if token == "" {
		t.Fatalf("signup returned no token: %v", out)
	}
	return token
}

func TestSignupTradeDashboardFlow(t *testing.T) {
	srv := testServer(t)
	token := signup(t, srv)

	resp, out := doJSON(t, http.MethodPost, srv.URL+"/v1/orders", token, "k-1", map[string]any{
		"symbol":   "NIMBUS",
		"side":     "buy",
		"quantity": 4,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("order status %d: %v", resp.StatusCode, out)
	}
	if out["symbol"] != "NIMBUS" || out["quantity"].(float64) != 4 {
		t.Fatalf("trade result: %v", out)
	}

	resp, out = doJSON(t, http.MethodGet, srv.URL+"/v1/dashboard", token, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("dashboard status %d: %v", resp.StatusCode, out)
	}
	if got := out["cash_cents"].(float64); got != float64(600*engine.CentsPerDollar) {
		t.Fatalf("cash got %v", got)
	}
}

func TestOrderReplayConflicts(t *testing.T) {
	srv := testServer(t)
	token := signup(t, srv)

	order := map[string]any{"symbol": "NIMBUS", "side": "buy", "quantity": 1}
	if resp, out := doJSON(t, http.MethodPost, srv.URL+"/v1/orders", token, "same-key", order); resp.StatusCode != http.StatusOK {
		t.Fatalf("first order status %d: %v", resp.StatusCode, out)
	}
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/v1/orders", token, "same-key", order)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("replay status got %d want %d", resp.StatusCode, http.StatusConflict)
	}
}

func TestDomainErrorStatusCodes(t *testing.T) {
	srv := testServer(t)
	token := signup(t, srv)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		want   int
	}{
		{name: "no token", method: http.MethodGet, path: "/v1/dashboard", want: http.StatusUnauthorized},
		{name: "bad token", method: http.MethodGet, path: "/v1/dashboard", token: "junk", want: http.StatusUnauthorized},
		{name: "unknown asset", method: http.MethodGet, path: "/v1/assets/GHOST", token: token, want: http.StatusNotFound},
		{name: "zero quantity order", method: http.MethodPost, path: "/v1/orders", token: token,
			body: map[string]any{"symbol": "NIMBUS", "side": "buy", "quantity": 0}, want: http.StatusBadRequest},
		{name: "unaffordable order", method: http.MethodPost, path: "/v1/orders", token: token,
			body: map[string]any{"symbol": "NIMBUS", "side": "buy", "quantity": 1_000}, want: http.StatusBadRequest},
		{name: "negative deposit", method: http.MethodPost, path: "/v1/bank/deposit", token: token,
			body: map[string]any{"amount_cents": -5}, want: http.StatusBadRequest},
		{name: "duplicate email", method: http.MethodPost, path: "/v1/auth/signup",
			body: map[string]any{"email": "alice@example.com", "password": "hunter2hunter2"}, want: http.StatusConflict},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, out := doJSON(t, tc.method, srv.URL+tc.path, tc.token, "", tc.body)
			if resp.StatusCode != tc.want {
				t.Fatalf("status got %d want %d: %v", resp.StatusCode, tc.want, out)
			}
		})
	}
}

func TestSyncExportImport(t *testing.T) {
	srv := testServer(t)
	token := signup(t, srv)

	if resp, out := doJSON(t, http.MethodPost, srv.URL+"/v1/orders", token, "", map[string]any{
		"symbol": "NIMBUS", "side": "buy", "quantity": 2,
	}); resp.StatusCode != http.StatusOK {
		t.Fatalf("order status %d: %v", resp.StatusCode, out)
	}

	resp, snap := doJSON(t, http.MethodGet, srv.URL+"/v1/sync/export", token, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export status %d", resp.StatusCode)
	}
	if snap["pos.NIMBUS.qty"].(float64) != 2 {
		t.Fatalf("exported snapshot missing position: %v", snap)
	}

	resp, out := doJSON(t, http.MethodPost, srv.URL+"/v1/sync/import", token, "", snap)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("import status %d: %v", resp.StatusCode, out)
	}

	resp, dash := doJSON(t, http.MethodGet, srv.URL+"/v1/dashboard", token, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("dashboard status %d", resp.StatusCode)
	}
	positions := dash["positions"].([]any)
	if len(positions) != 1 {
		t.Fatalf("positions after re-import: %v", positions)
	}
}
