package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"heliactyl/config"
	"heliactyl/internal/auth"
	"heliactyl/internal/boosts"
	"heliactyl/internal/domain"
	"heliactyl/internal/models"
	"heliactyl/internal/repository"
	"heliactyl/internal/scheduler"
	"heliactyl/internal/service"
	"heliactyl/internal/testutil"
	"heliactyl/internal/ws"
	"heliactyl/pkg/panel"

	"github.com/gin-gonic/gin"
)

type fakePanel struct {
	mu      sync.Mutex
	servers map[string]*panel.Server
}

func (p *fakePanel) GetServer(ctx context.Context, id string) (*panel.Server, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	srv, ok := p.servers[id]
	if !ok {
		return nil, panel.ErrServerNotFound
	}
	cp := *srv
	return &cp, nil
}

func (p *fakePanel) SetLimits(ctx context.Context, id string, memory, cpu, disk int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	srv, ok := p.servers[id]
	if !ok {
		return panel.ErrServerNotFound
	}
	srv.Limits = panel.Limits{Memory: memory, CPU: cpu, Disk: disk}
	return nil
}

type testServer struct {
	engine *gin.Engine
	cfg    *config.Config
	boosts *service.BoostService
	user   *models.User
	admin  *models.User
	now    time.Time
}

func newTestServer(t *testing.T, coins int64) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db := testutil.NewDB(t)

	cfg := &config.Config{
		Server: config.ServerConfig{Env: "test"},
		JWT:    config.JWTConfig{AccessSecret: "router-test", AccessExpiry: time.Hour, Issuer: "heliactyl"},
		Boosts: config.BoostConfig{SweepSchedule: "@every 10s", CancelRefundRate: 0.5, ReconcileMaxAttempts: 3},
		Store: config.StoreConfig{
			Prices:      config.StoreResources{RAM: 150, Disk: 100, CPU: 200, Servers: 300},
			Multipliers: config.StoreResources{RAM: 1024, Disk: 5120, CPU: 100, Servers: 1},
			Limits:      config.StoreResources{RAM: 10, Disk: 10, CPU: 10, Servers: 5},
		},
	}

	users := repository.NewUserRepository(db)
	user := &models.User{Username: "alex", Email: "alex@example.com", Role: domain.RoleUser, PanelUserID: 3}
	admin := &models.User{Username: "root", Email: "root@example.com", Role: domain.RoleAdmin, PanelUserID: 1}
	for _, u := range []*models.User{user, admin} {
		if err := users.Create(u); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}
	if coins > 0 {
		if err := repository.NewWalletRepository(db).Credit(user.ID, coins); err != nil {
			t.Fatalf("credit: %v", err)
		}
	}

	catalog, err := boosts.NewCatalog(boosts.DefaultTypes())
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	p := &fakePanel{servers: map[string]*panel.Server{
		"a1": {Identifier: "a1", Name: "survival", User: 3, Limits: panel.Limits{Memory: 1024, CPU: 100, Disk: 5120}},
	}}
	hub := ws.NewHub()
	notifier := service.NewNotificationService(repository.NewNotificationRepository(db), hub, nil, logger)
	boostSvc := service.NewBoostService(db, catalog, p, notifier, cfg.Boosts, logger)

	ts := &testServer{cfg: cfg, boosts: boostSvc, user: user, admin: admin,
		now: time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)}
	boostSvc.SetClock(func() time.Time { return ts.now })

	ts.engine = Setup(cfg, Deps{
		DB:      db,
		Boosts:  boostSvc,
		Store:   service.NewStoreService(db, cfg.Store, logger),
		Sweeper: scheduler.NewSweeper(boostSvc, nil, cfg.Boosts, logger),
		Hub:     hub,
		Logger:  logger,
	})
	return ts
}

func (ts *testServer) do(t *testing.T, as *models.User, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		tok, err := auth.GenerateAccessToken(&ts.cfg.JWT, as.ID, as.Email, as.Role)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)

	out := map[string]interface{}{}
	if w.Body.Len() > 0 && w.Body.Bytes()[0] == '{' {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, w.Body.String())
		}
	}
	return w.Code, out
}

func TestApplyAndCancelOverHTTP(t *testing.T) {
	ts := newTestServer(t, 1000)

	code, body := ts.do(t, ts.user, http.MethodPost, "/api/boosts/apply", gin.H{
		"serverId": "a1", "boostType": "memory", "duration": "1h",
	})
	if code != http.StatusCreated {
		t.Fatalf("apply: expected 201, got %d %v", code, body)
	}
	if body["state"] != domain.BoostStateActive || body["serverId"] != "a1" {
		t.Fatalf("unexpected boost body %v", body)
	}
	applied, _ := body["appliedAt"].(float64)
	expires, _ := body["expiresAt"].(float64)
	if expires-applied != 3600000 {
		t.Fatalf("expected expiresAt - appliedAt = 3600000, got %v", expires-applied)
	}
	boosted := body["boostedResources"].(map[string]interface{})
	if boosted["ram"] != float64(2048) {
		t.Fatalf("expected 2048 MB boosted ram, got %v", boosted["ram"])
	}
	boostID := body["id"].(string)

	code, body = ts.do(t, ts.user, http.MethodGet, "/api/boosts/active", nil)
	if code != http.StatusOK {
		t.Fatalf("active: %d", code)
	}
	if _, ok := body["a1"].(map[string]interface{})[boostID]; !ok {
		t.Fatalf("expected boost %s under server a1, got %v", boostID, body)
	}

	ts.now = ts.now.Add(30 * time.Minute)
	code, body = ts.do(t, ts.user, http.MethodPost, "/api/boosts/cancel", gin.H{
		"serverId": "a1", "boostId": boostID,
	})
	if code != http.StatusOK || body["refundAmount"] != float64(25) {
		t.Fatalf("cancel: expected 200 with refund 25, got %d %v", code, body)
	}

	code, body = ts.do(t, ts.user, http.MethodGet, "/api/user", nil)
	if code != http.StatusOK || body["coins"] != float64(925) {
		t.Fatalf("expected 925 coins after refund, got %d %v", code, body)
	}
}

func TestApplyValidation(t *testing.T) {
	ts := newTestServer(t, 50)

	tests := []struct {
		name string
		body gin.H
		code int
	}{
		{"missing fields", gin.H{"serverId": "a1"}, http.StatusBadRequest},
		{"unknown type", gin.H{"serverId": "a1", "boostType": "turbo", "duration": "1h"}, http.StatusBadRequest},
		{"unknown tier", gin.H{"serverId": "a1", "boostType": "memory", "duration": "3h"}, http.StatusBadRequest},
		{"insufficient balance", gin.H{"serverId": "a1", "boostType": "memory", "duration": "1h"}, http.StatusBadRequest},
		{"unknown server", gin.H{"serverId": "zz", "boostType": "memory", "duration": "1h"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := ts.do(t, ts.user, http.MethodPost, "/api/boosts/apply", tt.body)
			if code != tt.code {
				t.Fatalf("expected %d, got %d %v", tt.code, code, body)
			}
			if _, ok := body["error"].(string); !ok {
				t.Fatalf("expected error message, got %v", body)
			}
		})
	}
}

func TestTypesAndStoreConfig(t *testing.T) {
	ts := newTestServer(t, 400)

	code, body := ts.do(t, ts.user, http.MethodGet, "/api/boosts/types", nil)
	if code != http.StatusOK {
		t.Fatalf("types: %d", code)
	}
	if _, ok := body["performance"]; !ok || len(body) != len(boosts.DefaultTypes()) {
		t.Fatalf("unexpected catalog %v", body)
	}

	code, body = ts.do(t, ts.user, http.MethodGet, "/api/store/config", nil)
	if code != http.StatusOK || body["userBalance"] != float64(400) {
		t.Fatalf("store config: %d %v", code, body)
	}
	afford := body["canAfford"].(map[string]interface{})
	if afford["ram"] != true || afford["servers"] != true {
		t.Fatalf("expected ram and servers affordable at 400 coins, got %v", afford)
	}

	code, body = ts.do(t, ts.user, http.MethodPost, "/api/store/buy", gin.H{"resourceType": "ram", "amount": 2})
	if code != http.StatusOK || body["success"] != true {
		t.Fatalf("buy: %d %v", code, body)
	}
	if res := body["resources"].(map[string]interface{}); res["ram"] != float64(2048) {
		t.Fatalf("expected 2048 MB extra ram, got %v", res)
	}
}

func TestAuthAndAdminGuards(t *testing.T) {
	ts := newTestServer(t, 0)

	if code, _ := ts.do(t, nil, http.MethodGet, "/api/boosts/active", nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}
	if code, _ := ts.do(t, ts.user, http.MethodPost, "/api/admin/boosts/sweep", nil); code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", code)
	}

	code, body := ts.do(t, ts.admin, http.MethodPost, "/api/admin/boosts/sweep", nil)
	if code != http.StatusOK {
		t.Fatalf("admin sweep: %d %v", code, body)
	}

	path := "/api/admin/users/" + jsonNumber(ts.user.ID) + "/coins"
	if code, body := ts.do(t, ts.admin, http.MethodPost, path, gin.H{"amount": 75}); code != http.StatusOK {
		t.Fatalf("credit: %d %v", code, body)
	}
	if _, body := ts.do(t, ts.user, http.MethodGet, "/api/user", nil); body["coins"] != float64(75) {
		t.Fatalf("expected 75 coins after credit, got %v", body)
	}
	if code, _ := ts.do(t, ts.admin, http.MethodPost, "/api/admin/users/9999/coins", gin.H{"amount": 5}); code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d", code)
	}
}

func jsonNumber(id uint) string {
	raw, _ := json.Marshal(id)
	return string(raw)
}

func TestBoostNotificationsInbox(t *testing.T) {
	ts := newTestServer(t, 1000)

	if code, body := ts.do(t, ts.user, http.MethodPost, "/api/boosts/apply", gin.H{
		"serverId": "a1", "boostType": "memory", "duration": "1h",
	}); code != http.StatusCreated {
		t.Fatalf("apply: %d %v", code, body)
	}

	code, body := ts.do(t, ts.user, http.MethodGet, "/api/notifications?unread=true", nil)
	if code != http.StatusOK || body["unread"] != float64(1) {
		t.Fatalf("expected one unread notice, got %d %v", code, body)
	}
	list := body["notifications"].([]interface{})
	notice := list[0].(map[string]interface{})
	if notice["type"] != domain.NotifBoostApplied {
		t.Fatalf("unexpected notice %v", notice)
	}
	id := jsonNumber(uint(notice["id"].(float64)))

	if code, _ := ts.do(t, ts.admin, http.MethodPut, "/api/notifications/"+id+"/read", nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 marking another user's notice, got %d", code)
	}
	if code, _ := ts.do(t, ts.user, http.MethodPut, "/api/notifications/"+id+"/read", nil); code != http.StatusOK {
		t.Fatalf("mark read: %d", code)
	}
	if _, body := ts.do(t, ts.user, http.MethodGet, "/api/notifications", nil); body["unread"] != float64(0) {
		t.Fatalf("expected inbox read, got %v", body)
	}
}
