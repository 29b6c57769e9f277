package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"heliactyl/config"
	"heliactyl/internal/boosts"
	"heliactyl/internal/models"
	"heliactyl/internal/repository"
	"heliactyl/internal/testutil"
	"heliactyl/pkg/panel"

	"gorm.io/gorm"
)

type limitsCall struct {
	serverID          string
	memory, cpu, disk int64
}

// stubPanel keeps server limits in memory the way the real panel would.
type stubPanel struct {
	mu       sync.Mutex
	servers  map[string]*panel.Server
	calls    []limitsCall
	getErr   error
	limitErr error
}

func newStubPanel() *stubPanel {
	return &stubPanel{servers: make(map[string]*panel.Server)}
}

func (p *stubPanel) addServer(id string, owner uint, memory, cpu, disk int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.servers[id] = &panel.Server{
		Identifier: id,
		Name:       "srv " + id,
		User:       owner,
		Limits:     panel.Limits{Memory: memory, CPU: cpu, Disk: disk},
	}
}

func (p *stubPanel) removeServer(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.servers, id)
}

func (p *stubPanel) GetServer(ctx context.Context, id string) (*panel.Server, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.getErr != nil {
		return nil, p.getErr
	}
	srv, ok := p.servers[id]
	if !ok {
		return nil, panel.ErrServerNotFound
	}
	cp := *srv
	return &cp, nil
}

func (p *stubPanel) SetLimits(ctx context.Context, id string, memory, cpu, disk int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.limitErr != nil {
		return p.limitErr
	}
	srv, ok := p.servers[id]
	if !ok {
		return panel.ErrServerNotFound
	}
	srv.Limits.Memory, srv.Limits.CPU, srv.Limits.Disk = memory, cpu, disk
	p.calls = append(p.calls, limitsCall{serverID: id, memory: memory, cpu: cpu, disk: disk})
	return nil
}

func (p *stubPanel) limits(id string) panel.Limits {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.servers[id].Limits
}

func (p *stubPanel) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type stubNotifier struct {
	mu    sync.Mutex
	kinds []string
}

func (n *stubNotifier) NotifyBoost(ctx context.Context, b *models.Boost, kind string, details map[string]interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kinds = append(n.kinds, kind)
}

var errPanelDown = errors.New("connection refused")

type testEnv struct {
	db       *gorm.DB
	svc      *BoostService
	panel    *stubPanel
	notifier *stubNotifier
	wallets  *repository.WalletRepository
	user     *models.User
	now      time.Time
	// onClock runs once on the next clock read, after the operation under
	// test has loaded its boost.
	onClock func()
}

func (e *testEnv) advance(d time.Duration) { e.now = e.now.Add(d) }

func (e *testEnv) balance(t *testing.T) int64 {
	t.Helper()
	bal, err := e.wallets.Balance(e.user.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return bal
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestEnv creates a user owning server "1" (1024 MB, 100% CPU, 5120 MB
// disk) with the given coin balance.
func newTestEnv(t *testing.T, coins int64, types ...boosts.BoostType) *testEnv {
	t.Helper()
	if len(types) == 0 {
		types = boosts.DefaultTypes()
	}
	catalog, err := boosts.NewCatalog(types)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	db := testutil.NewDB(t)
	user := &models.User{Username: "steve", Email: "steve@example.com", PanelUserID: 7}
	if err := repository.NewUserRepository(db).Create(user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	wallets := repository.NewWalletRepository(db)
	if coins > 0 {
		if err := wallets.Credit(user.ID, coins); err != nil {
			t.Fatalf("credit: %v", err)
		}
	}

	p := newStubPanel()
	p.addServer("1", 7, 1024, 100, 5120)
	n := &stubNotifier{}
	env := &testEnv{
		db:       db,
		panel:    p,
		notifier: n,
		wallets:  wallets,
		user:     user,
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	env.svc = NewBoostService(db, catalog, p, n, config.BoostConfig{
		CancelRefundRate:     0.5,
		ReconcileMaxAttempts: 3,
	}, discardLogger())
	env.svc.SetClock(func() time.Time {
		if hook := env.onClock; hook != nil {
			env.onClock = nil
			hook()
		}
		return env.now
	})
	return env
}
