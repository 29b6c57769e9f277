package repository

import (
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"heliactyl/internal/domain"
	"heliactyl/internal/models"
	"heliactyl/internal/testutil"

	"github.com/google/uuid"
)

func newActiveBoost(serverID string, expires time.Time) *models.Boost {
	applied := expires.Add(-time.Hour)
	slot := serverID
	return &models.Boost{
		ID:             uuid.NewString(),
		UserID:         1,
		ServerID:       serverID,
		BoostType:      "memory",
		Duration:       "1h",
		DurationMs:     time.Hour.Milliseconds(),
		Price:          100,
		State:          domain.BoostStateActive,
		ActiveServerID: &slot,
		AppliedAt:      &applied,
		ExpiresAt:      &expires,
		Version:        1,
	}
}

func TestBoostTransitionIsCompareAndSwap(t *testing.T) {
	repo := NewBoostRepository(testutil.NewDB(t))
	b := newActiveBoost("srv-1", time.Now().Add(time.Hour))
	if err := repo.Create(b); err != nil {
		t.Fatalf("create: %v", err)
	}

	fields := map[string]interface{}{"state": domain.BoostStateCancelled, "active_server_id": nil}
	if err := repo.Transition(b.ID, domain.BoostStateActive, 1, fields); err != nil {
		t.Fatalf("first transition: %v", err)
	}
	if err := repo.Transition(b.ID, domain.BoostStateActive, 1, fields); !errors.Is(err, ErrBoostStale) {
		t.Fatalf("expected ErrBoostStale on replay, got %v", err)
	}

	got, err := repo.GetByID(b.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.State != domain.BoostStateCancelled || got.Version != 2 {
		t.Fatalf("expected cancelled at version 2, got %s v%d", got.State, got.Version)
	}
	if got.ActiveServerID != nil {
		t.Fatal("expected active slot to be released")
	}
	if active, _ := repo.ActiveForServer("srv-1"); active != nil {
		t.Fatal("expected no active boost after cancel")
	}
}

func TestBoostDueQueries(t *testing.T) {
	repo := NewBoostRepository(testutil.NewDB(t))
	now := time.Now()

	expired := newActiveBoost("srv-1", now.Add(-time.Minute))
	running := newActiveBoost("srv-2", now.Add(time.Minute))
	due := now.Add(-time.Second)
	scheduled := &models.Boost{
		ID: uuid.NewString(), UserID: 1, ServerID: "srv-3", BoostType: "cpu", Duration: "1h",
		DurationMs: time.Hour.Milliseconds(), Price: 120, State: domain.BoostStateScheduled,
		ScheduledTime: &due, Version: 1,
	}
	for _, b := range []*models.Boost{expired, running, scheduled} {
		if err := repo.Create(b); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	exp, err := repo.DueExpired(now, 10)
	if err != nil {
		t.Fatalf("due expired: %v", err)
	}
	if len(exp) != 1 || exp[0].ID != expired.ID {
		t.Fatalf("expected only the expired boost, got %d", len(exp))
	}
	sched, err := repo.DueScheduled(now, 10)
	if err != nil {
		t.Fatalf("due scheduled: %v", err)
	}
	if len(sched) != 1 || sched[0].ID != scheduled.ID {
		t.Fatalf("expected the due scheduled boost, got %d", len(sched))
	}
}

func TestBoostReconcileFlag(t *testing.T) {
	repo := NewBoostRepository(testutil.NewDB(t))
	b := newActiveBoost("srv-9", time.Now().Add(time.Hour))
	if err := repo.Create(b); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repo.FlagReconcile(b.ID, errors.New("panel down"), 1); err != nil {
		t.Fatalf("flag: %v", err)
	}
	pending, err := repo.HasPendingReconcile("srv-9")
	if err != nil || !pending {
		t.Fatalf("expected pending reconcile, got %v (err %v)", pending, err)
	}
	if list, _ := repo.NeedsReconcile(1); len(list) != 0 {
		t.Fatalf("expected attempt cap to exclude the boost, got %d", len(list))
	}
	if list, _ := repo.NeedsReconcile(0); len(list) != 1 {
		t.Fatalf("expected uncapped listing to include the boost, got %d", len(list))
	}

	if ok, _ := repo.MarkReconciled(b.ID, b.Version+1); ok {
		t.Fatal("expected stale version to leave the flag set")
	}
	if ok, err := repo.MarkReconciled(b.ID, b.Version); err != nil || !ok {
		t.Fatalf("mark reconciled: %v (ok %v)", err, ok)
	}
	if pending, _ := repo.HasPendingReconcile("srv-9"); pending {
		t.Fatal("expected flag cleared")
	}
}

func TestBoostGetByIDMissing(t *testing.T) {
	repo := NewBoostRepository(testutil.NewDB(t))
	if _, err := repo.GetByID("nope"); !errors.Is(err, ErrBoostNotFound) {
		t.Fatalf("expected ErrBoostNotFound, got %v", err)
	}
}

func TestFlagReconcileTruncatesOnCharacterBoundary(t *testing.T) {
	repo := NewBoostRepository(testutil.NewDB(t))
	b := newActiveBoost("srv-8", time.Now().Add(time.Hour))
	if err := repo.Create(b); err != nil {
		t.Fatalf("create: %v", err)
	}

	body := "x" + strings.Repeat("é", 600)
	if err := repo.FlagReconcile(b.ID, errors.New(body), 1); err != nil {
		t.Fatalf("flag: %v", err)
	}
	got, err := repo.GetByID(b.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !utf8.ValidString(got.ReconcileError) {
		t.Fatalf("stored error is not valid UTF-8: %q", got.ReconcileError)
	}
	if n := utf8.RuneCountInString(got.ReconcileError); n != reconcileErrorLimit {
		t.Fatalf("expected %d characters, got %d", reconcileErrorLimit, n)
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"héllo", 2, "hé"},
		{"日本語", 1, "日"},
		{"ok\xffok", 10, "okok"},
	}
	for _, tt := range tests {
		if got := truncateRunes(tt.in, tt.n); got != tt.want {
			t.Errorf("truncateRunes(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
