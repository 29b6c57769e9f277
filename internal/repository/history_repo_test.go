package repository

import (
	"testing"
	"time"

	"heliactyl/internal/domain"
	"heliactyl/internal/models"
	"heliactyl/internal/testutil"
)

func TestHistorySameMillisecondKeepsWriteOrder(t *testing.T) {
	repo := NewHistoryRepository(testutil.NewDB(t))
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	kinds := []string{domain.HistoryApplied, domain.HistoryExtended, domain.HistoryCancelled}
	for _, kind := range kinds {
		if err := repo.Append(&models.BoostHistory{UserID: 1, ServerID: "1", BoostID: "b-1", Type: kind, Timestamp: at}); err != nil {
			t.Fatalf("append %s: %v", kind, err)
		}
	}

	newest, err := repo.ListByUser(1, 10)
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(newest) != 3 || newest[0].Type != domain.HistoryCancelled || newest[2].Type != domain.HistoryApplied {
		t.Fatalf("expected newest first, got %+v", newest)
	}

	oldest, err := repo.ListByBoost("b-1")
	if err != nil {
		t.Fatalf("list by boost: %v", err)
	}
	if len(oldest) != 3 || oldest[0].Type != domain.HistoryApplied || oldest[2].Type != domain.HistoryCancelled {
		t.Fatalf("expected oldest first, got %+v", oldest)
	}
	if oldest[0].ID == "" || oldest[0].ID == oldest[1].ID {
		t.Fatal("expected distinct generated ids")
	}
}
