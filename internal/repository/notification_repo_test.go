package repository

import (
	"errors"
	"testing"

	"heliactyl/internal/domain"
	"heliactyl/internal/models"
	"heliactyl/internal/testutil"
)

func TestNotificationInbox(t *testing.T) {
	repo := NewNotificationRepository(testutil.NewDB(t))
	for _, kind := range []string{domain.NotifBoostApplied, domain.NotifBoostExpired} {
		n := &models.Notification{UserID: 1, Type: kind, Title: kind, Data: map[string]interface{}{"serverId": "1"}}
		if err := repo.Create(n); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	other := &models.Notification{UserID: 2, Type: domain.NotifBoostApplied}
	if err := repo.Create(other); err != nil {
		t.Fatalf("create: %v", err)
	}

	list, err := repo.ListForUser(1, NotificationFilter{Limit: 10})
	if err != nil || len(list) != 2 {
		t.Fatalf("expected 2 notifications, got %d (err %v)", len(list), err)
	}
	if list[0].Type != domain.NotifBoostExpired || list[0].Data["serverId"] != "1" {
		t.Fatalf("expected newest first with data, got %+v", list[0])
	}

	if err := repo.MarkRead(other.ID, 1); !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("expected foreign notification to be not found, got %v", err)
	}
	if err := repo.MarkRead(list[0].ID, 1); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if err := repo.MarkRead(list[0].ID, 1); err != nil {
		t.Fatalf("marking twice must succeed, got %v", err)
	}
	unread, _ := repo.ListForUser(1, NotificationFilter{UnreadOnly: true, Limit: 10})
	if len(unread) != 1 || unread[0].Type != domain.NotifBoostApplied {
		t.Fatalf("expected one unread notification, got %+v", unread)
	}

	n, err := repo.MarkAllRead(1)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 marked, got %d (err %v)", n, err)
	}
	if c, _ := repo.CountUnread(1); c != 0 {
		t.Fatalf("expected no unread left, got %d", c)
	}
	if c, _ := repo.CountUnread(2); c != 1 {
		t.Fatalf("other user's inbox must be untouched, got %d", c)
	}
}
