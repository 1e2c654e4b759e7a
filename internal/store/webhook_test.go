package store

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/efreitasn/commandledger/internal/domain"
)

func hook(id, account, event, url string) *domain.Webhook {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return &domain.Webhook{
		WebhookID: id,
		AccountID: domain.AccountID(account),
		Event:     event,
		URL:       url,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestWebhookStore_Upsert(t *testing.T) {
	tests := []struct {
		name        string
		second      *domain.Webhook
		wantCreated bool
		wantID      string
		wantURL     string
	}{
		{
			name:        "other event is a new subscription",
			second:      hook("wh-2", "commander", "command.cancelled", "https://example.com/a"),
			wantCreated: true,
			wantID:      "wh-2",
			wantURL:     "https://example.com/a",
		},
		{
			name:        "other account is a new subscription",
			second:      hook("wh-2", "certifier", "command.created", "https://example.com/a"),
			wantCreated: true,
			wantID:      "wh-2",
			wantURL:     "https://example.com/a",
		},
		{
			name:    "same pair and URL keeps the subscription",
			second:  hook("wh-2", "commander", "command.created", "https://example.com/a"),
			wantID:  "wh-1",
			wantURL: "https://example.com/a",
		},
		{
			name:    "same pair with new URL updates in place",
			second:  hook("wh-2", "commander", "command.created", "https://example.com/b"),
			wantID:  "wh-1",
			wantURL: "https://example.com/b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewWebhookStore()
			if _, created := s.Upsert(hook("wh-1", "commander", "command.created", "https://example.com/a")); !created {
				t.Fatal("expected first upsert to create")
			}

			got, created := s.Upsert(tt.second)
			if created != tt.wantCreated {
				t.Fatalf("expected created=%v, got %v", tt.wantCreated, created)
			}
			if got.WebhookID != tt.wantID || got.URL != tt.wantURL {
				t.Fatalf("expected %s at %s, got %s at %s", tt.wantID, tt.wantURL, got.WebhookID, got.URL)
			}

			stored, err := s.Get(tt.wantID)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if stored.URL != tt.wantURL {
				t.Fatalf("expected stored URL %s, got %s", tt.wantURL, stored.URL)
			}
			if !tt.wantCreated {
				if _, err := s.Get("wh-2"); !errors.Is(err, domain.ErrWebhookNotFound) {
					t.Fatalf("expected wh-2 to be discarded, got %v", err)
				}
			}
		})
	}
}

func TestWebhookStore_UpdateBumpsUpdatedAt(t *testing.T) {
	s := NewWebhookStore()
	s.Upsert(hook("wh-1", "commander", "command.created", "https://example.com/a"))

	moved := hook("wh-2", "commander", "command.created", "https://example.com/b")
	moved.UpdatedAt = moved.UpdatedAt.Add(time.Hour)
	s.Upsert(moved)

	got, _ := s.Get("wh-1")
	if !got.UpdatedAt.Equal(moved.UpdatedAt) {
		t.Fatalf("expected updated_at %v, got %v", moved.UpdatedAt, got.UpdatedAt)
	}
	if got.CreatedAt.Equal(got.UpdatedAt) {
		t.Fatal("expected created_at to stay put")
	}
}

func TestWebhookStore_ReturnsCopies(t *testing.T) {
	s := NewWebhookStore()
	returned, _ := s.Upsert(hook("wh-1", "commander", "command.created", "https://example.com/a"))
	returned.URL = "https://evil.example.com"

	fetched, _ := s.Get("wh-1")
	fetched.URL = "https://evil.example.com"

	if got := s.Subscription("commander", "command.created"); got.URL != "https://example.com/a" {
		t.Fatalf("expected stored URL untouched, got %s", got.URL)
	}
}

func TestWebhookStore_ListByAccount(t *testing.T) {
	s := NewWebhookStore()

	if list := s.ListByAccount("commander"); list == nil || len(list) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", list)
	}

	s.Upsert(hook("wh-1", "commander", "command.created", "https://example.com/a"))
	s.Upsert(hook("wh-2", "commander", "command.certified", "https://example.com/b"))
	s.Upsert(hook("wh-3", "commander", "command.cancelled", "https://example.com/c"))
	s.Upsert(hook("wh-4", "certifier", "command.created", "https://example.com/d"))

	list := s.ListByAccount("commander")
	want := []string{"command.cancelled", "command.certified", "command.created"}
	if len(list) != len(want) {
		t.Fatalf("expected %d webhooks, got %d", len(want), len(list))
	}
	for i, w := range list {
		if w.Event != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], w.Event)
		}
	}
}

func TestWebhookStore_Delete(t *testing.T) {
	s := NewWebhookStore()
	s.Upsert(hook("wh-1", "commander", "command.created", "https://example.com/a"))
	s.Upsert(hook("wh-2", "commander", "command.cancelled", "https://example.com/b"))

	if err := s.Delete("wh-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Get("wh-1"); !errors.Is(err, domain.ErrWebhookNotFound) {
		t.Fatalf("expected ErrWebhookNotFound, got %v", err)
	}
	if s.Subscription("commander", "command.created") != nil {
		t.Fatal("expected subscription index to be cleaned up")
	}
	if list := s.ListByAccount("commander"); len(list) != 1 || list[0].WebhookID != "wh-2" {
		t.Fatalf("expected only wh-2 to remain, got %v", list)
	}

	if err := s.Delete("wh-1"); !errors.Is(err, domain.ErrWebhookNotFound) {
		t.Fatalf("expected ErrWebhookNotFound on second delete, got %v", err)
	}

	// The pair is free again.
	if _, created := s.Upsert(hook("wh-3", "commander", "command.created", "https://example.com/a")); !created {
		t.Fatal("expected re-subscription after delete to create")
	}
}

func TestWebhookStore_Subscription(t *testing.T) {
	s := NewWebhookStore()
	if s.Subscription("commander", "command.created") != nil {
		t.Fatal("expected nil on empty store")
	}

	s.Upsert(hook("wh-1", "commander", "command.cancelled", "https://example.com/a"))
	if s.Subscription("commander", "command.created") != nil {
		t.Fatal("expected nil for a different event")
	}
	if got := s.Subscription("commander", "command.cancelled"); got == nil || got.WebhookID != "wh-1" {
		t.Fatalf("expected wh-1, got %v", got)
	}
}

func TestWebhookStore_ConcurrentAccess(t *testing.T) {
	s := NewWebhookStore()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(4)
		account := fmt.Sprintf("account-%d", i%10)
		id := fmt.Sprintf("wh-%d", i)
		go func() {
			defer wg.Done()
			s.Upsert(hook(id, account, "command.created", "https://example.com/"+id))
		}()
		go func() {
			defer wg.Done()
			s.ListByAccount(domain.AccountID(account))
		}()
		go func() {
			defer wg.Done()
			s.Subscription(domain.AccountID(account), "command.created")
		}()
		go func() {
			defer wg.Done()
			s.Delete(id)
		}()
	}
	wg.Wait()
}
