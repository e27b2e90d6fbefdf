package state

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"tradesxbt/internal/storage"
	"tradesxbt/models"
)

func TestSearchHistory(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	log, _ := testLogger()
	svc := NewPreferenceService(store, log)
	svc.Load(ctx)

	for i := 1; i <= 6; i++ {
		svc.RecordSearch(ctx, models.CoinSearchResult{ID: fmt.Sprintf("coin-%d", i), Symbol: "c"})
	}
	h := svc.SearchHistory()
	if len(h) != 5 || h[0].ID != "coin-6" || h[4].ID != "coin-2" {
		t.Fatalf("unexpected history %+v", h)
	}

	h = svc.RecordSearch(ctx, models.CoinSearchResult{ID: "coin-3", Name: "Revisited"})
	if len(h) != 5 || h[0].ID != "coin-3" || h[0].Name != "Revisited" || h[1].ID != "coin-6" {
		t.Fatalf("revisit should move the token to the front: %+v", h)
	}

	reloaded := NewPreferenceService(store, log)
	reloaded.Load(ctx)
	if got := reloaded.SearchHistory(); len(got) != 5 || got[0].ID != "coin-3" {
		t.Fatalf("history not restored: %+v", got)
	}

	reloaded.ClearSearchHistory(ctx)
	if len(reloaded.SearchHistory()) != 0 {
		t.Fatalf("history not cleared")
	}
}

func TestRememberedEmail(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	log, _ := testLogger()
	svc := NewPreferenceService(store, log)
	svc.Load(ctx)

	svc.SetRememberedEmail(ctx, "trader@example.com", true)
	reloaded := NewPreferenceService(store, log)
	reloaded.Load(ctx)
	if reloaded.RememberedEmail() != "trader@example.com" {
		t.Fatalf("email not restored")
	}

	reloaded.SetRememberedEmail(ctx, "trader@example.com", false)
	if reloaded.RememberedEmail() != "" {
		t.Fatalf("email not forgotten")
	}
	if _, err := store.Get(ctx, storage.KeyRememberedEmail); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("forgotten email should be deleted from the store")
	}
}
