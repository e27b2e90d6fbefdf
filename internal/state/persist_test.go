package state

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"tradesxbt/internal/storage"
	"tradesxbt/logger"
	"tradesxbt/models"
)

func testLogger() (*logger.Log, *test.Hook) {
	l, hook := test.NewNullLogger()
	return &logger.Log{Logger: l}, hook
}

func fixedClock() Clock {
	t := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func warnings(hook *test.Hook, msg string) int {
	n := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == msg {
			n++
		}
	}
	return n
}

func TestLoadJSONPolicy(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	log, hook := testLogger()
	entry := log.WithComponent("test")
	sample := func() []models.Alert { return []models.Alert{{ID: "sample"}} }

	if got := loadJSON(ctx, store, "k", entry, sample); len(got) != 1 || got[0].ID != "sample" {
		t.Fatalf("absent key should yield sample data, got %+v", got)
	}
	if n := len(hook.AllEntries()); n != 0 {
		t.Fatalf("absent key should not log, got %d entries", n)
	}

	_ = store.Set(ctx, "k", []byte("{broken"))
	if got := loadJSON(ctx, store, "k", entry, sample); len(got) != 1 || got[0].ID != "sample" {
		t.Fatalf("unparsable blob should yield sample data, got %+v", got)
	}
	if warnings(hook, "discarding unparsable stored state") != 1 {
		t.Fatalf("unparsable blob should be logged once")
	}

	_ = store.Set(ctx, "k", []byte("[]"))
	if got := loadJSON(ctx, store, "k", entry, sample); got == nil || len(got) != 0 {
		t.Fatalf("persisted empty list should stay empty, got %+v", got)
	}
}

func TestStringValues(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	log, _ := testLogger()
	entry := log.WithComponent("test")

	if _, ok := loadString(ctx, store, "theme", entry); ok {
		t.Fatalf("absent key should report missing")
	}
	saveString(ctx, store, "theme", "dark", entry)
	raw, _ := store.Get(ctx, "theme")
	if string(raw) != "dark" {
		t.Fatalf("strings are stored unquoted, got %q", raw)
	}
	deleteKey(ctx, store, "theme", entry)
	if _, ok := loadString(ctx, store, "theme", entry); ok {
		t.Fatalf("deleted key should report missing")
	}
}
