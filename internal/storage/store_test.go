package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"tradesxbt/config"
	"tradesxbt/logger"
)

func testLogger() (*logger.Log, *test.Hook) {
	l, hook := test.NewNullLogger()
	return &logger.Log{Logger: l}, hook
}

func openBackends(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := NewSQLite(context.Background(), filepath.Join(t.TempDir(), "data", "kv.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sq.Close() })
	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": sq,
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Get(ctx, KeyTheme); !errors.Is(err, ErrNotFound) {
				t.Fatalf("missing key err = %v, want ErrNotFound", err)
			}
			if err := s.Set(ctx, KeyTheme, []byte(`"dark"`)); err != nil {
				t.Fatalf("set: %v", err)
			}
			if err := s.Set(ctx, KeyTheme, []byte(`"light"`)); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			v, err := s.Get(ctx, KeyTheme)
			if err != nil || string(v) != `"light"` {
				t.Fatalf("get = %q, %v", v, err)
			}
			if err := s.Delete(ctx, KeyTheme); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, err := s.Get(ctx, KeyTheme); !errors.Is(err, ErrNotFound) {
				t.Fatalf("deleted key err = %v", err)
			}
			// deleting an absent key is not an error
			if err := s.Delete(ctx, KeyTheme); err != nil {
				t.Fatalf("second delete: %v", err)
			}
		})
	}
}

func TestMemoryCopiesValues(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	buf := []byte("abc")
	m.Set(ctx, "k", buf)
	buf[0] = 'x'
	v, _ := m.Get(ctx, "k")
	if string(v) != "abc" {
		t.Fatalf("stored value aliased caller buffer: %q", v)
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.db")
	s, err := NewSQLite(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Set(ctx, KeyUserAlerts, []byte("[]")); err != nil {
		t.Fatalf("set: %v", err)
	}
	s.Close()

	s, err = NewSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	v, err := s.Get(ctx, KeyUserAlerts)
	if err != nil || string(v) != "[]" {
		t.Fatalf("get after reopen = %q, %v", v, err)
	}
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	log, _ := testLogger()
	if _, err := New(context.Background(), config.StorageConfig{Backend: "etcd"}, log); err == nil {
		t.Fatal("expected error for unknown backend")
	}
	s, err := New(context.Background(), config.StorageConfig{}, log)
	if err != nil {
		t.Fatalf("default backend: %v", err)
	}
	defer s.Close()
	if err := s.Set(context.Background(), "k", []byte("v")); err != nil {
		t.Fatalf("set: %v", err)
	}
}

type failing struct{ *Memory }

func (f *failing) Set(context.Context, string, []byte) error { return errors.New("disk full") }

func TestInstrumentLogsFailuresOnly(t *testing.T) {
	log, hook := testLogger()
	s := Instrument(&failing{Memory: NewMemory()}, "memory", time.Second, log)
	ctx := context.Background()

	if _, err := s.Get(ctx, "absent"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get err = %v", err)
	}
	if len(hook.AllEntries()) != 0 {
		t.Fatalf("not-found should not be logged, got %d entries", len(hook.AllEntries()))
	}
	if err := s.Set(ctx, KeyTheme, []byte("x")); err == nil {
		t.Fatal("expected set failure")
	}
	e := hook.LastEntry()
	if e == nil || e.Level != logrus.WarnLevel || e.Data["operation"] != "set" || e.Data["key"] != KeyTheme {
		t.Fatalf("unexpected log entry: %+v", e)
	}
}
