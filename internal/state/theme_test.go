package state

import (
	"context"
	"testing"

	"tradesxbt/internal/storage"
)

func TestThemeDefaultsAndPersistence(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	log, _ := testLogger()

	svc := NewThemeService(store, log)
	svc.Load(ctx)
	if s := svc.Settings(); s.Theme != ThemeSystem || s.ColorScheme != SchemeDefault {
		t.Fatalf("unexpected defaults %+v", s)
	}
	if !svc.IsDark(true) || svc.IsDark(false) {
		t.Fatalf("system theme should follow the OS preference")
	}

	if err := svc.SetTheme(ctx, "sepia"); err == nil {
		t.Fatalf("invalid theme accepted")
	}
	if err := svc.SetColorScheme(ctx, "pink"); err == nil {
		t.Fatalf("invalid scheme accepted")
	}
	if err := svc.SetTheme(ctx, ThemeDark); err != nil {
		t.Fatalf("set theme: %v", err)
	}
	if err := svc.SetColorScheme(ctx, SchemePurple); err != nil {
		t.Fatalf("set scheme: %v", err)
	}
	if raw, _ := store.Get(ctx, storage.KeyTheme); string(raw) != "dark" {
		t.Fatalf("theme stored as %q", raw)
	}

	reloaded := NewThemeService(store, log)
	reloaded.Load(ctx)
	if s := reloaded.Settings(); s.Theme != ThemeDark || s.ColorScheme != SchemePurple {
		t.Fatalf("settings not restored: %+v", s)
	}
	if !reloaded.IsDark(false) {
		t.Fatalf("dark theme should ignore the OS preference")
	}

	_ = store.Set(ctx, storage.KeyTheme, []byte("neon"))
	ignored := NewThemeService(store, log)
	ignored.Load(ctx)
	if ignored.Settings().Theme != ThemeSystem {
		t.Fatalf("unknown stored theme should fall back to system")
	}
}
