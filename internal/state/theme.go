package state

import (
	"context"
	"fmt"
	"sync"

	"tradesxbt/internal/storage"
	"tradesxbt/logger"
)

type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark || t == ThemeSystem
}

type ColorScheme string

const (
	SchemeDefault ColorScheme = "default"
	SchemeBlue    ColorScheme = "blue"
	SchemeGreen   ColorScheme = "green"
	SchemePurple  ColorScheme = "purple"
	SchemeAmber   ColorScheme = "amber"
	SchemeRed     ColorScheme = "red"
)

func (c ColorScheme) Valid() bool {
	switch c {
	case SchemeDefault, SchemeBlue, SchemeGreen, SchemePurple, SchemeAmber, SchemeRed:
		return true
	}
	return false
}

// ThemeSettings is the persisted appearance choice.
type ThemeSettings struct {
	Theme       Theme       `json:"theme"`
	ColorScheme ColorScheme `json:"colorScheme"`
}

type ThemeService struct {
	store storage.Store
	log   *logger.Log

	mu       sync.RWMutex
	settings ThemeSettings
}

func NewThemeService(store storage.Store, log *logger.Log) *ThemeService {
	if log == nil {
		log = logger.GetLogger()
	}
	return &ThemeService{
		store:    store,
		log:      log,
		settings: ThemeSettings{Theme: ThemeSystem, ColorScheme: SchemeDefault},
	}
}

// Load restores both values; anything missing or unrecognised keeps the
// default.
func (s *ThemeService) Load(ctx context.Context) {
	log := s.log.WithComponent("theme_service")
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := loadString(ctx, s.store, storage.KeyTheme, log); ok && Theme(v).Valid() {
		s.settings.Theme = Theme(v)
	}
	if v, ok := loadString(ctx, s.store, storage.KeyColorScheme, log); ok && ColorScheme(v).Valid() {
		s.settings.ColorScheme = ColorScheme(v)
	}
}

func (s *ThemeService) Settings() ThemeSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

func (s *ThemeService) SetTheme(ctx context.Context, t Theme) error {
	if !t.Valid() {
		return fmt.Errorf("invalid theme '%s'", t)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.Theme = t
	saveString(ctx, s.store, storage.KeyTheme, string(t), s.log.WithComponent("theme_service"))
	return nil
}

func (s *ThemeService) SetColorScheme(ctx context.Context, c ColorScheme) error {
	if !c.Valid() {
		return fmt.Errorf("invalid color scheme '%s'", c)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.ColorScheme = c
	saveString(ctx, s.store, storage.KeyColorScheme, string(c), s.log.WithComponent("theme_service"))
	return nil
}

// IsDark resolves the effective mode; systemDark is the client's OS
// preference.
func (s *ThemeService) IsDark(systemDark bool) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Theme == ThemeDark || (s.settings.Theme == ThemeSystem && systemDark)
}
