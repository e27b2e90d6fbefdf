package state

import (
	"context"
	"sync"

	"tradesxbt/internal/storage"
	"tradesxbt/logger"
	"tradesxbt/models"
)

const searchHistoryLimit = 5

// PreferenceService keeps the token search history and the remembered
// sign-in email.
type PreferenceService struct {
	store storage.Store
	log   *logger.Log

	mu      sync.RWMutex
	history []models.CoinSearchResult
	email   string
}

func NewPreferenceService(store storage.Store, log *logger.Log) *PreferenceService {
	if log == nil {
		log = logger.GetLogger()
	}
	return &PreferenceService{store: store, log: log, history: []models.CoinSearchResult{}}
}

func (s *PreferenceService) entry() *logger.Entry {
	return s.log.WithComponent("preference_service")
}

func (s *PreferenceService) Load(ctx context.Context) {
	log := s.entry()
	history := loadJSON(ctx, s.store, storage.KeySearchHistory, log, func() []models.CoinSearchResult { return []models.CoinSearchResult{} })
	if history == nil {
		history = []models.CoinSearchResult{}
	}
	email, _ := loadString(ctx, s.store, storage.KeyRememberedEmail, log)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = history
	s.email = email
}

// SearchHistory returns the most recent searches first.
func (s *PreferenceService) SearchHistory() []models.CoinSearchResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.CoinSearchResult{}, s.history...)
}

// RecordSearch moves a revisited token to the front, replacing the stored
// copy; a new token is prepended and the list capped.
func (s *PreferenceService) RecordSearch(ctx context.Context, coin models.CoinSearchResult) []models.CoinSearchResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	rest := s.history
	for i, e := range s.history {
		if e.ID == coin.ID {
			rest = append(append([]models.CoinSearchResult{}, s.history[:i]...), s.history[i+1:]...)
			break
		}
	}
	next := append([]models.CoinSearchResult{coin}, rest...)
	if len(rest) == len(s.history) && len(next) > searchHistoryLimit {
		next = next[:searchHistoryLimit]
	}
	s.history = next
	saveJSON(ctx, s.store, storage.KeySearchHistory, s.history, s.entry())
	return append([]models.CoinSearchResult{}, s.history...)
}

func (s *PreferenceService) ClearSearchHistory(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = []models.CoinSearchResult{}
	saveJSON(ctx, s.store, storage.KeySearchHistory, s.history, s.entry())
}

func (s *PreferenceService) RememberedEmail() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.email
}

// SetRememberedEmail stores email, or forgets it when remember is false.
func (s *PreferenceService) SetRememberedEmail(ctx context.Context, email string, remember bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if remember {
		s.email = email
		saveString(ctx, s.store, storage.KeyRememberedEmail, email, s.entry())
		return
	}
	s.email = ""
	deleteKey(ctx, s.store, storage.KeyRememberedEmail, s.entry())
}
