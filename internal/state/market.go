package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jpillora/backoff"

	"tradesxbt/config"
	"tradesxbt/internal/coingecko"
	"tradesxbt/internal/metrics"
	"tradesxbt/logger"
	"tradesxbt/models"
)

// MarketFetchError is the message shown once every refresh attempt failed.
const MarketFetchError = "Failed to fetch crypto market data. Please try again later."

// ErrSuperseded is returned by Refresh when a newer refresh started before
// this one finished; its results were discarded.
var ErrSuperseded = errors.New("market refresh superseded")

// MarketSource is the subset of the market-data client the service needs.
type MarketSource interface {
	FetchCoinsMarketData(ctx context.Context, q coingecko.MarketsQuery) ([]models.MarketDataPoint, error)
	FetchGlobalData(ctx context.Context) (models.GlobalData, error)
	FetchTopGainersLosers(ctx context.Context, currency string, timeframe models.Timeframe, limit int) (models.TopMovers, error)
	Search(ctx context.Context, query string) models.SearchResults
}

// MarketSnapshot is a consistent copy of the market state.
type MarketSnapshot struct {
	MarketData        []models.MarketDataPoint `json:"marketData"`
	TopCoins          []models.MarketDataPoint `json:"topCoins"`
	TopGainers        []models.TopCoin         `json:"topGainers"`
	TopLosers         []models.TopCoin         `json:"topLosers"`
	GlobalData        *models.GlobalData       `json:"globalData"`
	SelectedToken     string                   `json:"selectedToken"`
	SelectedTimeframe models.Timeframe         `json:"selectedTimeframe"`
	IsLoading         bool                     `json:"isLoading"`
	Error             string                   `json:"error,omitempty"`
	UpdatedAt         int64                    `json:"updatedAt,omitempty"`
	Version           uint64                   `json:"version"`
}

type MarketService struct {
	source MarketSource
	cfg    config.MarketConfig
	log    *logger.Log
	clock  Clock

	mu         sync.RWMutex
	snap       MarketSnapshot
	generation uint64
	cancel     context.CancelFunc

	runMu   sync.Mutex
	running bool
	runCtx  context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

func NewMarketService(source MarketSource, cfg config.MarketConfig, log *logger.Log) *MarketService {
	if log == nil {
		log = logger.GetLogger()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	if cfg.TopCoinsLimit <= 0 {
		cfg.TopCoinsLimit = 100
	}
	if cfg.MoversLimit <= 0 {
		cfg.MoversLimit = 10
	}
	token := cfg.SelectedToken
	if token == "" {
		token = "bitcoin"
	}
	tf := models.Timeframe(cfg.Timeframe)
	if !tf.Valid() {
		tf = models.Timeframe24h
	}
	return &MarketService{
		source: source,
		cfg:    cfg,
		log:    log,
		clock:  time.Now,
		snap: MarketSnapshot{
			MarketData:        []models.MarketDataPoint{},
			TopCoins:          []models.MarketDataPoint{},
			TopGainers:        []models.TopCoin{},
			TopLosers:         []models.TopCoin{},
			SelectedToken:     token,
			SelectedTimeframe: tf,
			IsLoading:         true,
		},
	}
}

// Start refreshes immediately and then every poll interval until Stop or
// ctx cancellation.
func (s *MarketService) Start(ctx context.Context) error {
	s.runMu.Lock()
	if s.running {
		s.runMu.Unlock()
		return fmt.Errorf("market service already running")
	}
	s.running = true
	s.runCtx, s.stop = context.WithCancel(ctx)
	runCtx := s.runCtx
	s.wg.Add(1)
	s.runMu.Unlock()

	go s.poll(runCtx)

	s.log.WithComponent("market_service").WithFields(logger.Fields{
		"poll_interval": s.cfg.PollInterval.String(),
		"token":         s.Snapshot().SelectedToken,
	}).Info("market service started")
	return nil
}

func (s *MarketService) Stop() {
	s.runMu.Lock()
	if !s.running {
		s.runMu.Unlock()
		return
	}
	s.running = false
	s.stop()
	s.runMu.Unlock()

	s.wg.Wait()
	s.log.WithComponent("market_service").Info("market service stopped")
}

func (s *MarketService) poll(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	_ = s.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.Refresh(ctx)
		}
	}
}

// Snapshot returns a copy of the current state.
func (s *MarketService) Snapshot() MarketSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.snap
	out.MarketData = append([]models.MarketDataPoint(nil), s.snap.MarketData...)
	out.TopCoins = append([]models.MarketDataPoint(nil), s.snap.TopCoins...)
	out.TopGainers = append([]models.TopCoin(nil), s.snap.TopGainers...)
	out.TopLosers = append([]models.TopCoin(nil), s.snap.TopLosers...)
	if s.snap.GlobalData != nil {
		g := *s.snap.GlobalData
		out.GlobalData = &g
	}
	return out
}

type marketResult struct {
	coins  []models.MarketDataPoint
	top    []models.MarketDataPoint
	global models.GlobalData
	movers models.TopMovers
}

// Refresh fetches the selected token row, the top coins, global data and top
// movers together. Up to MaxRetries attempts are made with doubling delays.
// On exhaustion the previous data is kept and Error is set. Starting a
// refresh cancels any refresh still in flight.
func (s *MarketService) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	gen := s.generation
	rctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	token, tf := s.snap.SelectedToken, s.snap.SelectedTimeframe
	s.snap.IsLoading = true
	s.snap.Error = ""
	s.snap.Version++
	s.mu.Unlock()
	defer cancel()

	log := s.log.WithComponent("market_service").WithFields(logger.Fields{
		"token":      token,
		"timeframe":  string(tf),
		"generation": gen,
	})
	start := time.Now()
	res, err := s.fetchWithRetry(rctx, token, tf, log)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		metrics.ObserveMarketRefresh("superseded")
		log.Debug("discarding superseded market refresh")
		return ErrSuperseded
	}
	s.cancel = nil
	s.snap.IsLoading = false
	s.snap.Version++
	if err != nil && ctx.Err() != nil {
		log.WithError(err).Debug("market refresh cancelled")
		return err
	}
	if err != nil {
		s.snap.Error = MarketFetchError
		metrics.ObserveMarketRefresh("failure")
		log.WithError(err).Error("market refresh failed, keeping last data")
		return err
	}

	s.snap.MarketData = res.coins
	s.snap.TopCoins = res.top
	s.snap.GlobalData = &res.global
	s.snap.TopGainers = nonNilMovers(res.movers.Gainers)
	s.snap.TopLosers = nonNilMovers(res.movers.Losers)
	s.snap.UpdatedAt = nowMillis(s.clock)
	metrics.ObserveMarketRefresh("success")
	logger.LogPerformanceEntry(log, "market_service", "refresh", time.Since(start), nil)
	return nil
}

func nonNilMovers(v []models.TopCoin) []models.TopCoin {
	if v == nil {
		return []models.TopCoin{}
	}
	return v
}

func (s *MarketService) fetchWithRetry(ctx context.Context, token string, tf models.Timeframe, log *logger.Entry) (marketResult, error) {
	b := &backoff.Backoff{
		Min:    2 * s.cfg.RetryBaseDelay,
		Max:    time.Duration(1<<uint(s.cfg.MaxRetries)) * s.cfg.RetryBaseDelay,
		Factor: 2,
	}
	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		res, err := s.fetchAll(ctx, token, tf)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return marketResult{}, ctx.Err()
		}
		lastErr = err
		if attempt == s.cfg.MaxRetries {
			break
		}
		delay := b.Duration()
		log.WithError(err).WithFields(logger.Fields{
			"attempt": attempt,
			"delay":   delay.String(),
		}).Debug("market fetch failed, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return marketResult{}, ctx.Err()
		case <-timer.C:
		}
	}
	return marketResult{}, lastErr
}

func (s *MarketService) fetchAll(ctx context.Context, token string, tf models.Timeframe) (marketResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		res  marketResult
		wg   sync.WaitGroup
		once sync.Once
		err  error
	)
	fail := func(e error) {
		once.Do(func() {
			err = e
			cancel()
		})
	}

	wg.Add(4)
	go func() {
		defer wg.Done()
		rows, e := s.source.FetchCoinsMarketData(ctx, coingecko.MarketsQuery{Currency: s.cfg.Currency, IDs: []string{token}, Limit: 1})
		if e != nil {
			fail(fmt.Errorf("selected token: %w", e))
			return
		}
		res.coins = rows
	}()
	go func() {
		defer wg.Done()
		rows, e := s.source.FetchCoinsMarketData(ctx, coingecko.MarketsQuery{Currency: s.cfg.Currency, Limit: s.cfg.TopCoinsLimit})
		if e != nil {
			fail(fmt.Errorf("top coins: %w", e))
			return
		}
		res.top = rows
	}()
	go func() {
		defer wg.Done()
		g, e := s.source.FetchGlobalData(ctx)
		if e != nil {
			fail(fmt.Errorf("global data: %w", e))
			return
		}
		res.global = g
	}()
	go func() {
		defer wg.Done()
		m, e := s.source.FetchTopGainersLosers(ctx, s.cfg.Currency, tf, s.cfg.MoversLimit)
		if e != nil {
			fail(fmt.Errorf("top movers: %w", e))
			return
		}
		res.movers = m
	}()
	wg.Wait()

	if err != nil {
		return marketResult{}, err
	}
	return res, nil
}

// SetSelectedToken switches the focused coin and refreshes in the background.
func (s *MarketService) SetSelectedToken(token string) {
	if token == "" {
		return
	}
	s.mu.Lock()
	changed := s.snap.SelectedToken != token
	s.snap.SelectedToken = token
	if changed {
		s.snap.Version++
	}
	s.mu.Unlock()
	if changed {
		s.refreshAsync()
	}
}

func (s *MarketService) SetSelectedTimeframe(tf models.Timeframe) error {
	if !tf.Valid() {
		return fmt.Errorf("invalid timeframe '%s'", tf)
	}
	s.mu.Lock()
	changed := s.snap.SelectedTimeframe != tf
	s.snap.SelectedTimeframe = tf
	if changed {
		s.snap.Version++
	}
	s.mu.Unlock()
	if changed {
		s.refreshAsync()
	}
	return nil
}

// refreshAsync runs a refresh tied to the polling loop's lifetime; without a
// running loop it is skipped and the next explicit Refresh picks up the change.
func (s *MarketService) refreshAsync() {
	s.runMu.Lock()
	running, ctx := s.running, s.runCtx
	if running {
		s.wg.Add(1)
	}
	s.runMu.Unlock()
	if !running {
		return
	}
	go func() {
		defer s.wg.Done()
		_ = s.Refresh(ctx)
	}()
}

// SearchTokens returns matching coins; queries shorter than two characters
// return nothing.
func (s *MarketService) SearchTokens(ctx context.Context, query string) []models.CoinSearchResult {
	if len(query) < 2 {
		return []models.CoinSearchResult{}
	}
	res := s.source.Search(ctx, query)
	if res.Coins == nil {
		return []models.CoinSearchResult{}
	}
	return res.Coins
}
