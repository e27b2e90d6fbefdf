package state

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tradesxbt/config"
	"tradesxbt/internal/coingecko"
	"tradesxbt/models"
)

type fakeMarket struct {
	mu          sync.Mutex
	fail        bool
	price       float64
	globalCalls int
	searches    int
	block       bool
	entered     chan struct{}
}

func (f *fakeMarket) FetchCoinsMarketData(ctx context.Context, q coingecko.MarketsQuery) ([]models.MarketDataPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("upstream down")
	}
	id := "bitcoin"
	if len(q.IDs) > 0 {
		id = q.IDs[0]
	}
	return []models.MarketDataPoint{{ID: id, CurrentPrice: f.price}}, nil
}

func (f *fakeMarket) FetchGlobalData(ctx context.Context) (models.GlobalData, error) {
	f.mu.Lock()
	f.globalCalls++
	block := f.block
	f.block = false
	fail := f.fail
	f.mu.Unlock()

	if block {
		close(f.entered)
		<-ctx.Done()
		return models.GlobalData{}, ctx.Err()
	}
	if fail {
		return models.GlobalData{}, errors.New("upstream down")
	}
	return models.GlobalData{MarketCapChangePercentage24hUSD: 1.5}, nil
}

func (f *fakeMarket) FetchTopGainersLosers(ctx context.Context, currency string, timeframe models.Timeframe, limit int) (models.TopMovers, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return models.TopMovers{}, errors.New("upstream down")
	}
	return models.TopMovers{Gainers: []models.TopCoin{{}}}, nil
}

func (f *fakeMarket) Search(ctx context.Context, query string) models.SearchResults {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches++
	return models.SearchResults{Coins: []models.CoinSearchResult{{ID: query}}}
}

func fastMarketConfig() config.MarketConfig {
	cfg := config.Default().Market
	cfg.RetryBaseDelay = time.Millisecond
	cfg.PollInterval = time.Hour
	return cfg
}

func TestRefreshAppliesSnapshot(t *testing.T) {
	src := &fakeMarket{price: 50000}
	log, _ := testLogger()
	svc := NewMarketService(src, fastMarketConfig(), log)

	if !svc.Snapshot().IsLoading {
		t.Fatalf("service should start in loading state")
	}
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	snap := svc.Snapshot()
	if snap.IsLoading || snap.Error != "" {
		t.Fatalf("unexpected flags %+v", snap)
	}
	if len(snap.MarketData) != 1 || snap.MarketData[0].CurrentPrice != 50000 {
		t.Fatalf("unexpected market data %+v", snap.MarketData)
	}
	if snap.GlobalData == nil || snap.GlobalData.MarketCapChangePercentage24hUSD != 1.5 {
		t.Fatalf("global data not applied")
	}
	if len(snap.TopGainers) != 1 || snap.TopLosers == nil {
		t.Fatalf("movers not applied: %+v %+v", snap.TopGainers, snap.TopLosers)
	}
}

func TestFailedPollsKeepLastData(t *testing.T) {
	src := &fakeMarket{price: 42000}
	log, _ := testLogger()
	svc := NewMarketService(src, fastMarketConfig(), log)
	ctx := context.Background()

	if err := svc.Refresh(ctx); err != nil {
		t.Fatalf("initial refresh: %v", err)
	}

	src.mu.Lock()
	src.fail = true
	src.mu.Unlock()

	for i := 0; i < 3; i++ {
		if err := svc.Refresh(ctx); err == nil {
			t.Fatalf("poll %d should fail", i)
		}
		snap := svc.Snapshot()
		if snap.Error != MarketFetchError {
			t.Fatalf("poll %d: error = %q", i, snap.Error)
		}
		if len(snap.MarketData) != 1 || snap.MarketData[0].CurrentPrice != 42000 {
			t.Fatalf("poll %d lost the last good data: %+v", i, snap.MarketData)
		}
		if snap.IsLoading {
			t.Fatalf("poll %d left the loading flag set", i)
		}
	}

	src.mu.Lock()
	calls := src.globalCalls
	src.mu.Unlock()
	if calls != 1+3*3 {
		t.Fatalf("expected 3 attempts per failed poll, global fetched %d times", calls)
	}

	src.mu.Lock()
	src.fail = false
	src.price = 43000
	src.mu.Unlock()
	if err := svc.Refresh(ctx); err != nil {
		t.Fatalf("recovery refresh: %v", err)
	}
	if snap := svc.Snapshot(); snap.Error != "" || snap.MarketData[0].CurrentPrice != 43000 {
		t.Fatalf("recovery not applied: %+v", snap)
	}
}

func TestNewerRefreshSupersedesOlder(t *testing.T) {
	src := &fakeMarket{price: 1, block: true, entered: make(chan struct{})}
	log, _ := testLogger()
	svc := NewMarketService(src, fastMarketConfig(), log)

	first := make(chan error, 1)
	go func() { first <- svc.Refresh(context.Background()) }()
	<-src.entered

	src.mu.Lock()
	src.price = 2
	src.mu.Unlock()
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("second refresh: %v", err)
	}

	select {
	case err := <-first:
		if !errors.Is(err, ErrSuperseded) {
			t.Fatalf("first refresh returned %v, want ErrSuperseded", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("first refresh never returned")
	}
	if snap := svc.Snapshot(); snap.MarketData[0].CurrentPrice != 2 || snap.Error != "" {
		t.Fatalf("stale refresh leaked into snapshot: %+v", snap)
	}
}

func TestSelectionAndSearch(t *testing.T) {
	src := &fakeMarket{price: 1}
	log, _ := testLogger()
	svc := NewMarketService(src, fastMarketConfig(), log)

	if err := svc.SetSelectedTimeframe("2w"); err == nil {
		t.Fatalf("invalid timeframe accepted")
	}
	if err := svc.SetSelectedTimeframe(models.Timeframe7d); err != nil {
		t.Fatalf("valid timeframe rejected: %v", err)
	}
	svc.SetSelectedToken("ethereum")
	snap := svc.Snapshot()
	if snap.SelectedToken != "ethereum" || snap.SelectedTimeframe != models.Timeframe7d {
		t.Fatalf("selection not stored: %+v", snap)
	}

	if got := svc.SearchTokens(context.Background(), "e"); len(got) != 0 {
		t.Fatalf("single-character search should be empty, got %+v", got)
	}
	if got := svc.SearchTokens(context.Background(), "eth"); len(got) != 1 {
		t.Fatalf("expected one result, got %+v", got)
	}
	if src.searches != 1 {
		t.Fatalf("short query should not reach the source")
	}
}

func TestStartStop(t *testing.T) {
	src := &fakeMarket{price: 7}
	log, _ := testLogger()
	svc := NewMarketService(src, fastMarketConfig(), log)

	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := svc.Start(context.Background()); err == nil {
		t.Fatalf("second start should fail")
	}
	deadline := time.Now().Add(2 * time.Second)
	for svc.Snapshot().IsLoading && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	svc.Stop()
	if snap := svc.Snapshot(); snap.IsLoading || len(snap.MarketData) != 1 {
		t.Fatalf("initial poll did not complete: %+v", snap)
	}
}
