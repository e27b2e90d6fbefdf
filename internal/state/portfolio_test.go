package state

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"testing"
	"time"

	"tradesxbt/config"
	"tradesxbt/internal/format"
	"tradesxbt/internal/storage"
	"tradesxbt/models"
)

func newTestPortfolio(t *testing.T, store storage.Store) *PortfolioService {
	t.Helper()
	log, _ := testLogger()
	svc := NewPortfolioService(store, config.PortfolioConfig{}, log)
	svc.clock = fixedClock()
	svc.rnd = rand.New(rand.NewSource(1))
	svc.Load(context.Background())
	return svc
}

func TestPortfolioLoadsSampleData(t *testing.T) {
	svc := newTestPortfolio(t, storage.NewMemory())
	if got := len(svc.Assets()); got != 7 {
		t.Fatalf("expected 7 sample assets, got %d", got)
	}
	if got := len(svc.Transactions()); got != 6 {
		t.Fatalf("expected 6 sample transactions, got %d", got)
	}
	if svc.IsRealData() || svc.ConnectedAddress() != "" {
		t.Fatalf("sample portfolio should not be marked as real")
	}
}

func TestPortfolioPersistedEmptyStaysEmpty(t *testing.T) {
	store := storage.NewMemory()
	svc := newTestPortfolio(t, store)
	for _, a := range svc.Assets() {
		svc.RemoveAsset(context.Background(), a.ID)
	}

	reloaded := newTestPortfolio(t, store)
	if got := len(reloaded.Assets()); got != 0 {
		t.Fatalf("cleared portfolio came back with %d assets", got)
	}
	if got := reloaded.Summary().TotalValue; got != 0 {
		t.Fatalf("empty portfolio total = %v", got)
	}
	if got := reloaded.Allocations(); len(got) != 0 {
		t.Fatalf("empty portfolio allocations = %+v", got)
	}
}

func TestSummaryTotalsQuantityTimesPrice(t *testing.T) {
	svc := newTestPortfolio(t, storage.NewMemory())
	var want float64
	for _, a := range svc.Assets() {
		want += a.Quantity * a.CurrentPrice
	}
	sum := svc.Summary()
	if math.Abs(sum.TotalValue-want) > 1e-6 {
		t.Fatalf("total = %v, want %v", sum.TotalValue, want)
	}
	// the simulated previous value is within ±2.5% of each price
	if math.Abs(sum.DailyChangePercent) > 2.6 {
		t.Fatalf("daily change out of range: %v", sum.DailyChangePercent)
	}
	if sum.TotalValueFormatted != format.Currency(want) {
		t.Fatalf("formatted total = %q", sum.TotalValueFormatted)
	}
	if sum.DailyChangePercentFormatted == "" || sum.TotalValueCompact[0] != '$' {
		t.Fatalf("display fields missing: %+v", sum)
	}
}

func TestTransactionsAdjustQuantity(t *testing.T) {
	ctx := context.Background()
	svc := newTestPortfolio(t, storage.NewMemory())

	if _, err := svc.AddTransaction(ctx, models.NewTransaction{AssetID: "btc-asset", Symbol: "BTC", Type: models.TransactionBuy, Quantity: 0.45, Price: 40000}); err != nil {
		t.Fatalf("buy: %v", err)
	}
	tx, err := svc.AddTransaction(ctx, models.NewTransaction{AssetID: "btc-asset", Symbol: "BTC", Type: models.TransactionSell, Quantity: 1, Price: 50000})
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if tx.ID == "" || tx.Total != 50000 || tx.Timestamp == 0 {
		t.Fatalf("transaction defaults not applied: %+v", tx)
	}
	if _, err := svc.AddTransaction(ctx, models.NewTransaction{AssetID: "btc-asset", Type: "hold", Quantity: 1}); err == nil {
		t.Fatalf("invalid type accepted")
	}

	for _, a := range svc.Assets() {
		if a.ID == "btc-asset" && math.Abs(a.Quantity-1.0) > 1e-9 {
			t.Fatalf("btc quantity = %v, want 1.0", a.Quantity)
		}
	}
	if got := len(svc.Transactions()); got != 8 {
		t.Fatalf("expected 8 transactions, got %d", got)
	}
}

func TestAssetCRUD(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	svc := newTestPortfolio(t, store)
	v0 := svc.Version()

	a := svc.AddAsset(ctx, models.NewAsset{Symbol: "XRP", Name: "Ripple", Quantity: 100, PurchasePrice: 0.5, CurrentPrice: 0.6})
	if a.ID == "" || a.LastUpdated == 0 {
		t.Fatalf("asset defaults not applied: %+v", a)
	}
	qty := 150.0
	updated, ok := svc.UpdateAsset(ctx, a.ID, models.AssetUpdate{Quantity: &qty})
	if !ok || updated.Quantity != 150 || updated.Symbol != "XRP" {
		t.Fatalf("merge failed: %+v", updated)
	}
	if !svc.UpdateAssetPrice(ctx, a.ID, 0.7) {
		t.Fatalf("price update failed")
	}
	if _, ok := svc.UpdateAsset(ctx, "missing", models.AssetUpdate{Quantity: &qty}); ok {
		t.Fatalf("update of missing asset reported success")
	}
	if svc.Version() <= v0 {
		t.Fatalf("version did not advance")
	}

	reloaded := newTestPortfolio(t, store)
	var found bool
	for _, r := range reloaded.Assets() {
		if r.ID == a.ID {
			found = true
			if r.Quantity != 150 || r.CurrentPrice != 0.7 {
				t.Fatalf("persisted asset mismatch: %+v", r)
			}
		}
	}
	if !found {
		t.Fatalf("added asset not persisted")
	}
	if !reloaded.RemoveAsset(ctx, a.ID) || reloaded.RemoveAsset(ctx, a.ID) {
		t.Fatalf("remove should succeed once")
	}
}

func TestAllocations(t *testing.T) {
	svc := newTestPortfolio(t, storage.NewMemory())
	rows := svc.Allocations()
	if len(rows) != 4 {
		t.Fatalf("expected 3 assets plus Others, got %d rows", len(rows))
	}
	if rows[0].Symbol != "BTC" || rows[0].Change != "+8.8%" {
		t.Fatalf("unexpected first row %+v", rows[0])
	}
	if !strings.HasPrefix(rows[0].ValueFormatted, "$") {
		t.Fatalf("value not formatted as currency: %q", rows[0].ValueFormatted)
	}
	others := rows[3]
	if others.Symbol != "Others" || others.Name != "4 assets" || others.Change != "+0.0%" {
		t.Fatalf("unexpected Others row %+v", others)
	}
	total := 0
	for _, r := range rows {
		total += r.Allocation
	}
	if total < 99 || total > 101 {
		t.Fatalf("allocations sum to %d", total)
	}
}

func TestImportRejectsInvalidAddress(t *testing.T) {
	store := storage.NewMemory()
	svc := newTestPortfolio(t, store)
	before := svc.Assets()

	res := svc.ImportFromAddress(context.Background(), "0x123")
	if res.Success || res.Message != invalidAddressMessage {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(svc.Assets()) != len(before) || svc.IsRealData() || svc.IsImporting() {
		t.Fatalf("rejected import mutated state")
	}
	if _, err := store.Get(context.Background(), storage.KeyConnectedAddress); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("connected address should not be stored")
	}
}

func TestImportEthereumWallet(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	svc := newTestPortfolio(t, store)
	addr := "0x1234567890123456789012345678901234567890"

	res := svc.ImportFromAddress(ctx, addr)
	if !res.Success || res.Blockchain != "ethereum" {
		t.Fatalf("import failed: %+v", res)
	}
	if res.Message != "Successfully imported portfolio from ethereum address "+addr {
		t.Fatalf("unexpected message %q", res.Message)
	}

	assets := svc.Assets()
	if len(assets) < 2 || len(assets) > 4 {
		t.Fatalf("expected native coin plus 1-3 tokens, got %d assets", len(assets))
	}
	if assets[0].Symbol != "ETH" || !strings.HasPrefix(assets[0].ID, "ethereum-") || !strings.HasSuffix(assets[0].ID, "-1") {
		t.Fatalf("unexpected native asset %+v", assets[0])
	}
	if assets[0].Quantity < 0 || assets[0].Quantity >= 50 {
		t.Fatalf("native quantity out of range: %v", assets[0].Quantity)
	}
	for _, a := range assets {
		if a.Blockchain != "ethereum" {
			t.Fatalf("asset not tagged with chain: %+v", a)
		}
	}
	if len(svc.Transactions()) != 0 {
		t.Fatalf("import should clear transactions")
	}
	if !svc.IsRealData() || svc.ConnectedAddress() != addr || svc.IsImporting() {
		t.Fatalf("import flags not set")
	}
	if raw, _ := store.Get(ctx, storage.KeyIsRealData); string(raw) != "true" {
		t.Fatalf("isRealData stored as %q", raw)
	}

	reloaded := newTestPortfolio(t, store)
	if !reloaded.IsRealData() || reloaded.ConnectedAddress() != addr {
		t.Fatalf("connected wallet not restored on load")
	}
	if len(reloaded.Assets()) != len(assets) {
		t.Fatalf("imported assets not persisted")
	}

	reloaded.Disconnect(ctx)
	if reloaded.IsRealData() || reloaded.ConnectedAddress() != "" {
		t.Fatalf("disconnect did not clear the wallet")
	}
}

func TestImportBitcoinHasNoTokens(t *testing.T) {
	svc := newTestPortfolio(t, storage.NewMemory())
	res := svc.ImportFromAddress(context.Background(), "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq")
	if !res.Success {
		t.Fatalf("import failed: %+v", res)
	}
	assets := svc.Assets()
	if len(assets) != 1 || assets[0].Symbol != "BTC" {
		t.Fatalf("unexpected assets %+v", assets)
	}
}

type fakePrices struct {
	prices map[string]float64
	err    error
}

func (f fakePrices) Name() string { return "fake" }

func (f fakePrices) Prices(ctx context.Context, symbols []string) (map[string]float64, error) {
	return f.prices, f.err
}

func TestRefreshPrices(t *testing.T) {
	ctx := context.Background()
	svc := newTestPortfolio(t, storage.NewMemory())

	n, err := svc.RefreshPrices(ctx, fakePrices{prices: map[string]float64{"BTC": 60000, "ETH": 0}})
	if err != nil || n != 1 {
		t.Fatalf("expected one update, got %d, %v", n, err)
	}
	for _, a := range svc.Assets() {
		if a.Symbol == "BTC" && a.CurrentPrice != 60000 {
			t.Fatalf("BTC not revalued")
		}
		if a.Symbol == "ETH" && a.CurrentPrice != 3245.67 {
			t.Fatalf("zero quote should be ignored")
		}
	}

	if _, err := svc.RefreshPrices(ctx, fakePrices{err: errors.New("down")}); err == nil {
		t.Fatalf("source error should surface")
	}
}

func TestRefreshNotifiesWithUpperCaseSymbols(t *testing.T) {
	ctx := context.Background()
	svc := newTestPortfolio(t, storage.NewMemory())
	svc.AddAsset(ctx, models.NewAsset{Symbol: "sol", Name: "Solana", Quantity: 2, CurrentPrice: 100})

	var seen map[string]float64
	observe := func(_ context.Context, prices map[string]float64) { seen = prices }

	if _, err := svc.RefreshAndNotify(ctx, fakePrices{prices: map[string]float64{"XYZ": 1}}, observe); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if seen != nil {
		t.Fatalf("observer called although nothing was revalued")
	}

	n, err := svc.RefreshAndNotify(ctx, fakePrices{prices: map[string]float64{"SOL": 150}}, observe)
	if err != nil || n != 1 {
		t.Fatalf("expected one update, got %d, %v", n, err)
	}
	if seen["SOL"] != 150 {
		t.Fatalf("observer prices = %v, want SOL keyed upper-case", seen)
	}
	if _, ok := seen["sol"]; ok {
		t.Fatalf("lower-case key leaked into price map")
	}
}

func TestPriceRefreshLoopTriggersAlerts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := newTestPortfolio(t, storage.NewMemory())
	svc.AddAsset(ctx, models.NewAsset{Symbol: "sol", Name: "Solana", Quantity: 1, CurrentPrice: 100})

	alerts := newTestAlerts(t, storage.NewMemory())
	alert := alerts.AddAlert(ctx, models.NewAlert{Asset: "sol", Condition: models.ConditionAbove, Value: 120, Active: true})

	fired := make(chan struct{}, 1)
	svc.StartPriceRefresh(ctx, fakePrices{prices: map[string]float64{"SOL": 150}}, 5*time.Millisecond,
		func(ctx context.Context, prices map[string]float64) {
			if len(alerts.Evaluate(ctx, prices)) > 0 {
				select {
				case fired <- struct{}{}:
				default:
				}
			}
		})

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("background refresh never evaluated alerts")
	}
	for _, a := range alerts.Alerts() {
		if a.ID == alert.ID && !a.Triggered {
			t.Fatalf("alert not triggered: %+v", a)
		}
	}
}
