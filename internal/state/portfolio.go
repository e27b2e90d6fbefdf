package state

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"tradesxbt/config"
	"tradesxbt/internal/chain"
	"tradesxbt/internal/format"
	"tradesxbt/internal/storage"
	"tradesxbt/logger"
	"tradesxbt/models"
)

const invalidAddressMessage = "Invalid address format. Please check your wallet address and try again."

// PriceSource quotes current prices by ticker symbol.
type PriceSource interface {
	Name() string
	Prices(ctx context.Context, symbols []string) (map[string]float64, error)
}

type PortfolioService struct {
	store       storage.Store
	log         *logger.Log
	clock       Clock
	rnd         *rand.Rand
	importDelay time.Duration

	mu               sync.RWMutex
	assets           []models.PortfolioAsset
	transactions     []models.Transaction
	summary          models.PortfolioSummary
	importing        bool
	isRealData       bool
	connectedAddress string
	blockchain       string
	version          uint64
}

func NewPortfolioService(store storage.Store, cfg config.PortfolioConfig, log *logger.Log) *PortfolioService {
	if log == nil {
		log = logger.GetLogger()
	}
	return &PortfolioService{
		store:        store,
		log:          log,
		clock:        time.Now,
		rnd:          rand.New(rand.NewSource(time.Now().UnixNano())),
		importDelay:  cfg.ImportDelay,
		assets:       []models.PortfolioAsset{},
		transactions: []models.Transaction{},
	}
}

func (s *PortfolioService) entry() *logger.Entry {
	return s.log.WithComponent("portfolio_service")
}

// Load restores assets, transactions and the connected wallet. Keys that
// were never written fall back to the demonstration portfolio.
func (s *PortfolioService) Load(ctx context.Context) {
	now := nowMillis(s.clock)
	log := s.entry()
	assets := loadJSON(ctx, s.store, storage.KeyPortfolioAssets, log, func() []models.PortfolioAsset { return sampleAssets(now) })
	txs := loadJSON(ctx, s.store, storage.KeyPortfolioTransactions, log, func() []models.Transaction { return sampleTransactions(now) })
	if assets == nil {
		assets = []models.PortfolioAsset{}
	}
	if txs == nil {
		txs = []models.Transaction{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets = assets
	s.transactions = txs
	if flag, ok := loadString(ctx, s.store, storage.KeyIsRealData, log); ok && flag == "true" {
		if addr, ok := loadString(ctx, s.store, storage.KeyConnectedAddress, log); ok && addr != "" {
			s.connectedAddress = addr
			s.isRealData = true
			s.blockchain, _ = loadString(ctx, s.store, storage.KeyPortfolioBlockchain, log)
		}
	}
	s.recomputeLocked()
	s.version++
	log.WithFields(logger.Fields{
		"assets":       len(s.assets),
		"transactions": len(s.transactions),
		"real_data":    s.isRealData,
	}).Info("portfolio loaded")
}

func (s *PortfolioService) Assets() []models.PortfolioAsset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.PortfolioAsset{}, s.assets...)
}

func (s *PortfolioService) Transactions() []models.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Transaction{}, s.transactions...)
}

func (s *PortfolioService) Summary() models.PortfolioSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summary
}

func (s *PortfolioService) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *PortfolioService) IsImporting() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.importing
}

func (s *PortfolioService) IsRealData() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRealData
}

// ConnectedAddress returns the imported wallet address, or "" when none.
func (s *PortfolioService) ConnectedAddress() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connectedAddress
}

// recomputeLocked derives the totals. The previous-day value is simulated
// by discounting each price by a random factor within ±2.5%.
func (s *PortfolioService) recomputeLocked() {
	var total, previous float64
	for _, a := range s.assets {
		total += a.Quantity * a.CurrentPrice
		previous += a.Quantity * (a.CurrentPrice / (1 + s.rnd.Float64()*0.05 - 0.025))
	}
	change := total - previous
	pct := 0.0
	if previous > 0 {
		pct = change / previous * 100
	}
	s.summary = models.PortfolioSummary{
		TotalValue:         total,
		DailyChange:        change,
		DailyChangePercent: pct,

		TotalValueFormatted:         format.Currency(total),
		TotalValueCompact:           format.CompactCurrency(total),
		DailyChangeFormatted:        format.SignedCurrency(change),
		DailyChangePercentFormatted: format.SignedPercentage(pct),
	}
}

// Allocations breaks the portfolio into its first three assets plus an
// "Others" row for the remainder.
func (s *PortfolioService) Allocations() []models.Allocation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.assets) == 0 {
		return []models.Allocation{}
	}
	var total float64
	for _, a := range s.assets {
		total += a.Value()
	}
	share := func(v float64) int {
		if total == 0 {
			return 0
		}
		return int(math.Round(v / total * 100))
	}

	head := s.assets[:min(3, len(s.assets))]
	out := make([]models.Allocation, 0, len(head)+1)
	for _, a := range head {
		change := 0.0
		if a.PurchasePrice != 0 {
			change = (a.CurrentPrice - a.PurchasePrice) / a.PurchasePrice * 100
		}
		out = append(out, models.Allocation{
			Symbol:         a.Symbol,
			Name:           a.Name,
			Allocation:     share(a.Value()),
			Value:          a.Value(),
			ValueFormatted: format.Currency(a.Value()),
			Change:         signedOneDecimal(change),
		})
	}
	if len(s.assets) > 3 {
		var rest float64
		for _, a := range s.assets[3:] {
			rest += a.Value()
		}
		out = append(out, models.Allocation{
			Symbol:         "Others",
			Name:           fmt.Sprintf("%d assets", len(s.assets)-3),
			Allocation:     share(rest),
			Value:          rest,
			ValueFormatted: format.Currency(rest),
			Change:         "+0.0%",
		})
	}
	return out
}

func signedOneDecimal(v float64) string {
	if v >= 0 {
		return fmt.Sprintf("+%.1f%%", v)
	}
	return fmt.Sprintf("%.1f%%", v)
}

// persistLocked writes both collections. Empty collections are written as
// [] so a cleared portfolio stays cleared on reload.
func (s *PortfolioService) persistLocked(ctx context.Context) {
	log := s.entry()
	saveJSON(ctx, s.store, storage.KeyPortfolioAssets, s.assets, log)
	saveJSON(ctx, s.store, storage.KeyPortfolioTransactions, s.transactions, log)
}

func (s *PortfolioService) mutatedLocked(ctx context.Context) {
	s.recomputeLocked()
	s.version++
	s.persistLocked(ctx)
}

func (s *PortfolioService) AddAsset(ctx context.Context, in models.NewAsset) models.PortfolioAsset {
	s.mu.Lock()
	defer s.mu.Unlock()
	asset := models.PortfolioAsset{
		ID:            newID(),
		Symbol:        in.Symbol,
		Name:          in.Name,
		Quantity:      in.Quantity,
		PurchasePrice: in.PurchasePrice,
		CurrentPrice:  in.CurrentPrice,
		LastUpdated:   nowMillis(s.clock),
		Blockchain:    in.Blockchain,
	}
	s.assets = append(s.assets, asset)
	s.mutatedLocked(ctx)
	return asset
}

// UpdateAsset merges the non-nil fields of u into the asset. It reports
// whether the asset exists.
func (s *PortfolioService) UpdateAsset(ctx context.Context, id string, u models.AssetUpdate) (models.PortfolioAsset, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.assetIndexLocked(id)
	if i < 0 {
		return models.PortfolioAsset{}, false
	}
	a := &s.assets[i]
	if u.Symbol != nil {
		a.Symbol = *u.Symbol
	}
	if u.Name != nil {
		a.Name = *u.Name
	}
	if u.Quantity != nil {
		a.Quantity = *u.Quantity
	}
	if u.PurchasePrice != nil {
		a.PurchasePrice = *u.PurchasePrice
	}
	if u.CurrentPrice != nil {
		a.CurrentPrice = *u.CurrentPrice
	}
	if u.Blockchain != nil {
		a.Blockchain = *u.Blockchain
	}
	a.LastUpdated = nowMillis(s.clock)
	updated := *a
	s.mutatedLocked(ctx)
	return updated, true
}

func (s *PortfolioService) RemoveAsset(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.assetIndexLocked(id)
	if i < 0 {
		return false
	}
	s.assets = append(s.assets[:i], s.assets[i+1:]...)
	s.mutatedLocked(ctx)
	return true
}

// AddTransaction appends the transaction and adjusts the referenced asset's
// quantity: buys add, sells subtract. An unknown asset id is recorded
// without touching any holding.
func (s *PortfolioService) AddTransaction(ctx context.Context, in models.NewTransaction) (models.Transaction, error) {
	if !in.Type.Valid() {
		return models.Transaction{}, fmt.Errorf("invalid transaction type '%s'", in.Type)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := nowMillis(s.clock)
	tx := models.Transaction{
		ID:        newID(),
		AssetID:   in.AssetID,
		Symbol:    in.Symbol,
		Type:      in.Type,
		Quantity:  in.Quantity,
		Price:     in.Price,
		Timestamp: in.Timestamp,
		Total:     in.Total,
		Fee:       in.Fee,
	}
	if tx.Timestamp == 0 {
		tx.Timestamp = now
	}
	if tx.Total == 0 {
		tx.Total = tx.Quantity * tx.Price
	}
	s.transactions = append(s.transactions, tx)

	if i := s.assetIndexLocked(in.AssetID); i >= 0 {
		delta := in.Quantity
		if in.Type == models.TransactionSell {
			delta = -delta
		}
		s.assets[i].Quantity += delta
		s.assets[i].LastUpdated = now
	}
	s.mutatedLocked(ctx)
	return tx, nil
}

func (s *PortfolioService) UpdateAssetPrice(ctx context.Context, id string, price float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.assetIndexLocked(id)
	if i < 0 {
		return false
	}
	s.assets[i].CurrentPrice = price
	s.assets[i].LastUpdated = nowMillis(s.clock)
	s.mutatedLocked(ctx)
	return true
}

// RefreshPrices revalues every asset the source can quote and returns how
// many were updated.
func (s *PortfolioService) RefreshPrices(ctx context.Context, src PriceSource) (int, error) {
	symbols := make(map[string]struct{})
	for _, a := range s.Assets() {
		symbols[strings.ToUpper(a.Symbol)] = struct{}{}
	}
	list := make([]string, 0, len(symbols))
	for sym := range symbols {
		list = append(list, sym)
	}
	prices, err := src.Prices(ctx, list)
	if err != nil {
		s.entry().WithError(err).WithField("source", src.Name()).Warn("price refresh failed")
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := nowMillis(s.clock)
	updated := 0
	for i := range s.assets {
		if p, ok := prices[strings.ToUpper(s.assets[i].Symbol)]; ok && p > 0 {
			s.assets[i].CurrentPrice = p
			s.assets[i].LastUpdated = now
			updated++
		}
	}
	if updated > 0 {
		s.mutatedLocked(ctx)
	}
	s.entry().WithFields(logger.Fields{
		"source":  src.Name(),
		"updated": updated,
	}).Info("portfolio prices refreshed")
	return updated, nil
}

// PriceObserver is told the portfolio's prices after a refresh changed any.
type PriceObserver func(ctx context.Context, prices map[string]float64)

// PriceMap returns each asset's current price keyed by upper-case symbol.
func (s *PortfolioService) PriceMap() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]float64, len(s.assets))
	for _, a := range s.assets {
		out[strings.ToUpper(a.Symbol)] = a.CurrentPrice
	}
	return out
}

// RefreshAndNotify runs RefreshPrices and, when any asset was revalued,
// passes the new price map to observe.
func (s *PortfolioService) RefreshAndNotify(ctx context.Context, src PriceSource, observe PriceObserver) (int, error) {
	n, err := s.RefreshPrices(ctx, src)
	if err == nil && n > 0 && observe != nil {
		observe(ctx, s.PriceMap())
	}
	return n, err
}

// StartPriceRefresh revalues the portfolio every interval until ctx ends.
func (s *PortfolioService) StartPriceRefresh(ctx context.Context, src PriceSource, interval time.Duration, observe PriceObserver) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_, _ = s.RefreshAndNotify(ctx, src, observe)
			}
		}
	}()
}

// ImportFromAddress classifies address and replaces the portfolio with a
// simulated wallet for that chain. A rejected address leaves all state
// untouched.
func (s *PortfolioService) ImportFromAddress(ctx context.Context, address string) models.ImportResult {
	log := s.entry().WithField("address", address)
	blockchain := chain.Detect(address)
	if blockchain == chain.Unknown {
		log.Warn("rejected wallet import")
		return models.ImportResult{Success: false, Message: invalidAddressMessage}
	}

	s.mu.Lock()
	if s.importing {
		s.mu.Unlock()
		return models.ImportResult{Success: false, Message: "An import is already in progress."}
	}
	s.importing = true
	s.version++
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.importing = false
		s.version++
		s.mu.Unlock()
	}()

	if s.importDelay > 0 {
		timer := time.NewTimer(s.importDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return models.ImportResult{Success: false, Message: ctx.Err().Error()}
		case <-timer.C:
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	assets := s.simulateWalletLocked(blockchain)
	s.assets = assets
	s.transactions = []models.Transaction{}
	s.isRealData = true
	s.connectedAddress = address
	s.blockchain = blockchain
	s.mutatedLocked(ctx)

	entry := s.entry()
	saveString(ctx, s.store, storage.KeyConnectedAddress, address, entry)
	saveString(ctx, s.store, storage.KeyPortfolioBlockchain, blockchain, entry)
	saveString(ctx, s.store, storage.KeyIsRealData, "true", entry)

	log.WithFields(logger.Fields{"blockchain": blockchain, "assets": len(assets)}).Info("wallet imported")
	return models.ImportResult{
		Success:    true,
		Message:    fmt.Sprintf("Successfully imported portfolio from %s address %s", blockchain, address),
		Blockchain: blockchain,
	}
}

// simulateWalletLocked builds the native coin holding plus, for Ethereum,
// one to three tokens.
func (s *PortfolioService) simulateWalletLocked(blockchain string) []models.PortfolioAsset {
	now := nowMillis(s.clock)
	native, _ := chain.NativeAsset(blockchain)
	assets := []models.PortfolioAsset{{
		ID:            fmt.Sprintf("%s-%d-1", blockchain, now),
		Symbol:        native.Symbol,
		Name:          native.Name,
		Quantity:      s.rnd.Float64() * native.MaxQuantity,
		PurchasePrice: native.PurchasePrice,
		CurrentPrice:  native.CurrentPrice,
		LastUpdated:   now,
		Blockchain:    blockchain,
	}}
	tokens := chain.Tokens(blockchain)
	if len(tokens) > 0 {
		n := s.rnd.Intn(len(tokens)) + 1
		for i, t := range tokens[:n] {
			assets = append(assets, models.PortfolioAsset{
				ID:            fmt.Sprintf("%s-%d-%d", blockchain, now, i+2),
				Symbol:        t.Symbol,
				Name:          t.Name,
				Quantity:      s.rnd.Float64() * t.MaxQuantity,
				PurchasePrice: t.PurchasePrice,
				CurrentPrice:  t.CurrentPrice,
				LastUpdated:   now,
				Blockchain:    blockchain,
			})
		}
	}
	return assets
}

// Disconnect forgets the imported wallet; the imported assets stay.
func (s *PortfolioService) Disconnect(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isRealData = false
	s.connectedAddress = ""
	s.blockchain = ""
	s.version++
	entry := s.entry()
	deleteKey(ctx, s.store, storage.KeyConnectedAddress, entry)
	deleteKey(ctx, s.store, storage.KeyPortfolioBlockchain, entry)
	deleteKey(ctx, s.store, storage.KeyIsRealData, entry)
}

func (s *PortfolioService) assetIndexLocked(id string) int {
	for i := range s.assets {
		if s.assets[i].ID == id {
			return i
		}
	}
	return -1
}
