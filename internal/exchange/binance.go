// Package exchange provides live spot prices used to revalue portfolio assets.
package exchange

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/adshao/go-binance/v2"

	"tradesxbt/config"
	"tradesxbt/internal/apperr"
	"tradesxbt/logger"
)

// BinancePrices quotes spot prices against a single quote asset.
type BinancePrices struct {
	client *binance.Client
	quote  string
	log    *logger.Log
}

func NewBinancePrices(cfg config.BinanceConfig, log *logger.Log) *BinancePrices {
	if log == nil {
		log = logger.GetLogger()
	}
	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.BaseURL != "" {
		client.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	quote := strings.ToUpper(cfg.QuoteAsset)
	if quote == "" {
		quote = "USDT"
	}
	return &BinancePrices{client: client, quote: quote, log: log}
}

func (b *BinancePrices) Name() string {
	return "binance"
}

// Prices returns the last price for each symbol that has a <symbol><quote>
// pair. Symbols without a listed pair are omitted from the result. The quote
// asset itself is priced at 1.
func (b *BinancePrices) Prices(ctx context.Context, symbols []string) (map[string]float64, error) {
	wanted := make(map[string]string, len(symbols))
	out := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		sym := strings.ToUpper(strings.TrimSpace(s))
		if sym == "" {
			continue
		}
		if sym == b.quote {
			out[sym] = 1
			continue
		}
		wanted[sym+b.quote] = sym
	}
	if len(wanted) == 0 {
		return out, nil
	}

	// the full ticker list is one request and tolerates unlisted symbols
	prices, err := b.client.NewListPricesService().Do(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperr.New(apperr.KindNetwork, "binance list prices", err)
	}

	for _, p := range prices {
		sym, ok := wanted[p.Symbol]
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(p.Price, 64)
		if err != nil {
			b.log.WithComponent("exchange").WithError(err).WithField("pair", p.Symbol).Warn("unparsable price")
			continue
		}
		out[sym] = v
	}

	b.log.WithComponent("exchange").WithFields(logger.Fields{
		"requested": len(wanted),
		"priced":    len(out),
	}).Debug(fmt.Sprintf("fetched %s quotes", b.quote))
	return out, nil
}
