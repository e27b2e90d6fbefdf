package coingecko

import (
	"math/rand"
	"strings"
	"time"

	"tradesxbt/internal/format"
	"tradesxbt/models"
)

const day = 24 * time.Hour

var mockMarketData = []models.MarketDataPoint{{
	ID:                        "bitcoin",
	Symbol:                    "btc",
	Name:                      "Bitcoin",
	CurrentPrice:              45000,
	MarketCap:                 850000000000,
	MarketCapRank:             1,
	TotalVolume:               28000000000,
	PriceChangePercentage24h:  2.5,
	MarketCapChangePercent24h: 2.3,
}}

func mockGlobalData() models.GlobalData {
	return models.GlobalData{
		TotalMarketCap:                  map[string]float64{"usd": 2100000000000},
		TotalVolume:                     map[string]float64{"usd": 98000000000},
		MarketCapPercentage:             map[string]float64{"btc": 45, "eth": 18},
		MarketCapChangePercentage24hUSD: 1.8,
	}
}

func mockSearch() models.SearchResults {
	return models.SearchResults{Coins: []models.CoinSearchResult{{
		ID:            "bitcoin",
		Name:          "Bitcoin",
		Symbol:        "btc",
		APISymbol:     "btc",
		MarketCapRank: 1,
		Thumb:         "https://example.com/btc.png",
		Large:         "https://example.com/btc-large.png",
		Platforms:     map[string]string{},
	}}}
}

func mockTrending() models.TrendingCoins {
	n := min(3, len(mockMarketData))
	out := models.TrendingCoins{Coins: make([]models.TrendingCoin, 0, n)}
	for i, c := range mockMarketData[:n] {
		out.Coins = append(out.Coins, models.TrendingCoin{Item: models.TrendingItem{
			ID:            c.ID,
			Name:          c.Name,
			Symbol:        c.Symbol,
			MarketCapRank: c.MarketCapRank,
			Score:         i,
		}})
	}
	return out
}

func mockMovers(limit int) models.TopMovers {
	movers := models.TopMovers{
		Gainers: make([]models.TopCoin, limit),
		Losers:  make([]models.TopCoin, limit),
	}
	for i := 0; i < limit; i++ {
		movers.Gainers[i] = models.TopCoin{MarketDataPoint: mockMarketData[0], PriceChangePercentage: 5 + rand.Float64()*20}
		movers.Losers[i] = models.TopCoin{MarketDataPoint: mockMarketData[0], PriceChangePercentage: -5 - rand.Float64()*20}
	}
	return movers
}

// walkBack produces n points one day apart ending at now, newest first.
func walkBack(now time.Time, n int, base, spread float64) []models.Point {
	points := make([]models.Point, n)
	for i := range points {
		ts := now.Add(-time.Duration(i) * day).UnixMilli()
		points[i] = models.Point{float64(ts), base + rand.Float64()*spread}
	}
	return points
}

func mockHistory(now time.Time) models.MarketChart {
	return models.MarketChart{Prices: walkBack(now, 100, 40000, 10000)}
}

func mockOHLC(now time.Time, days int) []models.Candle {
	rows := make([]models.Candle, days)
	for i := range rows {
		ts := float64(now.Add(-time.Duration(i) * day).UnixMilli())
		rows[i] = models.Candle{
			ts,
			45000 + rand.Float64()*1000,
			46000 + rand.Float64()*1000,
			44000 + rand.Float64()*1000,
			45500 + rand.Float64()*1000,
		}
	}
	return rows
}

func mockRange(from, to int64) models.MarketChart {
	prices := make([]models.Point, 100)
	step := float64(to-from) / 100
	for i := range prices {
		prices[i] = models.Point{float64(from) + float64(i)*step, 40000 + rand.Float64()*10000}
	}
	return models.MarketChart{Prices: prices}
}

func mockGlobalChart(now time.Time, days int) models.MarketChart {
	return models.MarketChart{MarketCaps: walkBack(now, days, 2000000000000, 200000000000)}
}

func mockExchangeVolume(now time.Time, days int) []models.Point {
	return walkBack(now, days, 10000000000, 5000000000)
}

func mockVolumeVolatility(tokenID string) models.VolumeVolatility {
	return models.VolumeVolatility{
		ExchangeData: []models.ExchangeVolume{{
			Exchange:        "All Exchanges",
			Volume:          1000000000,
			Percentage:      100,
			VolumeFormatted: format.Billions(1000000000),
		}},
		TotalVolumeFormatted: format.Billions(1000000000),
		TokenVolatility: models.TokenVolatility{
			Symbol:    strings.ToUpper(tokenID),
			Value:     5,
			Formatted: "5.0%",
		},
	}
}
