package models

// MarketDataPoint is one row of the coins/markets listing. Refreshes
// replace the whole list.
type MarketDataPoint struct {
	ID                        string  `json:"id"`
	Symbol                    string  `json:"symbol"`
	Name                      string  `json:"name"`
	CurrentPrice              float64 `json:"current_price"`
	MarketCap                 float64 `json:"market_cap"`
	MarketCapRank             int     `json:"market_cap_rank"`
	TotalVolume               float64 `json:"total_volume"`
	PriceChangePercentage24h  float64 `json:"price_change_percentage_24h"`
	MarketCapChangePercent24h float64 `json:"market_cap_change_percentage_24h"`
}

// TopCoin is a market row ranked by its change over the selected timeframe.
type TopCoin struct {
	MarketDataPoint
	Image                 string  `json:"image,omitempty"`
	PriceChangePercentage float64 `json:"price_change_percentage"`
}

type TopMovers struct {
	Gainers []TopCoin `json:"gainers"`
	Losers  []TopCoin `json:"losers"`
}

type GlobalData struct {
	TotalMarketCap                  map[string]float64 `json:"total_market_cap"`
	TotalVolume                     map[string]float64 `json:"total_volume"`
	MarketCapPercentage             map[string]float64 `json:"market_cap_percentage"`
	MarketCapChangePercentage24hUSD float64            `json:"market_cap_change_percentage_24h_usd"`
}

type CoinSearchResult struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Symbol        string            `json:"symbol"`
	APISymbol     string            `json:"api_symbol"`
	MarketCapRank int               `json:"market_cap_rank,omitempty"`
	Thumb         string            `json:"thumb,omitempty"`
	Large         string            `json:"large,omitempty"`
	Platforms     map[string]string `json:"platforms"`
}

// TrendingCoins mirrors /search/trending where each entry wraps an item.
type TrendingCoins struct {
	Coins []TrendingCoin `json:"coins"`
}

type TrendingCoin struct {
	Item TrendingItem `json:"item"`
}

type TrendingItem struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Symbol        string  `json:"symbol"`
	MarketCapRank int     `json:"market_cap_rank"`
	Thumb         string  `json:"thumb,omitempty"`
	PriceBTC      float64 `json:"price_btc"`
	Score         int     `json:"score"`
}

// Point is a [timestamp-ms, value] pair as returned by chart endpoints.
type Point [2]float64

// Candle is a [timestamp-ms, open, high, low, close] row.
type Candle [5]float64

type MarketChart struct {
	Prices       []Point `json:"prices"`
	MarketCaps   []Point `json:"market_caps,omitempty"`
	TotalVolumes []Point `json:"total_volumes,omitempty"`
}

type CodeChanges struct {
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
}

type DeveloperData struct {
	Forks                        int         `json:"forks"`
	Stars                        int         `json:"stars"`
	Subscribers                  int         `json:"subscribers"`
	TotalIssues                  int         `json:"total_issues"`
	ClosedIssues                 int         `json:"closed_issues"`
	PullRequestsMerged           int         `json:"pull_requests_merged"`
	PullRequestContributors      int         `json:"pull_request_contributors"`
	CodeAdditionsDeletions4Weeks CodeChanges `json:"code_additions_deletions_4_weeks"`
	CommitCount4Weeks            int         `json:"commit_count_4_weeks"`
	Last4WeeksCommitActivity     []int       `json:"last_4_weeks_commit_activity_series"`
}

type RepoData struct {
	Name         string `json:"name"`
	URL          string `json:"url"`
	Stars        int    `json:"stars"`
	Forks        int    `json:"forks"`
	Organization string `json:"organization,omitempty"`
}

type StatusProject struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

type StatusUpdate struct {
	Description string        `json:"description"`
	Category    string        `json:"category"`
	CreatedAt   string        `json:"created_at"`
	User        string        `json:"user"`
	UserTitle   string        `json:"user_title,omitempty"`
	Pin         bool          `json:"pin"`
	Project     StatusProject `json:"project"`
}

type ExchangeVolume struct {
	Exchange        string  `json:"exchange"`
	Volume          float64 `json:"volume"`
	Percentage      float64 `json:"percentage"`
	VolumeFormatted string  `json:"volume_formatted"`
}

type TokenVolatility struct {
	Symbol    string  `json:"symbol"`
	Value     float64 `json:"value"`
	Formatted string  `json:"formatted"`
}

// VolumeVolatility summarises the last day of volume and price movement.
type VolumeVolatility struct {
	ExchangeData         []ExchangeVolume `json:"exchange_data"`
	TotalVolumeFormatted string           `json:"total_volume_formatted"`
	TokenVolatility      TokenVolatility  `json:"token_volatility"`
}

// Timeframe is the window used for top gainers and losers.
type Timeframe string

const (
	Timeframe1h  Timeframe = "1h"
	Timeframe24h Timeframe = "24h"
	Timeframe7d  Timeframe = "7d"
)

func (t Timeframe) Valid() bool {
	switch t {
	case Timeframe1h, Timeframe24h, Timeframe7d:
		return true
	}
	return false
}

type SearchResults struct {
	Coins []CoinSearchResult `json:"coins"`
}
