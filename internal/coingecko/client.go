// Package coingecko wraps the market-data API. Fetch methods surface
// errors to callers that keep their own last-good state; Get methods
// serve views and fall back to placeholder payloads instead.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tradesxbt/config"
	"tradesxbt/internal/apperr"
	"tradesxbt/internal/format"
	"tradesxbt/internal/httpx"
	"tradesxbt/logger"
	"tradesxbt/models"
)

const component = "coingecko"

type Client struct {
	http *httpx.Client
	log  *logger.Log
	now  func() time.Time
}

// New builds a client from the provider config. 401 is retried because the
// upstream returns it transiently under key-level throttling.
func New(cfg config.HTTPProviderConfig, log *logger.Log) *Client {
	headers := map[string]string{"x-cg-pro-api-key": cfg.APIKey}
	return NewWithHTTP(httpx.FromConfig(component, cfg, headers, []int{401}, log), log)
}

func NewWithHTTP(hc *httpx.Client, log *logger.Log) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Client{http: hc, log: log, now: time.Now}
}

// MarketsQuery selects rows from /coins/markets.
type MarketsQuery struct {
	Currency string
	IDs      []string
	Order    string
	Limit    int
	Category string
}

func (q MarketsQuery) params() url.Values {
	if q.Currency == "" {
		q.Currency = "usd"
	}
	if q.Order == "" {
		q.Order = "market_cap_desc"
	}
	if q.Limit <= 0 {
		q.Limit = 100
	}
	p := url.Values{}
	p.Set("vs_currency", q.Currency)
	p.Set("order", q.Order)
	p.Set("per_page", strconv.Itoa(q.Limit))
	p.Set("sparkline", "false")
	if len(q.IDs) > 0 {
		p.Set("ids", strings.Join(q.IDs, ","))
	}
	if q.Category != "" {
		p.Set("category", q.Category)
	}
	return p
}

func (c *Client) fallback(op string, err error) {
	c.log.WithComponent(component).WithError(err).WithField("operation", op).Error("request failed, serving fallback")
}

func (c *Client) FetchCoinsMarketData(ctx context.Context, q MarketsQuery) ([]models.MarketDataPoint, error) {
	var rows []models.MarketDataPoint
	if err := c.http.GetJSON(ctx, "/coins/markets", q.params(), &rows); err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.MarketDataPoint{}
	}
	return rows, nil
}

// FetchGlobalData unwraps the {"data": ...} envelope of /global.
func (c *Client) FetchGlobalData(ctx context.Context) (models.GlobalData, error) {
	var env struct {
		Data models.GlobalData `json:"data"`
	}
	if err := c.http.GetJSON(ctx, "/global", nil, &env); err != nil {
		return models.GlobalData{}, err
	}
	return env.Data, nil
}

func (c *Client) FetchTopGainersLosers(ctx context.Context, currency string, timeframe models.Timeframe, limit int) (models.TopMovers, error) {
	if currency == "" {
		currency = "usd"
	}
	if timeframe == "" {
		timeframe = models.Timeframe24h
	}
	if limit <= 0 {
		limit = 10
	}
	p := url.Values{}
	p.Set("vs_currency", currency)
	p.Set("duration", string(timeframe))
	p.Set("top", strconv.Itoa(limit))

	var raw rawMovers
	if err := c.http.GetJSON(ctx, "/coins/top_gainers_losers", p, &raw); err != nil {
		return models.TopMovers{}, err
	}
	return raw.movers(currency, string(timeframe)), nil
}

func (c *Client) GetCoinsMarketData(ctx context.Context, q MarketsQuery) []models.MarketDataPoint {
	rows, err := c.FetchCoinsMarketData(ctx, q)
	if err != nil {
		c.fallback("markets", err)
		return []models.MarketDataPoint{}
	}
	return rows
}

func (c *Client) Search(ctx context.Context, query string) models.SearchResults {
	p := url.Values{}
	p.Set("query", query)
	var out models.SearchResults
	if err := c.http.GetJSON(ctx, "/search", p, &out); err != nil {
		c.fallback("search", err)
		return mockSearch()
	}
	return out
}

func (c *Client) GetGlobalData(ctx context.Context) models.GlobalData {
	data, err := c.FetchGlobalData(ctx)
	if err != nil {
		c.fallback("global", err)
		return mockGlobalData()
	}
	return data
}

func (c *Client) GetTrending(ctx context.Context) models.TrendingCoins {
	var out models.TrendingCoins
	if err := c.http.GetJSON(ctx, "/search/trending", nil, &out); err != nil {
		c.fallback("trending", err)
		return mockTrending()
	}
	return out
}

// GetCoinDetails returns the raw detail document; errors are not masked.
func (c *Client) GetCoinDetails(ctx context.Context, id string) (map[string]interface{}, error) {
	p := url.Values{}
	p.Set("localization", "false")
	p.Set("tickers", "true")
	p.Set("market_data", "true")
	p.Set("community_data", "true")
	p.Set("developer_data", "true")
	p.Set("sparkline", "true")
	var out map[string]interface{}
	if err := c.http.GetJSON(ctx, "/coins/"+url.PathEscape(id), p, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetHistoricalMarketData accepts days as a number or "max"; interval is optional.
func (c *Client) GetHistoricalMarketData(ctx context.Context, id, days, interval string) models.MarketChart {
	p := url.Values{}
	p.Set("vs_currency", "usd")
	p.Set("days", days)
	if interval != "" {
		p.Set("interval", interval)
	}
	var out models.MarketChart
	if err := c.http.GetJSON(ctx, "/coins/"+url.PathEscape(id)+"/market_chart", p, &out); err != nil {
		c.fallback("market_chart", err)
		return mockHistory(c.now())
	}
	return out
}

func (c *Client) GetOHLC(ctx context.Context, id string, days int) []models.Candle {
	p := url.Values{}
	p.Set("vs_currency", "usd")
	p.Set("days", strconv.Itoa(days))
	var out []models.Candle
	if err := c.http.GetJSON(ctx, "/coins/"+url.PathEscape(id)+"/ohlc", p, &out); err != nil {
		c.fallback("ohlc", err)
		return mockOHLC(c.now(), days)
	}
	return out
}

// GetMarketChartRange takes from and to as unix seconds.
func (c *Client) GetMarketChartRange(ctx context.Context, id, currency string, from, to int64) models.MarketChart {
	p := url.Values{}
	p.Set("vs_currency", currency)
	p.Set("from", strconv.FormatInt(from, 10))
	p.Set("to", strconv.FormatInt(to, 10))
	var out models.MarketChart
	if err := c.http.GetJSON(ctx, "/coins/"+url.PathEscape(id)+"/market_chart/range", p, &out); err != nil {
		c.fallback("market_chart_range", err)
		return mockRange(from, to)
	}
	return out
}

func (c *Client) GetTopGainersLosers(ctx context.Context, currency string, timeframe models.Timeframe, limit int) models.TopMovers {
	if limit <= 0 {
		limit = 10
	}
	movers, err := c.FetchTopGainersLosers(ctx, currency, timeframe, limit)
	if err != nil {
		c.fallback("top_gainers_losers", err)
		return mockMovers(limit)
	}
	return movers
}

func (c *Client) GetGlobalMarketChart(ctx context.Context, days int) models.MarketChart {
	if days <= 0 {
		days = 30
	}
	p := url.Values{}
	p.Set("days", strconv.Itoa(days))
	var out models.MarketChart
	if err := c.http.GetJSON(ctx, "/global/market_cap_chart", p, &out); err != nil {
		c.fallback("global_market_cap_chart", err)
		return mockGlobalChart(c.now(), days)
	}
	return out
}

func (c *Client) GetExchangeVolumeChart(ctx context.Context, exchangeID string, days int) []models.Point {
	if days <= 0 {
		days = 30
	}
	p := url.Values{}
	p.Set("days", strconv.Itoa(days))
	var raw [][2]flexFloat
	if err := c.http.GetJSON(ctx, "/exchanges/"+url.PathEscape(exchangeID)+"/volume_chart", p, &raw); err != nil {
		c.fallback("exchange_volume_chart", err)
		return mockExchangeVolume(c.now(), days)
	}
	out := make([]models.Point, len(raw))
	for i, r := range raw {
		out[i] = models.Point{float64(r[0]), float64(r[1])}
	}
	return out
}

func (c *Client) GetDeveloperData(ctx context.Context, id string) models.DeveloperData {
	var out models.DeveloperData
	if err := c.http.GetJSON(ctx, "/coins/"+url.PathEscape(id)+"/developer_data", nil, &out); err != nil {
		c.fallback("developer_data", err)
		return models.DeveloperData{Last4WeeksCommitActivity: []int{}}
	}
	return out
}

func (c *Client) GetRepoStats(ctx context.Context, id string) ([]models.RepoData, error) {
	var out []models.RepoData
	if err := c.http.GetJSON(ctx, "/coins/"+url.PathEscape(id)+"/repositories", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetStatusUpdates(ctx context.Context, id string, page, perPage int) ([]models.StatusUpdate, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 10
	}
	p := url.Values{}
	p.Set("page", strconv.Itoa(page))
	p.Set("per_page", strconv.Itoa(perPage))
	var out struct {
		StatusUpdates []models.StatusUpdate `json:"status_updates"`
	}
	if err := c.http.GetJSON(ctx, "/coins/"+url.PathEscape(id)+"/status_updates", p, &out); err != nil {
		return nil, err
	}
	return out.StatusUpdates, nil
}

// GetVolumeVolatility summarises the last day of hourly volume and the
// absolute price change over the same window.
func (c *Client) GetVolumeVolatility(ctx context.Context, tokenID string) models.VolumeVolatility {
	p := url.Values{}
	p.Set("vs_currency", "usd")
	p.Set("days", "1")
	p.Set("interval", "hourly")
	var chart models.MarketChart
	if err := c.http.GetJSON(ctx, "/coins/"+url.PathEscape(tokenID)+"/market_chart", p, &chart); err != nil {
		c.fallback("volume_volatility", err)
		return mockVolumeVolatility(tokenID)
	}
	if len(chart.Prices) == 0 || len(chart.TotalVolumes) == 0 || chart.Prices[0][1] == 0 {
		c.fallback("volume_volatility", apperr.Errorf(apperr.KindValidation, "volume_volatility", "empty chart for %s", tokenID))
		return mockVolumeVolatility(tokenID)
	}

	total := chart.TotalVolumes[len(chart.TotalVolumes)-1][1]
	first := chart.Prices[0][1]
	last := chart.Prices[len(chart.Prices)-1][1]
	change := math.Abs((last - first) / first * 100)

	tail := chart.TotalVolumes[max(0, len(chart.TotalVolumes)-5):]
	exchanges := make([]models.ExchangeVolume, 0, len(tail))
	for _, v := range tail {
		pct := 0.0
		if total != 0 {
			pct = v[1] / total * 100
		}
		exchanges = append(exchanges, models.ExchangeVolume{
			Exchange:        "All Exchanges",
			Volume:          v[1],
			Percentage:      pct,
			VolumeFormatted: format.Billions(v[1]),
		})
	}

	return models.VolumeVolatility{
		ExchangeData:         exchanges,
		TotalVolumeFormatted: format.Billions(total),
		TokenVolatility: models.TokenVolatility{
			Symbol:    strings.ToUpper(tokenID),
			Value:     change,
			Formatted: fmt.Sprintf("%.1f%%", change),
		},
	}
}

var symbolIDs = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"SOL":   "solana",
	"BNB":   "binancecoin",
	"XRP":   "ripple",
	"ADA":   "cardano",
	"DOGE":  "dogecoin",
	"DOT":   "polkadot",
	"MATIC": "polygon",
	"LINK":  "chainlink",
}

// TokenID maps a ticker symbol to its API id, defaulting to the lowercased symbol.
func TokenID(symbol string) string {
	if id, ok := symbolIDs[strings.ToUpper(symbol)]; ok {
		return id
	}
	return strings.ToLower(symbol)
}

// flexFloat decodes numbers that the upstream sometimes sends as strings.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// rawMovers accepts both the gainers/losers shape and the upstream
// top_gainers/top_losers shape keyed by <currency>_<duration>_change.
type rawMovers struct {
	Gainers    []map[string]json.RawMessage `json:"gainers"`
	Losers     []map[string]json.RawMessage `json:"losers"`
	TopGainers []map[string]json.RawMessage `json:"top_gainers"`
	TopLosers  []map[string]json.RawMessage `json:"top_losers"`
}

func (r rawMovers) movers(currency, duration string) models.TopMovers {
	gainers, losers := r.Gainers, r.Losers
	if len(gainers) == 0 && len(losers) == 0 {
		gainers, losers = r.TopGainers, r.TopLosers
	}
	return models.TopMovers{
		Gainers: toTopCoins(gainers, currency, duration),
		Losers:  toTopCoins(losers, currency, duration),
	}
}

func toTopCoins(rows []map[string]json.RawMessage, currency, duration string) []models.TopCoin {
	out := make([]models.TopCoin, 0, len(rows))
	for _, row := range rows {
		coin := models.TopCoin{}
		coin.ID = str(row, "id")
		coin.Symbol = str(row, "symbol")
		coin.Name = str(row, "name")
		coin.Image = str(row, "image")
		coin.MarketCapRank = int(num(row, "market_cap_rank"))
		coin.CurrentPrice = num(row, "current_price", currency)
		coin.MarketCap = num(row, "market_cap")
		coin.TotalVolume = num(row, "total_volume", currency+"_24h_vol")
		coin.PriceChangePercentage24h = num(row, "price_change_percentage_24h", currency+"_24h_change")
		coin.PriceChangePercentage = num(row, "price_change_percentage", currency+"_"+duration+"_change")
		out = append(out, coin)
	}
	return out
}

func str(row map[string]json.RawMessage, key string) string {
	var s string
	if raw, ok := row[key]; ok {
		_ = json.Unmarshal(raw, &s)
	}
	return s
}

// num returns the first key present that decodes as a number.
func num(row map[string]json.RawMessage, keys ...string) float64 {
	for _, k := range keys {
		raw, ok := row[k]
		if !ok {
			continue
		}
		var f flexFloat
		if err := json.Unmarshal(raw, &f); err == nil {
			return float64(f)
		}
	}
	return 0
}
