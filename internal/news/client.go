// Package news fetches token headlines from the CryptoCompare news feed.
package news

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"tradesxbt/config"
	"tradesxbt/internal/apperr"
	"tradesxbt/internal/httpx"
	"tradesxbt/logger"
	"tradesxbt/models"
)

const (
	component    = "news"
	defaultLimit = 5
	maxBody      = 200
)

var symbols = map[string]string{
	"bitcoin":     "BTC",
	"ethereum":    "ETH",
	"solana":      "SOL",
	"binancecoin": "BNB",
	"ripple":      "XRP",
}

var (
	positiveWords = []string{"surge", "gain", "rally", "rise", "soar", "bull", "positive", "growth", "up", "high", "boost"}
	negativeWords = []string{"crash", "drop", "fall", "plunge", "bearish", "negative", "decline", "down", "low", "tumble"}
)

type Client struct {
	http     *httpx.Client
	log      *logger.Log
	validate *validator.Validate
}

func New(cfg config.HTTPProviderConfig, log *logger.Log) *Client {
	headers := map[string]string{}
	if cfg.APIKey != "" {
		headers["authorization"] = "Apikey " + cfg.APIKey
	}
	return NewWithHTTP(httpx.FromConfig(component, cfg, headers, nil, log), log)
}

func NewWithHTTP(hc *httpx.Client, log *logger.Log) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Client{http: hc, log: log, validate: validator.New()}
}

type feed struct {
	Data []struct {
		Title       string `json:"title"`
		URL         string `json:"url"`
		Body        string `json:"body"`
		Source      string `json:"source"`
		PublishedOn int64  `json:"published_on"`
		ImageURL    string `json:"imageurl"`
		Categories  string `json:"categories"`
	} `json:"Data"`
}

// TokenNews returns up to limit popular articles for tokenID. Any failure,
// including a payload that fails validation, yields an empty list.
func (c *Client) TokenNews(ctx context.Context, tokenID string, limit int) []models.NewsArticle {
	articles, err := c.fetch(ctx, tokenID, limit)
	if err != nil {
		c.log.WithComponent(component).WithError(err).WithField("token", tokenID).Error("failed to fetch news")
		return []models.NewsArticle{}
	}
	return articles
}

func (c *Client) fetch(ctx context.Context, tokenID string, limit int) ([]models.NewsArticle, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	p := url.Values{}
	p.Set("categories", Symbol(tokenID))
	p.Set("sortOrder", "popular")
	p.Set("lang", "EN")
	p.Set("excludeCategories", "Sponsored")

	var f feed
	if err := c.http.GetJSON(ctx, "/v2/news/", p, &f); err != nil {
		return nil, err
	}
	if f.Data == nil {
		return nil, apperr.Errorf(apperr.KindValidation, "news", "response has no Data list")
	}

	rows := f.Data
	if len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]models.NewsArticle, 0, len(rows))
	for _, a := range rows {
		article := models.NewsArticle{
			Title:       a.Title,
			URL:         a.URL,
			Description: truncate(a.Body),
			Source:      a.Source,
			PublishedAt: time.Unix(a.PublishedOn, 0).UTC().Format("2006-01-02T15:04:05.000Z"),
			Thumbnail:   a.ImageURL,
			Categories:  strings.Split(a.Categories, "|"),
			Sentiment:   DetectSentiment(a.Title),
		}
		if err := c.validate.Struct(article); err != nil {
			return nil, apperr.New(apperr.KindValidation, "news", err)
		}
		out = append(out, article)
	}
	return out, nil
}

// Symbol maps an API token id to the feed's category symbol.
func Symbol(tokenID string) string {
	if s, ok := symbols[tokenID]; ok {
		return s
	}
	return strings.ToUpper(tokenID)
}

// DetectSentiment tags a headline by keyword; positive words win over negative ones.
func DetectSentiment(title string) models.Sentiment {
	lower := strings.ToLower(title)
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			return models.SentimentPositive
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			return models.SentimentNegative
		}
	}
	return models.SentimentNeutral
}

func truncate(body string) string {
	if len(body) <= maxBody {
		return body
	}
	return body[:maxBody-3] + "..."
}
