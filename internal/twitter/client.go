// Package twitter reads token chatter from the RapidAPI twitter-api45 search.
package twitter

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"tradesxbt/config"
	"tradesxbt/internal/apperr"
	"tradesxbt/internal/httpx"
	"tradesxbt/logger"
	"tradesxbt/models"
)

const (
	component           = "twitter"
	defaultProfileImage = "https://abs.twimg.com/sticky/default_profile_images/default_profile_normal.png"
)

var (
	hashtagRe = regexp.MustCompile(`#(\w+)`)
	tcoRe     = regexp.MustCompile(`https://t\.co/\w+`)
)

type Client struct {
	http     *httpx.Client
	log      *logger.Log
	validate *validator.Validate
}

func New(cfg config.HTTPProviderConfig, log *logger.Log) *Client {
	headers := map[string]string{
		"X-RapidAPI-Key":  cfg.APIKey,
		"X-RapidAPI-Host": cfg.Host,
	}
	return NewWithHTTP(httpx.FromConfig(component, cfg, headers, nil, log), log)
}

func NewWithHTTP(hc *httpx.Client, log *logger.Log) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Client{http: hc, log: log, validate: validator.New()}
}

type searchResult struct {
	Status  string      `json:"status"`
	Results []rawResult `json:"results"`
}

type rawResult struct {
	TweetID         string  `json:"tweet_id"`
	TweetText       string  `json:"tweet_text"`
	CreatedAt       string  `json:"created_at"`
	Username        string  `json:"username"`
	Name            string  `json:"name"`
	ProfileImageURL string  `json:"profile_image_url"`
	Verified        bool    `json:"verified"`
	LikeCount       flexInt `json:"like_count"`
	RetweetCount    flexInt `json:"retweet_count"`
	ReplyCount      flexInt `json:"reply_count"`
}

// TokenTweets returns the top tweets mentioning tokenID. It never fails;
// errors are reported in the response's Error field with no tweets.
func (c *Client) TokenTweets(ctx context.Context, tokenID string) models.TwitterResponse {
	tweets, err := c.tokenTweets(ctx, tokenID)
	if err != nil {
		c.log.WithComponent(component).WithError(err).WithField("token", tokenID).Error("failed to fetch tweets")
		return models.TwitterResponse{Tweets: []models.Tweet{}, Error: err.Error()}
	}
	return models.TwitterResponse{Tweets: tweets}
}

func (c *Client) tokenTweets(ctx context.Context, tokenID string) ([]models.Tweet, error) {
	p := url.Values{}
	p.Set("query", tokenID)
	p.Set("search_type", "Top")

	var res searchResult
	if err := c.http.GetJSON(ctx, "/search.php", p, &res); err != nil {
		return nil, err
	}
	if res.Status != "Success" || res.Results == nil {
		return nil, apperr.New(apperr.KindValidation, "twitter search", errors.New("invalid response format from Twitter API"))
	}

	resp := models.TwitterResponse{Tweets: make([]models.Tweet, 0, len(res.Results))}
	for _, r := range res.Results {
		resp.Tweets = append(resp.Tweets, toTweet(r))
	}
	if err := c.validate.Struct(resp); err != nil {
		return nil, apperr.New(apperr.KindValidation, "twitter search", err)
	}
	return resp.Tweets, nil
}

// Search returns the raw search payload; errors are returned to the caller.
func (c *Client) Search(ctx context.Context, query string) (models.TwitterSearchResponse, error) {
	p := url.Values{}
	p.Set("query", query)
	p.Set("search_type", "Top")
	var out models.TwitterSearchResponse
	if err := c.http.GetJSON(ctx, "/search.php", p, &out); err != nil {
		return models.TwitterSearchResponse{}, err
	}
	return out, nil
}

func (c *Client) SearchToken(ctx context.Context, symbol, name string) (models.TwitterSearchResponse, error) {
	return c.Search(ctx, symbol+" "+name+" crypto")
}

func toTweet(r rawResult) models.Tweet {
	image := r.ProfileImageURL
	if image == "" {
		image = defaultProfileImage
	}
	entities := &models.TweetEntities{Hashtags: hashtagRe.FindAllString(r.TweetText, -1)}
	if entities.Hashtags == nil {
		entities.Hashtags = []string{}
	}
	entities.URLs = []models.TweetURL{}
	for _, u := range tcoRe.FindAllString(r.TweetText, -1) {
		entities.URLs = append(entities.URLs, models.TweetURL{URL: u, DisplayURL: u, ExpandedURL: u})
	}
	return models.Tweet{
		ID:              r.TweetID,
		Text:            r.TweetText,
		CreatedAt:       r.CreatedAt,
		Username:        r.Username,
		Name:            r.Name,
		ProfileImageURL: image,
		Verified:        r.Verified,
		Metrics: models.TweetMetrics{
			Likes:    int(r.LikeCount),
			Retweets: int(r.RetweetCount),
			Replies:  int(r.ReplyCount),
		},
		Entities: entities,
	}
}

// flexInt accepts counts sent either as numbers or numeric strings and
// keeps the leading digits, treating anything else as zero.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, _ := strconv.Atoi(s[:end])
	*f = flexInt(n)
	return nil
}
