package models

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

type NewsArticle struct {
	Title       string    `json:"title" validate:"required"`
	URL         string    `json:"url" validate:"required,url"`
	Description string    `json:"description"`
	Source      string    `json:"source" validate:"required"`
	PublishedAt string    `json:"published_at" validate:"required"`
	Thumbnail   string    `json:"thumbnail,omitempty" validate:"omitempty,url"`
	Categories  []string  `json:"categories,omitempty"`
	Sentiment   Sentiment `json:"sentiment,omitempty" validate:"omitempty,oneof=positive negative neutral"`
}

type TweetMetrics struct {
	Likes    int `json:"likes" validate:"gte=0"`
	Retweets int `json:"retweets" validate:"gte=0"`
	Replies  int `json:"replies" validate:"gte=0"`
}

type TweetURL struct {
	DisplayURL  string `json:"display_url,omitempty"`
	ExpandedURL string `json:"expanded_url,omitempty"`
	URL         string `json:"url,omitempty"`
}

type TweetEntities struct {
	Hashtags []string   `json:"hashtags,omitempty"`
	URLs     []TweetURL `json:"urls,omitempty"`
	Mentions []string   `json:"mentions,omitempty"`
}

type Tweet struct {
	ID              string         `json:"id" validate:"required"`
	Text            string         `json:"text"`
	CreatedAt       string         `json:"created_at"`
	Username        string         `json:"username" validate:"required"`
	Name            string         `json:"name"`
	ProfileImageURL string         `json:"profile_image_url"`
	Verified        bool           `json:"verified"`
	Metrics         TweetMetrics   `json:"metrics"`
	Entities        *TweetEntities `json:"entities,omitempty"`
}

// TwitterResponse always carries a tweets list; Error is set when the
// upstream call failed and the list is empty.
type TwitterResponse struct {
	Tweets []Tweet `json:"tweets" validate:"dive"`
	Error  string  `json:"error,omitempty"`
}

// TwitterSearchResponse is the raw search payload returned to callers as-is.
type TwitterSearchResponse struct {
	Status     string                   `json:"status"`
	Timeline   []map[string]interface{} `json:"timeline"`
	NextCursor string                   `json:"next_cursor,omitempty"`
	PrevCursor string                   `json:"prev_cursor,omitempty"`
}
