package state

import (
	"context"
	"sync"

	"tradesxbt/logger"
	"tradesxbt/models"
)

const twitterSearchError = "Failed to search Twitter"

// TweetSource is the social feed provider.
type TweetSource interface {
	Search(ctx context.Context, query string) (models.TwitterSearchResponse, error)
	TokenTweets(ctx context.Context, tokenID string) models.TwitterResponse
}

// NewsSource is the news feed provider.
type NewsSource interface {
	TokenNews(ctx context.Context, tokenID string, limit int) []models.NewsArticle
}

// SocialSnapshot is the state of the most recent free-text search.
type SocialSnapshot struct {
	SearchResults *models.TwitterSearchResponse `json:"searchResults"`
	IsLoading     bool                          `json:"isLoading"`
	Error         string                        `json:"error,omitempty"`
}

type SocialService struct {
	tweets TweetSource
	news   NewsSource
	log    *logger.Log

	mu   sync.RWMutex
	snap SocialSnapshot
}

func NewSocialService(tweets TweetSource, news NewsSource, log *logger.Log) *SocialService {
	if log == nil {
		log = logger.GetLogger()
	}
	return &SocialService{tweets: tweets, news: news, log: log}
}

func (s *SocialService) Snapshot() SocialSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// SearchTwitter runs a free-text search. The previous results stay visible
// when the search fails; only the error is replaced.
func (s *SocialService) SearchTwitter(ctx context.Context, query string) SocialSnapshot {
	s.mu.Lock()
	s.snap.IsLoading = true
	s.snap.Error = ""
	s.mu.Unlock()

	res, err := s.tweets.Search(ctx, query)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.IsLoading = false
	if err != nil {
		s.log.WithComponent("social_service").WithError(err).WithField("query", query).Warn("twitter search failed")
		s.snap.Error = err.Error()
		if s.snap.Error == "" {
			s.snap.Error = twitterSearchError
		}
		return s.snap
	}
	s.snap.SearchResults = &res
	return s.snap
}

func (s *SocialService) TokenTweets(ctx context.Context, tokenID string) models.TwitterResponse {
	return s.tweets.TokenTweets(ctx, tokenID)
}

func (s *SocialService) TokenNews(ctx context.Context, tokenID string, limit int) []models.NewsArticle {
	if limit <= 0 {
		limit = 10
	}
	return s.news.TokenNews(ctx, tokenID, limit)
}
