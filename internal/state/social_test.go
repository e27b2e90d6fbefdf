package state

import (
	"context"
	"errors"
	"testing"

	"tradesxbt/models"
)

type fakeTweets struct {
	err error
}

func (f fakeTweets) Search(ctx context.Context, query string) (models.TwitterSearchResponse, error) {
	if f.err != nil {
		return models.TwitterSearchResponse{}, f.err
	}
	return models.TwitterSearchResponse{Status: "ok", Timeline: []map[string]interface{}{{"text": query}}}, nil
}

func (f fakeTweets) TokenTweets(ctx context.Context, tokenID string) models.TwitterResponse {
	return models.TwitterResponse{Tweets: []models.Tweet{{ID: "1", Username: tokenID}}}
}

type fakeNews struct {
	limit int
}

func (f *fakeNews) TokenNews(ctx context.Context, tokenID string, limit int) []models.NewsArticle {
	f.limit = limit
	return []models.NewsArticle{{Title: tokenID}}
}

func TestSearchTwitter(t *testing.T) {
	log, _ := testLogger()
	svc := NewSocialService(fakeTweets{}, &fakeNews{}, log)
	if snap := svc.Snapshot(); snap.SearchResults != nil || snap.IsLoading {
		t.Fatalf("unexpected initial state %+v", snap)
	}

	snap := svc.SearchTwitter(context.Background(), "bitcoin")
	if snap.SearchResults == nil || len(snap.SearchResults.Timeline) != 1 || snap.Error != "" || snap.IsLoading {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	svc.tweets = fakeTweets{err: errors.New("quota exceeded")}
	snap = svc.SearchTwitter(context.Background(), "eth")
	if snap.Error != "quota exceeded" || snap.SearchResults == nil {
		t.Fatalf("failed search should keep old results and set error: %+v", snap)
	}
}

func TestTokenFeeds(t *testing.T) {
	log, _ := testLogger()
	news := &fakeNews{}
	svc := NewSocialService(fakeTweets{}, news, log)

	if got := svc.TokenTweets(context.Background(), "solana"); len(got.Tweets) != 1 {
		t.Fatalf("unexpected tweets %+v", got)
	}
	if got := svc.TokenNews(context.Background(), "solana", 0); len(got) != 1 || news.limit != 10 {
		t.Fatalf("default limit not applied: %d", news.limit)
	}
}
