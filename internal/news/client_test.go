package news

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"tradesxbt/internal/httpx"
	"tradesxbt/logger"
	"tradesxbt/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	l, _ := test.NewNullLogger()
	log := &logger.Log{Logger: l}
	hc := httpx.New(component, httpx.Options{
		BaseURL:    srv.URL,
		Timeout:    time.Second,
		Retries:    1,
		BackoffMin: time.Millisecond,
		BackoffMax: time.Millisecond,
	}, log)
	return NewWithHTTP(hc, log)
}

func TestTokenNewsMapsArticles(t *testing.T) {
	long := strings.Repeat("a", 250)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("categories") != "BTC" || q.Get("sortOrder") != "popular" || q.Get("excludeCategories") != "Sponsored" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"Data":[
			{"title":"Bitcoin rally continues","url":"https://news.example/1","body":"` + long + `","source":"coindesk","published_on":1700000000,"imageurl":"https://img.example/1.png","categories":"BTC|Market"},
			{"title":"Miners plunge","url":"https://news.example/2","body":"short","source":"decrypt","published_on":1700000100,"imageurl":"","categories":"BTC"},
			{"title":"Third","url":"https://news.example/3","body":"x","source":"s","published_on":1,"categories":"BTC"}
		]}`))
	})

	articles := c.TokenNews(context.Background(), "bitcoin", 2)
	if len(articles) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(articles))
	}
	a := articles[0]
	if len(a.Description) != 200 || !strings.HasSuffix(a.Description, "...") {
		t.Fatalf("expected truncated description, got %d chars", len(a.Description))
	}
	if a.PublishedAt != "2023-11-14T22:13:20.000Z" {
		t.Fatalf("unexpected published_at %q", a.PublishedAt)
	}
	if len(a.Categories) != 2 || a.Categories[1] != "Market" {
		t.Fatalf("unexpected categories %v", a.Categories)
	}
	if a.Sentiment != models.SentimentPositive || articles[1].Sentiment != models.SentimentNegative {
		t.Fatalf("unexpected sentiments %s %s", a.Sentiment, articles[1].Sentiment)
	}
	if articles[1].Description != "short" {
		t.Fatalf("short body should be kept, got %q", articles[1].Description)
	}
}

func TestTokenNewsDefaultLimit(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var b strings.Builder
		b.WriteString(`{"Data":[`)
		for i := 0; i < 8; i++ {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString(`{"title":"t","url":"https://n.example/a","body":"b","source":"s","published_on":1,"categories":"X"}`)
		}
		b.WriteString(`]}`)
		_, _ = w.Write([]byte(b.String()))
	})
	if got := len(c.TokenNews(context.Background(), "pepe", 0)); got != 5 {
		t.Fatalf("expected default limit 5, got %d", got)
	}
}

func TestTokenNewsFailuresReturnEmpty(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "down", http.StatusInternalServerError)
		},
		"missing data": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"Message":"rate limit"}`))
		},
		"invalid url": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"Data":[{"title":"t","url":"not a url","body":"b","source":"s","published_on":1,"categories":"X"}]}`))
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, h)
			got := c.TokenNews(context.Background(), "bitcoin", 5)
			if got == nil || len(got) != 0 {
				t.Fatalf("expected empty list, got %+v", got)
			}
		})
	}
}

func TestSymbol(t *testing.T) {
	if Symbol("ripple") != "XRP" || Symbol("cardano") != "CARDANO" {
		t.Fatal("unexpected symbol mapping")
	}
}

func TestDetectSentiment(t *testing.T) {
	cases := []struct {
		title string
		want  models.Sentiment
	}{
		{"ETH soars past resistance", models.SentimentPositive},
		{"Market crash wipes out gains", models.SentimentPositive},
		{"Exchange sees sharp decline", models.SentimentNegative},
		{"Regulators meet on Tuesday", models.SentimentNeutral},
	}
	for _, tc := range cases {
		if got := DetectSentiment(tc.title); got != tc.want {
			t.Errorf("DetectSentiment(%q) = %s, want %s", tc.title, got, tc.want)
		}
	}
}
