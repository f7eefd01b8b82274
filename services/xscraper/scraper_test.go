package xscraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nitterPage = `<html><body>
<div class="timeline">
  <div class="tweet-content media-body" dir="auto">Just aped into <a href="/x">$TOK</a>, team is shipping daily updates</div>
  <div class="tweet-content">too short</div>
  <div class="tweet-stats">not a tweet at all, ignore this block please</div>
  <div class="tweet-content media-body">Second    tweet with
     plenty of whitespace inside it</div>
</div></body></html>`

func TestExtractTweets(t *testing.T) {
	tweets, err := ExtractTweets(strings.NewReader(nitterPage), 15)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Just aped into $TOK , team is shipping daily updates",
		"Second tweet with plenty of whitespace inside it",
	}, tweets)
}

func TestExtractTweetsRespectsMax(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&sb, `<div class="tweet-content">tweet number %02d with enough characters</div>`, i)
	}
	tweets, err := ExtractTweets(strings.NewReader(sb.String()), 15)
	require.NoError(t, err)
	assert.Len(t, tweets, 15)
}

func TestTweetsGoesThroughScraperAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "https://nitter.example/search?q=0xabc&f=tweets", r.URL.Query().Get("url"))
		_, _ = w.Write([]byte(nitterPage))
	}))
	defer srv.Close()

	s := New("key", srv.URL+"/", "https://nitter.example/", 15, 5*time.Second)
	tweets, err := s.Tweets(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Len(t, tweets, 2)
}

func TestTweetsErrors(t *testing.T) {
	_, err := New("", "http://unused", "https://nitter.net", 15, time.Second).Tweets(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotConfigured)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()
	_, err = New("k", srv.URL, "https://nitter.net", 15, time.Second).Tweets(context.Background(), "x")
	assert.ErrorContains(t, err, "403")
}
