package feeder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Engineering Blog</title>
    <link>https://blog.example.com</link>
    <item>
      <title>Scaling the ingestion layer</title>
      <link>https://blog.example.com/posts/scaling-ingestion</link>
      <description>How we scaled ingestion.</description>
      <pubDate>Mon, 18 Aug 2025 09:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Postmortem: the cache incident</title>
      <link>https://blog.example.com/posts/cache-incident</link>
      <description>What went wrong.</description>
      <pubDate>Tue, 12 Aug 2025 09:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Older post</title>
      <link>https://blog.example.com/posts/older</link>
      <description>Old.</description>
    </item>
  </channel>
</rss>`

func TestFetchFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(rssFixture))
	}))
	defer srv.Close()

	items, err := NewFetcher().FetchFeed(context.Background(), srv.URL, 0)
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, "Scaling the ingestion layer", items[0].Title)
	assert.Equal(t, "https://blog.example.com/posts/scaling-ingestion", items[0].Link)
	assert.Equal(t, "How we scaled ingestion.", items[0].Content)
	assert.False(t, items[0].PublishedAt.IsZero())

	// Missing pubDate yields a zero timestamp, not an error.
	assert.True(t, items[2].PublishedAt.IsZero())
}

func TestFetchFeedLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rssFixture))
	}))
	defer srv.Close()

	items, err := NewFetcher().FetchFeed(context.Background(), srv.URL, 2)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestFetchFeedBadEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewFetcher().FetchFeed(context.Background(), srv.URL, 0)
	assert.Error(t, err)
}
