package feeder

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
)

// FeedItem is one entry fetched from a feed or channel source.
type FeedItem struct {
	Title       string
	Link        string
	Content     string
	PublishedAt time.Time
}

// Fetcher pulls items from RSS/Atom endpoints.
type Fetcher struct {
	parser *gofeed.Parser
}

func NewFetcher() *Fetcher {
	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			// Some corporate blogs ship incomplete cert chains.
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}

	fp := gofeed.NewParser()
	fp.Client = httpClient

	return &Fetcher{parser: fp}
}

// FetchFeed fetches items from a feed endpoint. If limit is greater than
// 0, only the first limit items are returned.
func (f *Fetcher) FetchFeed(ctx context.Context, feedURL string, limit int) ([]FeedItem, error) {
	feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed %s: %w", feedURL, err)
	}

	var items []FeedItem
	for _, item := range feed.Items {
		var published time.Time
		if item.PublishedParsed != nil {
			published = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			published = *item.UpdatedParsed
		}

		content := item.Content
		if content == "" {
			content = item.Description
		}

		items = append(items, FeedItem{
			Title:       item.Title,
			Link:        item.Link,
			Content:     content,
			PublishedAt: published,
		})
	}

	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	return items, nil
}

// FetchChannel fetches items from a video channel source. The endpoint is
// a channel ID, resolved through YouTube's feed gateway.
func (f *Fetcher) FetchChannel(ctx context.Context, channelID string, limit int) ([]FeedItem, error) {
	feedURL := fmt.Sprintf("https://www.youtube.com/feeds/videos.xml?channel_id=%s", channelID)
	return f.FetchFeed(ctx, feedURL, limit)
}
