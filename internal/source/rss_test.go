package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const sampleRSSFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>Example Feed</title>
<item>
<title>First Entry</title>
<link>https://example.com/first</link>
<guid>https://example.com/first</guid>
<description>Some description text about software.</description>
<pubDate>Mon, 01 Jan 2024 00:00:00 GMT</pubDate>
</item>
<item>
<title>Second Entry</title>
<link>https://example.com/second</link>
<guid>https://example.com/second</guid>
<description></description>
<pubDate>Tue, 02 Jan 2024 00:00:00 GMT</pubDate>
</item>
</channel>
</rss>`

func TestRSSAdapter_Fetch_ParsesFeedAndFallsBackContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleRSSFeed))
	}))
	defer srv.Close()

	a := NewRSSAdapter(srv.Client(), testLogger())

	items, err := a.Fetch(context.Background(), RSSConfig{
		FeedURLs: []string{srv.URL},
		MaxItems: 10,
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Content != "Some description text about software." {
		t.Errorf("unexpected content: %q", items[0].Content)
	}
	if items[1].Content != "Link: https://example.com/second" {
		t.Errorf("expected link fallback for empty description, got %q", items[1].Content)
	}
}

func TestRSSAdapter_Fetch_QuotaAppliedAcrossFeeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleRSSFeed))
	}))
	defer srv.Close()

	a := NewRSSAdapter(srv.Client(), testLogger())

	items, err := a.Fetch(context.Background(), RSSConfig{
		FeedURLs: []string{srv.URL, srv.URL},
		MaxItems: 2,
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected quota to cap at 2 items total, got %d", len(items))
	}
}
