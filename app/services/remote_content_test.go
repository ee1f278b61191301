package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteContentExpand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("remote body"))
	}))
	defer server.Close()

	service := NewRemoteContentService(2 * time.Second)
	ctx := context.Background()

	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{
			name:     "single quoted url",
			content:  "before [REMOTE_CONTENT url='" + server.URL + "'] after",
			expected: "before remote body after",
		},
		{
			name:     "double quoted url",
			content:  `[REMOTE_CONTENT url="` + server.URL + `"]`,
			expected: "remote body",
		},
		{
			name:     "unquoted url",
			content:  "[REMOTE_CONTENT url=" + server.URL + "]",
			expected: "remote body",
		},
		{
			name:     "no remote tags",
			content:  "plain content [TAG:FOO]",
			expected: "plain content [TAG:FOO]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, service.Expand(ctx, tt.content))
		})
	}
}

func TestRemoteContentFetchFailureDegradesToEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	service := NewRemoteContentService(2 * time.Second)

	out := service.Expand(context.Background(), "x[REMOTE_CONTENT url='"+server.URL+"']y")
	assert.Equal(t, "xy", out)
}

func TestRemoteContentFetchMemoized(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("memoized"))
	}))
	defer server.Close()

	service := NewRemoteContentService(2 * time.Second)
	ctx := context.Background()

	first, err := service.Fetch(ctx, server.URL)
	require.NoError(t, err)
	second, err := service.Fetch(ctx, server.URL)
	require.NoError(t, err)

	assert.Equal(t, "memoized", first)
	assert.Equal(t, "memoized", second)
	assert.Equal(t, int64(1), hits.Load())
}

func TestXMLFeedExpansion(t *testing.T) {
	feed := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <item><title>First</title><link>https://example.com/1</link><description>one</description></item>
    <item><title>Second</title><link>https://example.com/2</link><description>two</description></item>
    <item><title>Third</title><link>https://example.com/3</link><description>three</description></item>
  </channel>
</rss>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feed))
	}))
	defer server.Close()

	service := NewRemoteContentService(2 * time.Second)

	content := `[XML_FEED_BEGIN url="` + server.URL + `" count="2"]<li><a href="[XML_FEED_ITEM_LINK]">[XML_FEED_ITEM_TITLE]</a></li>[XML_FEED_END]`
	out := service.Expand(context.Background(), content)

	assert.Equal(t, `<li><a href="https://example.com/1">First</a></li><li><a href="https://example.com/2">Second</a></li>`, out)
}

func TestJSONFeedExpansion(t *testing.T) {
	feed := `[{"title":"Post","link":"https://example.com/post","description":"body"}]`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feed))
	}))
	defer server.Close()

	service := NewRemoteContentService(2 * time.Second)

	content := `[JSON_FEED_BEGIN url='` + server.URL + `'][JSON_FEED_ITEM_TITLE]: [JSON_FEED_ITEM_LINK][JSON_FEED_END]`
	out := service.Expand(context.Background(), content)

	assert.Equal(t, "Post: https://example.com/post", out)
}
