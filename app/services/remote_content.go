package services

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/Kusanagi/utils"
	gocache "github.com/patrickmn/go-cache"
)

// Remote content tag patterns. The url attribute accepts single quotes,
// double quotes or no quotes at all, matching what customers actually type.
var (
	remoteContentTagRegex = regexp.MustCompile(`(?i)\[REMOTE_CONTENT\s+url=(?:'([^']+)'|"([^"]+)"|([^\s\]]+))\s*\]`)
	xmlFeedBlockRegex     = regexp.MustCompile(`(?is)\[XML_FEED_BEGIN\s+([^\]]*)\](.*?)\[XML_FEED_END\]`)
	jsonFeedBlockRegex    = regexp.MustCompile(`(?is)\[JSON_FEED_BEGIN\s+([^\]]*)\](.*?)\[JSON_FEED_END\]`)
	feedAttrRegex         = regexp.MustCompile(`(\w+)=(?:'([^']*)'|"([^"]*)"|([^\s\]]+))`)
)

// RemoteContentService expands remote content and feed tags inside campaign
// templates. Fetch failures degrade to an empty string so a dead endpoint
// never blocks a send.
type RemoteContentService interface {
	Expand(ctx context.Context, content string) string
	Fetch(ctx context.Context, url string) (string, error)
}

// RemoteContentServiceImpl implements RemoteContentService with a short
// timeout HTTP client and an in-process response memo
type RemoteContentServiceImpl struct {
	client *http.Client
	memo   *gocache.Cache
}

// NewRemoteContentService creates a remote content service. timeout bounds
// every outbound fetch.
func NewRemoteContentService(timeout time.Duration) RemoteContentService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RemoteContentServiceImpl{
		client: &http.Client{Timeout: timeout},
		memo:   gocache.New(utils.RemoteContentCacheTTL, utils.RemoteContentCacheTTL),
	}
}

// Expand replaces every remote content and feed tag in content with the
// fetched result. Unresolvable tags are replaced with an empty string.
func (s *RemoteContentServiceImpl) Expand(ctx context.Context, content string) string {
	content = remoteContentTagRegex.ReplaceAllStringFunc(content, func(tag string) string {
		m := remoteContentTagRegex.FindStringSubmatch(tag)
		url := firstNonEmpty(m[1], m[2], m[3])
		body, err := s.Fetch(ctx, url)
		if err != nil {
			return ""
		}
		return body
	})
	content = xmlFeedBlockRegex.ReplaceAllStringFunc(content, func(block string) string {
		return s.expandFeedBlock(ctx, xmlFeedBlockRegex, block, "XML_FEED", s.parseXMLFeed)
	})
	content = jsonFeedBlockRegex.ReplaceAllStringFunc(content, func(block string) string {
		return s.expandFeedBlock(ctx, jsonFeedBlockRegex, block, "JSON_FEED", s.parseJSONFeed)
	})
	return content
}

// Fetch returns the body at url, memoized per URL hash for a short window so
// a campaign sent to many subscribers hits the origin once
func (s *RemoteContentServiceImpl) Fetch(ctx context.Context, url string) (string, error) {
	memoKey := utils.SHA1Hex(url)
	if cached, found := s.memo.Get(memoKey); found {
		if body, ok := cached.(string); ok {
			return body, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("remote content request failed: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("remote content fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("remote content fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", fmt.Errorf("remote content read failed: %w", err)
	}

	s.memo.Set(memoKey, string(body), utils.RemoteContentCacheTTL)
	return string(body), nil
}

// feedItem is the normalized shape both feed formats reduce to
type feedItem struct {
	Title       string
	Link        string
	Description string
	Content     string
	Date        string
}

func (s *RemoteContentServiceImpl) expandFeedBlock(ctx context.Context, re *regexp.Regexp, block, tagPrefix string, parse func([]byte) []feedItem) string {
	m := re.FindStringSubmatch(block)
	attrs := parseFeedAttrs(m[1])
	template := m[2]

	url := attrs["url"]
	if url == "" {
		return ""
	}

	count := 10
	if n, err := strconv.Atoi(attrs["count"]); err == nil && n > 0 {
		count = n
	}

	body, err := s.Fetch(ctx, url)
	if err != nil {
		return ""
	}

	items := parse([]byte(body))
	if len(items) > count {
		items = items[:count]
	}

	var out strings.Builder
	for _, item := range items {
		rendered := template
		rendered = strings.ReplaceAll(rendered, "["+tagPrefix+"_ITEM_TITLE]", item.Title)
		rendered = strings.ReplaceAll(rendered, "["+tagPrefix+"_ITEM_LINK]", item.Link)
		rendered = strings.ReplaceAll(rendered, "["+tagPrefix+"_ITEM_DESCRIPTION]", item.Description)
		rendered = strings.ReplaceAll(rendered, "["+tagPrefix+"_ITEM_CONTENT]", item.Content)
		rendered = strings.ReplaceAll(rendered, "["+tagPrefix+"_ITEM_DATE]", item.Date)
		out.WriteString(rendered)
	}
	return out.String()
}

// rssFeed covers the RSS 2.0 subset the feed tags expose
type rssFeed struct {
	Channel struct {
		Items []struct {
			Title       string `xml:"title"`
			Link        string `xml:"link"`
			Description string `xml:"description"`
			PubDate     string `xml:"pubDate"`
		} `xml:"item"`
	} `xml:"channel"`
}

func (s *RemoteContentServiceImpl) parseXMLFeed(body []byte) []feedItem {
	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil
	}
	items := make([]feedItem, 0, len(feed.Channel.Items))
	for _, it := range feed.Channel.Items {
		items = append(items, feedItem{
			Title:       it.Title,
			Link:        it.Link,
			Description: it.Description,
			Content:     it.Description,
			Date:        it.PubDate,
		})
	}
	return items
}

func (s *RemoteContentServiceImpl) parseJSONFeed(body []byte) []feedItem {
	var raw []map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil
	}
	items := make([]feedItem, 0, len(raw))
	for _, entry := range raw {
		items = append(items, feedItem{
			Title:       jsonString(entry, "title"),
			Link:        jsonString(entry, "link", "url"),
			Description: jsonString(entry, "description", "summary"),
			Content:     jsonString(entry, "content", "description"),
			Date:        jsonString(entry, "date", "published"),
		})
	}
	return items
}

func jsonString(entry map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := entry[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func parseFeedAttrs(raw string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range feedAttrRegex.FindAllStringSubmatch(raw, -1) {
		attrs[strings.ToLower(m[1])] = firstNonEmpty(m[2], m[3], m[4])
	}
	return attrs
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
