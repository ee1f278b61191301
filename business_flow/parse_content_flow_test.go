package businessflow

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/amirphl/Kusanagi/app/services"
	"github.com/amirphl/Kusanagi/models"
	"github.com/amirphl/Kusanagi/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type parseFixture struct {
	*engineFixture
	flow  ParseContentFlow
	hooks *HookRegistry
}

func newParseFixture(t *testing.T, rand RandomSource) *parseFixture {
	t.Helper()
	ef := newEngineFixture(t, rand)
	hooks := NewHookRegistry()
	tracking := NewLinkTrackingFlow(
		ef.urls,
		services.NewMemoryCache(time.Minute),
		services.NewLocalMutex(),
		hooks,
		NewLinkExtractor(),
		testBaseURL,
		discardLogger(),
	)
	return &parseFixture{
		engineFixture: ef,
		flow:          NewParseContentFlow(ef.engine, tracking, hooks, testBaseURL, discardLogger()),
		hooks:         hooks,
	}
}

func TestParseContentSubstitutesAndTracks(t *testing.T) {
	f := newParseFixture(t, fixedRand{pick: 0})
	sc := testSendContext()
	f.fields.fields = []*models.ListField{{ID: 21, ListID: 3, Tag: "FNAME"}}
	f.values.values[fieldValueKey{11, 21}] = []string{"Jane"}

	content := `<html><body>Hi [FNAME], <a href="https://example.com/page">shop</a></body></html>`
	parsed, err := f.flow.ParseContent(context.Background(), content, sc)
	require.NoError(t, err)

	assert.Contains(t, parsed.Content, "Hi Jane,")
	hash := utils.SHA1Hex("abc123" + "https://example.com/page")
	assert.Contains(t, parsed.Content, testBaseURL+"campaigns/abc123/track-url/sub456/"+hash)
	assert.NotContains(t, parsed.Content, `href="https://example.com/page"`)
	assert.Equal(t, "jane@example.com", parsed.To)
	assert.Equal(t, "Big spring savings", parsed.Subject)
}

func TestParseContentAppendsOpenBeacon(t *testing.T) {
	f := newParseFixture(t, fixedRand{pick: 0})
	sc := testSendContext()

	parsed, err := f.flow.ParseContent(context.Background(), "<html><body>hello</body></html>", sc)
	require.NoError(t, err)

	beacon := `<img src="` + testBaseURL + `campaigns/abc123/track-open/sub456" width="1" height="1" alt="" />`
	assert.Contains(t, parsed.Content, beacon)
	// Beacon lands before the body close tag
	assert.Less(t, strings.Index(parsed.Content, beacon), strings.Index(parsed.Content, "</body>"))
}

func TestParseContentBeaconSkippedWhenDisabledOrPlainText(t *testing.T) {
	t.Run("open tracking off", func(t *testing.T) {
		f := newParseFixture(t, fixedRand{pick: 0})
		sc := testSendContext()
		sc.Campaign.Options.OpenTracking = false
		parsed, err := f.flow.ParseContent(context.Background(), "<body>hello</body>", sc)
		require.NoError(t, err)
		assert.NotContains(t, parsed.Content, "/track-open/")
	})

	t.Run("plain text", func(t *testing.T) {
		f := newParseFixture(t, fixedRand{pick: 0})
		sc := testSendContext()
		sc.Campaign.Options.PlainText = true
		parsed, err := f.flow.ParseContent(context.Background(), "hello", sc)
		require.NoError(t, err)
		assert.NotContains(t, parsed.Content, "/track-open/")
	})

	t.Run("already has beacon", func(t *testing.T) {
		f := newParseFixture(t, fixedRand{pick: 0})
		sc := testSendContext()
		sc.Campaign.Options.URLTracking = false
		content := `<body><img src="https://x/campaigns/abc123/track-open/sub456"></body>`
		parsed, err := f.flow.ParseContent(context.Background(), content, sc)
		require.NoError(t, err)
		assert.Equal(t, 1, strings.Count(parsed.Content, "/track-open/"))
	})
}

func TestParseContentTrackingDisabledExpandsShorthand(t *testing.T) {
	f := newParseFixture(t, fixedRand{pick: 0})
	sc := testSendContext()
	sc.Campaign.Options.URLTracking = false
	sc.Campaign.Options.OpenTracking = false

	parsed, err := f.flow.ParseContent(context.Background(), "bye [UNSUBSCRIBE_LINK]", sc)
	require.NoError(t, err)

	// The anchor resolves to the real unsubscribe URL, untracked, marker gone
	assert.Contains(t, parsed.Content, `href="`+testBaseURL+"lists/lst789/unsubscribe/")
	assert.NotContains(t, parsed.Content, "data-unsubtag")
	assert.NotContains(t, parsed.Content, "track-url")
	assert.Equal(t, 0, f.urls.count())
}

func TestParseContentElasticEmailUnsubscribeSyntax(t *testing.T) {
	f := newParseFixture(t, fixedRand{pick: 0})
	sc := testSendContext()
	sc.Server = &models.DeliveryServer{Name: "ee", Type: models.DeliveryServerTypeElasticEmailAPI}

	parsed, err := f.flow.ParseContent(context.Background(), "<body>bye [UNSUBSCRIBE_LINK]</body>", sc)
	require.NoError(t, err)

	// The tracked unsubscribe anchor is rewritten to the provider native
	// syntax at parse time, after the shared transform
	assert.Contains(t, parsed.Content, `href="{unsubscribe:`)
	assert.NotContains(t, parsed.Content, "data-unsubtag")
}

func TestParseContentStripsUnsubMarkerForOtherProviders(t *testing.T) {
	f := newParseFixture(t, fixedRand{pick: 0})
	sc := testSendContext()

	parsed, err := f.flow.ParseContent(context.Background(), "bye [UNSUBSCRIBE_LINK]", sc)
	require.NoError(t, err)

	assert.NotContains(t, parsed.Content, "data-unsubtag")
	assert.NotContains(t, parsed.Content, "{unsubscribe:")
}

func TestParseContentDateParamTags(t *testing.T) {
	f := newParseFixture(t, fixedRand{pick: 0})
	sc := testSendContext()
	sc.Campaign.Options.OpenTracking = false

	now := utils.UTCNow()
	content := `today [DATE] tomorrow [DATE plus_days="1"] stamp [DATETIME format="2006"] custom [DATE format="01/2006"]`
	parsed, err := f.flow.ParseContent(context.Background(), content, sc)
	require.NoError(t, err)

	assert.Contains(t, parsed.Content, "today "+now.Format("2006-01-02"))
	assert.Contains(t, parsed.Content, "tomorrow "+now.AddDate(0, 0, 1).Format("2006-01-02"))
	assert.Contains(t, parsed.Content, "stamp "+now.Format("2006"))
	assert.Contains(t, parsed.Content, "custom "+now.Format("01/2006"))
}

func TestParseContentToFallbacks(t *testing.T) {
	t.Run("to name tag resolves to email", func(t *testing.T) {
		f := newParseFixture(t, fixedRand{pick: 0})
		sc := testSendContext()
		parsed, err := f.flow.ParseContent(context.Background(), "x", sc)
		require.NoError(t, err)
		assert.Equal(t, "jane@example.com", parsed.To)
	})

	t.Run("empty to name falls back to subscriber email", func(t *testing.T) {
		f := newParseFixture(t, fixedRand{pick: 0})
		sc := testSendContext()
		sc.Campaign.ToName = ""
		parsed, err := f.flow.ParseContent(context.Background(), "x", sc)
		require.NoError(t, err)
		assert.Equal(t, "jane@example.com", parsed.To)
	})

	t.Run("no email at all falls back to unknown", func(t *testing.T) {
		f := newParseFixture(t, fixedRand{pick: 0})
		sc := testSendContext()
		sc.Campaign.ToName = ""
		sc.Subscriber.Email = ""
		parsed, err := f.flow.ParseContent(context.Background(), "x", sc)
		require.NoError(t, err)
		assert.Equal(t, "unknown", parsed.To)
	})
}

func TestParseContentSubjectRandomContent(t *testing.T) {
	f := newParseFixture(t, fixedRand{pick: 1})
	sc := testSendContext()
	sc.Campaign.Subject = "[RANDOM_CONTENT:Sale now|Last chance] inside"

	parsed, err := f.flow.ParseContent(context.Background(), "body", sc)
	require.NoError(t, err)
	assert.Equal(t, "Last chance inside", parsed.Subject)
}

func TestParseContentTagMapFilterHook(t *testing.T) {
	f := newParseFixture(t, fixedRand{pick: 0})
	sc := testSendContext()
	sc.Campaign.Options.OpenTracking = false
	f.hooks.RegisterTagMapFilter(func(m map[string]string, _ *SendContext) map[string]string {
		m["[CUSTOM_HOOK_TAG]"] = "injected"
		return m
	})

	parsed, err := f.flow.ParseContent(context.Background(), "value: [CUSTOM_HOOK_TAG]", sc)
	require.NoError(t, err)
	assert.Contains(t, parsed.Content, "value: injected")
}

func TestParseContentTextFilterHook(t *testing.T) {
	f := newParseFixture(t, fixedRand{pick: 0})
	sc := testSendContext()
	sc.Campaign.Options.OpenTracking = false
	f.hooks.RegisterTextFilter(func(text string, _ map[string]string, _ *SendContext) string {
		return strings.ReplaceAll(text, "acme", "ACME")
	})

	parsed, err := f.flow.ParseContent(context.Background(), "welcome to acme", sc)
	require.NoError(t, err)
	assert.Equal(t, "welcome to ACME", parsed.Content)
}

func TestParseContentPlainTextTracksBareURLs(t *testing.T) {
	f := newParseFixture(t, fixedRand{pick: 0})
	sc := testSendContext()
	sc.Campaign.Options.PlainText = true

	parsed, err := f.flow.ParseContent(context.Background(), "visit https://example.com/page now", sc)
	require.NoError(t, err)

	hash := utils.SHA1Hex("abc123" + "https://example.com/page")
	assert.Equal(t, "visit "+testBaseURL+"campaigns/abc123/track-url/sub456/"+hash+" now", parsed.Content)
}
