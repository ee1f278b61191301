package businessflow

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/amirphl/Kusanagi/app/services"
	"github.com/amirphl/Kusanagi/models"
	"github.com/amirphl/Kusanagi/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type engineFixture struct {
	engine       TagEngine
	customerTags *fakeCustomerTagRepo
	extraTags    *fakeExtraTagRepo
	blocks       *fakeRandomContentRepo
	fields       *fakeListFieldRepo
	values       *fakeFieldValueRepo
	counters     *fakeCounterRepo
	urls         *fakeTrackedURLRepo
}

func newEngineFixture(t *testing.T, rand RandomSource) *engineFixture {
	t.Helper()
	f := &engineFixture{
		customerTags: &fakeCustomerTagRepo{},
		extraTags:    &fakeExtraTagRepo{},
		blocks:       &fakeRandomContentRepo{},
		fields:       &fakeListFieldRepo{},
		values:       newFakeFieldValueRepo(),
		counters:     newFakeCounterRepo(),
		urls:         &fakeTrackedURLRepo{},
	}
	tracking := NewLinkTrackingFlow(
		f.urls,
		services.NewMemoryCache(time.Minute),
		services.NewLocalMutex(),
		NewHookRegistry(),
		NewLinkExtractor(),
		testBaseURL,
		discardLogger(),
	)
	resolver := NewTagResolver(newTestTokenService(t), testBaseURL)
	f.engine = NewTagEngine(
		f.customerTags,
		f.extraTags,
		f.blocks,
		f.fields,
		f.values,
		f.counters,
		services.NewRemoteContentService(time.Second),
		tracking,
		resolver,
		rand,
		discardLogger(),
	)
	return f
}

func TestRandomContentPicksDeterministicAlternative(t *testing.T) {
	f := newEngineFixture(t, fixedRand{pick: 1})
	sc := testSendContext()

	out := f.engine.RandomContentReplacements(context.Background(), "[RANDOM_CONTENT:Hello|Hi|Hey] John", sc)

	require.Contains(t, out, "[RANDOM_CONTENT:Hello|Hi|Hey]")
	assert.Equal(t, "Hi", out["[RANDOM_CONTENT:Hello|Hi|Hey]"])
}

func TestRandomContentBlockIndirection(t *testing.T) {
	f := newEngineFixture(t, fixedRand{pick: 0})
	sc := testSendContext()
	f.blocks.blocks = []*models.RandomContent{
		{ID: 1, CampaignID: 1, Name: "promo", Content: "<p>Big deal</p>"},
	}

	out := f.engine.RandomContentReplacements(context.Background(), "[RANDOM_CONTENT:BLOCK:promo|fallback]", sc)
	assert.Equal(t, "<p>Big deal</p>", out["[RANDOM_CONTENT:BLOCK:promo|fallback]"])
}

func TestRandomContentBlockAnchorsAreTracked(t *testing.T) {
	f := newEngineFixture(t, fixedRand{pick: 0})
	sc := testSendContext()
	f.blocks.blocks = []*models.RandomContent{
		{ID: 1, CampaignID: 1, Name: "promo", Content: `<a href="https://example.com/deal">Deal</a>`},
	}

	out := f.engine.RandomContentReplacements(context.Background(), "[RANDOM_CONTENT:BLOCK:promo]", sc)

	hash := utils.SHA1Hex("abc123" + "https://example.com/deal")
	assert.Contains(t, out["[RANDOM_CONTENT:BLOCK:promo]"], hash)
	assert.Equal(t, 1, f.urls.count())
}

func TestRandomContentMissingBlockSubstitutesEmpty(t *testing.T) {
	f := newEngineFixture(t, fixedRand{pick: 0})
	sc := testSendContext()

	out := f.engine.RandomContentReplacements(context.Background(), "[RANDOM_CONTENT:BLOCK:nope]", sc)
	assert.Equal(t, "", out["[RANDOM_CONTENT:BLOCK:nope]"])
}

func TestCustomerTagReplacements(t *testing.T) {
	f := newEngineFixture(t, fixedRand{pick: 1})
	sc := testSendContext()
	f.customerTags.tags = []*models.CustomerTag{
		{ID: 1, CustomerID: 7, Tag: "SIGNATURE", Content: "Best,\nThe Acme team"},
		{ID: 2, CustomerID: 7, Tag: "GREETING", Content: "Hello<br>\nHowdy<br>\nHey there<br>", Random: true},
		{ID: 3, CustomerID: 7, Tag: "UNUSED", Content: "never referenced"},
	}

	tags := f.engine.BuildSearchReplaceMap(context.Background(), "[TAG:GREETING] [TAG:SIGNATURE]", sc)

	assert.Equal(t, "Best,\nThe Acme team", tags["[TAG:SIGNATURE]"])
	// Random mode picks line index 1 and strips the trailing markup
	assert.Equal(t, "Howdy", tags["[TAG:GREETING]"])
	_, ok := tags["[TAG:UNUSED]"]
	assert.False(t, ok)
}

func TestCustomerTagsMemoizedOnSendContext(t *testing.T) {
	f := newEngineFixture(t, fixedRand{pick: 0})
	sc := testSendContext()
	f.customerTags.tags = []*models.CustomerTag{
		{ID: 1, CustomerID: 7, Tag: "SIGNATURE", Content: "v1"},
	}

	_ = f.engine.BuildSearchReplaceMap(context.Background(), "[TAG:SIGNATURE]", sc)

	// The context now holds the loaded set; repo changes are invisible for
	// the rest of this parse
	f.customerTags.tags[0].Content = "v2"
	memoized, loaded := sc.CachedCustomerTags()
	require.True(t, loaded)
	require.Len(t, memoized, 1)
}

func TestExtraTagReplacements(t *testing.T) {
	f := newEngineFixture(t, fixedRand{pick: 0})
	sc := testSendContext()
	f.extraTags.tags = []*models.CampaignExtraTag{
		{ID: 1, CampaignID: 1, Tag: "COUPON", Content: "SAVE20"},
		{ID: 2, CampaignID: 2, Tag: "OTHER", Content: "not this campaign"},
	}

	tags := f.engine.BuildSearchReplaceMap(context.Background(), "use [EXTRA:COUPON]", sc)
	assert.Equal(t, "SAVE20", tags["[EXTRA:COUPON]"])
	_, ok := tags["[EXTRA:OTHER]"]
	assert.False(t, ok)
}

func TestFieldTagReplacements(t *testing.T) {
	f := newEngineFixture(t, fixedRand{pick: 0})
	sc := testSendContext()
	f.fields.fields = []*models.ListField{
		{ID: 21, ListID: 3, Tag: "FNAME"},
		{ID: 22, ListID: 3, Tag: "INTERESTS"},
		{ID: 23, ListID: 3, Tag: "UNREFERENCED"},
	}
	f.values.values[fieldValueKey{11, 21}] = []string{"Jane"}
	f.values.values[fieldValueKey{11, 22}] = []string{"go", "cycling"}

	tags := f.engine.BuildSearchReplaceMap(context.Background(), "Hi [FNAME], you like [INTERESTS]", sc)

	assert.Equal(t, "Jane", tags["[FNAME]"])
	assert.Equal(t, "go, cycling", tags["[INTERESTS]"])
	_, ok := tags["[UNREFERENCED]"]
	assert.False(t, ok)
}

func TestFieldTagMissingValueSubstitutesEmpty(t *testing.T) {
	f := newEngineFixture(t, fixedRand{pick: 0})
	sc := testSendContext()
	f.fields.fields = []*models.ListField{{ID: 21, ListID: 3, Tag: "FNAME"}}

	tags := f.engine.BuildSearchReplaceMap(context.Background(), "Hi [FNAME]", sc)
	value, ok := tags["[FNAME]"]
	require.True(t, ok)
	assert.Equal(t, "", value)
}

func TestNumericTags(t *testing.T) {
	setup := func(t *testing.T, stored string) (*engineFixture, *SendContext) {
		f := newEngineFixture(t, fixedRand{pick: 0})
		sc := testSendContext()
		f.fields.fields = []*models.ListField{{ID: 31, ListID: 3, Tag: "COUNTER"}}
		if stored != "" {
			f.values.values[fieldValueKey{11, 31}] = []string{stored}
		}
		return f, sc
	}

	t.Run("increment", func(t *testing.T) {
		f, sc := setup(t, "10")
		tags := f.engine.BuildSearchReplaceMap(context.Background(), "[INCREMENT_BY_5]", sc)
		assert.Equal(t, "15", tags["[INCREMENT_BY_5]"])
		stored, _ := f.values.ValuesBySubscriberAndField(context.Background(), 11, 31)
		assert.Equal(t, []string{"15"}, stored)
	})

	t.Run("decrement from empty starts at zero", func(t *testing.T) {
		f, sc := setup(t, "")
		tags := f.engine.BuildSearchReplaceMap(context.Background(), "[DECREMENT_BY_3]", sc)
		assert.Equal(t, "-3", tags["[DECREMENT_BY_3]"])
	})

	t.Run("multiply", func(t *testing.T) {
		f, sc := setup(t, "4")
		tags := f.engine.BuildSearchReplaceMap(context.Background(), "[MULTIPLY_BY_6]", sc)
		assert.Equal(t, "24", tags["[MULTIPLY_BY_6]"])
	})

	t.Run("once variant applies on first event occurrence", func(t *testing.T) {
		f, sc := setup(t, "10")
		sc.Event = models.TagEventURLClick
		sc.EventReference = "somehash"
		occ, err := f.counters.Increment(context.Background(), 1, 11, sc.Event, sc.EventReference)
		require.NoError(t, err)
		require.Equal(t, uint(1), occ)

		tags := f.engine.BuildSearchReplaceMap(context.Background(), "[INCREMENT_ONCE_BY_5]", sc)
		assert.Equal(t, "15", tags["[INCREMENT_ONCE_BY_5]"])
	})

	t.Run("once variant substitutes stored value on repeat occurrence", func(t *testing.T) {
		f, sc := setup(t, "15")
		sc.Event = models.TagEventURLClick
		sc.EventReference = "somehash"
		for range 2 {
			_, err := f.counters.Increment(context.Background(), 1, 11, sc.Event, sc.EventReference)
			require.NoError(t, err)
		}

		tags := f.engine.BuildSearchReplaceMap(context.Background(), "[INCREMENT_ONCE_BY_5]", sc)
		assert.Equal(t, "15", tags["[INCREMENT_ONCE_BY_5]"])
		stored, _ := f.values.ValuesBySubscriberAndField(context.Background(), 11, 31)
		assert.Equal(t, []string{"15"}, stored)
	})

	t.Run("once variant applies on first send", func(t *testing.T) {
		f, sc := setup(t, "10")
		require.Equal(t, models.TagEventSend, sc.Event)

		tags := f.engine.BuildSearchReplaceMap(context.Background(), "[INCREMENT_ONCE_BY_5]", sc)

		assert.Equal(t, "15", tags["[INCREMENT_ONCE_BY_5]"])
		occ, err := f.counters.Occurrences(context.Background(), 1, 11, models.TagEventSend, "")
		require.NoError(t, err)
		assert.Equal(t, uint(1), occ)
	})

	t.Run("once variant does not reapply on a later send", func(t *testing.T) {
		f, sc := setup(t, "10")

		first := f.engine.BuildSearchReplaceMap(context.Background(), "[INCREMENT_ONCE_BY_5]", sc)
		require.Equal(t, "15", first["[INCREMENT_ONCE_BY_5]"])

		second := f.engine.BuildSearchReplaceMap(context.Background(), "[INCREMENT_ONCE_BY_5]", sc)

		assert.Equal(t, "15", second["[INCREMENT_ONCE_BY_5]"])
		stored, _ := f.values.ValuesBySubscriberAndField(context.Background(), 11, 31)
		assert.Equal(t, []string{"15"}, stored)
	})

	t.Run("preview send does not record the occurrence", func(t *testing.T) {
		f, sc := setup(t, "10")
		sc.CanSave = false

		tags := f.engine.BuildSearchReplaceMap(context.Background(), "[INCREMENT_ONCE_BY_5]", sc)

		assert.Equal(t, "15", tags["[INCREMENT_ONCE_BY_5]"])
		occ, err := f.counters.Occurrences(context.Background(), 1, 11, models.TagEventSend, "")
		require.NoError(t, err)
		assert.Equal(t, uint(0), occ)
	})

	t.Run("no counter field substitutes empty", func(t *testing.T) {
		f := newEngineFixture(t, fixedRand{pick: 0})
		sc := testSendContext()
		tags := f.engine.BuildSearchReplaceMap(context.Background(), "[INCREMENT_BY_5]", sc)
		value, ok := tags["[INCREMENT_BY_5]"]
		require.True(t, ok)
		assert.Equal(t, "", value)
	})
}

func TestBuildSearchReplaceMapDiscoversNestedTags(t *testing.T) {
	f := newEngineFixture(t, fixedRand{pick: 0})
	sc := testSendContext()
	// The customer tag value references an extra tag that does not appear in
	// the original content
	f.customerTags.tags = []*models.CustomerTag{
		{ID: 1, CustomerID: 7, Tag: "FOOTER", Content: "code [EXTRA:COUPON]"},
	}
	f.extraTags.tags = []*models.CampaignExtraTag{
		{ID: 1, CampaignID: 1, Tag: "COUPON", Content: "SAVE20"},
	}

	tags := f.engine.BuildSearchReplaceMap(context.Background(), "bye [TAG:FOOTER]", sc)

	assert.Equal(t, "code [EXTRA:COUPON]", tags["[TAG:FOOTER]"])
	assert.Equal(t, "SAVE20", tags["[EXTRA:COUPON]"])

	resolved := ResolveNestedTags("bye [TAG:FOOTER]", tags)
	assert.Contains(t, resolved, "code SAVE20")
}

func TestApplySearchReplaceLongestFirst(t *testing.T) {
	tags := map[string]string{
		"[TAG:A]":  "short",
		"[TAG:AB]": "long",
	}
	assert.Equal(t, "long and short", ApplySearchReplace("[TAG:AB] and [TAG:A]", tags))
}

func TestResolveNestedTagsBounded(t *testing.T) {
	t.Run("deep nesting resolves", func(t *testing.T) {
		tags := map[string]string{
			"[TAG:A]": "[TAG:B]",
			"[TAG:B]": "[TAG:C]",
			"[TAG:C]": "done",
		}
		assert.Equal(t, "done", ResolveNestedTags("[TAG:A]", tags))
	})

	t.Run("reference cycle terminates", func(t *testing.T) {
		tags := map[string]string{
			"[TAG:A]": "[TAG:B]",
			"[TAG:B]": "[TAG:A]",
		}
		out := ResolveNestedTags("[TAG:A]", tags)
		assert.True(t, out == "[TAG:A]" || out == "[TAG:B]")
	})

	t.Run("unknown tags left verbatim", func(t *testing.T) {
		out := ResolveNestedTags("keep [NOT_A_TAG] as is", map[string]string{"[TAG:A]": "x"})
		assert.Equal(t, "keep [NOT_A_TAG] as is", out)
	})
}

func TestSplitNonEmptyLines(t *testing.T) {
	lines := splitNonEmptyLines("a\r\n\r\nb\n   \nc\n")
	assert.Equal(t, []string{"a", "b", "c"}, lines)
}

func TestNumericTagRegexShapes(t *testing.T) {
	tests := []struct {
		tag     string
		op      string
		once    bool
		operand int
	}{
		{"[INCREMENT_BY_1]", "INCREMENT", false, 1},
		{"[DECREMENT_ONCE_BY_12]", "DECREMENT", true, 12},
		{"[MULTIPLY_ONCE_BY_3]", "MULTIPLY", true, 3},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			m := numericTagRegex.FindStringSubmatch(tt.tag)
			require.NotNil(t, m)
			assert.Equal(t, tt.op, m[1])
			assert.Equal(t, tt.once, m[2] != "")
			operand, _ := strconv.Atoi(m[3])
			assert.Equal(t, tt.operand, operand)
		})
	}
}
