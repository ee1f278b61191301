package businessflow

import (
	"context"
	"errors"
	"log"
	"regexp"
	"sort"
	"strings"

	"github.com/amirphl/Kusanagi/app/services"
	"github.com/amirphl/Kusanagi/models"
	"github.com/amirphl/Kusanagi/repository"
	"github.com/amirphl/Kusanagi/utils"
	"golang.org/x/sync/singleflight"
)

// TrackedURL is the transient form of a destination URL discovered during
// extraction, before persistence
type TrackedURL struct {
	URL      string
	Hash     string
	TrackURL string
	Markup   string
}

// Shorthand link tags expanded into full anchors before extraction so they
// participate in tracking. The data-unsubtag marker defers provider specific
// unsubscribe syntax to per subscriber parse time, because the transformed
// content cache is shared across subscribers and providers.
var shorthandLinkTags = [][2]string{
	{"[SUBSCRIBE_LINK]", `<a href="[SUBSCRIBE_URL]">Subscribe</a>`},
	{"[UNSUBSCRIBE_LINK]", `<a href="[UNSUBSCRIBE_URL]" data-unsubtag="UNSUBSCRIBE_URL">Unsubscribe</a>`},
	{"[DIRECT_UNSUBSCRIBE_LINK]", `<a href="[DIRECT_UNSUBSCRIBE_URL]" data-unsubtag="DIRECT_UNSUBSCRIBE_URL">Unsubscribe</a>`},
	{"[UNSUBSCRIBE_FROM_CUSTOMER_LINK]", `<a href="[UNSUBSCRIBE_FROM_CUSTOMER_URL]" data-unsubtag="UNSUBSCRIBE_FROM_CUSTOMER_URL">Unsubscribe</a>`},
}

var (
	hrefAttrRegex    = regexp.MustCompile(`(?i)(href\s*=\s*")([^"]*)(")`)
	linkTagHrefRegex = regexp.MustCompile(`(?i)(<link\s+[^>]*?href\s*=\s*")([^"]*)(")`)
	percentDecoder   = strings.NewReplacer(
		"%5B", "[", "%5b", "[",
		"%5D", "]", "%5d", "]",
		"%7C", "|", "%7c", "|",
		"%7B", "{", "%7b", "{",
		"%7D", "}", "%7d", "}",
	)
)

// LinkTrackingFlow rewrites outbound links in campaign content into tracked
// redirect URLs, memoized per campaign and content hash
type LinkTrackingFlow interface {
	TransformLinksForTracking(ctx context.Context, content string, sc *SendContext, isPlainText bool) (string, error)
}

type LinkTrackingFlowImpl struct {
	urlRepo   repository.TrackedURLRepository
	cache     services.Cache
	mutex     services.Mutex
	hooks     *HookRegistry
	extractor LinkExtractor
	baseURL   string
	logger    *log.Logger
	sf        singleflight.Group
}

// NewLinkTrackingFlow creates the transformer. baseURL is the public frontend
// URL tracked redirects point at.
func NewLinkTrackingFlow(
	urlRepo repository.TrackedURLRepository,
	cache services.Cache,
	mutex services.Mutex,
	hooks *HookRegistry,
	extractor LinkExtractor,
	baseURL string,
	logger *log.Logger,
) LinkTrackingFlow {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &LinkTrackingFlowImpl{
		urlRepo:   urlRepo,
		cache:     cache,
		mutex:     mutex,
		hooks:     hooks,
		extractor: extractor,
		baseURL:   baseURL,
		logger:    logger,
	}
}

// TransformLinksForTracking runs the check-lock-check transformation. Callers
// always get usable content back: the cached transform, a freshly computed
// one, or the untransformed input when the lock cannot be taken in time.
func (f *LinkTrackingFlowImpl) TransformLinksForTracking(ctx context.Context, content string, sc *SendContext, isPlainText bool) (string, error) {
	content = normalizeTrackingContent(content)
	for _, pair := range shorthandLinkTags {
		content = strings.ReplaceAll(content, pair[0], pair[1])
	}

	cacheKey := utils.SHA1Hex(utils.TrackingURLsCacheKeyPrefix + sc.Campaign.UID + content)

	// Fast path, no lock needed
	if cached, found, err := f.cache.Get(ctx, cacheKey); err == nil && found {
		transformCacheHits.Inc()
		transformsTotal.WithLabelValues(transformOutcomeCached).Inc()
		return cached, nil
	}

	// Collapse concurrent in-process callers for the same content onto one
	// computation before they contend on the distributed lock
	result, err, _ := f.sf.Do(cacheKey, func() (any, error) {
		return f.transformLocked(ctx, cacheKey, content, sc, isPlainText)
	})
	if err != nil {
		transformsTotal.WithLabelValues(transformOutcomeError).Inc()
		return "", err
	}
	return result.(string), nil
}

func (f *LinkTrackingFlowImpl) transformLocked(ctx context.Context, cacheKey, content string, sc *SendContext, isPlainText bool) (string, error) {
	if !f.mutex.Acquire(ctx, cacheKey, utils.TrackingMutexTimeout) {
		// Another worker may have just finished
		if cached, found, err := f.cache.Get(ctx, cacheKey); err == nil && found {
			transformsTotal.WithLabelValues(transformOutcomeCached).Inc()
			return cached, nil
		}
		// Never block a send, return the content untransformed
		f.logger.Printf("content lock timeout for campaign %s, sending untransformed", sc.Campaign.UID)
		mutexFallbacks.Inc()
		transformsTotal.WithLabelValues(transformOutcomeFallback).Inc()
		return content, nil
	}
	defer f.mutex.Release(ctx, cacheKey)

	// A writer may have finished between the first check and the lock
	if cached, found, err := f.cache.Get(ctx, cacheKey); err == nil && found {
		transformsTotal.WithLabelValues(transformOutcomeCached).Inc()
		return cached, nil
	}

	hc := &TrackingHookContext{Campaign: sc, Content: content}
	f.hooks.runBeforeTransform(hc)
	content = hc.Content

	candidates := f.extractor.Extract(content, ExtractOptions{
		PlainText:          isPlainText,
		TrackURLPrefix:     f.trackURLPrefix(sc),
		StrictLocalTagURLs: sc.Campaign.Options.StrictLocalTagURLs,
	})

	for _, c := range candidates {
		hc.TrackedURLs = append(hc.TrackedURLs, f.buildTrackedURL(sc, c))
	}

	if len(hc.TrackedURLs) == 0 {
		if err := f.cache.Set(ctx, cacheKey, content, 0); err != nil {
			return "", NewBusinessError("CONTENT_CACHE_SET_FAILED", "Failed to cache content", errors.Join(ErrContentCacheFailed, err))
		}
		transformsTotal.WithLabelValues(transformOutcomeTransformed).Inc()
		return content, nil
	}

	// Longest destination first so substring URLs cannot corrupt the
	// markup of longer ones
	sort.SliceStable(hc.TrackedURLs, func(i, j int) bool {
		if len(hc.TrackedURLs[i].URL) != len(hc.TrackedURLs[j].URL) {
			return len(hc.TrackedURLs[i].URL) > len(hc.TrackedURLs[j].URL)
		}
		return hc.TrackedURLs[i].URL < hc.TrackedURLs[j].URL
	})

	for _, tu := range hc.TrackedURLs {
		if isPlainText {
			content = strings.ReplaceAll(content, tu.Markup, tu.TrackURL)
		} else {
			content = strings.ReplaceAll(content, tu.Markup, `href="`+tu.TrackURL+`"`)
		}
	}

	content = f.restoreStylesheetHrefs(content, hc.TrackedURLs)

	hc.Content = content
	f.hooks.runAfterTransform(hc)
	content = hc.Content

	if sc.CanSave {
		if err := f.persistTrackedURLs(ctx, cacheKey, sc, hc.TrackedURLs); err != nil {
			return "", err
		}
	}

	if err := f.cache.Set(ctx, cacheKey, content, 0); err != nil {
		return "", NewBusinessError("CONTENT_CACHE_SET_FAILED", "Failed to cache content", errors.Join(ErrContentCacheFailed, err))
	}

	transformsTotal.WithLabelValues(transformOutcomeTransformed).Inc()
	return content, nil
}

func (f *LinkTrackingFlowImpl) buildTrackedURL(sc *SendContext, c CandidateLink) *TrackedURL {
	hash := utils.SHA1Hex(sc.Campaign.UID + c.URL)
	return &TrackedURL{
		URL:      c.URL,
		Hash:     hash,
		TrackURL: f.trackURLPrefix(sc) + "/" + hash,
		Markup:   c.Markup,
	}
}

func (f *LinkTrackingFlowImpl) trackURLPrefix(sc *SendContext) string {
	return f.baseURL + "campaigns/" + sc.Campaign.UID + "/track-url/" + sc.Subscriber.UID
}

// restoreStylesheetHrefs undoes tracking of <link href="..."> stylesheet
// references that share the href markup shape with anchors
func (f *LinkTrackingFlowImpl) restoreStylesheetHrefs(content string, urls []*TrackedURL) string {
	byTrackURL := make(map[string]string, len(urls))
	for _, tu := range urls {
		byTrackURL[tu.TrackURL] = tu.URL
	}
	return linkTagHrefRegex.ReplaceAllStringFunc(content, func(m string) string {
		sub := linkTagHrefRegex.FindStringSubmatch(m)
		if original, ok := byTrackURL[sub[2]]; ok {
			return sub[1] + original + sub[3]
		}
		return m
	})
}

// persistTrackedURLs writes newly discovered URLs in one statement. A failure
// purges the cache entry so no other reader can observe a half cached, half
// persisted state.
func (f *LinkTrackingFlowImpl) persistTrackedURLs(ctx context.Context, cacheKey string, sc *SendContext, urls []*TrackedURL) error {
	seen := make(map[string]bool, len(urls))
	var rows []*models.TrackedURL
	for _, tu := range urls {
		if seen[tu.Hash] {
			continue
		}
		seen[tu.Hash] = true

		count, err := f.urlRepo.CountByCampaignAndHash(ctx, sc.Campaign.ID, tu.Hash)
		if err != nil {
			_ = f.cache.Delete(ctx, cacheKey)
			return NewBusinessError("TRACKED_URL_LOOKUP_FAILED", "Failed to check tracked url existence", errors.Join(ErrTrackedURLPersistFailed, err))
		}
		if count > 0 {
			continue
		}

		rows = append(rows, &models.TrackedURL{
			CampaignID:  sc.Campaign.ID,
			Destination: tu.URL,
			Hash:        tu.Hash,
			DateAdded:   utils.UTCNow(),
		})
	}

	if len(rows) == 0 {
		return nil
	}

	if err := f.urlRepo.BulkInsert(ctx, rows); err != nil {
		_ = f.cache.Delete(ctx, cacheKey)
		return NewBusinessError("TRACKED_URL_PERSIST_FAILED", "Failed to persist tracked urls", errors.Join(ErrTrackedURLPersistFailed, err))
	}

	persistedURLs.Add(float64(len(rows)))
	return nil
}

// normalizeTrackingContent decodes percent encoded tag characters and strips
// entity encoded ampersands inside href attributes. Idempotent.
func normalizeTrackingContent(content string) string {
	content = percentDecoder.Replace(content)
	return hrefAttrRegex.ReplaceAllStringFunc(content, func(m string) string {
		sub := hrefAttrRegex.FindStringSubmatch(m)
		return sub[1] + strings.ReplaceAll(sub[2], "&amp;", "&") + sub[3]
	})
}
