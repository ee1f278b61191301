package businessflow

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/amirphl/Kusanagi/app/services"
	"github.com/amirphl/Kusanagi/models"
	"github.com/amirphl/Kusanagi/repository"
	"github.com/amirphl/Kusanagi/utils"
	gocache "github.com/patrickmn/go-cache"
)

var (
	randomContentTagRegex = regexp.MustCompile(`\[RANDOM_CONTENT:(.*?)\]`)
	numericTagRegex       = regexp.MustCompile(`\[(INCREMENT|DECREMENT|MULTIPLY)(_ONCE)?_BY_(\d+)\]`)
	trailingHTMLTagRegex  = regexp.MustCompile(`(?:<[^>]*>\s*)+$`)
	anyAnchorRegex        = regexp.MustCompile(`(?i)<a\s+[^>]*href`)
)

// counterFieldTag names the list field numeric tags operate on
const counterFieldTag = "COUNTER"

// TagEngine resolves the data driven tag namespaces: customer [TAG:...]
// tags, campaign [EXTRA:...] tags, [RANDOM_CONTENT:...] alternatives,
// subscriber field tags and the numeric counter tags. Every resolution
// failure degrades to an empty substitution so one broken tag never blocks
// a send.
type TagEngine interface {
	BuildSearchReplaceMap(ctx context.Context, content string, sc *SendContext) map[string]string
	// RandomContentReplacements resolves only the [RANDOM_CONTENT:...] tags
	// in content; the subject and to fields run it as a separate second pass
	RandomContentReplacements(ctx context.Context, content string, sc *SendContext) map[string]string
}

type TagEngineImpl struct {
	customerTagRepo repository.CustomerTagRepository
	extraTagRepo    repository.CampaignExtraTagRepository
	randomRepo      repository.RandomContentRepository
	listFieldRepo   repository.ListFieldRepository
	fieldValueRepo  repository.SubscriberFieldValueRepository
	counterRepo     repository.TagEventCounterRepository
	remote          services.RemoteContentService
	tracking        LinkTrackingFlow
	resolver        TagResolver
	rand            RandomSource
	tagMemo         *gocache.Cache
	logger          *log.Logger
}

// NewTagEngine creates the tag engine. rand is injectable so tests can force
// a deterministic random pick.
func NewTagEngine(
	customerTagRepo repository.CustomerTagRepository,
	extraTagRepo repository.CampaignExtraTagRepository,
	randomRepo repository.RandomContentRepository,
	listFieldRepo repository.ListFieldRepository,
	fieldValueRepo repository.SubscriberFieldValueRepository,
	counterRepo repository.TagEventCounterRepository,
	remote services.RemoteContentService,
	tracking LinkTrackingFlow,
	resolver TagResolver,
	rand RandomSource,
	logger *log.Logger,
) TagEngine {
	return &TagEngineImpl{
		customerTagRepo: customerTagRepo,
		extraTagRepo:    extraTagRepo,
		randomRepo:      randomRepo,
		listFieldRepo:   listFieldRepo,
		fieldValueRepo:  fieldValueRepo,
		counterRepo:     counterRepo,
		remote:          remote,
		tracking:        tracking,
		resolver:        resolver,
		rand:            rand,
		tagMemo:         gocache.New(utils.CustomerTagsCacheTTL, utils.CustomerTagsCacheTTL),
		logger:          logger,
	}
}

// BuildSearchReplaceMap resolves the tag namespaces in their required order.
// Resolved values that themselves contain tags are appended to a scratch
// copy of the content so nested tags are discovered by later stages instead
// of recursively re-running the whole pipeline.
func (e *TagEngineImpl) BuildSearchReplaceMap(ctx context.Context, content string, sc *SendContext) map[string]string {
	scratch := content
	tags := make(map[string]string)

	merge := func(m map[string]string) {
		for k, v := range m {
			tags[k] = v
			if strings.ContainsRune(v, '[') {
				scratch += v
			}
		}
	}

	merge(e.customerTagReplacements(ctx, scratch, sc))
	merge(e.extraTagReplacements(ctx, scratch, sc))
	merge(e.RandomContentReplacements(ctx, scratch, sc))
	merge(e.fieldTagReplacements(ctx, scratch, sc))
	merge(e.numericTagReplacements(ctx, scratch, sc))

	for k, v := range e.resolver.CommonTags(ctx, scratch, sc) {
		tags[k] = v
	}

	return tags
}

// customerTagReplacements resolves customer owned [TAG:...] tags present in
// content. Random mode tags substitute one random line of their content with
// trailing HTML tags stripped.
func (e *TagEngineImpl) customerTagReplacements(ctx context.Context, content string, sc *SendContext) map[string]string {
	out := make(map[string]string)
	if !strings.Contains(content, "[TAG:") {
		return out
	}

	customerTags, loaded := sc.CachedCustomerTags()
	if !loaded {
		memoKey := fmt.Sprintf("customer_tags_%d", sc.Campaign.CustomerID)
		if cached, found := e.tagMemo.Get(memoKey); found {
			customerTags = cached.([]*models.CustomerTag)
		} else {
			var err error
			customerTags, err = e.customerTagRepo.ListByCustomer(ctx, sc.Campaign.CustomerID, utils.MaxCustomerTags)
			if err != nil {
				e.logger.Printf("customer tag load failed for customer %d: %v", sc.Campaign.CustomerID, err)
				return out
			}
			e.tagMemo.Set(memoKey, customerTags, utils.CustomerTagsCacheTTL)
		}
		sc.MemoizeCustomerTags(customerTags)
	}

	for _, tag := range customerTags {
		literal := tag.FullTag()
		if !strings.Contains(content, literal) {
			continue
		}
		value := tag.Content
		if tag.Random {
			lines := splitNonEmptyLines(value)
			if len(lines) > 0 {
				value = trailingHTMLTagRegex.ReplaceAllString(lines[e.rand.Intn(len(lines))], "")
			}
		}
		out[literal] = value
	}
	return out
}

// extraTagReplacements resolves campaign owned [EXTRA:...] tags
func (e *TagEngineImpl) extraTagReplacements(ctx context.Context, content string, sc *SendContext) map[string]string {
	out := make(map[string]string)
	if !strings.Contains(content, "[EXTRA:") {
		return out
	}

	extraTags, err := e.extraTagRepo.ListByCampaign(ctx, sc.Campaign.ID)
	if err != nil {
		e.logger.Printf("extra tag load failed for campaign %s: %v", sc.Campaign.UID, err)
		return out
	}

	for _, tag := range extraTags {
		literal := tag.FullTag()
		if strings.Contains(content, literal) {
			out[literal] = tag.Content
		}
	}
	return out
}

// randomContentReplacements resolves [RANDOM_CONTENT:a|b|c] occurrences. An
// alternative of the form BLOCK:name substitutes the named stored block,
// which may carry feed tags and anchors requiring tracking of its own.
func (e *TagEngineImpl) RandomContentReplacements(ctx context.Context, content string, sc *SendContext) map[string]string {
	out := make(map[string]string)
	for _, m := range randomContentTagRegex.FindAllStringSubmatch(content, -1) {
		if _, done := out[m[0]]; done {
			continue
		}
		alternatives := strings.Split(m[1], "|")
		chosen := alternatives[e.rand.Intn(len(alternatives))]
		if name, isBlock := strings.CutPrefix(chosen, "BLOCK:"); isBlock {
			chosen = e.resolveBlock(ctx, name, sc)
		}
		out[m[0]] = chosen
	}
	return out
}

func (e *TagEngineImpl) resolveBlock(ctx context.Context, name string, sc *SendContext) string {
	block, err := e.randomRepo.ByCampaignAndName(ctx, sc.Campaign.ID, name)
	if err != nil || block == nil {
		e.logger.Printf("random content block %q not found for campaign %s", name, sc.Campaign.UID)
		return ""
	}

	value := e.remote.Expand(ctx, block.Content)

	if sc.Campaign.Options.URLTracking && anyAnchorRegex.MatchString(value) {
		tracked, err := e.tracking.TransformLinksForTracking(ctx, value, sc, false)
		if err != nil {
			e.logger.Printf("block %q link tracking failed for campaign %s: %v", name, sc.Campaign.UID, err)
			return value
		}
		value = tracked
	}
	return value
}

// fieldTagReplacements resolves subscriber custom field tags, comma joining
// multiple values. Only fields actually referenced in the campaign trigger a
// value lookup.
func (e *TagEngineImpl) fieldTagReplacements(ctx context.Context, content string, sc *SendContext) map[string]string {
	out := make(map[string]string)
	if sc.List == nil || sc.Subscriber == nil {
		return out
	}

	fields, err := e.listFieldRepo.ListByList(ctx, sc.List.ID)
	if err != nil {
		e.logger.Printf("list field load failed for list %s: %v", sc.List.UID, err)
		return out
	}

	for _, field := range fields {
		if !IsTagUsedInCampaign(field.Tag, sc.Campaign, content) {
			continue
		}
		values, err := e.fieldValueRepo.ValuesBySubscriberAndField(ctx, sc.Subscriber.ID, field.ID)
		if err != nil {
			e.logger.Printf("field value load failed for subscriber %s field %s: %v", sc.Subscriber.UID, field.Tag, err)
			values = nil
		}
		out["["+field.Tag+"]"] = strings.Join(values, ", ")
	}
	return out
}

// numericTagReplacements resolves [INCREMENT_BY_X] style tags against the
// subscriber's COUNTER field. The _ONCE_ variants only apply their arithmetic
// on the first occurrence of the triggering event; later occurrences
// substitute the stored value unchanged.
func (e *TagEngineImpl) numericTagReplacements(ctx context.Context, content string, sc *SendContext) map[string]string {
	out := make(map[string]string)
	matches := numericTagRegex.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 || sc.List == nil || sc.Subscriber == nil {
		return out
	}

	field, err := e.listFieldRepo.ByListAndTag(ctx, sc.List.ID, counterFieldTag)
	if err != nil || field == nil {
		for _, m := range matches {
			out[m[0]] = ""
		}
		return out
	}

	stored := 0
	if values, err := e.fieldValueRepo.ValuesBySubscriberAndField(ctx, sc.Subscriber.ID, field.ID); err == nil && len(values) > 0 {
		stored, _ = strconv.Atoi(values[0])
	}

	// Click and open events bump their counters at the tracking endpoints
	// before the engine runs, but no endpoint bumps the send counter. The
	// parse itself records the send occurrence, once per invocation, so the
	// first real send sees occurrence 1 like the other events do. Previews
	// peek at the next count without recording it.
	sendCounted := false
	var sendOccurrences uint
	var sendErr error
	eventOccurrences := func() (uint, error) {
		if sc.Event != models.TagEventSend {
			return e.counterRepo.Occurrences(ctx, sc.Campaign.ID, sc.Subscriber.ID, sc.Event, sc.EventReference)
		}
		if !sendCounted {
			sendCounted = true
			if sc.CanSave {
				sendOccurrences, sendErr = e.counterRepo.Increment(ctx, sc.Campaign.ID, sc.Subscriber.ID, sc.Event, sc.EventReference)
			} else {
				sendOccurrences, sendErr = e.counterRepo.Occurrences(ctx, sc.Campaign.ID, sc.Subscriber.ID, sc.Event, sc.EventReference)
				sendOccurrences++
			}
		}
		return sendOccurrences, sendErr
	}

	for _, m := range matches {
		if _, done := out[m[0]]; done {
			continue
		}
		op, once := m[1], m[2] != ""
		operand, _ := strconv.Atoi(m[3])

		apply := true
		if once {
			occurrences, err := eventOccurrences()
			if err != nil {
				e.logger.Printf("event counter lookup failed for campaign %s subscriber %s: %v", sc.Campaign.UID, sc.Subscriber.UID, err)
				apply = false
			} else {
				apply = occurrences == 1
			}
		}

		value := stored
		if apply {
			switch op {
			case "INCREMENT":
				value = stored + operand
			case "DECREMENT":
				value = stored - operand
			case "MULTIPLY":
				value = stored * operand
			}
			if err := e.fieldValueRepo.UpdateValue(ctx, sc.Subscriber.ID, field.ID, strconv.Itoa(value)); err != nil {
				e.logger.Printf("counter field update failed for subscriber %s: %v", sc.Subscriber.UID, err)
			}
			stored = value
		}
		out[m[0]] = strconv.Itoa(value)
	}
	return out
}

// ApplySearchReplace substitutes every tag in one pass, longest tag literal
// first so no tag can corrupt another that contains it
func ApplySearchReplace(content string, tags map[string]string) string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		content = strings.ReplaceAll(content, k, tags[k])
	}
	return content
}

// ResolveNestedTags applies the map repeatedly so tag values that themselves
// contain tags resolve, bounded to a fixed number of passes with a
// no-progress guard against reference cycles
func ResolveNestedTags(content string, tags map[string]string) string {
	for pass := 0; pass < utils.MaxTagResolvePasses; pass++ {
		next := ApplySearchReplace(content, tags)
		if next == content || !strings.ContainsRune(next, '[') {
			return next
		}
		content = next
	}
	return content
}

func splitNonEmptyLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
