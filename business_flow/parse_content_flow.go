package businessflow

import (
	"context"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/amirphl/Kusanagi/utils"
)

var (
	dateParamTagRegex = regexp.MustCompile(`\[(DATE|DATETIME)(?:\s+([^\]]*))?\]`)
	dateAttrRegex     = regexp.MustCompile(`(\w+)="([^"]*)"`)
	unsubMarkerRegex  = regexp.MustCompile(`(?i)<a\s+[^>]*?data-unsubtag="[A-Z_]+"[^>]*?>`)
	unsubMarkerAttr   = regexp.MustCompile(`(?i)\s*data-unsubtag="[A-Z_]+"`)
	bodyCloseRegex    = regexp.MustCompile(`(?i)</body>`)
	openBeaconMarker  = "/track-open/"
)

// ParsedContent is the per subscriber render result
type ParsedContent struct {
	To      string
	Subject string
	Content string
}

// ParseContentFlow is the top level entry turning a campaign template into
// final per subscriber content
type ParseContentFlow interface {
	ParseContent(ctx context.Context, content string, sc *SendContext) (*ParsedContent, error)
}

type ParseContentFlowImpl struct {
	engine   TagEngine
	tracking LinkTrackingFlow
	hooks    *HookRegistry
	baseURL  string
	logger   *log.Logger
}

// NewParseContentFlow creates the content pipeline
func NewParseContentFlow(
	engine TagEngine,
	tracking LinkTrackingFlow,
	hooks *HookRegistry,
	baseURL string,
	logger *log.Logger,
) ParseContentFlow {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &ParseContentFlowImpl{
		engine:   engine,
		tracking: tracking,
		hooks:    hooks,
		baseURL:  baseURL,
		logger:   logger,
	}
}

// ParseContent normalizes the template, substitutes every tag namespace,
// rewrites links for tracking, resolves provider specific unsubscribe
// markers and computes the final to and subject fields
func (f *ParseContentFlowImpl) ParseContent(ctx context.Context, content string, sc *SendContext) (*ParsedContent, error) {
	plainText := sc.Campaign.Options.PlainText

	content = normalizeTrackingContent(content)

	tags := f.engine.BuildSearchReplaceMap(ctx, content, sc)
	tags = f.hooks.applyTagMapFilters(tags, sc)

	content = ResolveNestedTags(content, tags)

	if sc.Campaign.Options.URLTracking {
		tracked, err := f.tracking.TransformLinksForTracking(ctx, content, sc, plainText)
		if err != nil {
			return nil, err
		}
		content = tracked
	} else {
		// The shorthand anchors are otherwise expanded by the transformer
		for _, pair := range shorthandLinkTags {
			content = strings.ReplaceAll(content, pair[0], pair[1])
		}
		content = ResolveNestedTags(content, tags)
	}

	content = f.resolveUnsubscribeMarkers(content, sc)
	content = resolveDateParamTags(content)
	content = f.hooks.applyTextFilters(content, tags, sc)

	to := f.finalizeField(ctx, sc.Campaign.ToName, tags, sc)
	if to == "" {
		to = sc.Subscriber.Email
	}
	if to == "" {
		to = "unknown"
	}
	subject := f.finalizeField(ctx, sc.Campaign.Subject, tags, sc)

	if sc.Campaign.Options.OpenTracking && !plainText {
		content = f.appendOpenBeacon(content, sc)
	}

	return &ParsedContent{To: to, Subject: subject, Content: content}, nil
}

// finalizeField runs the independent mini pipeline for the to and subject
// template fields: map substitution, text filters, then a second random
// content pass of their own
func (f *ParseContentFlowImpl) finalizeField(ctx context.Context, raw string, tags map[string]string, sc *SendContext) string {
	value := ResolveNestedTags(raw, tags)
	value = f.hooks.applyTextFilters(value, tags, sc)
	if strings.Contains(value, "[RANDOM_CONTENT:") {
		value = ApplySearchReplace(value, f.engine.RandomContentReplacements(ctx, value, sc))
	}
	value = resolveDateParamTags(value)
	return strings.TrimSpace(value)
}

// resolveUnsubscribeMarkers rewrites anchors carrying the data-unsubtag
// marker planted at transform time. Elastic Email servers get the provider
// native {unsubscribe:...} href; every server gets the marker stripped.
func (f *ParseContentFlowImpl) resolveUnsubscribeMarkers(content string, sc *SendContext) string {
	if sc.IsElasticEmail() {
		content = unsubMarkerRegex.ReplaceAllStringFunc(content, func(anchor string) string {
			return hrefAttrRegex.ReplaceAllStringFunc(anchor, func(m string) string {
				sub := hrefAttrRegex.FindStringSubmatch(m)
				if strings.HasPrefix(sub[2], "{unsubscribe:") {
					return m
				}
				return sub[1] + "{unsubscribe:" + sub[2] + "}" + sub[3]
			})
		})
	}
	return unsubMarkerAttr.ReplaceAllString(content, "")
}

// resolveDateParamTags expands parameterized [DATE ...] and [DATETIME ...]
// tags discovered after substitution. Supported attributes: format (layout),
// plus_days and minus_days.
func resolveDateParamTags(content string) string {
	if !strings.Contains(content, "[DATE") {
		return content
	}
	return dateParamTagRegex.ReplaceAllStringFunc(content, func(tag string) string {
		m := dateParamTagRegex.FindStringSubmatch(tag)

		layout := "2006-01-02"
		if m[1] == "DATETIME" {
			layout = "2006-01-02 15:04:05"
		}

		when := utils.UTCNow()
		for _, attr := range dateAttrRegex.FindAllStringSubmatch(m[2], -1) {
			switch strings.ToLower(attr[1]) {
			case "format":
				layout = attr[2]
			case "plus_days":
				if days, err := strconv.Atoi(attr[2]); err == nil {
					when = when.AddDate(0, 0, days)
				}
			case "minus_days":
				if days, err := strconv.Atoi(attr[2]); err == nil {
					when = when.AddDate(0, 0, -days)
				}
			}
		}
		return when.Format(layout)
	})
}

// appendOpenBeacon inserts the 1x1 open tracking image before </body>, or at
// the end when the content has no body close tag
func (f *ParseContentFlowImpl) appendOpenBeacon(content string, sc *SendContext) string {
	if strings.Contains(content, openBeaconMarker) {
		return content
	}
	beacon := `<img src="` + f.baseURL + "campaigns/" + sc.Campaign.UID + "/track-open/" + sc.Subscriber.UID + `" width="1" height="1" alt="" />`
	if loc := bodyCloseRegex.FindStringIndex(content); loc != nil {
		return content[:loc[0]] + beacon + content[loc[0]:]
	}
	return content + beacon
}
