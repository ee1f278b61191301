package businessflow

import (
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Link extraction patterns. The anchor pattern captures the full href
// attribute as markup so substitution can replace the exact substring, and
// accepts attributes before href.
var (
	anchorHrefRegex   = regexp.MustCompile(`(?i)<a\s+[^>]*?(href\s*=\s*(?:"([^"]*)"|'([^']*)'))`)
	plainTextURLRegex = regexp.MustCompile(`https?://[^\s<>"']+`)
	telURLRegex       = regexp.MustCompile(`^tel:\+?[0-9\s\-().]+$`)
	localTagRegex     = regexp.MustCompile(`^\[(.*)?\]$`)
	strictLocalRegex  = regexp.MustCompile(`^\[([A-Z0-9:_]+)_URL\]$`)
	trackedHashRegex  = regexp.MustCompile(`/[a-f0-9]{40}$`)
)

// CandidateLink pairs the exact substring to replace with the raw URL it
// carries. In plain text mode the two are identical.
type CandidateLink struct {
	Markup string
	URL    string
}

// ExtractOptions control one extraction run
type ExtractOptions struct {
	PlainText bool
	// TrackURLPrefix is the campaign and subscriber specific redirect prefix;
	// hrefs already below it are left alone
	TrackURLPrefix string
	// StrictLocalTagURLs narrows the bracket tags kept for click time
	// resolution to the [XYZ_URL] family
	StrictLocalTagURLs bool
}

// LinkExtractor scans content for candidate links to track
type LinkExtractor interface {
	Extract(content string, opts ExtractOptions) []CandidateLink
}

// LinkExtractorImpl implements LinkExtractor with regex driven scanning
type LinkExtractorImpl struct {
	validate *validator.Validate
}

// NewLinkExtractor creates a link extractor
func NewLinkExtractor() LinkExtractor {
	return &LinkExtractorImpl{validate: validator.New()}
}

// Extract returns the candidate links in content, longest URL first so a
// shorter URL that prefixes a longer one can never corrupt its markup
func (e *LinkExtractorImpl) Extract(content string, opts ExtractOptions) []CandidateLink {
	// URL to markup, last markup wins for duplicate URLs
	byURL := make(map[string]string)
	var order []string

	if opts.PlainText {
		for _, url := range plainTextURLRegex.FindAllString(content, -1) {
			if _, seen := byURL[url]; !seen {
				order = append(order, url)
			}
			byURL[url] = url
		}
	} else {
		for _, m := range anchorHrefRegex.FindAllStringSubmatch(content, -1) {
			url := m[2]
			if url == "" {
				url = m[3]
			}
			url = strings.TrimSpace(url)
			if url == "" {
				continue
			}
			if _, seen := byURL[url]; !seen {
				order = append(order, url)
			}
			byURL[url] = m[1]
		}
	}

	candidates := make([]CandidateLink, 0, len(order))
	for _, url := range order {
		if !e.keep(url, opts) {
			continue
		}
		candidates = append(candidates, CandidateLink{Markup: byURL[url], URL: url})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if len(candidates[i].URL) != len(candidates[j].URL) {
			return len(candidates[i].URL) > len(candidates[j].URL)
		}
		return candidates[i].URL < candidates[j].URL
	})

	return candidates
}

// keep classifies a raw URL; first match wins
func (e *LinkExtractorImpl) keep(url string, opts ExtractOptions) bool {
	// Already tracked for this campaign and subscriber, never re-track
	if opts.TrackURLPrefix != "" && strings.HasPrefix(url, opts.TrackURLPrefix) {
		if trackedHashRegex.MatchString(url) {
			return false
		}
	}

	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return true
	}

	if telURLRegex.MatchString(url) {
		return true
	}

	if strings.HasPrefix(strings.ToLower(url), "mailto:") {
		address := url[len("mailto:"):]
		if idx := strings.IndexByte(address, '?'); idx >= 0 {
			address = address[:idx]
		}
		return e.validate.Var(address, "required,email") == nil
	}

	// Bracket tags are kept verbatim and resolved at click time
	if opts.StrictLocalTagURLs {
		return strictLocalRegex.MatchString(url)
	}
	return localTagRegex.MatchString(url)
}
