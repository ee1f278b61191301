package businessflow

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/amirphl/Kusanagi/app/services"
	"github.com/amirphl/Kusanagi/models"
	"github.com/amirphl/Kusanagi/utils"
)

var surveyViewTagRegex = regexp.MustCompile(`\[SURVEY:([a-zA-Z0-9]+):VIEW_URL\]`)

// unsubscribeTagNames is the unsubscribe URL family subject to Elastic Email
// native syntax wrapping
var unsubscribeTagNames = []string{
	"[UNSUBSCRIBE_URL]",
	"[DIRECT_UNSUBSCRIBE_URL]",
	"[UNSUBSCRIBE_FROM_CUSTOMER_URL]",
}

// TagResolver builds the search/replace map for the fixed tag namespaces.
// Every namespace is gated on the tag prefix actually appearing somewhere in
// the campaign so unused namespaces cost nothing.
type TagResolver interface {
	CommonTags(ctx context.Context, content string, sc *SendContext) map[string]string
}

type TagResolverImpl struct {
	tokenService services.UnsubscribeTokenService
	baseURL      string
}

// NewTagResolver creates a tag resolver. baseURL is the public frontend URL
// the URL family tags point at.
func NewTagResolver(tokenService services.UnsubscribeTokenService, baseURL string) TagResolver {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &TagResolverImpl{tokenService: tokenService, baseURL: baseURL}
}

// IsTagUsedInCampaign reports whether any tag with the given prefix appears
// in the campaign content, subject, to name, from name or from email
func IsTagUsedInCampaign(prefix string, campaign *models.Campaign, content string) bool {
	haystack := content + campaign.Subject + campaign.ToName + campaign.FromName + campaign.FromEmail
	return strings.Contains(haystack, prefix)
}

// CommonTags returns the resolved fixed namespace tags for this send. The
// always present keys are [CAMPAIGN_TO_NAME], [CAMPAIGN_SUBJECT], the
// unsubscribe URL family and [CURRENT_YEAR].
func (r *TagResolverImpl) CommonTags(_ context.Context, content string, sc *SendContext) map[string]string {
	campaign := sc.Campaign
	now := utils.UTCNow()

	tags := map[string]string{
		"[CAMPAIGN_TO_NAME]": campaign.ToName,
		"[CAMPAIGN_SUBJECT]": campaign.Subject,
		"[CURRENT_YEAR]":     now.Format("2006"),
	}
	r.addURLFamily(tags, sc)

	if sc.List != nil && IsTagUsedInCampaign("LIST_", campaign, content) {
		tags["[LIST_UID]"] = sc.List.UID
		tags["[LIST_NAME]"] = sc.List.Name
		tags["[LIST_DISPLAY_NAME]"] = sc.List.DisplayName
		tags["[LIST_DESCRIPTION]"] = sc.List.Description
		tags["[LIST_FROM_NAME]"] = sc.List.FromName
		tags["[LIST_FROM_EMAIL]"] = sc.List.FromEmail
	}

	if IsTagUsedInCampaign("CURRENT_", campaign, content) {
		tags["[CURRENT_MONTH]"] = now.Format("01")
		tags["[CURRENT_DAY]"] = now.Format("02")
		tags["[CURRENT_DATE]"] = now.Format("2006-01-02")
		tags["[CURRENT_DATETIME]"] = now.Format("2006-01-02 15:04:05")
		tags["[CURRENT_TIME]"] = now.Format("15:04:05")
		tags["[CURRENT_MONTH_FULL_NAME]"] = now.Format("January")
	}

	if IsTagUsedInCampaign("SIGN_", campaign, content) {
		tags["[SIGN_LT]"] = "<"
		tags["[SIGN_LTE]"] = "<="
		tags["[SIGN_GT]"] = ">"
		tags["[SIGN_GTE]"] = ">="
	}

	if sc.List != nil && IsTagUsedInCampaign("COMPANY_", campaign, content) {
		company := sc.List.Company
		tags["[COMPANY_NAME]"] = company.Name
		tags["[COMPANY_ADDRESS_1]"] = company.Address1
		tags["[COMPANY_ADDRESS_2]"] = company.Address2
		tags["[COMPANY_CITY]"] = company.City
		tags["[COMPANY_ZIP]"] = company.ZipCode
		tags["[COMPANY_PHONE]"] = company.Phone
		tags["[COMPANY_WEBSITE]"] = company.Website
		tags["[COMPANY_FULL_ADDRESS]"] = company.AddressText
		if IsTagUsedInCampaign("COMPANY_ZONE", campaign, content) {
			tags["[COMPANY_ZONE]"] = company.Zone
		}
		if IsTagUsedInCampaign("COMPANY_COUNTRY", campaign, content) {
			tags["[COMPANY_COUNTRY]"] = company.Country
		}
	}

	if IsTagUsedInCampaign("CAMPAIGN_", campaign, content) {
		tags["[CAMPAIGN_NAME]"] = campaign.Name
		tags["[CAMPAIGN_UID]"] = campaign.UID
		tags["[CAMPAIGN_FROM_NAME]"] = campaign.FromName
		tags["[CAMPAIGN_FROM_EMAIL]"] = campaign.FromEmail
		tags["[CAMPAIGN_REPLY_TO]"] = campaign.ReplyTo
	}

	if sc.Subscriber != nil {
		if IsTagUsedInCampaign("SUBSCRIBER_", campaign, content) {
			sub := sc.Subscriber
			tags["[SUBSCRIBER_UID]"] = sub.UID
			tags["[SUBSCRIBER_EMAIL]"] = sub.Email
			tags["[SUBSCRIBER_OPTIN_IP]"] = derefString(sub.OptinIP)
			tags["[SUBSCRIBER_OPTIN_DATE]"] = formatDatePtr(sub.OptinDate)
			tags["[SUBSCRIBER_CONFIRM_IP]"] = derefString(sub.ConfirmIP)
			tags["[SUBSCRIBER_CONFIRM_DATE]"] = formatDatePtr(sub.ConfirmDate)
			tags["[SUBSCRIBER_LAST_SENT_DATE]"] = formatDatePtr(sub.LastSentAt)
		}
		if IsTagUsedInCampaign("[EMAIL]", campaign, content) {
			tags["[EMAIL]"] = sc.Subscriber.Email
		}
	}

	if IsTagUsedInCampaign("CURRENT_DOMAIN", campaign, content) {
		tags["[CURRENT_DOMAIN]"] = r.domain()
	}

	if sc.Server != nil && IsTagUsedInCampaign("DS_", campaign, content) {
		tags["[DS_NAME]"] = sc.Server.Name
		tags["[DS_HOST]"] = sc.Server.Hostname
		tags["[DS_FROM_EMAIL]"] = sc.Server.FromEmail
		tags["[DS_TYPE]"] = string(sc.Server.Type)
	}

	if sc.Subscriber != nil {
		for _, m := range surveyViewTagRegex.FindAllStringSubmatch(content, -1) {
			tags[m[0]] = r.baseURL + "surveys/" + m[1] + "/view?subscriber=" + sc.Subscriber.UID
		}
	}

	if sc.IsElasticEmail() {
		for _, name := range unsubscribeTagNames {
			tags[name] = "{unsubscribe:" + tags[name] + "}"
		}
	}

	return tags
}

// addURLFamily resolves the always present subscriber action URLs. Token
// generation failures degrade to empty strings, never block a send.
func (r *TagResolverImpl) addURLFamily(tags map[string]string, sc *SendContext) {
	listUID, subUID := "", ""
	if sc.List != nil {
		listUID = sc.List.UID
	}
	if sc.Subscriber != nil {
		subUID = sc.Subscriber.UID
	}

	token := ""
	if r.tokenService != nil {
		if t, err := r.tokenService.Generate(sc.Campaign.UID, subUID); err == nil {
			token = t
		}
	}

	unsubscribeURL := ""
	if token != "" {
		unsubscribeURL = r.baseURL + "lists/" + listUID + "/unsubscribe/" + token
	}

	tags["[SUBSCRIBE_URL]"] = r.baseURL + "lists/" + listUID + "/subscribe?subscriber=" + subUID
	tags["[UNSUBSCRIBE_URL]"] = unsubscribeURL
	tags["[DIRECT_UNSUBSCRIBE_URL]"] = appendQuery(unsubscribeURL, "direct=true")
	tags["[UNSUBSCRIBE_FROM_CUSTOMER_URL]"] = appendQuery(unsubscribeURL, "scope=customer")
	tags["[FORWARD_FRIEND_URL]"] = r.baseURL + "campaigns/" + sc.Campaign.UID + "/forward-friend/" + subUID
	tags["[WEB_VERSION_URL]"] = r.baseURL + "campaigns/" + sc.Campaign.UID + "/web-version/" + subUID
	tags["[UPDATE_PROFILE_URL]"] = r.baseURL + "lists/" + listUID + "/update-profile/" + subUID
	tags["[CAMPAIGN_VCARD_URL]"] = r.baseURL + "lists/" + listUID + "/vcard"
}

func (r *TagResolverImpl) domain() string {
	u, err := url.Parse(r.baseURL)
	if err != nil {
		return ""
	}
	return u.Host
}

func appendQuery(rawURL, query string) string {
	if rawURL == "" {
		return ""
	}
	if strings.ContainsRune(rawURL, '?') {
		return rawURL + "&" + query
	}
	return rawURL + "?" + query
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatDatePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
