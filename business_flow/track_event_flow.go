package businessflow

import (
	"context"
	"log"
	"strings"

	"github.com/amirphl/Kusanagi/app/services"
	"github.com/amirphl/Kusanagi/models"
	"github.com/amirphl/Kusanagi/repository"
)

// TrackEventFlow handles the public tracking endpoints the rewritten content
// points at: redirect clicks, open beacons and unsubscribe links
type TrackEventFlow interface {
	// TrackURLClick resolves the destination for a tracked redirect, records
	// the click and bumps the url-click event counter
	TrackURLClick(ctx context.Context, campaignUID, subscriberUID, hash string, userAgent, ip *string) (string, error)
	// TrackOpen records an open beacon hit
	TrackOpen(ctx context.Context, campaignUID, subscriberUID string) error
	// Unsubscribe validates a signed unsubscribe token and marks the
	// subscriber unsubscribed
	Unsubscribe(ctx context.Context, listUID, token string) error
}

type TrackEventFlowImpl struct {
	campaignRepo   repository.CampaignRepository
	subscriberRepo repository.SubscriberRepository
	listRepo       repository.MailListRepository
	urlRepo        repository.TrackedURLRepository
	clickRepo      repository.TrackedURLClickRepository
	counterRepo    repository.TagEventCounterRepository
	tokenService   services.UnsubscribeTokenService
	resolver       TagResolver
	baseURL        string
	logger         *log.Logger
}

func NewTrackEventFlow(
	campaignRepo repository.CampaignRepository,
	subscriberRepo repository.SubscriberRepository,
	listRepo repository.MailListRepository,
	urlRepo repository.TrackedURLRepository,
	clickRepo repository.TrackedURLClickRepository,
	counterRepo repository.TagEventCounterRepository,
	tokenService services.UnsubscribeTokenService,
	resolver TagResolver,
	baseURL string,
	logger *log.Logger,
) TrackEventFlow {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &TrackEventFlowImpl{
		campaignRepo:   campaignRepo,
		subscriberRepo: subscriberRepo,
		listRepo:       listRepo,
		urlRepo:        urlRepo,
		clickRepo:      clickRepo,
		counterRepo:    counterRepo,
		tokenService:   tokenService,
		resolver:       resolver,
		baseURL:        baseURL,
		logger:         logger,
	}
}

func (f *TrackEventFlowImpl) TrackURLClick(ctx context.Context, campaignUID, subscriberUID, hash string, userAgent, ip *string) (string, error) {
	campaign, err := f.campaignRepo.ByUID(ctx, campaignUID)
	if err != nil {
		return "", NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	if campaign == nil {
		return "", ErrCampaignNotFound
	}

	subscriber, err := f.subscriberRepo.ByUID(ctx, subscriberUID)
	if err != nil {
		return "", NewBusinessError("SUBSCRIBER_LOOKUP_FAILED", "Failed to lookup subscriber", err)
	}
	if subscriber == nil {
		return "", ErrSubscriberNotFound
	}

	tracked, err := f.urlRepo.ByCampaignAndHash(ctx, campaign.ID, hash)
	if err != nil {
		return "", NewBusinessError("TRACKED_URL_LOOKUP_FAILED", "Failed to lookup tracked url", err)
	}
	if tracked == nil {
		return "", ErrTrackedURLNotFound
	}

	click := &models.TrackedURLClick{
		TrackedURLID: tracked.ID,
		SubscriberID: subscriber.ID,
		UserAgent:    userAgent,
		IP:           ip,
	}
	if err := f.clickRepo.Save(ctx, click); err != nil {
		return "", NewBusinessError("CLICK_TRACK_FAILED", "Failed to record click", err)
	}

	if _, err := f.counterRepo.Increment(ctx, campaign.ID, subscriber.ID, models.TagEventURLClick, hash); err != nil {
		// Counters only gate _ONCE_ tags; a failed bump must not lose the redirect
		f.logger.Printf("url-click counter increment failed for campaign %s: %v", campaignUID, err)
	}

	return f.resolveDestination(ctx, campaign, subscriber, tracked.Destination), nil
}

// resolveDestination handles tracked URLs whose destination is a bracket
// tag, kept verbatim at send time and resolved here at click time
func (f *TrackEventFlowImpl) resolveDestination(ctx context.Context, campaign *models.Campaign, subscriber *models.Subscriber, destination string) string {
	if !strings.HasPrefix(destination, "[") || !strings.HasSuffix(destination, "]") {
		return destination
	}

	var list *models.MailList
	if l, err := f.listRepo.ByID(ctx, campaign.ListID); err == nil {
		list = l
	}

	sc := &SendContext{Campaign: campaign, Subscriber: subscriber, List: list}
	tags := f.resolver.CommonTags(ctx, destination, sc)
	if resolved, ok := tags[destination]; ok && resolved != "" {
		return resolved
	}
	// Unresolvable tag destinations land on the frontend rather than a 404
	return f.baseURL
}

func (f *TrackEventFlowImpl) TrackOpen(ctx context.Context, campaignUID, subscriberUID string) error {
	campaign, err := f.campaignRepo.ByUID(ctx, campaignUID)
	if err != nil {
		return NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	if campaign == nil {
		return ErrCampaignNotFound
	}

	subscriber, err := f.subscriberRepo.ByUID(ctx, subscriberUID)
	if err != nil {
		return NewBusinessError("SUBSCRIBER_LOOKUP_FAILED", "Failed to lookup subscriber", err)
	}
	if subscriber == nil {
		return ErrSubscriberNotFound
	}

	if _, err := f.counterRepo.Increment(ctx, campaign.ID, subscriber.ID, models.TagEventOpen, ""); err != nil {
		return NewBusinessError("OPEN_TRACK_FAILED", "Failed to record open", err)
	}
	return nil
}

func (f *TrackEventFlowImpl) Unsubscribe(ctx context.Context, listUID, token string) error {
	claims, err := f.tokenService.Validate(token)
	if err != nil {
		return ErrUnsubscribeTokenInvalid
	}

	list, err := f.listRepo.ByUID(ctx, listUID)
	if err != nil {
		return NewBusinessError("LIST_LOOKUP_FAILED", "Failed to lookup list", err)
	}
	if list == nil {
		return ErrListNotFound
	}

	subscriber, err := f.subscriberRepo.ByUID(ctx, claims.SubscriberUID)
	if err != nil {
		return NewBusinessError("SUBSCRIBER_LOOKUP_FAILED", "Failed to lookup subscriber", err)
	}
	if subscriber == nil {
		return ErrSubscriberNotFound
	}
	if subscriber.ListID != list.ID {
		return ErrUnsubscribeTokenMismatch
	}

	if subscriber.Status == models.SubscriberStatusUnsubscribed {
		return nil
	}
	if err := f.subscriberRepo.UpdateStatus(ctx, subscriber.ID, models.SubscriberStatusUnsubscribed); err != nil {
		return NewBusinessError("UNSUBSCRIBE_FAILED", "Failed to unsubscribe", err)
	}
	return nil
}
