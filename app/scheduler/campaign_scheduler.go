// Package scheduler runs the background campaign dispatch loop
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	businessflow "github.com/amirphl/Kusanagi/business_flow"
	"github.com/amirphl/Kusanagi/app/services"
	"github.com/amirphl/Kusanagi/models"
	"github.com/amirphl/Kusanagi/repository"
	"github.com/amirphl/Kusanagi/utils"
	"github.com/lib/pq"
)

// CampaignScheduler periodically picks up campaigns ready to send, renders
// the template per subscriber through the content pipeline and relays the
// result. Each run is snapshotted so a restart resumes where it stopped.
type CampaignScheduler struct {
	campaignRepo   repository.CampaignRepository
	listRepo       repository.MailListRepository
	subscriberRepo repository.SubscriberRepository
	serverRepo     repository.DeliveryServerRepository
	deliveryRepo   repository.CampaignDeliveryRepository
	parser         businessflow.ParseContentFlow
	sender         services.EmailSender
	logger         *log.Logger
	interval       time.Duration
}

func NewCampaignScheduler(
	campaignRepo repository.CampaignRepository,
	listRepo repository.MailListRepository,
	subscriberRepo repository.SubscriberRepository,
	serverRepo repository.DeliveryServerRepository,
	deliveryRepo repository.CampaignDeliveryRepository,
	parser businessflow.ParseContentFlow,
	sender services.EmailSender,
	logger *log.Logger,
	interval time.Duration,
) *CampaignScheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = log.Default()
	}
	return &CampaignScheduler{
		campaignRepo:   campaignRepo,
		listRepo:       listRepo,
		subscriberRepo: subscriberRepo,
		serverRepo:     serverRepo,
		deliveryRepo:   deliveryRepo,
		parser:         parser,
		sender:         sender,
		logger:         logger,
		interval:       interval,
	}
}

// Start launches the dispatch loop and returns a stop function
func (s *CampaignScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return cancel
}

func (s *CampaignScheduler) runOnce(ctx context.Context) {
	pendingStatus := models.CampaignStatusPendingSend
	pending, err := s.campaignRepo.ByFilter(ctx, models.CampaignFilter{Status: &pendingStatus}, "id ASC", 0, 0)
	if err != nil {
		s.logger.Printf("scheduler: list pending campaigns failed: %v", err)
		return
	}

	// Sending campaigns are re-picked so interrupted runs resume
	sendingStatus := models.CampaignStatusSending
	sending, err := s.campaignRepo.ByFilter(ctx, models.CampaignFilter{Status: &sendingStatus}, "id ASC", 0, 0)
	if err != nil {
		s.logger.Printf("scheduler: list sending campaigns failed: %v", err)
		return
	}
	pending = append(pending, sending...)

	if len(pending) == 0 {
		return
	}
	s.logger.Printf("scheduler: %d campaigns ready for dispatch", len(pending))

	for _, campaign := range pending {
		if err := s.processCampaign(ctx, campaign); err != nil {
			s.logger.Printf("scheduler: campaign uid=%s dispatch failed: %v", campaign.UID, err)
		}
	}
}

func (s *CampaignScheduler) processCampaign(ctx context.Context, campaign *models.Campaign) error {
	list, err := s.listRepo.ByID(ctx, campaign.ListID)
	if err != nil {
		return fmt.Errorf("load list: %w", err)
	}
	if list == nil {
		return fmt.Errorf("list id=%d not found", campaign.ListID)
	}

	var server *models.DeliveryServer
	if campaign.DeliveryServerID != nil {
		server, err = s.serverRepo.ByID(ctx, *campaign.DeliveryServerID)
		if err != nil {
			return fmt.Errorf("load delivery server: %w", err)
		}
	}

	delivery, err := s.ensureDelivery(ctx, campaign)
	if err != nil {
		return err
	}

	if campaign.Status != models.CampaignStatusSending {
		if err := s.campaignRepo.UpdateStatus(ctx, campaign.ID, models.CampaignStatusSending); err != nil {
			return fmt.Errorf("mark sending: %w", err)
		}
	}

	for _, id := range remainingAudience(delivery) {
		if err := ctx.Err(); err != nil {
			return err
		}

		subscriber, err := s.subscriberRepo.ByID(ctx, uint(id))
		if err != nil {
			return fmt.Errorf("load subscriber id=%d: %w", id, err)
		}
		if subscriber == nil || subscriber.Status != models.SubscriberStatusConfirmed {
			// Unsubscribed or blacklisted since the snapshot was taken
			s.advance(ctx, delivery, id)
			continue
		}

		if err := s.sendOne(ctx, campaign, list, server, subscriber); err != nil {
			// Stop at the failed subscriber; the resume pointer still names
			// the last delivered one, so the next run retries from here
			return fmt.Errorf("send to subscriber uid=%s: %w", subscriber.UID, err)
		}

		if err := s.subscriberRepo.UpdateLastSentAt(ctx, subscriber.ID, utils.UTCNow()); err != nil {
			s.logger.Printf("scheduler: update last sent for uid=%s failed: %v", subscriber.UID, err)
		}
		s.advance(ctx, delivery, id)
	}

	if err := s.campaignRepo.UpdateStatus(ctx, campaign.ID, models.CampaignStatusSent); err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	s.logger.Printf("scheduler: campaign uid=%s dispatched to %d subscribers", campaign.UID, len(delivery.SubscriberIDs))
	return nil
}

// ensureDelivery loads the existing send run for the campaign or snapshots a
// new one with the confirmed audience of its list
func (s *CampaignScheduler) ensureDelivery(ctx context.Context, campaign *models.Campaign) (*models.CampaignDelivery, error) {
	delivery, err := s.deliveryRepo.ByCampaignID(ctx, campaign.ID)
	if err != nil {
		return nil, fmt.Errorf("load delivery run: %w", err)
	}
	if delivery != nil {
		return delivery, nil
	}

	confirmed := models.SubscriberStatusConfirmed
	audience, err := s.subscriberRepo.ByFilter(ctx, models.SubscriberFilter{
		ListID: &campaign.ListID,
		Status: &confirmed,
	}, "id ASC", 0, 0)
	if err != nil {
		return nil, fmt.Errorf("snapshot audience: %w", err)
	}

	ids := make(pq.Int64Array, 0, len(audience))
	for _, sub := range audience {
		ids = append(ids, int64(sub.ID))
	}

	snapshot, err := json.Marshal(campaign)
	if err != nil {
		return nil, fmt.Errorf("snapshot campaign: %w", err)
	}

	delivery = &models.CampaignDelivery{
		CampaignID:    campaign.ID,
		CampaignJSON:  snapshot,
		SubscriberIDs: ids,
	}
	if err := s.deliveryRepo.Save(ctx, delivery); err != nil {
		return nil, fmt.Errorf("save delivery run: %w", err)
	}
	return delivery, nil
}

// remainingAudience returns the snapshot IDs after the resume pointer
func remainingAudience(delivery *models.CampaignDelivery) []int64 {
	if delivery.LastSubscriberID == nil {
		return delivery.SubscriberIDs
	}
	for i, id := range delivery.SubscriberIDs {
		if id == *delivery.LastSubscriberID {
			return delivery.SubscriberIDs[i+1:]
		}
	}
	return delivery.SubscriberIDs
}

// advance moves the resume pointer past the given subscriber
func (s *CampaignScheduler) advance(ctx context.Context, delivery *models.CampaignDelivery, id int64) {
	delivery.LastSubscriberID = &id
	if err := s.deliveryRepo.Update(ctx, delivery); err != nil {
		s.logger.Printf("scheduler: advance resume pointer failed: %v", err)
	}
}

func (s *CampaignScheduler) sendOne(ctx context.Context, campaign *models.Campaign, list *models.MailList, server *models.DeliveryServer, subscriber *models.Subscriber) error {
	sc := &businessflow.SendContext{
		Campaign:   campaign,
		Subscriber: subscriber,
		List:       list,
		Server:     server,
		Event:      models.TagEventSend,
		CanSave:    true,
	}

	parsed, err := s.parser.ParseContent(ctx, campaign.Content, sc)
	if err != nil {
		return err
	}

	return s.sender.Send(ctx, &services.OutboundEmail{
		FromName:  campaign.FromName,
		FromEmail: campaign.FromEmail,
		ToName:    parsed.To,
		ToEmail:   subscriber.Email,
		ReplyTo:   campaign.ReplyTo,
		Subject:   parsed.Subject,
		Body:      parsed.Content,
		PlainText: campaign.Options.PlainText,
	})
}
