package scheduler

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	businessflow "github.com/amirphl/Kusanagi/business_flow"
	"github.com/amirphl/Kusanagi/app/services"
	"github.com/amirphl/Kusanagi/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRepo[T any, F any] struct{}

func (stubRepo[T, F]) ByID(context.Context, uint) (*T, error) { return nil, nil }
func (stubRepo[T, F]) ByFilter(context.Context, F, string, int, int) ([]*T, error) {
	return nil, nil
}
func (stubRepo[T, F]) Save(context.Context, *T) error        { return nil }
func (stubRepo[T, F]) SaveBatch(context.Context, []*T) error { return nil }
func (stubRepo[T, F]) Count(context.Context, F) (int64, error) {
	return 0, nil
}
func (stubRepo[T, F]) Exists(context.Context, F) (bool, error) { return false, nil }

type fakeCampaignRepo struct {
	stubRepo[models.Campaign, models.CampaignFilter]
	campaigns []*models.Campaign
}

func (r *fakeCampaignRepo) ByFilter(_ context.Context, f models.CampaignFilter, _ string, _, _ int) ([]*models.Campaign, error) {
	var out []*models.Campaign
	for _, c := range r.campaigns {
		if f.Status != nil && c.Status != *f.Status {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *fakeCampaignRepo) ByUID(_ context.Context, uid string) (*models.Campaign, error) {
	for _, c := range r.campaigns {
		if c.UID == uid {
			return c, nil
		}
	}
	return nil, nil
}

func (r *fakeCampaignRepo) UpdateStatus(_ context.Context, campaignID uint, status models.CampaignStatus) error {
	for _, c := range r.campaigns {
		if c.ID == campaignID {
			c.Status = status
		}
	}
	return nil
}

type fakeListRepo struct {
	stubRepo[models.MailList, models.MailListFilter]
	lists []*models.MailList
}

func (r *fakeListRepo) ByID(_ context.Context, id uint) (*models.MailList, error) {
	for _, l := range r.lists {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, nil
}

func (r *fakeListRepo) ByUID(_ context.Context, uid string) (*models.MailList, error) {
	for _, l := range r.lists {
		if l.UID == uid {
			return l, nil
		}
	}
	return nil, nil
}

type fakeSubscriberRepo struct {
	stubRepo[models.Subscriber, models.SubscriberFilter]
	subscribers []*models.Subscriber
	lastSent    map[uint]time.Time
}

func (r *fakeSubscriberRepo) ByID(_ context.Context, id uint) (*models.Subscriber, error) {
	for _, s := range r.subscribers {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, nil
}

func (r *fakeSubscriberRepo) ByUID(_ context.Context, uid string) (*models.Subscriber, error) {
	for _, s := range r.subscribers {
		if s.UID == uid {
			return s, nil
		}
	}
	return nil, nil
}

func (r *fakeSubscriberRepo) ByFilter(_ context.Context, f models.SubscriberFilter, _ string, _, _ int) ([]*models.Subscriber, error) {
	var out []*models.Subscriber
	for _, s := range r.subscribers {
		if f.ListID != nil && s.ListID != *f.ListID {
			continue
		}
		if f.Status != nil && s.Status != *f.Status {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *fakeSubscriberRepo) UpdateStatus(_ context.Context, subscriberID uint, status models.SubscriberStatus) error {
	for _, s := range r.subscribers {
		if s.ID == subscriberID {
			s.Status = status
		}
	}
	return nil
}

func (r *fakeSubscriberRepo) UpdateLastSentAt(_ context.Context, subscriberID uint, at time.Time) error {
	if r.lastSent == nil {
		r.lastSent = make(map[uint]time.Time)
	}
	r.lastSent[subscriberID] = at
	return nil
}

type fakeServerRepo struct {
	stubRepo[models.DeliveryServer, models.DeliveryServerFilter]
	servers []*models.DeliveryServer
}

func (r *fakeServerRepo) ByID(_ context.Context, id uint) (*models.DeliveryServer, error) {
	for _, s := range r.servers {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, nil
}

type fakeDeliveryRepo struct {
	stubRepo[models.CampaignDelivery, models.CampaignDeliveryFilter]
	rows []*models.CampaignDelivery
}

func (r *fakeDeliveryRepo) Save(_ context.Context, d *models.CampaignDelivery) error {
	d.ID = uint(len(r.rows) + 1)
	r.rows = append(r.rows, d)
	return nil
}

func (r *fakeDeliveryRepo) ByCampaignID(_ context.Context, campaignID uint) (*models.CampaignDelivery, error) {
	for i := len(r.rows) - 1; i >= 0; i-- {
		if r.rows[i].CampaignID == campaignID {
			return r.rows[i], nil
		}
	}
	return nil, nil
}

func (r *fakeDeliveryRepo) Update(_ context.Context, _ *models.CampaignDelivery) error {
	return nil
}

// fakeParser renders recognizably per subscriber without running the real
// pipeline
type fakeParser struct {
	calls []string
}

func (p *fakeParser) ParseContent(_ context.Context, content string, sc *businessflow.SendContext) (*businessflow.ParsedContent, error) {
	p.calls = append(p.calls, sc.Subscriber.UID)
	return &businessflow.ParsedContent{
		To:      sc.Subscriber.Email,
		Subject: sc.Campaign.Subject,
		Content: "rendered for " + sc.Subscriber.UID + ": " + content,
	}, nil
}

type fakeSender struct {
	sent   []*services.OutboundEmail
	failTo string
}

func (s *fakeSender) Send(_ context.Context, msg *services.OutboundEmail) error {
	if s.failTo != "" && msg.ToEmail == s.failTo {
		return errors.New("relay refused")
	}
	s.sent = append(s.sent, msg)
	return nil
}

type schedulerFixture struct {
	scheduler   *CampaignScheduler
	campaigns   *fakeCampaignRepo
	subscribers *fakeSubscriberRepo
	deliveries  *fakeDeliveryRepo
	parser      *fakeParser
	sender      *fakeSender
}

func newSchedulerFixture(t *testing.T) *schedulerFixture {
	t.Helper()

	campaign := &models.Campaign{
		ID:        1,
		UID:       "abc123",
		ListID:    3,
		Subject:   "Spring savings",
		FromName:  "Acme",
		FromEmail: "news@acme.test",
		Status:    models.CampaignStatusPendingSend,
		Content:   "<p>Hello</p>",
	}

	f := &schedulerFixture{
		campaigns: &fakeCampaignRepo{campaigns: []*models.Campaign{campaign}},
		subscribers: &fakeSubscriberRepo{subscribers: []*models.Subscriber{
			{ID: 11, UID: "sub1", ListID: 3, Email: "a@example.com", Status: models.SubscriberStatusConfirmed},
			{ID: 12, UID: "sub2", ListID: 3, Email: "b@example.com", Status: models.SubscriberStatusConfirmed},
			{ID: 13, UID: "sub3", ListID: 3, Email: "c@example.com", Status: models.SubscriberStatusUnsubscribed},
		}},
		deliveries: &fakeDeliveryRepo{},
		parser:     &fakeParser{},
		sender:     &fakeSender{},
	}
	f.scheduler = NewCampaignScheduler(
		f.campaigns,
		&fakeListRepo{lists: []*models.MailList{{ID: 3, UID: "lst789"}}},
		f.subscribers,
		&fakeServerRepo{},
		f.deliveries,
		f.parser,
		f.sender,
		log.New(io.Discard, "", 0),
		time.Minute,
	)
	return f
}

func TestSchedulerDispatchesPendingCampaign(t *testing.T) {
	f := newSchedulerFixture(t)

	f.scheduler.runOnce(context.Background())

	assert.Equal(t, models.CampaignStatusSent, f.campaigns.campaigns[0].Status)
	require.Len(t, f.sender.sent, 2)
	assert.Equal(t, "a@example.com", f.sender.sent[0].ToEmail)
	assert.Equal(t, "b@example.com", f.sender.sent[1].ToEmail)
	assert.Contains(t, f.sender.sent[0].Body, "rendered for sub1")

	// The unsubscribed list member never enters the audience snapshot
	assert.Equal(t, []string{"sub1", "sub2"}, f.parser.calls)

	_, sentA := f.subscribers.lastSent[11]
	assert.True(t, sentA)
	_, sentC := f.subscribers.lastSent[13]
	assert.False(t, sentC)
}

func TestSchedulerSnapshotsAudienceOnce(t *testing.T) {
	f := newSchedulerFixture(t)

	f.scheduler.runOnce(context.Background())
	require.Len(t, f.deliveries.rows, 1)
	assert.Len(t, f.deliveries.rows[0].SubscriberIDs, 2)

	// A subscriber confirmed after the snapshot is not picked up
	f.subscribers.subscribers = append(f.subscribers.subscribers,
		&models.Subscriber{ID: 14, UID: "sub4", ListID: 3, Email: "d@example.com", Status: models.SubscriberStatusConfirmed})
	f.campaigns.campaigns[0].Status = models.CampaignStatusSending
	f.scheduler.runOnce(context.Background())

	require.Len(t, f.deliveries.rows, 1)
	assert.Len(t, f.deliveries.rows[0].SubscriberIDs, 2)
}

func TestSchedulerResumesAfterFailure(t *testing.T) {
	f := newSchedulerFixture(t)
	f.sender.failTo = "b@example.com"

	f.scheduler.runOnce(context.Background())

	// First recipient delivered, campaign stuck in sending
	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, models.CampaignStatusSending, f.campaigns.campaigns[0].Status)
	require.NotNil(t, f.deliveries.rows[0].LastSubscriberID)
	assert.Equal(t, int64(11), *f.deliveries.rows[0].LastSubscriberID)

	// Relay recovers; the next run picks up after the resume pointer
	f.sender.failTo = ""
	f.scheduler.runOnce(context.Background())

	require.Len(t, f.sender.sent, 2)
	assert.Equal(t, "b@example.com", f.sender.sent[1].ToEmail)
	assert.Equal(t, models.CampaignStatusSent, f.campaigns.campaigns[0].Status)
	// sub1 is not rendered twice
	assert.Equal(t, []string{"sub1", "sub2"}, f.parser.calls)
}

func TestSchedulerIgnoresDraftCampaigns(t *testing.T) {
	f := newSchedulerFixture(t)
	f.campaigns.campaigns[0].Status = models.CampaignStatusDraft

	f.scheduler.runOnce(context.Background())

	assert.Empty(t, f.sender.sent)
	assert.Empty(t, f.deliveries.rows)
	assert.Equal(t, models.CampaignStatusDraft, f.campaigns.campaigns[0].Status)
}

func TestRemainingAudience(t *testing.T) {
	delivery := &models.CampaignDelivery{SubscriberIDs: []int64{1, 2, 3}}
	assert.Equal(t, []int64{1, 2, 3}, []int64(remainingAudience(delivery)))

	last := int64(2)
	delivery.LastSubscriberID = &last
	assert.Equal(t, []int64{3}, []int64(remainingAudience(delivery)))

	last = 3
	assert.Empty(t, remainingAudience(delivery))
}
