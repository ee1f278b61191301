package businessflow

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/amirphl/Kusanagi/models"
)

// stubRepo satisfies the generic repository surface for fakes that only
// care about their domain specific methods
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

type fakeTrackedURLRepo struct {
	stubRepo[models.TrackedURL, models.TrackedURLFilter]
	mu         sync.Mutex
	rows       []*models.TrackedURL
	failInsert bool
}

func (r *fakeTrackedURLRepo) ByCampaignAndHash(_ context.Context, campaignID uint, hash string) (*models.TrackedURL, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.CampaignID == campaignID && row.Hash == hash {
			return row, nil
		}
	}
	return nil, nil
}

func (r *fakeTrackedURLRepo) CountByCampaignAndHash(_ context.Context, campaignID uint, hash string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, row := range r.rows {
		if row.CampaignID == campaignID && row.Hash == hash {
			n++
		}
	}
	return n, nil
}

func (r *fakeTrackedURLRepo) BulkInsert(_ context.Context, rows []*models.TrackedURL) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failInsert {
		return errors.New("insert failed")
	}
	for _, row := range rows {
		exists := false
		for _, have := range r.rows {
			if have.CampaignID == row.CampaignID && have.Hash == row.Hash {
				exists = true
				break
			}
		}
		if !exists {
			r.rows = append(r.rows, row)
		}
	}
	return nil
}

func (r *fakeTrackedURLRepo) ListByCampaign(_ context.Context, campaignID uint) ([]*models.TrackedURL, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.TrackedURL
	for _, row := range r.rows {
		if row.CampaignID == campaignID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *fakeTrackedURLRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

type fakeCustomerTagRepo struct {
	stubRepo[models.CustomerTag, models.CustomerTagFilter]
	tags []*models.CustomerTag
}

func (r *fakeCustomerTagRepo) ListByCustomer(_ context.Context, customerID uint, limit int) ([]*models.CustomerTag, error) {
	var out []*models.CustomerTag
	for _, t := range r.tags {
		if t.CustomerID == customerID && len(out) < limit {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeExtraTagRepo struct {
	stubRepo[models.CampaignExtraTag, models.CampaignExtraTagFilter]
	tags []*models.CampaignExtraTag
}

func (r *fakeExtraTagRepo) ListByCampaign(_ context.Context, campaignID uint) ([]*models.CampaignExtraTag, error) {
	var out []*models.CampaignExtraTag
	for _, t := range r.tags {
		if t.CampaignID == campaignID {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeRandomContentRepo struct {
	stubRepo[models.RandomContent, models.RandomContentFilter]
	blocks []*models.RandomContent
}

func (r *fakeRandomContentRepo) ByCampaignAndName(_ context.Context, campaignID uint, name string) (*models.RandomContent, error) {
	for _, b := range r.blocks {
		if b.CampaignID == campaignID && b.Name == name {
			return b, nil
		}
	}
	return nil, nil
}

type fakeListFieldRepo struct {
	stubRepo[models.ListField, models.ListFieldFilter]
	fields []*models.ListField
}

func (r *fakeListFieldRepo) ByListAndTag(_ context.Context, listID uint, tag string) (*models.ListField, error) {
	for _, f := range r.fields {
		if f.ListID == listID && f.Tag == tag {
			return f, nil
		}
	}
	return nil, nil
}

func (r *fakeListFieldRepo) ListByList(_ context.Context, listID uint) ([]*models.ListField, error) {
	var out []*models.ListField
	for _, f := range r.fields {
		if f.ListID == listID {
			out = append(out, f)
		}
	}
	return out, nil
}

type fieldValueKey struct {
	subscriberID uint
	fieldID      uint
}

type fakeFieldValueRepo struct {
	stubRepo[models.SubscriberFieldValue, models.SubscriberFieldValueFilter]
	mu     sync.Mutex
	values map[fieldValueKey][]string
}

func newFakeFieldValueRepo() *fakeFieldValueRepo {
	return &fakeFieldValueRepo{values: make(map[fieldValueKey][]string)}
}

func (r *fakeFieldValueRepo) ValuesBySubscriberAndField(_ context.Context, subscriberID, fieldID uint) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.values[fieldValueKey{subscriberID, fieldID}], nil
}

func (r *fakeFieldValueRepo) UpdateValue(_ context.Context, subscriberID, fieldID uint, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[fieldValueKey{subscriberID, fieldID}] = []string{value}
	return nil
}

type counterKey struct {
	campaignID   uint
	subscriberID uint
	event        models.TagEvent
	reference    string
}

type fakeCounterRepo struct {
	stubRepo[models.TagEventCounter, models.TagEventCounterFilter]
	mu     sync.Mutex
	counts map[counterKey]uint
}

func newFakeCounterRepo() *fakeCounterRepo {
	return &fakeCounterRepo{counts: make(map[counterKey]uint)}
}

func (r *fakeCounterRepo) Increment(_ context.Context, campaignID, subscriberID uint, event models.TagEvent, reference string) (uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := counterKey{campaignID, subscriberID, event, reference}
	r.counts[key]++
	return r.counts[key], nil
}

func (r *fakeCounterRepo) Occurrences(_ context.Context, campaignID, subscriberID uint, event models.TagEvent, reference string) (uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[counterKey{campaignID, subscriberID, event, reference}], nil
}

// failingCache accepts reads but rejects writes, exercising the cache error path
type failingCache struct{}

func (failingCache) Get(context.Context, string) (string, bool, error) { return "", false, nil }
func (failingCache) Set(context.Context, string, string, time.Duration) error {
	return errors.New("cache down")
}
func (failingCache) Delete(context.Context, string) error { return nil }

// deniedMutex always fails to acquire, exercising the transformer fallback
type deniedMutex struct{}

func (deniedMutex) Acquire(context.Context, string, time.Duration) bool { return false }
func (deniedMutex) Release(context.Context, string)                    {}

// spyExtractor counts extraction runs for cache fast path assertions
type spyExtractor struct {
	inner LinkExtractor
	calls int
}

func (s *spyExtractor) Extract(content string, opts ExtractOptions) []CandidateLink {
	s.calls++
	return s.inner.Extract(content, opts)
}

// fixedRand always picks the same index, clamped to the requested bound
type fixedRand struct{ pick int }

func (f fixedRand) Intn(n int) int {
	if f.pick < n {
		return f.pick
	}
	return n - 1
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func testCampaign() *models.Campaign {
	return &models.Campaign{
		ID:         1,
		UID:        "abc123",
		CustomerID: 7,
		ListID:     3,
		Name:       "Spring Sale",
		Subject:    "Big spring savings",
		ToName:     "[EMAIL]",
		FromName:   "Acme",
		FromEmail:  "news@acme.test",
		Status:     models.CampaignStatusSending,
		Options:    models.CampaignOptions{URLTracking: true, OpenTracking: true},
	}
}

func testSubscriber() *models.Subscriber {
	return &models.Subscriber{
		ID:     11,
		UID:    "sub456",
		ListID: 3,
		Email:  "jane@example.com",
		Status: models.SubscriberStatusConfirmed,
	}
}

func testList() *models.MailList {
	return &models.MailList{
		ID:          3,
		UID:         "lst789",
		CustomerID:  7,
		Name:        "Newsletter",
		DisplayName: "Acme Newsletter",
		FromName:    "Acme",
		FromEmail:   "news@acme.test",
		Company: models.ListCompany{
			Name:    "Acme Inc",
			City:    "Springfield",
			Zone:    "IL",
			Country: "US",
		},
	}
}

func testSendContext() *SendContext {
	return &SendContext{
		Campaign:   testCampaign(),
		Subscriber: testSubscriber(),
		List:       testList(),
		Server:     &models.DeliveryServer{Name: "main", Type: models.DeliveryServerTypeSMTP, Hostname: "smtp.acme.test"},
		Event:      models.TagEventSend,
		CanSave:    true,
	}
}

type fakeCampaignRepo struct {
	stubRepo[models.Campaign, models.CampaignFilter]
	campaigns []*models.Campaign
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

type fakeSubscriberRepo struct {
	stubRepo[models.Subscriber, models.SubscriberFilter]
	mu          sync.Mutex
	subscribers []*models.Subscriber
}

func (r *fakeSubscriberRepo) ByUID(_ context.Context, uid string) (*models.Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.subscribers {
		if s.UID == uid {
			return s, nil
		}
	}
	return nil, nil
}

func (r *fakeSubscriberRepo) UpdateStatus(_ context.Context, subscriberID uint, status models.SubscriberStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.subscribers {
		if s.ID == subscriberID {
			s.Status = status
			return nil
		}
	}
	return errors.New("subscriber not found")
}

func (r *fakeSubscriberRepo) UpdateLastSentAt(_ context.Context, subscriberID uint, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.subscribers {
		if s.ID == subscriberID {
			s.LastSentAt = &at
			return nil
		}
	}
	return errors.New("subscriber not found")
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

type fakeClickRepo struct {
	stubRepo[models.TrackedURLClick, models.TrackedURLClickFilter]
	mu     sync.Mutex
	clicks []*models.TrackedURLClick
}

func (r *fakeClickRepo) Save(_ context.Context, click *models.TrackedURLClick) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	click.ID = uint(len(r.clicks) + 1)
	r.clicks = append(r.clicks, click)
	return nil
}

func (r *fakeClickRepo) CountByTrackedURL(_ context.Context, trackedURLID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, c := range r.clicks {
		if c.TrackedURLID == trackedURLID {
			n++
		}
	}
	return n, nil
}
