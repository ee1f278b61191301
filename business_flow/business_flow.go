// Package businessflow contains the campaign content engine: link tracking
// transformation, merge tag resolution and the per-subscriber parse pipeline.
package businessflow

import (
	"math/rand"
	"sync"

	"github.com/amirphl/Kusanagi/models"
)

const RequestIDKey = "X-Request-ID"

// SendContext carries everything one content parse needs: the campaign and
// subscriber being rendered, the delivery server the message will leave
// through, and per-call memoization that older implementations kept in
// process-global state. A SendContext must not be shared across subscribers.
type SendContext struct {
	Campaign   *models.Campaign
	Subscriber *models.Subscriber
	List       *models.MailList
	Server     *models.DeliveryServer

	// Event names the tracking event that triggered this parse, used by the
	// _ONCE_ numeric tag variants. Reference disambiguates url-click events
	// by tracked URL hash.
	Event          models.TagEvent
	EventReference string

	// CanSave permits persisting newly discovered tracked URLs. Preview
	// renders pass false.
	CanSave bool

	mu           sync.Mutex
	customerTags []*models.CustomerTag
	tagsLoaded   bool
}

// CachedCustomerTags returns the memoized customer tag set, or false when no
// load has happened yet for this context
func (sc *SendContext) CachedCustomerTags() ([]*models.CustomerTag, bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.customerTags, sc.tagsLoaded
}

// MemoizeCustomerTags stores the customer tag set for the rest of this parse
func (sc *SendContext) MemoizeCustomerTags(tags []*models.CustomerTag) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.customerTags = tags
	sc.tagsLoaded = true
}

// IsElasticEmail reports whether the active delivery server requires Elastic
// Email native unsubscribe syntax
func (sc *SendContext) IsElasticEmail() bool {
	return sc.Server.IsElasticEmail()
}

// RandomSource abstracts the random choice used for [RANDOM_CONTENT:...] and
// random-mode customer tags so tests can force a deterministic pick
type RandomSource interface {
	Intn(n int) int
}

type mathRandSource struct{}

func (mathRandSource) Intn(n int) int {
	return rand.Intn(n)
}

// DefaultRandomSource returns the production random source
func DefaultRandomSource() RandomSource {
	return mathRandSource{}
}
