package utils

import (
	"time"
)

// Cache and locking constants
const (
	// TrackingURLsCacheKeyPrefix prefixes the cache key memoizing transformed
	// campaign content: sha1(prefix + campaignUID + content)
	TrackingURLsCacheKeyPrefix = "tracking_urls_for_"

	// TrackingMutexTimeout bounds how long a sender waits on the content
	// transformation lock before falling back to untransformed content
	TrackingMutexTimeout = 120 * time.Second

	// TrackingMutexTTL is the expiry on the distributed lock itself so a
	// crashed holder cannot wedge other workers forever
	TrackingMutexTTL = 5 * time.Minute

	// RemoteContentCacheTTL caches fetched remote/feed content per URL hash
	RemoteContentCacheTTL = 10 * time.Minute

	// CustomerTagsCacheTTL caches a customer's tag set in-process
	CustomerTagsCacheTTL = time.Hour
)

// Tag resolution constants
const (
	// MaxCustomerTags caps how many custom tags are loaded per customer
	MaxCustomerTags = 100

	// MaxTagResolvePasses bounds nested tag expansion; values containing
	// tags are re-scanned up to this many times, never recursively
	MaxTagResolvePasses = 5
)

// Tracked URL constants
const (
	// TrackedURLHashLen is the length of the SHA1 hex hash identifying a
	// destination URL within a campaign
	TrackedURLHashLen = 40
)

// HTTP constants
const (
	// CORSMaxAge is how long browsers may cache CORS preflight responses,
	// in seconds
	CORSMaxAge = 3600
)

// CtxKey is the type for request context value keys
type CtxKey string

// Request context keys carried from the HTTP layer into the flows
const (
	RequestIDKey  = CtxKey("X-Request-ID")
	UserAgentKey  = CtxKey("User-Agent")
	IPAddressKey  = CtxKey("IP-Address")
	EndpointKey   = CtxKey("Endpoint")
	TimeoutKey    = CtxKey("Timeout")
	CancelFuncKey = CtxKey("Cancel-Func")
)
