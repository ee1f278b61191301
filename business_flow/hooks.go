package businessflow

import (
	"sync"
)

// TrackingHookContext is handed to hooks registered around link extraction.
// Hooks may rewrite Content and append to TrackedURLs; the transformer uses
// whatever state the last hook leaves behind.
type TrackingHookContext struct {
	Campaign    *SendContext
	Content     string
	TrackedURLs []*TrackedURL
}

// TrackingHook mutates the hook context in place
type TrackingHook func(*TrackingHookContext)

// TagMapFilter may rewrite the final tag search/replace map before it is
// applied to content
type TagMapFilter func(map[string]string, *SendContext) map[string]string

// HookRegistry holds ordered lists of extension callbacks. Registration
// order is invocation order.
type HookRegistry struct {
	mu              sync.RWMutex
	beforeTransform []TrackingHook
	afterTransform  []TrackingHook
	tagMapFilters   []TagMapFilter
	textFilters     []TextFilter
}

// NewHookRegistry creates an empty hook registry
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{}
}

// RegisterBeforeTransform adds a hook invoked before link extraction
func (r *HookRegistry) RegisterBeforeTransform(h TrackingHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beforeTransform = append(r.beforeTransform, h)
}

// RegisterAfterTransform adds a hook invoked after substitution
func (r *HookRegistry) RegisterAfterTransform(h TrackingHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.afterTransform = append(r.afterTransform, h)
}

// RegisterTagMapFilter adds a filter over the final tag map
func (r *HookRegistry) RegisterTagMapFilter(f TagMapFilter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tagMapFilters = append(r.tagMapFilters, f)
}

func (r *HookRegistry) runBeforeTransform(hc *TrackingHookContext) {
	r.mu.RLock()
	hooks := r.beforeTransform
	r.mu.RUnlock()
	for _, h := range hooks {
		h(hc)
	}
}

func (r *HookRegistry) runAfterTransform(hc *TrackingHookContext) {
	r.mu.RLock()
	hooks := r.afterTransform
	r.mu.RUnlock()
	for _, h := range hooks {
		h(hc)
	}
}

func (r *HookRegistry) applyTagMapFilters(m map[string]string, sc *SendContext) map[string]string {
	r.mu.RLock()
	filters := r.tagMapFilters
	r.mu.RUnlock()
	for _, f := range filters {
		m = f(m, sc)
	}
	return m
}

// TextFilter is a final pass filter over substituted text, for residual tag
// logic not covered by direct map replacement
type TextFilter func(text string, tags map[string]string, sc *SendContext) string

// RegisterTextFilter adds a final pass text filter
func (r *HookRegistry) RegisterTextFilter(f TextFilter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.textFilters = append(r.textFilters, f)
}

func (r *HookRegistry) applyTextFilters(text string, tags map[string]string, sc *SendContext) string {
	r.mu.RLock()
	filters := r.textFilters
	r.mu.RUnlock()
	for _, f := range filters {
		text = f(text, tags, sc)
	}
	return text
}
