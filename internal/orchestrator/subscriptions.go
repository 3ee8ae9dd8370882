// ABOUTME: In-memory cache of active subscription ids per conversation
// ABOUTME: Keyed by conversation, device and subscription kind

package orchestrator

import "sync"

// SubscriptionCache remembers subscription ids created during a conversation
// so later unsubscribe calls can be completed even when the operator does
// not repeat the id. Keys are conversation id, then device id, then
// subscription kind (for example "geofencing" or "connected_network").
type SubscriptionCache struct {
	mu   sync.Mutex
	subs map[string]map[string]map[string]string
}

// NewSubscriptionCache returns an empty cache.
func NewSubscriptionCache() *SubscriptionCache {
	return &SubscriptionCache{subs: make(map[string]map[string]map[string]string)}
}

// Track records a subscription id, replacing any previous id for the same
// conversation, device and kind.
func (c *SubscriptionCache) Track(conversationID, deviceID, kind, subscriptionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	devices, ok := c.subs[conversationID]
	if !ok {
		devices = make(map[string]map[string]string)
		c.subs[conversationID] = devices
	}
	kinds, ok := devices[deviceID]
	if !ok {
		kinds = make(map[string]string)
		devices[deviceID] = kinds
	}
	kinds[kind] = subscriptionID
}

// Lookup returns the tracked subscription id, if any.
func (c *SubscriptionCache) Lookup(conversationID, deviceID, kind string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, ok := c.subs[conversationID][deviceID][kind]
	return id, ok
}

// Remove forgets one tracked subscription. Removing an absent entry is a
// no-op.
func (c *SubscriptionCache) Remove(conversationID, deviceID, kind string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kinds := c.subs[conversationID][deviceID]
	if kinds == nil {
		return
	}
	delete(kinds, kind)
	if len(kinds) == 0 {
		delete(c.subs[conversationID], deviceID)
	}
	if len(c.subs[conversationID]) == 0 {
		delete(c.subs, conversationID)
	}
}

// Clear forgets every subscription tracked for a conversation.
func (c *SubscriptionCache) Clear(conversationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.subs, conversationID)
}
