package rfc2217

import (
	"sync"
	"time"

	"github.com/tiagocoutinho/serialio"
)

// modemCache caches the last server-pushed modem state byte and tracks how
// fresh it is; Port.getModemState sends the NOTIFY_MODEMSTATE poll when
// polling is enabled and the cache is stale. Written by the reader goroutine
// (onNotify), read by user calls (cached, stale).
type modemCache struct {
	mu        sync.Mutex
	value     *byte
	linestate byte
	freshness serialio.Timeout
}

func newModemCache() *modemCache {
	c := &modemCache{}
	c.freshness = serialio.NewTimeoutDuration(0) // initialized expired
	return c
}

const modemFreshnessWindow = 300 * time.Millisecond

// onNotify is invoked by the reader (C4) when a SERVER_NOTIFY_MODEMSTATE
// sub-option arrives.
func (c *modemCache) onNotify(b byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := b
	c.value = &v
	c.freshness.Restart(modemFreshnessWindow)
}

func (c *modemCache) onLinestate(b byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.linestate = b
}

func (c *modemCache) stale() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.freshness.Expired()
}

// cached returns the last cached value, if any.
func (c *modemCache) cached() (byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.value == nil {
		return 0, false
	}
	return *c.value, true
}
