package chat

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var cacheEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "factcheckd",
	Subsystem: "chat",
	Name:      "cache_events_total",
	Help:      "Verdict cache lookups: hit, miss, or shared in-flight run.",
}, []string{"event"})

// Cache holds recent fact-check results. A nil *Cache is a valid,
// always-missing cache.
type Cache struct {
	c *gocache.Cache
}

// NewCache creates a cache whose entries expire after ttl.
func NewCache(ttl, cleanupInterval time.Duration) *Cache {
	return &Cache{c: gocache.New(ttl, cleanupInterval)}
}

// Len returns the number of cached results, including expired ones not
// yet cleaned up.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.c.ItemCount()
}

// Flush drops every entry.
func (c *Cache) Flush() {
	if c != nil {
		c.c.Flush()
	}
}

func (c *Cache) get(key string) (*Result, bool) {
	if c == nil {
		return nil, false
	}
	if v, ok := c.c.Get(key); ok {
		cacheEvents.WithLabelValues("hit").Inc()
		return v.(*Result), true
	}
	cacheEvents.WithLabelValues("miss").Inc()
	return nil, false
}

func (c *Cache) set(key string, res *Result) {
	if c != nil {
		c.c.SetDefault(key, res)
	}
}

// cacheKey normalizes case and whitespace so trivially different copies
// of a claim share an entry.
func cacheKey(model, msg string) string {
	return model + "\x00" + strings.Join(strings.Fields(strings.ToLower(msg)), " ")
}
