package cache

import (
	"sort"
	"strconv"
	"strings"
	"sync"
)

// entry is one cached topic. A topic exists in the cache as soon as it is
// referenced or set; value absence is tracked separately so a topic that
// was only ever referenced still reads as 0.
type entry struct {
	topic   string
	value   float64
	raw     string
	hasVal  bool
	refs    int
	changed bool
}

// Cache is the latest-known value per topic, with a reference count per
// topic (how many installed expressions depend on it) and a transient
// changed flag used during change propagation.
//
// Entries are kept sorted by topic for binary-search lookup; referenced
// topic counts reach the low thousands on large configurations, so linear
// scans would hurt propagation latency. Safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries []*entry
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{}
}

// find returns the index of topic and whether it exists.
// Caller holds c.mu.
func (c *Cache) find(topic string) (int, bool) {
	i := sort.Search(len(c.entries), func(i int) bool {
		return c.entries[i].topic >= topic
	})
	return i, i < len(c.entries) && c.entries[i].topic == topic
}

// ensure returns the entry for topic, inserting one when absent.
// Caller holds c.mu for writing.
func (c *Cache) ensure(topic string) *entry {
	i, ok := c.find(topic)
	if ok {
		return c.entries[i]
	}
	e := &entry{topic: topic}
	c.entries = append(c.entries, nil)
	copy(c.entries[i+1:], c.entries[i:])
	c.entries[i] = e
	return e
}

// Get returns the cached numeric value for topic. The boolean is false
// when the topic is unknown or has never received a value.
func (c *Cache) Get(topic string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i, ok := c.find(topic); ok && c.entries[i].hasVal {
		return c.entries[i].value, true
	}
	return 0, false
}

// Raw returns the last raw payload stored for topic, if any.
func (c *Cache) Raw(topic string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i, ok := c.find(topic); ok && c.entries[i].hasVal {
		return c.entries[i].raw, true
	}
	return "", false
}

// Set stores the latest payload for topic, creating the entry when
// absent. The payload is parsed as a float; an unparseable payload stores
// 0 (numeric views of non-numeric topics read as zero). Set reports
// whether any expression references the topic, so the caller knows if a
// propagation pass is warranted.
func (c *Cache) Set(topic, payload string) (referenced bool) {
	value, _ := strconv.ParseFloat(strings.TrimSpace(payload), 64)

	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.ensure(topic)
	e.value = value
	e.raw = payload
	e.hasVal = true
	return e.refs > 0
}

// Ref adjusts the reference count for topic by delta, creating the entry
// on first reference. The count never goes below zero. Entries whose
// count drops to zero are kept; their cached value remains valid for
// later expressions.
func (c *Cache) Ref(topic string, delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.ensure(topic)
	e.refs += delta
	if e.refs < 0 {
		e.refs = 0
	}
}

// Refs returns the current reference count for topic.
func (c *Cache) Refs(topic string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i, ok := c.find(topic); ok {
		return c.entries[i].refs
	}
	return 0
}

// MarkChanged sets the changed-this-pass flag for topic. Unknown topics
// are ignored.
func (c *Cache) MarkChanged(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i, ok := c.find(topic); ok {
		c.entries[i].changed = true
	}
}

// ClearChanged clears the changed-this-pass flag for topic.
func (c *Cache) ClearChanged(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i, ok := c.find(topic); ok {
		c.entries[i].changed = false
	}
}

// Changed reports whether topic was updated in the current propagation
// pass.
func (c *Cache) Changed(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i, ok := c.find(topic); ok {
		return c.entries[i].changed
	}
	return false
}

// Float returns the numeric view of topic: its cached value, or 0 when
// the topic is unknown or valueless.
func (c *Cache) Float(topic string) float64 {
	v, _ := c.Get(topic)
	return v
}

// Len returns the number of cached topics.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
