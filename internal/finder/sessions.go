package finder

import (
	"container/list"
	"sync"
	"time"

	"github.com/your-org/lostfound/internal/models"
)

const (
	DefaultMaxSessions = 1024
	DefaultSessionTTL  = 30 * time.Minute
)

// sessionCache remembers the latest matches per session. It holds at most
// capacity sessions, evicting the least recently used, and forgets a
// session ttl after it was last written or read.
type sessionCache struct {
	mu        sync.Mutex
	capacity  int
	ttl       time.Duration
	now       func() time.Time
	items     map[string]*list.Element
	evictList *list.List
}

type sessionEntry struct {
	session string
	matches []models.Match
	touched time.Time
}

func newSessionCache(capacity int, ttl time.Duration, now func() time.Time) *sessionCache {
	if capacity < 1 {
		capacity = DefaultMaxSessions
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &sessionCache{
		capacity:  capacity,
		ttl:       ttl,
		now:       now,
		items:     make(map[string]*list.Element),
		evictList: list.New(),
	}
}

func (c *sessionCache) get(session string) ([]models.Match, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[session]
	if !ok {
		return nil, false
	}
	ent := el.Value.(*sessionEntry)
	now := c.now()
	if now.Sub(ent.touched) > c.ttl {
		c.removeElement(el)
		return nil, false
	}
	ent.touched = now
	c.evictList.MoveToFront(el)
	return ent.matches, true
}

func (c *sessionCache) set(session string, matches []models.Match) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if el, ok := c.items[session]; ok {
		ent := el.Value.(*sessionEntry)
		ent.matches = matches
		ent.touched = now
		c.evictList.MoveToFront(el)
	} else {
		el := c.evictList.PushFront(&sessionEntry{session: session, matches: matches, touched: now})
		c.items[session] = el
	}
	c.evict(now)
}

// update applies fn to the session's matches in place, if still remembered.
func (c *sessionCache) update(session string, fn func([]models.Match)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[session]; ok {
		fn(el.Value.(*sessionEntry).matches)
	}
}

func (c *sessionCache) remove(session string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[session]; ok {
		c.removeElement(el)
	}
}

func (c *sessionCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}

// evict drops expired sessions from the back, then the oldest over capacity.
func (c *sessionCache) evict(now time.Time) {
	for el := c.evictList.Back(); el != nil; el = c.evictList.Back() {
		if now.Sub(el.Value.(*sessionEntry).touched) <= c.ttl {
			break
		}
		c.removeElement(el)
	}
	for c.evictList.Len() > c.capacity {
		c.removeElement(c.evictList.Back())
	}
}

func (c *sessionCache) removeElement(el *list.Element) {
	c.evictList.Remove(el)
	delete(c.items, el.Value.(*sessionEntry).session)
}
