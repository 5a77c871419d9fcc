package session

import (
	"container/list"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	qerrors "github.com/pzverkov/gotls/internal/errors"
)

// shardCount bounds lock contention on SessionCache.Get/Put under many
// concurrent connections (§5: "SessionCache is accessed by any connection
// on the same process-wide store... the lock is not held across I/O").
// A prime avoids systematic hot-sharding when session IDs are generated by
// a simple counter-seeded RNG.
const shardCount = 17

// SessionCache is the §4.10 session_id -> Session store: bounded capacity,
// age-limited entries, LRU eviction on overflow.
//
// Session IDs are already uniformly distributed 32-byte values (§4.9
// randomSessionID), so hashing them through xxhash into a shard index
// avoids a full 32-byte key compare on every cache dispatch: the shard's
// own map does the exact match once contention is already resolved.
type SessionCache struct {
	capacity int           // per-shard capacity; total bound is capacity*shardCount
	maxAge   time.Duration
	shards   [shardCount]*shard
}

type shard struct {
	mu       sync.Mutex
	ll       *list.List // front = most recently used
	elements map[string]*list.Element
}

type entry struct {
	key     string
	session *Session
	storedAt time.Time
}

// NewSessionCache builds a cache with the given per-shard capacity and
// maximum entry age. capacity<=0 or maxAge<=0 fall back to defaults (256
// entries per shard, 24h).
func NewSessionCache(capacity int, maxAge time.Duration) *SessionCache {
	if capacity <= 0 {
		capacity = 256
	}
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	c := &SessionCache{capacity: capacity, maxAge: maxAge}
	for i := range c.shards {
		c.shards[i] = &shard{
			ll:       list.New(),
			elements: make(map[string]*list.Element),
		}
	}
	return c
}

func (c *SessionCache) shardFor(id []byte) *shard {
	h := xxhash.Sum64(id)
	return c.shards[h%uint64(shardCount)]
}

// Get looks up a session by ID. An entry older than maxAge is evicted and
// reported as a miss (§4.10: "if entry is older than T, remove it and
// report miss"). The returned Session is a copy; mutating it does not
// affect the cache (§5: "entries copied, not returned by reference").
func (c *SessionCache) Get(id []byte) (*Session, error) {
	s := c.shardFor(id)
	key := string(id)

	s.mu.Lock()
	el, ok := s.elements[key]
	if !ok {
		s.mu.Unlock()
		return nil, qerrors.ErrSessionExpired
	}
	e := el.Value.(*entry)
	if time.Since(e.storedAt) > c.maxAge {
		s.ll.Remove(el)
		delete(s.elements, key)
		s.mu.Unlock()
		return nil, qerrors.ErrSessionExpired
	}
	s.ll.MoveToFront(el)
	sess := e.session
	s.mu.Unlock()

	return sess.Clone(), nil
}

// Put inserts or refreshes a session, evicting the shard's least recently
// used entry if doing so would exceed capacity.
func (c *SessionCache) Put(sess *Session) {
	stored := sess.Clone()
	s := c.shardFor(stored.ID)
	key := string(stored.ID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.elements[key]; ok {
		el.Value.(*entry).session = stored
		el.Value.(*entry).storedAt = time.Now()
		s.ll.MoveToFront(el)
		return
	}

	if s.ll.Len() >= c.capacity {
		oldest := s.ll.Back()
		if oldest != nil {
			s.ll.Remove(oldest)
			delete(s.elements, oldest.Value.(*entry).key)
		}
	}

	el := s.ll.PushFront(&entry{key: key, session: stored, storedAt: time.Now()})
	s.elements[key] = el
}

// Remove evicts a session unconditionally, used when a connection observes
// an authentication failure tied to a resumed session (§7: a resumed
// session must not be reused after evidence it was compromised).
func (c *SessionCache) Remove(id []byte) {
	s := c.shardFor(id)
	key := string(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.elements[key]; ok {
		s.ll.Remove(el)
		delete(s.elements, key)
	}
}

// Len returns the total number of live entries across all shards, for
// observability/metrics wiring.
func (c *SessionCache) Len() int {
	total := 0
	for _, s := range c.shards {
		s.mu.Lock()
		total += s.ll.Len()
		s.mu.Unlock()
	}
	return total
}
