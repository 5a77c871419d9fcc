package session

import (
	"sync"
	"testing"
	"time"

	"github.com/pzverkov/gotls/internal/constants"
	qerrors "github.com/pzverkov/gotls/internal/errors"
)

func testVersion() constants.ProtocolVersion {
	return constants.ParseVersion(3, 4)
}

func TestSessionCachePutGet(t *testing.T) {
	cache := NewSessionCache(4, time.Hour)

	id := []byte("session-id-0000000000000000000001")
	sess := New(id, testVersion(), constants.CipherSuiteTLS13AES128GCMSHA256, []byte("master-secret"))
	cache.Put(sess)

	got, err := cache.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got.MasterSecret) != "master-secret" {
		t.Fatalf("got master secret %q", got.MasterSecret)
	}

	// Returned session is a copy, mutating it must not affect the cache.
	got.MasterSecret[0] = 'X'
	got2, _ := cache.Get(id)
	if string(got2.MasterSecret) != "master-secret" {
		t.Fatalf("cache entry mutated via returned copy: %q", got2.MasterSecret)
	}
}

func TestSessionCacheMiss(t *testing.T) {
	cache := NewSessionCache(4, time.Hour)
	if _, err := cache.Get([]byte("nonexistent")); !qerrors.Is(err, qerrors.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestSessionCacheExpiry(t *testing.T) {
	cache := NewSessionCache(4, time.Millisecond)
	id := []byte("expiring-session")
	cache.Put(New(id, testVersion(), constants.CipherSuiteTLS13AES128GCMSHA256, []byte("secret")))

	time.Sleep(5 * time.Millisecond)
	if _, err := cache.Get(id); !qerrors.Is(err, qerrors.ErrSessionExpired) {
		t.Fatalf("expected expired entry to report miss, got %v", err)
	}
}

func TestSessionCacheEvictsOldestWhenFull(t *testing.T) {
	cache := NewSessionCache(1, time.Hour)

	// With capacity 1 per shard, 64 ids across shardCount=17 shards must
	// overflow some shards; each overflow evicts that shard's older entry,
	// so at most shardCount entries remain and the newest id survives.
	ids := make([][]byte, 64)
	for i := range ids {
		id := make([]byte, constants.SessionIDSize)
		id[0] = byte(i)
		id[1] = byte(i >> 8)
		ids[i] = id
		cache.Put(New(id, testVersion(), constants.CipherSuiteTLS13AES128GCMSHA256, []byte("s")))
	}

	if cache.Len() > shardCount {
		t.Fatalf("cache holds %d entries, want at most %d (capacity 1 per shard)", cache.Len(), shardCount)
	}
	if _, err := cache.Get(ids[len(ids)-1]); err != nil {
		t.Fatalf("most recently inserted session was evicted: %v", err)
	}
}

func TestSessionCacheConcurrentAccess(t *testing.T) {
	cache := NewSessionCache(16, time.Hour)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := make([]byte, constants.SessionIDSize)
			id[0] = byte(i)
			cache.Put(New(id, testVersion(), constants.CipherSuiteTLS13AES128GCMSHA256, []byte("s")))
			_, _ = cache.Get(id)
		}(i)
	}
	wg.Wait()
}
