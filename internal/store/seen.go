package store

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// SeenStore remembers which remote URIs have already been handled in this
// run, so the driver can skip re-searching confirmed tracks and the
// reconciler can count duplicate suppressions. A Bloom filter answers the
// common "never seen" case without locking contention on the exact set; the
// bounded LRU holds ground truth.
type SeenStore struct {
	bloom    *bloom.BloomFilter
	exact    *lru.Cache[string, struct{}]
	mutex    sync.RWMutex
	capacity int
	fpRate   float64
}

// NewSeenStore creates a store bounded to capacity entries with the given
// Bloom false positive rate.
func NewSeenStore(capacity int, fpRate float64) *SeenStore {
	if capacity <= 0 {
		capacity = 1
	}
	exact, _ := lru.New[string, struct{}](capacity)
	return &SeenStore{
		bloom:    bloom.NewWithEstimates(uint(capacity), fpRate),
		exact:    exact,
		capacity: capacity,
		fpRate:   fpRate,
	}
}

// Seen reports whether the URI has been marked in this run.
func (s *SeenStore) Seen(uri string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.bloom.TestString(uri) {
		return false
	}
	return s.exact.Contains(uri)
}

// Mark records the URI. Returns true if it was new.
func (s *SeenStore) Mark(uri string) bool {
	if uri == "" {
		return false
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.bloom.TestString(uri) && s.exact.Contains(uri) {
		return false
	}
	s.bloom.AddString(uri)
	s.exact.Add(uri, struct{}{})
	return true
}

// Forget drops the URI from the exact set. The Bloom filter cannot unlearn,
// so a later Seen may still pay for the exact lookup, but it answers
// correctly.
func (s *SeenStore) Forget(uri string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.exact.Remove(uri)
}

// Size returns the number of URIs currently held.
func (s *SeenStore) Size() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.exact.Len()
}

// Reset clears the store for a fresh run.
func (s *SeenStore) Reset() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.bloom = bloom.NewWithEstimates(uint(s.capacity), s.fpRate)
	s.exact.Purge()
}
