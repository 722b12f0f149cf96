package report

import (
	"container/list"
	"sync"
)

// LRUStore caches the most recently used results in memory and writes
// through to a backing Store.
type LRUStore struct {
	mu    sync.Mutex
	cap   int
	back  Store
	order *list.List // front is most recent; values are *BuildResult
	items map[string]*list.Element
}

// NewLRUStore returns an LRUStore holding at most cap results. cap < 1 is
// treated as 1.
func NewLRUStore(cap int, back Store) *LRUStore {
	if cap < 1 {
		cap = 1
	}
	return &LRUStore{
		cap:   cap,
		back:  back,
		order: list.New(),
		items: make(map[string]*list.Element, cap),
	}
}

// Save caches result and delegates to the backing store.
func (s *LRUStore) Save(result *BuildResult) error {
	s.put(result)
	return s.back.Save(result)
}

// Load returns a cached result or falls back to the backing store,
// promoting what it finds.
func (s *LRUStore) Load(runID string) (*BuildResult, error) {
	s.mu.Lock()
	if el, ok := s.items[runID]; ok {
		s.order.MoveToFront(el)
		r := el.Value.(*BuildResult)
		s.mu.Unlock()
		return r, nil
	}
	s.mu.Unlock()

	result, err := s.back.Load(runID)
	if err != nil {
		return nil, err
	}
	s.put(result)
	return result, nil
}

// Len returns the number of cached results.
func (s *LRUStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

func (s *LRUStore) put(result *BuildResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[result.ID]; ok {
		el.Value = result
		s.order.MoveToFront(el)
		return
	}
	s.items[result.ID] = s.order.PushFront(result)
	if s.order.Len() > s.cap {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		delete(s.items, oldest.Value.(*BuildResult).ID)
	}
}
