package syncer

import (
	"sync"
	"time"
)

// State is the process-wide view of synchronization.
type State struct {
	IsSyncing    bool
	LastSyncTime *time.Time
	LastError    string
}

// StateView is the read-only side handed to consumers.
type StateView interface {
	Current() State
	// Subscribe returns a channel that always holds the most recent state
	// not yet received. The returned func unsubscribes and closes it.
	Subscribe() (<-chan State, func())
}

// StateUpdater is the write side used by the engine.
type StateUpdater interface {
	Current() State
	UpdateSyncState(State)
}

// StateStore is the single observable container for State. Updates replace
// the whole value; the last writer wins.
type StateStore struct {
	mu   sync.Mutex
	cur  State
	subs map[int]chan State
	next int
}

func NewStateStore(initial State) *StateStore {
	return &StateStore{cur: initial, subs: make(map[int]chan State)}
}

func (s *StateStore) Current() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

func (s *StateStore) UpdateSyncState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cur = st
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- st
	}
}

func (s *StateStore) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.next
	s.next++
	ch := make(chan State, 1)
	ch <- s.cur
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}
