package state

import (
	"sort"
	"sync"
)

// FleetStore holds the latest fleet list per owner. A refresh replaces an
// owner's list wholesale; readers always get copies.
type FleetStore struct {
	mu     sync.RWMutex
	fleets map[string][]Fleet
	n      notifier
}

// NewFleetStore creates an empty store.
func NewFleetStore() *FleetStore {
	return &FleetStore{fleets: make(map[string][]Fleet)}
}

// Replace swaps in a new fleet list for owner and notifies subscribers.
func (s *FleetStore) Replace(owner string, fleets []Fleet) {
	cp := make([]Fleet, len(fleets))
	copy(cp, fleets)

	s.mu.Lock()
	s.fleets[owner] = cp
	s.mu.Unlock()

	s.n.notify()
}

// Fleets returns a copy of owner's fleets. Unknown owners yield an empty list.
func (s *FleetStore) Fleets(owner string) []Fleet {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.fleets[owner]
	out := make([]Fleet, len(src))
	copy(out, src)
	return out
}

// Has reports whether owner's fleets were ever stored, even as an empty list.
func (s *FleetStore) Has(owner string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.fleets[owner]
	return ok
}

// Fleet looks up a single fleet by its staking account address.
func (s *FleetStore) Fleet(owner, id string) (Fleet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, f := range s.fleets[owner] {
		if f.ID == id {
			return f, true
		}
	}
	return Fleet{}, false
}

// Owners lists every owner with a stored fleet list, sorted.
func (s *FleetStore) Owners() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owners := make([]string, 0, len(s.fleets))
	for owner := range s.fleets {
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	return owners
}

// Subscribe returns a channel that receives a signal after every Replace.
// Call the returned func to stop receiving; it closes the channel.
func (s *FleetStore) Subscribe() (<-chan struct{}, func()) {
	return s.n.subscribe()
}
