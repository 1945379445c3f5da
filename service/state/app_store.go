package state

import (
	"sort"
	"sync"

	"github.com/brojonat/atlasclaim/service/solana"
)

// AppStore holds cross-cutting dashboard state: the loading and refreshing
// flags, the single notice slot, the signatures being tracked and the
// current fleet selection.
type AppStore struct {
	mu         sync.RWMutex
	loading    bool
	refreshing bool
	modal      *Modal
	waiting    []WaitingSignature
	selected   map[string]struct{}
	n          notifier
}

// NewAppStore creates a store with nothing loading and nothing selected.
func NewAppStore() *AppStore {
	return &AppStore{selected: make(map[string]struct{})}
}

// Subscribe returns a channel signalled after every state change.
func (s *AppStore) Subscribe() (<-chan struct{}, func()) {
	return s.n.subscribe()
}

// TryStartLoading sets the loading flag if it is clear and reports whether
// it did. A false return means another operation already holds it.
func (s *AppStore) TryStartLoading() bool {
	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return false
	}
	s.loading = true
	s.mu.Unlock()

	s.n.notify()
	return true
}

// StopLoading clears the loading flag.
func (s *AppStore) StopLoading() {
	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
	s.n.notify()
}

func (s *AppStore) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *AppStore) SetRefreshing(v bool) {
	s.mu.Lock()
	s.refreshing = v
	s.mu.Unlock()
	s.n.notify()
}

func (s *AppStore) Refreshing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshing
}

// ShowInfo replaces the current notice with a success notice.
func (s *AppStore) ShowInfo(message string, list []string) {
	s.setModal(&Modal{Kind: ModalInfo, Message: message, List: append([]string(nil), list...)})
}

// ShowError replaces the current notice with a failure notice.
func (s *AppStore) ShowError(message string) {
	s.setModal(&Modal{Kind: ModalError, Message: message})
}

// DismissModal clears the notice slot.
func (s *AppStore) DismissModal() {
	s.setModal(nil)
}

// Modal returns the current notice, if any.
func (s *AppStore) Modal() (Modal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.modal == nil {
		return Modal{}, false
	}
	m := *s.modal
	m.List = append([]string(nil), s.modal.List...)
	return m, true
}

func (s *AppStore) setModal(m *Modal) {
	s.mu.Lock()
	s.modal = m
	s.mu.Unlock()
	s.n.notify()
}

// SetWaitingSignatures replaces the tracked list with hashes, all as
// processing. Entries left over from an earlier batch are dropped.
func (s *AppStore) SetWaitingSignatures(hashes []string) {
	waiting := make([]WaitingSignature, 0, len(hashes))
	for _, h := range hashes {
		waiting = append(waiting, WaitingSignature{Hash: h, Status: solana.TxStatusProcessing})
	}
	s.mu.Lock()
	s.waiting = waiting
	s.mu.Unlock()
	s.n.notify()
}

// WaitingSignatures returns a copy of the tracked signatures.
func (s *AppStore) WaitingSignatures() []WaitingSignature {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]WaitingSignature, len(s.waiting))
	copy(out, s.waiting)
	return out
}

// UpdateSignatures applies new statuses to tracked signatures. Once every
// tracked signature is terminal the list is discarded and true is returned.
func (s *AppStore) UpdateSignatures(statuses map[string]solana.TxStatus) bool {
	s.mu.Lock()
	allTerminal := true
	for i := range s.waiting {
		if st, ok := statuses[s.waiting[i].Hash]; ok {
			s.waiting[i].Status = st
		}
		if !s.waiting[i].Status.Terminal() {
			allTerminal = false
		}
	}
	if allTerminal {
		s.waiting = nil
	}
	s.mu.Unlock()

	s.n.notify()
	return allTerminal
}

func (s *AppStore) Select(fleetID string) {
	s.mu.Lock()
	s.selected[fleetID] = struct{}{}
	s.mu.Unlock()
	s.n.notify()
}

func (s *AppStore) Unselect(fleetID string) {
	s.mu.Lock()
	delete(s.selected, fleetID)
	s.mu.Unlock()
	s.n.notify()
}

func (s *AppStore) IsSelected(fleetID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.selected[fleetID]
	return ok
}

// Selected returns the selected fleet IDs in sorted order.
func (s *AppStore) Selected() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.selected))
	for id := range s.selected {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s *AppStore) ClearSelection() {
	s.mu.Lock()
	s.selected = make(map[string]struct{})
	s.mu.Unlock()
	s.n.notify()
}
