package temporal

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockSchedule is what the MockScheduler records per owner.
type MockSchedule struct {
	Interval time.Duration
	MinClaim uint64
}

// MockScheduler is a mock implementation of Scheduler for testing.
type MockScheduler struct {
	mu        sync.Mutex
	schedules map[string]MockSchedule // keyed by schedule ID
	createErr error
	deleteErr error
}

// NewMockScheduler creates a new MockScheduler.
func NewMockScheduler() *MockScheduler {
	return &MockScheduler{
		schedules: make(map[string]MockSchedule),
	}
}

// UpsertHarvestSchedule creates or updates a schedule.
func (m *MockScheduler) UpsertHarvestSchedule(ctx context.Context, owner string, interval time.Duration, minClaim uint64) error {
	if m.createErr != nil {
		return m.createErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.schedules[scheduleID(owner)] = MockSchedule{Interval: interval, MinClaim: minClaim}
	return nil
}

// DeleteHarvestSchedule records that a schedule was deleted.
func (m *MockScheduler) DeleteHarvestSchedule(ctx context.Context, owner string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := scheduleID(owner)
	if _, exists := m.schedules[id]; !exists {
		return fmt.Errorf("schedule %q not found", id)
	}

	delete(m.schedules, id)
	return nil
}

// SetCreateError makes UpsertHarvestSchedule return an error.
func (m *MockScheduler) SetCreateError(err error) {
	m.createErr = err
}

// SetDeleteError makes DeleteHarvestSchedule return an error.
func (m *MockScheduler) SetDeleteError(err error) {
	m.deleteErr = err
}

// Schedule returns the recorded schedule for owner.
func (m *MockScheduler) Schedule(owner string) (MockSchedule, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, exists := m.schedules[scheduleID(owner)]
	return s, exists
}

// ScheduleCount returns the number of schedules.
func (m *MockScheduler) ScheduleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.schedules)
}

// Reset clears all schedules and errors.
func (m *MockScheduler) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules = make(map[string]MockSchedule)
	m.createErr = nil
	m.deleteErr = nil
}
