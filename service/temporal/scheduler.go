package temporal

import (
	"context"
	"time"
)

// Scheduler manages Temporal schedules for automatic harvesting.
// Each owner gets its own schedule that triggers the HarvestWorkflow.
type Scheduler interface {
	// UpsertHarvestSchedule creates the owner's schedule, or updates its
	// interval and threshold if it already exists.
	UpsertHarvestSchedule(ctx context.Context, owner string, interval time.Duration, minClaim uint64) error

	// DeleteHarvestSchedule deletes the owner's schedule.
	DeleteHarvestSchedule(ctx context.Context, owner string) error
}

// schedulePrefix marks schedules created by this service.
const schedulePrefix = "harvest-"

// scheduleID returns the Temporal schedule ID for an owner.
func scheduleID(owner string) string {
	return schedulePrefix + owner
}
