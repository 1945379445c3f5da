package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
)

// Client is a production implementation of Scheduler that talks to Temporal.
type Client struct {
	client    client.Client
	taskQueue string
	logger    *slog.Logger
}

// ScheduleInfo summarizes one harvest schedule.
type ScheduleInfo struct {
	ID         string        `json:"id"`
	Owner      string        `json:"owner"`
	Interval   time.Duration `json:"interval"`
	Paused     bool          `json:"paused"`
	NextAction *time.Time    `json:"next_action,omitempty"`
}

// NewClient creates a new Temporal client.
func NewClient(host, namespace, taskQueue string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("connecting to temporal",
		"host", host,
		"namespace", namespace,
		"task_queue", taskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}

	logger.Info("connected to temporal successfully")

	return &Client{
		client:    c,
		taskQueue: taskQueue,
		logger:    logger,
	}, nil
}

func (c *Client) harvestAction(owner string, minClaim uint64) *client.ScheduleWorkflowAction {
	return &client.ScheduleWorkflowAction{
		ID:        "harvest-" + owner,
		Workflow:  "HarvestWorkflow",
		TaskQueue: c.taskQueue,
		Args:      []interface{}{HarvestInput{Owner: owner, MinClaimAmount: minClaim}},
	}
}

// CreateHarvestSchedule creates a new Temporal schedule that harvests
// owner's fleets every interval.
func (c *Client) CreateHarvestSchedule(ctx context.Context, owner string, interval time.Duration, minClaim uint64) error {
	id := scheduleID(owner)

	c.logger.Debug("creating harvest schedule",
		"owner", owner,
		"schedule_id", id,
		"interval", interval,
		"min_claim", minClaim,
	)

	_, err := c.client.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID: id,
		Spec: client.ScheduleSpec{
			Intervals: []client.ScheduleIntervalSpec{{Every: interval}},
		},
		Action: c.harvestAction(owner, minClaim),
		// A harvest still tracking signatures must not overlap the next one.
		Overlap: enumspb.SCHEDULE_OVERLAP_POLICY_SKIP,
		Memo: map[string]interface{}{
			"owner":      owner,
			"created_by": "atlasclaim",
		},
	})
	if err != nil {
		c.logger.Error("failed to create schedule",
			"owner", owner,
			"schedule_id", id,
			"error", err,
		)
		return fmt.Errorf("failed to create schedule %q: %w", id, err)
	}

	c.logger.Info("harvest schedule created",
		"owner", owner,
		"schedule_id", id,
		"interval", interval,
	)
	return nil
}

// UpsertHarvestSchedule creates or updates a harvest schedule.
// If the schedule already exists, its interval and threshold are replaced.
func (c *Client) UpsertHarvestSchedule(ctx context.Context, owner string, interval time.Duration, minClaim uint64) error {
	id := scheduleID(owner)

	handle := c.client.ScheduleClient().GetHandle(ctx, id)
	if _, err := handle.Describe(ctx); err != nil {
		c.logger.Debug("schedule not found, creating new one",
			"schedule_id", id,
			"error", err,
		)
		return c.CreateHarvestSchedule(ctx, owner, interval, minClaim)
	}

	err := handle.Update(ctx, client.ScheduleUpdateOptions{
		DoUpdate: func(input client.ScheduleUpdateInput) (*client.ScheduleUpdate, error) {
			input.Description.Schedule.Spec.Intervals = []client.ScheduleIntervalSpec{
				{Every: interval},
			}
			input.Description.Schedule.Action = c.harvestAction(owner, minClaim)
			return &client.ScheduleUpdate{
				Schedule: &input.Description.Schedule,
			}, nil
		},
	})
	if err != nil {
		c.logger.Error("failed to update schedule",
			"owner", owner,
			"schedule_id", id,
			"error", err,
		)
		return fmt.Errorf("failed to update schedule %q: %w", id, err)
	}

	c.logger.Info("harvest schedule updated",
		"owner", owner,
		"schedule_id", id,
		"interval", interval,
		"min_claim", minClaim,
	)
	return nil
}

// DeleteHarvestSchedule deletes the Temporal schedule for an owner.
func (c *Client) DeleteHarvestSchedule(ctx context.Context, owner string) error {
	id := scheduleID(owner)

	handle := c.client.ScheduleClient().GetHandle(ctx, id)
	if err := handle.Delete(ctx); err != nil {
		c.logger.Error("failed to delete schedule",
			"owner", owner,
			"schedule_id", id,
			"error", err,
		)
		return fmt.Errorf("failed to delete schedule %q: %w", id, err)
	}

	c.logger.Info("harvest schedule deleted", "owner", owner, "schedule_id", id)
	return nil
}

// ListHarvestSchedules lists every harvest schedule in the namespace.
func (c *Client) ListHarvestSchedules(ctx context.Context) ([]ScheduleInfo, error) {
	iter, err := c.client.ScheduleClient().List(ctx, client.ScheduleListOptions{PageSize: 100})
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}

	var out []ScheduleInfo
	for iter.HasNext() {
		entry, err := iter.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to list schedules: %w", err)
		}
		if !strings.HasPrefix(entry.ID, schedulePrefix) {
			continue
		}

		info := ScheduleInfo{
			ID:     entry.ID,
			Owner:  strings.TrimPrefix(entry.ID, schedulePrefix),
			Paused: entry.Paused,
		}
		if entry.Spec != nil && len(entry.Spec.Intervals) > 0 {
			info.Interval = entry.Spec.Intervals[0].Every
		}
		if len(entry.NextActionTimes) > 0 {
			next := entry.NextActionTimes[0]
			info.NextAction = &next
		}
		out = append(out, info)
	}
	return out, nil
}

// StartHarvest runs one HarvestWorkflow now, outside any schedule, and
// returns its workflow and run IDs.
func (c *Client) StartHarvest(ctx context.Context, owner string, minClaim uint64) (string, string, error) {
	run, err := c.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        fmt.Sprintf("harvest-%s-manual-%d", owner, time.Now().Unix()),
		TaskQueue: c.taskQueue,
	}, HarvestWorkflow, HarvestInput{Owner: owner, MinClaimAmount: minClaim})
	if err != nil {
		return "", "", fmt.Errorf("failed to start harvest workflow: %w", err)
	}

	c.logger.Info("harvest workflow started",
		"owner", owner,
		"workflow_id", run.GetID(),
		"run_id", run.GetRunID(),
	)
	return run.GetID(), run.GetRunID(), nil
}

// SDKClient returns the underlying Temporal SDK client for direct workflow operations.
func (c *Client) SDKClient() client.Client {
	return c.client
}

// TaskQueue returns the configured task queue for this client.
func (c *Client) TaskQueue() string {
	return c.taskQueue
}

// Close closes the Temporal client connection.
func (c *Client) Close() {
	c.logger.Info("closing temporal client")
	c.client.Close()
}

// temporalLogger adapts slog.Logger to Temporal's logger interface.
type temporalLogger struct {
	logger *slog.Logger
}

func newTemporalLogger(logger *slog.Logger) *temporalLogger {
	return &temporalLogger{logger: logger}
}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug(msg, keyvals...)
}

func (l *temporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info(msg, keyvals...)
}

func (l *temporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn(msg, keyvals...)
}

func (l *temporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error(msg, keyvals...)
}
