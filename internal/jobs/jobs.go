package jobs

import (
	"context"
	"fmt"
	"time"

	"visatrack/internal/db"
	"visatrack/internal/lifecycle"
	"visatrack/internal/model"
	"visatrack/internal/nextaction"
	"visatrack/internal/pubsub"
	"visatrack/internal/schedule"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type JobServer struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	client    *asynq.Client
	db        *db.Pool
	bus       *pubsub.Bus
	log       *zap.Logger
}

func NewJobServer(redisAddr string, dbPool *db.Pool, bus *pubsub.Bus, log *zap.Logger) (*JobServer, *asynq.Client) {
	redisOpt := asynq.RedisClientOpt{Addr: redisAddr}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)

	scheduler := asynq.NewScheduler(redisOpt, nil)

	client := asynq.NewClient(redisOpt)

	return &JobServer{
		server:    server,
		scheduler: scheduler,
		client:    client,
		db:        dbPool,
		bus:       bus,
		log:       log,
	}, client
}

func (js *JobServer) Start() error {
	mux := asynq.NewServeMux()

	// Register job handlers
	mux.HandleFunc("milestone:recheck", js.handleMilestoneRecheck)
	mux.HandleFunc("milestones:sweep", js.handleMilestoneSweep)

	// The sweep runs on a fixed cadence and re-derives milestone statuses
	// for every non-terminal application.
	if _, err := js.scheduler.Register("@every 1m", asynq.NewTask("milestones:sweep", nil)); err != nil {
		return fmt.Errorf("failed to register sweep schedule: %w", err)
	}
	if err := js.scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	return js.server.Start(mux)
}

func (js *JobServer) Stop() {
	js.scheduler.Shutdown()
	js.server.Shutdown()
	js.client.Close()
}

// Job handlers

// handleMilestoneRecheck fires at a milestone's planned date and re-derives
// its status so the overdue flip does not wait for the next sweep.
func (js *JobServer) handleMilestoneRecheck(ctx context.Context, t *asynq.Task) error {
	milestoneID := string(t.Payload())

	row, err := js.db.Queries.GetMilestoneByID(ctx, milestoneID)
	if err != nil {
		return fmt.Errorf("failed to get milestone: %w", err)
	}

	m := row.ToModel()
	updated := schedule.UpdateStatus(m, time.Now())
	if updated.Status == m.Status {
		return nil
	}

	if err := js.db.Queries.UpdateMilestoneStatus(ctx, milestoneID, string(updated.Status)); err != nil {
		return fmt.Errorf("failed to update milestone status: %w", err)
	}

	_ = js.bus.PublishApplication(m.ApplicationID, map[string]interface{}{
		"type":        "milestone.updated",
		"milestoneId": milestoneID,
		"status":      string(updated.Status),
	})

	js.log.Info("Milestone rechecked",
		zap.String("milestone_id", milestoneID),
		zap.String("status", string(updated.Status)))
	return nil
}

// handleMilestoneSweep re-derives every active application's milestone
// statuses and republishes the next action when anything moved.
func (js *JobServer) handleMilestoneSweep(ctx context.Context, t *asynq.Task) error {
	apps, err := js.db.Queries.ListActiveApplications(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active applications: %w", err)
	}

	now := time.Now()
	for _, appRow := range apps {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := js.sweepApplication(ctx, appRow, now); err != nil {
			js.log.Warn("Sweep failed for application",
				zap.String("application_id", appRow.ID), zap.Error(err))
		}
	}
	return nil
}

func (js *JobServer) sweepApplication(ctx context.Context, appRow db.Application, now time.Time) error {
	app := appRow.ToModel()
	if lifecycle.IsTerminal(app.LifecycleStatus) {
		return nil
	}

	rows, err := js.db.Queries.ListMilestonesByApplication(ctx, app.ID)
	if err != nil {
		return fmt.Errorf("failed to list milestones: %w", err)
	}

	milestones := make([]model.Milestone, 0, len(rows))
	changed := false
	for _, row := range rows {
		m := row.ToModel()
		updated := schedule.UpdateStatus(m, now)
		if updated.Status != m.Status {
			if err := js.db.Queries.UpdateMilestoneStatus(ctx, m.ID, string(updated.Status)); err != nil {
				return fmt.Errorf("failed to update milestone status: %w", err)
			}
			changed = true
			_ = js.bus.PublishApplication(app.ID, map[string]interface{}{
				"type":        "milestone.updated",
				"milestoneId": m.ID,
				"status":      string(updated.Status),
			})
		}
		milestones = append(milestones, updated)
	}

	if changed {
		event := map[string]interface{}{
			"type":          "next_action.updated",
			"applicationId": app.ID,
		}
		if action := nextaction.Generate(app, milestones, now); action != nil {
			event["action"] = action
		}
		_ = js.bus.PublishApplication(app.ID, event)
		_ = js.bus.PublishUser(app.UserID, event)
	}
	return nil
}

// Schedule jobs

func ScheduleMilestoneRecheck(client *asynq.Client, milestoneID string, plannedAt time.Time) error {
	task := asynq.NewTask("milestone:recheck", []byte(milestoneID))
	if plannedAt.Before(time.Now()) {
		// Already due; recheck right away
		_, err := client.Enqueue(task)
		return err
	}
	_, err := client.Enqueue(task, asynq.ProcessIn(time.Until(plannedAt)))
	return err
}

func ScheduleMilestoneSweep(client *asynq.Client) error {
	task := asynq.NewTask("milestones:sweep", nil)
	_, err := client.Enqueue(task, asynq.Queue("low"))
	return err
}
