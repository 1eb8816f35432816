package service

import (
	"time"

	"visatrack/internal/jobs"

	"github.com/hibiken/asynq"
)

// JobClient interface for scheduling background jobs
type JobClient interface {
	ScheduleMilestoneRecheck(milestoneID string, plannedAt time.Time) error
	ScheduleMilestoneSweep() error
}

// AsynqJobClient implements JobClient using asynq
type AsynqJobClient struct {
	client *asynq.Client
}

func NewAsynqJobClient(client *asynq.Client) *AsynqJobClient {
	return &AsynqJobClient{client: client}
}

func (c *AsynqJobClient) ScheduleMilestoneRecheck(milestoneID string, plannedAt time.Time) error {
	return jobs.ScheduleMilestoneRecheck(c.client, milestoneID, plannedAt)
}

func (c *AsynqJobClient) ScheduleMilestoneSweep() error {
	return jobs.ScheduleMilestoneSweep(c.client)
}
