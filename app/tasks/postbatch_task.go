package tasks

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nikolastojadinov/hajde-music-stream/app/database"
	"github.com/nikolastojadinov/hajde-music-stream/app/refresh"
)

// PostbatchTask closes out a day: it aggregates the run jobs' payloads
// into a summary and prunes finished jobs past the retention window.
type PostbatchTask struct {
	jobRepo       database.JobRepository
	retentionDays int
}

// DaySummary is the postbatch job's payload.
type DaySummary struct {
	DayKey       string `json:"dayKey"`
	Slots        int    `json:"slots"`
	Total        int    `json:"total"`
	Refreshed    int    `json:"refreshed"`
	Skipped      int    `json:"skipped"`
	Removed      int    `json:"removed"`
	Failed       int    `json:"failed"`
	Partial      int    `json:"partial"`
	ErroredSlots int    `json:"erroredSlots"`
	PrunedJobs   int    `json:"prunedJobs"`
}

func NewPostbatchTask(jobRepo database.JobRepository, retentionDays int) *PostbatchTask {
	return &PostbatchTask{jobRepo: jobRepo, retentionDays: retentionDays}
}

func (t *PostbatchTask) Type() string {
	return database.JobTypePostbatch
}

func (t *PostbatchTask) Execute(ctx context.Context, job database.RefreshJob) (any, error) {
	jobs, err := t.jobRepo.ListByDayKey(job.DayKey)
	if err != nil {
		return nil, err
	}

	summary := &DaySummary{DayKey: job.DayKey}

	for _, dayJob := range jobs {
		if dayJob.Type != database.JobTypeRunBatch {
			continue
		}

		switch dayJob.Status {
		case database.JobStatusError:
			summary.ErroredSlots++
			continue
		case database.JobStatusDone:
			// aggregated below
		default:
			continue
		}

		var result refresh.BatchResult
		if err := json.Unmarshal([]byte(dayJob.Payload), &result); err != nil {
			slog.Warn("Failed to parse run payload for day summary", "job", dayJob.ID, "error", err)
			continue
		}

		summary.Slots++
		summary.Total += result.Total
		summary.Refreshed += result.Refreshed
		summary.Skipped += result.Skipped
		summary.Removed += result.Removed
		summary.Failed += result.Failed
		summary.Partial += result.Partial
	}

	cutoff := time.Now().AddDate(0, 0, -t.retentionDays)
	pruned, err := t.jobRepo.PruneFinished(cutoff)
	if err != nil {
		slog.Warn("Job retention pruning failed", "error", err)
	} else {
		summary.PrunedJobs = pruned
	}

	return summary, nil
}
