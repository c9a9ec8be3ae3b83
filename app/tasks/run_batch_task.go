package tasks

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nikolastojadinov/hajde-music-stream/app/database"
	"github.com/nikolastojadinov/hajde-music-stream/app/manifest"
	"github.com/nikolastojadinov/hajde-music-stream/app/refresh"
)

// RunBatchTask handles run_batch jobs: refresh every playlist the paired
// prepare job selected. When the manifest store has lost the slot's
// manifest, the prepare job's recorded payload serves as fallback.
type RunBatchTask struct {
	engine  *refresh.Engine
	jobRepo database.JobRepository
}

func NewRunBatchTask(engine *refresh.Engine, jobRepo database.JobRepository) *RunBatchTask {
	return &RunBatchTask{engine: engine, jobRepo: jobRepo}
}

func (t *RunBatchTask) Type() string {
	return database.JobTypeRunBatch
}

func (t *RunBatchTask) Execute(ctx context.Context, job database.RefreshJob) (any, error) {
	fallback := t.prepareFallback(job)
	return t.engine.Run(ctx, job.DayKey, job.SlotIndex, fallback)
}

// prepareFallback extracts the manifest entries recorded by the paired
// prepare job, if it completed.
func (t *RunBatchTask) prepareFallback(job database.RefreshJob) []manifest.Entry {
	jobs, err := t.jobRepo.ListByDayKey(job.DayKey)
	if err != nil {
		slog.Warn("Failed to list day jobs for prepare fallback", "day_key", job.DayKey, "error", err)
		return nil
	}

	for _, candidate := range jobs {
		if candidate.Type != database.JobTypePrepareBatch ||
			candidate.SlotIndex != job.SlotIndex ||
			candidate.Status != database.JobStatusDone {
			continue
		}

		var outcome refresh.PrepareOutcome
		if err := json.Unmarshal([]byte(candidate.Payload), &outcome); err != nil {
			slog.Warn("Failed to parse prepare payload", "job", candidate.ID, "error", err)
			return nil
		}
		return outcome.Entries
	}

	return nil
}
