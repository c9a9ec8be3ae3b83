package tasks

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nikolastojadinov/hajde-music-stream/app/database"
	"github.com/nikolastojadinov/hajde-music-stream/app/refresh"
)

func finalizeWithResult(t *testing.T, repo database.JobRepository, job database.RefreshJob, status string, result *refresh.BatchResult) {
	t.Helper()

	payload := "{}"
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			t.Fatalf("Failed to marshal batch result: %v", err)
		}
		payload = string(data)
	}

	if _, err := repo.Claim(job.ID, time.Now()); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if err := repo.Finalize(job.ID, status, payload, time.Now()); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
}

func TestPostbatchTask_AggregatesDaySummary(t *testing.T) {
	repo := database.NewJobRepository(newTestDB(t))
	now := time.Now()

	run0 := insertJob(t, repo, "2026-08-28", 0, database.JobTypeRunBatch, now.Add(-6*time.Hour))
	run1 := insertJob(t, repo, "2026-08-28", 1, database.JobTypeRunBatch, now.Add(-4*time.Hour))
	run2 := insertJob(t, repo, "2026-08-28", 2, database.JobTypeRunBatch, now.Add(-2*time.Hour))
	insertJob(t, repo, "2026-08-28", 0, database.JobTypePrepareBatch, now.Add(-6*time.Hour))

	finalizeWithResult(t, repo, run0, database.JobStatusDone, &refresh.BatchResult{
		Total: 4, Refreshed: 3, Skipped: 1,
	})
	finalizeWithResult(t, repo, run1, database.JobStatusDone, &refresh.BatchResult{
		Total: 4, Refreshed: 2, Removed: 1, Failed: 1, Partial: 1,
	})
	finalizeWithResult(t, repo, run2, database.JobStatusError, nil)

	task := NewPostbatchTask(repo, 14)
	postbatch := insertJob(t, repo, "2026-08-28", 3, database.JobTypePostbatch, now)

	payload, err := task.Execute(context.Background(), postbatch)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	summary, ok := payload.(*DaySummary)
	if !ok {
		t.Fatalf("Expected *DaySummary payload, got %T", payload)
	}

	if summary.Slots != 2 {
		t.Errorf("Expected 2 aggregated slots, got %d", summary.Slots)
	}
	if summary.Total != 8 || summary.Refreshed != 5 || summary.Skipped != 1 ||
		summary.Removed != 1 || summary.Failed != 1 || summary.Partial != 1 {
		t.Errorf("Unexpected summary: %+v", summary)
	}
	if summary.ErroredSlots != 1 {
		t.Errorf("Expected 1 errored slot, got %d", summary.ErroredSlots)
	}
}

func TestPostbatchTask_PrunesOldJobs(t *testing.T) {
	repo := database.NewJobRepository(newTestDB(t))
	now := time.Now()

	old := insertJob(t, repo, "2026-08-01", 0, database.JobTypeRunBatch, now.Add(-27*24*time.Hour))
	if _, err := repo.Claim(old.ID, now.Add(-27*24*time.Hour)); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if err := repo.Finalize(old.ID, database.JobStatusDone, "{}", now.Add(-27*24*time.Hour)); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	task := NewPostbatchTask(repo, 14)
	postbatch := insertJob(t, repo, "2026-08-28", 3, database.JobTypePostbatch, now)

	payload, err := task.Execute(context.Background(), postbatch)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	summary := payload.(*DaySummary)
	if summary.PrunedJobs != 1 {
		t.Errorf("Expected 1 pruned job, got %d", summary.PrunedJobs)
	}

	if job, _ := repo.GetJob(old.ID); job != nil {
		t.Error("Expected old finished job pruned")
	}
}
