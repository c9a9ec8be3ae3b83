package tasks

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nikolastojadinov/hajde-music-stream/app/database"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.NewConnection(":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return db
}

func insertJob(t *testing.T, repo database.JobRepository, dayKey string, slotIndex int, jobType string, scheduledAt time.Time) database.RefreshJob {
	t.Helper()

	now := time.Now().UTC()
	job := database.RefreshJob{
		ID:          uuid.NewString(),
		SlotIndex:   slotIndex,
		Type:        jobType,
		ScheduledAt: scheduledAt.UTC(),
		DayKey:      dayKey,
		Status:      database.JobStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := repo.BulkInsert([]database.RefreshJob{job}); err != nil {
		t.Fatalf("Failed to insert job: %v", err)
	}

	return job
}
