package tasks

import (
	"testing"
	"time"

	"github.com/nikolastojadinov/hajde-music-stream/app/config"
	"github.com/nikolastojadinov/hajde-music-stream/app/database"
)

func testSchedule() config.SchedulePolicy {
	return config.SchedulePolicy{
		SlotsPerDay:        4,
		FirstSlotTime:      "03:00",
		SlotSpacingMinutes: 240,
		PrepareDelayMin:    10,
		PostbatchDelayMin:  30,
		TickSeconds:        60,
		StaleRunningMin:    45,
		RetentionDays:      14,
	}
}

func TestSlotScheduler_GenerateForDay(t *testing.T) {
	jobRepo := database.NewJobRepository(newTestDB(t))
	loc := time.UTC

	scheduler := NewSlotScheduler(jobRepo, testSchedule(), loc)

	day := time.Date(2026, 8, 28, 9, 0, 0, 0, loc)
	if err := scheduler.GenerateForDay(day); err != nil {
		t.Fatalf("GenerateForDay failed: %v", err)
	}

	jobs, err := jobRepo.ListByDayKey("2026-08-28")
	if err != nil {
		t.Fatalf("ListByDayKey failed: %v", err)
	}

	// 4 slots of (prepare, run) pairs plus one postbatch.
	if len(jobs) != 9 {
		t.Fatalf("Expected 9 jobs, got %d", len(jobs))
	}

	byType := map[string]int{}
	for _, job := range jobs {
		byType[job.Type]++
	}
	if byType[database.JobTypePrepareBatch] != 4 {
		t.Errorf("Expected 4 prepare jobs, got %d", byType[database.JobTypePrepareBatch])
	}
	if byType[database.JobTypeRunBatch] != 4 {
		t.Errorf("Expected 4 run jobs, got %d", byType[database.JobTypeRunBatch])
	}
	if byType[database.JobTypePostbatch] != 1 {
		t.Errorf("Expected 1 postbatch job, got %d", byType[database.JobTypePostbatch])
	}
}

func TestSlotScheduler_GenerateForDaySchedulingTimes(t *testing.T) {
	jobRepo := database.NewJobRepository(newTestDB(t))
	loc := time.UTC

	scheduler := NewSlotScheduler(jobRepo, testSchedule(), loc)

	day := time.Date(2026, 8, 28, 0, 0, 0, 0, loc)
	if err := scheduler.GenerateForDay(day); err != nil {
		t.Fatalf("GenerateForDay failed: %v", err)
	}

	jobs, err := jobRepo.ListByDayKey("2026-08-28")
	if err != nil {
		t.Fatalf("ListByDayKey failed: %v", err)
	}

	at := func(jobType string, slotIndex int) time.Time {
		t.Helper()
		for _, job := range jobs {
			if job.Type == jobType && job.SlotIndex == slotIndex {
				return job.ScheduledAt.In(loc)
			}
		}
		t.Fatalf("No %s job for slot %d", jobType, slotIndex)
		return time.Time{}
	}

	wantPrepare0 := time.Date(2026, 8, 28, 3, 0, 0, 0, loc)
	if got := at(database.JobTypePrepareBatch, 0); !got.Equal(wantPrepare0) {
		t.Errorf("Slot 0 prepare at %v, want %v", got, wantPrepare0)
	}
	if got := at(database.JobTypeRunBatch, 0); !got.Equal(wantPrepare0.Add(10 * time.Minute)) {
		t.Errorf("Slot 0 run at %v, want prepare+10m", got)
	}

	// Slots spaced 240 minutes apart.
	wantPrepare2 := wantPrepare0.Add(2 * 240 * time.Minute)
	if got := at(database.JobTypePrepareBatch, 2); !got.Equal(wantPrepare2) {
		t.Errorf("Slot 2 prepare at %v, want %v", got, wantPrepare2)
	}

	// Postbatch trails the last run by 30 minutes.
	lastRun := wantPrepare0.Add(3 * 240 * time.Minute).Add(10 * time.Minute)
	if got := at(database.JobTypePostbatch, 3); !got.Equal(lastRun.Add(30 * time.Minute)) {
		t.Errorf("Postbatch at %v, want last run+30m", got)
	}
}

func TestSlotScheduler_GenerateForDayIdempotent(t *testing.T) {
	jobRepo := database.NewJobRepository(newTestDB(t))

	scheduler := NewSlotScheduler(jobRepo, testSchedule(), time.UTC)

	day := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if err := scheduler.GenerateForDay(day); err != nil {
			t.Fatalf("GenerateForDay run %d failed: %v", i, err)
		}
	}

	count, err := jobRepo.CountByDayKey("2026-08-28")
	if err != nil {
		t.Fatalf("CountByDayKey failed: %v", err)
	}
	if count != 9 {
		t.Errorf("Expected repeated generation to be a no-op, got %d jobs", count)
	}
}

func TestSlotScheduler_GenerateForDaySeparateDays(t *testing.T) {
	jobRepo := database.NewJobRepository(newTestDB(t))

	scheduler := NewSlotScheduler(jobRepo, testSchedule(), time.UTC)

	if err := scheduler.GenerateForDay(time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("GenerateForDay failed: %v", err)
	}
	if err := scheduler.GenerateForDay(time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("GenerateForDay failed: %v", err)
	}

	for _, dayKey := range []string{"2026-08-28", "2026-08-29"} {
		count, err := jobRepo.CountByDayKey(dayKey)
		if err != nil {
			t.Fatalf("CountByDayKey failed: %v", err)
		}
		if count != 9 {
			t.Errorf("Expected 9 jobs for %s, got %d", dayKey, count)
		}
	}
}

func TestSlotScheduler_UntilNextTrigger(t *testing.T) {
	scheduler := NewSlotScheduler(nil, testSchedule(), time.UTC)

	now := time.Date(2026, 8, 28, 23, 0, 0, 0, time.UTC)
	wait := scheduler.untilNextTrigger(now)

	// Next trigger is 00:05 the following day.
	if wait != time.Hour+5*time.Minute {
		t.Errorf("Expected 1h5m wait, got %v", wait)
	}
}
