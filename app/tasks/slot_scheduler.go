package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nikolastojadinov/hajde-music-stream/app/config"
	"github.com/nikolastojadinov/hajde-music-stream/app/database"
)

// SlotScheduler materializes the day's refresh_jobs rows once per day:
// evenly spaced (prepare, run) pairs per slot plus one trailing postbatch
// job. Generation is idempotent per day key, so restarts and redundant
// instances never double-book a day.
type SlotScheduler struct {
	jobRepo  database.JobRepository
	schedule config.SchedulePolicy
	loc      *time.Location
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewSlotScheduler(jobRepo database.JobRepository, schedule config.SchedulePolicy, loc *time.Location) *SlotScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &SlotScheduler{
		jobRepo:  jobRepo,
		schedule: schedule,
		loc:      loc,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (s *SlotScheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		// Cover today first so a service started mid-day still gets its
		// remaining slots.
		if err := s.GenerateForDay(time.Now().In(s.loc)); err != nil {
			slog.Error("Slot generation failed", "error", err)
		}

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-time.After(s.untilNextTrigger(time.Now().In(s.loc))):
				if err := s.GenerateForDay(time.Now().In(s.loc)); err != nil {
					// No partial retry: the next day's run is independent.
					slog.Error("Slot generation failed", "error", err)
				}
			}
		}
	}()
}

func (s *SlotScheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

// untilNextTrigger returns the wait until shortly after the next local
// midnight, when the following day's jobs get materialized.
func (s *SlotScheduler) untilNextTrigger(now time.Time) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 5, 0, 0, s.loc).AddDate(0, 0, 1)
	return next.Sub(now)
}

// GenerateForDay creates the job rows for the given day. A no-op when any
// rows for the day key already exist.
func (s *SlotScheduler) GenerateForDay(day time.Time) error {
	day = day.In(s.loc)
	dayKey := day.Format("2006-01-02")

	existing, err := s.jobRepo.CountByDayKey(dayKey)
	if err != nil {
		return fmt.Errorf("failed to check existing jobs for %s: %w", dayKey, err)
	}
	if existing > 0 {
		slog.Debug("Jobs already generated for day", "day_key", dayKey, "count", existing)
		return nil
	}

	jobs := s.buildJobs(day, dayKey)
	if err := s.jobRepo.BulkInsert(jobs); err != nil {
		return fmt.Errorf("failed to insert jobs for %s: %w", dayKey, err)
	}

	slog.Info("Generated refresh jobs", "day_key", dayKey, "jobs", len(jobs), "slots", s.schedule.SlotsPerDay)
	return nil
}

func (s *SlotScheduler) buildJobs(day time.Time, dayKey string) []database.RefreshJob {
	hour, minute, _ := config.ParseSlotTime(s.schedule.FirstSlotTime)
	firstSlot := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, s.loc)
	spacing := time.Duration(s.schedule.SlotSpacingMinutes) * time.Minute
	prepareDelay := time.Duration(s.schedule.PrepareDelayMin) * time.Minute

	now := time.Now().UTC()
	var jobs []database.RefreshJob

	newJob := func(slotIndex int, jobType string, scheduledAt time.Time) database.RefreshJob {
		return database.RefreshJob{
			ID:          uuid.NewString(),
			SlotIndex:   slotIndex,
			Type:        jobType,
			ScheduledAt: scheduledAt.UTC(),
			DayKey:      dayKey,
			Status:      database.JobStatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}

	var lastRun time.Time
	for slot := 0; slot < s.schedule.SlotsPerDay; slot++ {
		prepareAt := firstSlot.Add(time.Duration(slot) * spacing)
		runAt := prepareAt.Add(prepareDelay)
		jobs = append(jobs,
			newJob(slot, database.JobTypePrepareBatch, prepareAt),
			newJob(slot, database.JobTypeRunBatch, runAt),
		)
		lastRun = runAt
	}

	postbatchAt := lastRun.Add(time.Duration(s.schedule.PostbatchDelayMin) * time.Minute)
	jobs = append(jobs, newJob(s.schedule.SlotsPerDay-1, database.JobTypePostbatch, postbatchAt))

	return jobs
}
