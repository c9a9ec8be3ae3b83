package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nikolastojadinov/hajde-music-stream/app/database"
)

const dueJobsPerTick = 20

// Processor ticks on a fixed interval, claims due jobs one at a time via
// the store's compare-and-swap, and dispatches them to the registered
// handler for their type. Claimed jobs are processed sequentially: the
// catalog's rate budget is shared and slots must not overlap.
type Processor struct {
	jobRepo    database.JobRepository
	handlers   map[string]JobHandler
	disabled   map[string]bool
	tick       time.Duration
	staleAfter time.Duration
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

func NewProcessor(jobRepo database.JobRepository, tick, staleAfter time.Duration, disabledTypes []string) *Processor {
	ctx, cancel := context.WithCancel(context.Background())

	disabled := make(map[string]bool, len(disabledTypes))
	for _, jobType := range disabledTypes {
		disabled[jobType] = true
	}

	return &Processor{
		jobRepo:    jobRepo,
		handlers:   make(map[string]JobHandler),
		disabled:   disabled,
		tick:       tick,
		staleAfter: staleAfter,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (p *Processor) Register(handler JobHandler) {
	p.handlers[handler.Type()] = handler
}

func (p *Processor) Start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ticker := time.NewTicker(p.tick)
		defer ticker.Stop()

		p.Tick()

		for {
			select {
			case <-p.ctx.Done():
				return
			case <-ticker.C:
				p.Tick()
			}
		}
	}()
}

func (p *Processor) Stop() {
	p.cancel()
	p.wg.Wait()
}

// Tick runs one processing pass: reclaim stale running jobs, then claim
// and execute everything due.
func (p *Processor) Tick() {
	now := time.Now()

	if reclaimed, err := p.jobRepo.ReclaimStale(now.Add(-p.staleAfter), now); err != nil {
		slog.Error("Stale job reclaim failed", "error", err)
	} else if reclaimed > 0 {
		slog.Warn("Reclaimed stale running jobs", "count", reclaimed, "threshold", p.staleAfter.String())
	}

	jobs, err := p.jobRepo.GetDueJobs(now, dueJobsPerTick)
	if err != nil {
		slog.Error("Due job query failed", "error", err)
		return
	}

	for _, job := range jobs {
		select {
		case <-p.ctx.Done():
			return
		default:
		}
		p.processJob(job)
	}
}

func (p *Processor) processJob(job database.RefreshJob) {
	claimed, err := p.jobRepo.Claim(job.ID, time.Now())
	if err != nil {
		slog.Error("Job claim failed", "job", job.ID, "type", job.Type, "error", err)
		return
	}
	if !claimed {
		// Another tick or processor instance won the claim.
		slog.Debug("Job already claimed elsewhere", "job", job.ID, "type", job.Type)
		return
	}

	if p.disabled[job.Type] {
		p.finalize(job, database.JobStatusDone, map[string]any{
			"skipped": true,
			"reason":  "job type administratively disabled",
		})
		return
	}

	handler, ok := p.handlers[job.Type]
	if !ok {
		p.finalize(job, database.JobStatusError, map[string]any{
			"error": fmt.Sprintf("no handler registered for job type %q", job.Type),
		})
		return
	}

	slog.Info("Job started", "job", job.ID, "type", job.Type, "day_key", job.DayKey, "slot", job.SlotIndex)
	started := time.Now()

	payload, err := p.execute(handler, job)
	if err != nil {
		slog.Error("Job failed", "job", job.ID, "type", job.Type, "duration", time.Since(started).String(), "error", err)
		p.finalize(job, database.JobStatusError, map[string]any{"error": err.Error()})
		return
	}

	slog.Info("Job completed", "job", job.ID, "type", job.Type, "duration", time.Since(started).String())
	p.finalize(job, database.JobStatusDone, payload)
}

// execute runs the handler with panic containment, so one broken job
// can't take the whole processor down.
func (p *Processor) execute(handler JobHandler, job database.RefreshJob) (payload any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panicked: %v", r)
		}
	}()

	return handler.Execute(p.ctx, job)
}

func (p *Processor) finalize(job database.RefreshJob, status string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte(fmt.Sprintf(`{"error":"failed to marshal payload: %s"}`, err))
		status = database.JobStatusError
	}

	if err := p.jobRepo.Finalize(job.ID, status, string(data), time.Now()); err != nil {
		slog.Error("Job finalize failed", "job", job.ID, "status", status, "error", err)
	}
}
