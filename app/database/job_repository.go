package database

import (
	"database/sql"
	"fmt"
	"time"
)

var _ JobRepository = (*jobRepository)(nil)

type jobRepository struct {
	db *DB
}

func NewJobRepository(db *DB) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) CountByDayKey(dayKey string) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM refresh_jobs WHERE day_key = ?`, dayKey).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count jobs for day %s: %w", dayKey, err)
	}
	return count, nil
}

func (r *jobRepository) BulkInsert(jobs []RefreshJob) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO refresh_jobs (id, slot_index, type, scheduled_at, day_key, status, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare job insert: %w", err)
	}
	defer stmt.Close()

	for _, job := range jobs {
		_, err := stmt.Exec(job.ID, job.SlotIndex, job.Type, job.ScheduledAt.UTC(),
			job.DayKey, job.Status, job.Payload, job.CreatedAt.UTC(), job.UpdatedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert job %s: %w", job.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit job insert: %w", err)
	}

	return nil
}

func (r *jobRepository) GetDueJobs(now time.Time, limit int) ([]RefreshJob, error) {
	rows, err := r.db.Query(`
		SELECT id, slot_index, type, scheduled_at, day_key, status, payload, created_at, updated_at
		FROM refresh_jobs
		WHERE status = ? AND scheduled_at <= ?
		ORDER BY scheduled_at ASC
		LIMIT ?
	`, JobStatusPending, now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get due jobs: %w", err)
	}
	defer rows.Close()

	return scanJobs(rows)
}

// Claim transitions a job from pending to running. Returns false when the
// row was already claimed by another processor (zero rows affected).
func (r *jobRepository) Claim(jobID string, now time.Time) (bool, error) {
	result, err := r.db.Exec(`
		UPDATE refresh_jobs
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, JobStatusRunning, now.UTC(), jobID, JobStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to claim job %s: %w", jobID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read claim result for job %s: %w", jobID, err)
	}

	return affected == 1, nil
}

func (r *jobRepository) Finalize(jobID string, status string, payload string, now time.Time) error {
	_, err := r.db.Exec(`
		UPDATE refresh_jobs
		SET status = ?, payload = ?, updated_at = ?
		WHERE id = ?
	`, status, payload, now.UTC(), jobID)
	if err != nil {
		return fmt.Errorf("failed to finalize job %s: %w", jobID, err)
	}
	return nil
}

// ReclaimStale returns jobs stuck in running (e.g. after a crash) to
// pending so a later tick can pick them up again.
func (r *jobRepository) ReclaimStale(before time.Time, now time.Time) (int, error) {
	result, err := r.db.Exec(`
		UPDATE refresh_jobs
		SET status = ?, updated_at = ?
		WHERE status = ? AND updated_at < ?
	`, JobStatusPending, now.UTC(), JobStatusRunning, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim stale jobs: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read reclaim result: %w", err)
	}

	return int(affected), nil
}

func (r *jobRepository) GetJob(jobID string) (*RefreshJob, error) {
	var job RefreshJob
	err := r.db.QueryRow(`
		SELECT id, slot_index, type, scheduled_at, day_key, status, payload, created_at, updated_at
		FROM refresh_jobs
		WHERE id = ?
	`, jobID).Scan(&job.ID, &job.SlotIndex, &job.Type, &job.ScheduledAt,
		&job.DayKey, &job.Status, &job.Payload, &job.CreatedAt, &job.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", jobID, err)
	}

	return &job, nil
}

func (r *jobRepository) ListByDayKey(dayKey string) ([]RefreshJob, error) {
	rows, err := r.db.Query(`
		SELECT id, slot_index, type, scheduled_at, day_key, status, payload, created_at, updated_at
		FROM refresh_jobs
		WHERE day_key = ?
		ORDER BY scheduled_at ASC
	`, dayKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs for day %s: %w", dayKey, err)
	}
	defer rows.Close()

	return scanJobs(rows)
}

func (r *jobRepository) PruneFinished(before time.Time) (int, error) {
	result, err := r.db.Exec(`
		DELETE FROM refresh_jobs
		WHERE status IN (?, ?) AND updated_at < ?
	`, JobStatusDone, JobStatusError, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune finished jobs: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read prune result: %w", err)
	}

	return int(affected), nil
}

func (r *jobRepository) CountByStatus() (map[string]int, error) {
	rows, err := r.db.Query(`SELECT status, COUNT(*) FROM refresh_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan job count row: %w", err)
		}
		counts[status] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job count rows: %w", err)
	}

	return counts, nil
}

func scanJobs(rows *sql.Rows) ([]RefreshJob, error) {
	var jobs []RefreshJob
	for rows.Next() {
		var job RefreshJob
		err := rows.Scan(&job.ID, &job.SlotIndex, &job.Type, &job.ScheduledAt,
			&job.DayKey, &job.Status, &job.Payload, &job.CreatedAt, &job.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job rows: %w", err)
	}

	return jobs, nil
}
