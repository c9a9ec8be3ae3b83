package tasks

import (
	"context"
	"time"

	"github.com/nikolastojadinov/hajde-music-stream/app/database"
	"github.com/nikolastojadinov/hajde-music-stream/app/refresh"
)

// PrepareBatchTask handles prepare_batch jobs: select the slot's eligible
// playlists and persist the manifest. The outcome (including the selected
// entries) becomes the job payload.
type PrepareBatchTask struct {
	preparer *refresh.Preparer
}

func NewPrepareBatchTask(preparer *refresh.Preparer) *PrepareBatchTask {
	return &PrepareBatchTask{preparer: preparer}
}

func (t *PrepareBatchTask) Type() string {
	return database.JobTypePrepareBatch
}

func (t *PrepareBatchTask) Execute(ctx context.Context, job database.RefreshJob) (any, error) {
	return t.preparer.Prepare(job.DayKey, job.SlotIndex, time.Now())
}
