package tasks

import (
	"context"

	"github.com/nikolastojadinov/hajde-music-stream/app/database"
)

// JobHandler executes one claimed refresh_jobs row. The returned payload
// is serialized to JSON and recorded on the job; a returned error
// finalizes the job as errored with a normalized error payload.
type JobHandler interface {
	Type() string
	Execute(ctx context.Context, job database.RefreshJob) (any, error)
}
