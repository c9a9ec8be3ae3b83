package database

import (
	"time"
)

// Job lifecycle statuses. A job moves pending -> running -> done/error;
// the pending -> running transition is a compare-and-swap so exactly one
// claimant wins.
const (
	JobStatusPending = "pending"
	JobStatusRunning = "running"
	JobStatusDone    = "done"
	JobStatusError   = "error"
)

// Job types dispatched by the processor.
const (
	JobTypePrepareBatch = "prepare_batch"
	JobTypeRunBatch     = "run_batch"
	JobTypePostbatch    = "postbatch"
)

// Track/playlist sync statuses.
const (
	SyncStatusActive  = "active"
	SyncStatusDeleted = "deleted"
)

type RefreshJob struct {
	ID          string
	SlotIndex   int
	Type        string
	ScheduledAt time.Time
	DayKey      string
	Status      string
	Payload     string // JSON result or error document
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Playlist struct {
	ID              string
	ExternalID      string
	Title           string
	LastEtag        string
	LastRefreshedOn *time.Time
	ItemCount       int
	Region          string
	Category        string
	SyncStatus      string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Track struct {
	ID           string
	ExternalID   string
	Title        string
	Artist       string
	CoverURL     string
	Duration     int
	SyncStatus   string
	LastSyncedAt *time.Time
	// Legacy owner reference kept for older rows; detached (set NULL)
	// when the owning playlist is removed.
	PlaylistID *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type PlaylistTrack struct {
	PlaylistID string
	TrackID    string
	Position   int
	AddedAt    time.Time
}

// TrackUpsert is the write shape for the global track upsert.
type TrackUpsert struct {
	ExternalID string
	Title      string
	Artist     string
	CoverURL   string
	Duration   int
}

// Link is the write shape for playlist_tracks reconciliation.
type Link struct {
	TrackID  string
	Position int
}
