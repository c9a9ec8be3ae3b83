package database

import (
	"time"
)

type JobRepository interface {
	CountByDayKey(dayKey string) (int, error)
	BulkInsert(jobs []RefreshJob) error
	GetDueJobs(now time.Time, limit int) ([]RefreshJob, error)
	Claim(jobID string, now time.Time) (bool, error)
	Finalize(jobID string, status string, payload string, now time.Time) error
	ReclaimStale(before time.Time, now time.Time) (int, error)
	GetJob(jobID string) (*RefreshJob, error)
	ListByDayKey(dayKey string) ([]RefreshJob, error)
	PruneFinished(before time.Time) (int, error)
	CountByStatus() (map[string]int, error)
}

type PlaylistRepository interface {
	GetPlaylist(playlistID string) (*Playlist, error)
	GetPlaylistByExternalID(externalID string) (*Playlist, error)
	InsertPlaylist(playlist *Playlist) error
	ListPlaylists(limit, offset int) ([]Playlist, error)
	SelectEligible(minTrackCount int, mixPrefixes []string, limit int) ([]Playlist, error)
	UpdateRefreshBookkeeping(playlistID string, etag string, itemCount int, now time.Time) error
	TouchRefreshedOn(playlistID string, now time.Time) error
	RemovePlaylist(playlistID string) error
	GetPlaylistCount() (int, error)
	GetActivePlaylistCount() (int, error)
}

type TrackRepository interface {
	UpsertTracks(tracks []TrackUpsert, chunkSize int, now time.Time) error
	ResolveTrackIDs(externalIDs []string, chunkSize int) (map[string]string, error)
	ReplaceLinks(playlistID string, links []Link, chunkSize int, now time.Time) error
	GetLinks(playlistID string) ([]PlaylistTrack, error)
	GetPlaylistTracks(playlistID string) ([]Track, error)
	GetTrackByExternalID(externalID string) (*Track, error)
	GetTrackCount() (int, error)
}
