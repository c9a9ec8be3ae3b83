package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/nikolastojadinov/hajde-music-stream/app/catalog"
	"github.com/nikolastojadinov/hajde-music-stream/app/database"
	"github.com/nikolastojadinov/hajde-music-stream/app/manifest"
)

// CatalogClient is the slice of the catalog API the engine depends on.
type CatalogClient interface {
	FetchAll(ctx context.Context, externalID string, etag string, itemCap int) (*catalog.Result, error)
}

// Per-playlist outcome statuses.
const (
	OutcomeRefreshed = "refreshed"
	OutcomeSkipped   = "skipped"
	OutcomeRemoved   = "removed"
	OutcomeFailed    = "failed"
)

// Skip/partial reasons recorded in batch payloads.
const (
	ReasonMissingID     = "missing-external-id"
	ReasonMalformedID   = "malformed-external-id"
	ReasonMixPlaylist   = "mix-playlist"
	ReasonUnchanged     = "unchanged"
	ReasonInFlight      = "already-in-flight"
	ReasonNotFound      = "playlist-not-found"
	ReasonEmptyResult   = "empty-result"
	ReasonGone          = "gone"
	ReasonForbidden     = "forbidden"
	ReasonLimitExceeded = "limit-exceeded"
)

var externalIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{13,42}$`)

// PlaylistOutcome describes what one playlist's refresh did.
type PlaylistOutcome struct {
	PlaylistID     string `json:"playlistId"`
	ExternalID     string `json:"externalId"`
	Status         string `json:"status"`
	Reason         string `json:"reason,omitempty"`
	ItemCount      int    `json:"itemCount,omitempty"`
	Duplicates     int    `json:"duplicates,omitempty"`
	PartialRefresh bool   `json:"partial_refresh,omitempty"`
}

// BatchResult is the run job's payload: aggregate counts plus the error
// list for the playlists whose refresh failed.
type BatchResult struct {
	DayKey    string            `json:"dayKey"`
	SlotIndex int               `json:"slotIndex"`
	Source    string            `json:"source"` // manifest, prepare-payload or requery
	Total     int               `json:"total"`
	Refreshed int               `json:"refreshed"`
	Skipped   int               `json:"skipped"`
	Removed   int               `json:"removed"`
	Failed    int               `json:"failed"`
	Partial   int               `json:"partial"`
	Errors    []PlaylistOutcome `json:"errors,omitempty"`
}

// Engine runs the batch refresh: for each manifest entry it performs the
// conditional fetch, delta sync and bookkeeping. Playlists are processed
// strictly sequentially; the catalog's rate budget is shared and a batch
// must never burst.
type Engine struct {
	playlistRepo database.PlaylistRepository
	client       CatalogClient
	delta        *Delta
	registry     Registry
	manifests    manifest.Store

	trackCap      int
	batchSize     int
	minTrackCount int
	mixPrefixes   []string
}

func NewEngine(playlistRepo database.PlaylistRepository, client CatalogClient, delta *Delta,
	registry Registry, manifests manifest.Store,
	trackCap, batchSize, minTrackCount int, mixPrefixes []string) *Engine {
	return &Engine{
		playlistRepo:  playlistRepo,
		client:        client,
		delta:         delta,
		registry:      registry,
		manifests:     manifests,
		trackCap:      trackCap,
		batchSize:     batchSize,
		minTrackCount: minTrackCount,
		mixPrefixes:   mixPrefixes,
	}
}

// Run refreshes every playlist selected for the given slot. Per-playlist
// failures are recorded and do not abort the batch.
func (e *Engine) Run(ctx context.Context, dayKey string, slotIndex int, fallback []manifest.Entry) (*BatchResult, error) {
	entries, source, err := e.loadEntries(dayKey, slotIndex, fallback)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{
		DayKey:    dayKey,
		SlotIndex: slotIndex,
		Source:    source,
		Total:     len(entries),
	}

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		outcome := e.refreshEntry(ctx, entry)

		switch outcome.Status {
		case OutcomeRefreshed:
			result.Refreshed++
			if outcome.PartialRefresh {
				result.Partial++
			}
		case OutcomeSkipped:
			result.Skipped++
		case OutcomeRemoved:
			result.Removed++
		case OutcomeFailed:
			result.Failed++
			result.Errors = append(result.Errors, *outcome)
		}

		slog.Debug("Playlist refresh finished", "playlist", entry.PlaylistID,
			"external_id", entry.ExternalID, "status", outcome.Status, "reason", outcome.Reason)
	}

	slog.Info("Batch refresh completed", "day_key", dayKey, "slot", slotIndex, "source", source,
		"total", result.Total, "refreshed", result.Refreshed, "skipped", result.Skipped,
		"removed", result.Removed, "failed", result.Failed, "partial", result.Partial)

	return result, nil
}

// loadEntries resolves the slot's selection: the manifest store first,
// then the prepare payload passed by the processor, then a fresh
// eligibility query as last resort.
func (e *Engine) loadEntries(dayKey string, slotIndex int, fallback []manifest.Entry) ([]manifest.Entry, string, error) {
	m, err := e.manifests.Read(dayKey, slotIndex)
	if err == nil {
		return m.Entries, "manifest", nil
	}
	if !errors.Is(err, manifest.ErrNotFound) {
		slog.Warn("Manifest read failed, falling back", "day_key", dayKey, "slot", slotIndex, "error", err)
	}

	if len(fallback) > 0 {
		return fallback, "prepare-payload", nil
	}

	playlists, err := e.playlistRepo.SelectEligible(e.minTrackCount, e.mixPrefixes, e.batchSize)
	if err != nil {
		return nil, "", fmt.Errorf("manifest missing and eligibility requery failed: %w", err)
	}

	entries := make([]manifest.Entry, len(playlists))
	for i, playlist := range playlists {
		entries[i] = manifest.Entry{
			PlaylistID:      playlist.ID,
			ExternalID:      playlist.ExternalID,
			Title:           playlist.Title,
			LastRefreshedOn: playlist.LastRefreshedOn,
			TrackCount:      playlist.ItemCount,
		}
	}

	return entries, "requery", nil
}

func (e *Engine) refreshEntry(ctx context.Context, entry manifest.Entry) *PlaylistOutcome {
	if !e.registry.Acquire(entry.PlaylistID) {
		return &PlaylistOutcome{
			PlaylistID: entry.PlaylistID,
			ExternalID: entry.ExternalID,
			Status:     OutcomeSkipped,
			Reason:     ReasonInFlight,
		}
	}
	defer e.registry.Release(entry.PlaylistID)

	playlist, err := e.playlistRepo.GetPlaylist(entry.PlaylistID)
	if err != nil {
		return &PlaylistOutcome{
			PlaylistID: entry.PlaylistID,
			ExternalID: entry.ExternalID,
			Status:     OutcomeFailed,
			Reason:     err.Error(),
		}
	}
	if playlist == nil {
		// Deleted between prepare and run.
		return &PlaylistOutcome{
			PlaylistID: entry.PlaylistID,
			ExternalID: entry.ExternalID,
			Status:     OutcomeSkipped,
			Reason:     ReasonNotFound,
		}
	}

	return e.refreshPlaylist(ctx, playlist)
}

// RefreshByID refreshes a single playlist outside a batch (manual
// trigger), collapsed through the same registry as scheduled runs.
func (e *Engine) RefreshByID(ctx context.Context, playlistID string) (*PlaylistOutcome, error) {
	playlist, err := e.playlistRepo.GetPlaylist(playlistID)
	if err != nil {
		return nil, err
	}
	if playlist == nil {
		return nil, fmt.Errorf("playlist %s not found", playlistID)
	}

	if !e.registry.Acquire(playlist.ID) {
		return &PlaylistOutcome{
			PlaylistID: playlist.ID,
			ExternalID: playlist.ExternalID,
			Status:     OutcomeSkipped,
			Reason:     ReasonInFlight,
		}, nil
	}
	defer e.registry.Release(playlist.ID)

	return e.refreshPlaylist(ctx, playlist), nil
}

func (e *Engine) refreshPlaylist(ctx context.Context, playlist *database.Playlist) *PlaylistOutcome {
	outcome := &PlaylistOutcome{
		PlaylistID: playlist.ID,
		ExternalID: playlist.ExternalID,
	}

	if reason := e.skipReason(playlist.ExternalID); reason != "" {
		outcome.Status = OutcomeSkipped
		outcome.Reason = reason
		return outcome
	}

	now := time.Now()
	result, err := e.client.FetchAll(ctx, playlist.ExternalID, playlist.LastEtag, e.trackCap)

	switch {
	case errors.Is(err, catalog.ErrUnchanged):
		if touchErr := e.playlistRepo.TouchRefreshedOn(playlist.ID, now); touchErr != nil {
			outcome.Status = OutcomeFailed
			outcome.Reason = touchErr.Error()
			return outcome
		}
		outcome.Status = OutcomeSkipped
		outcome.Reason = ReasonUnchanged
		return outcome

	case errors.Is(err, catalog.ErrGone):
		return e.removePlaylist(playlist, outcome, ReasonGone)

	case errors.Is(err, catalog.ErrForbidden):
		// Quota or access problem: surface it, leave the playlist
		// untouched so a later day retries it.
		outcome.Status = OutcomeFailed
		outcome.Reason = ReasonForbidden
		return outcome

	case err != nil:
		outcome.Status = OutcomeFailed
		outcome.Reason = err.Error()
		return outcome
	}

	// Eligibility required a nonzero historical track count, so an empty
	// result is a removal signal, not a transient glitch.
	if len(result.Items) == 0 {
		return e.removePlaylist(playlist, outcome, ReasonEmptyResult)
	}

	deltaResult, err := e.delta.Run(playlist.ID, result.Items, now)
	if err != nil {
		outcome.Status = OutcomeFailed
		outcome.Reason = err.Error()
		return outcome
	}

	if err := e.playlistRepo.UpdateRefreshBookkeeping(playlist.ID, result.Etag, deltaResult.Unique, now); err != nil {
		outcome.Status = OutcomeFailed
		outcome.Reason = err.Error()
		return outcome
	}

	outcome.Status = OutcomeRefreshed
	outcome.ItemCount = deltaResult.Unique
	outcome.Duplicates = deltaResult.Duplicates
	if result.Truncated {
		outcome.PartialRefresh = true
		outcome.Reason = ReasonLimitExceeded
	}

	return outcome
}

func (e *Engine) removePlaylist(playlist *database.Playlist, outcome *PlaylistOutcome, reason string) *PlaylistOutcome {
	if err := e.playlistRepo.RemovePlaylist(playlist.ID); err != nil {
		// A failed cascade leaves the playlist in place for a retry;
		// never report a half-deleted playlist as removed.
		outcome.Status = OutcomeFailed
		outcome.Reason = err.Error()
		return outcome
	}

	slog.Info("Playlist removed", "playlist", playlist.ID, "external_id", playlist.ExternalID, "reason", reason)
	outcome.Status = OutcomeRemoved
	outcome.Reason = reason
	return outcome
}

// skipReason classifies ids that must never be fetched. Mix ids are
// catalog-generated endless compilations with no stable content.
func (e *Engine) skipReason(externalID string) string {
	if externalID == "" {
		return ReasonMissingID
	}
	for _, prefix := range e.mixPrefixes {
		if strings.HasPrefix(externalID, prefix) {
			return ReasonMixPlaylist
		}
	}
	if !externalIDPattern.MatchString(externalID) {
		return ReasonMalformedID
	}
	return ""
}
