package refresh

import (
	"fmt"
	"time"

	"github.com/nikolastojadinov/hajde-music-stream/app/catalog"
	"github.com/nikolastojadinov/hajde-music-stream/app/database"
)

// Delta reconciles a freshly fetched item list against the store for one
// playlist: global track upsert, id resolution, then a full rebuild of
// the playlist's link rows. After a successful run the playlist's links
// exactly match the fetched set, positions follow fetch order, and no
// duplicate (playlist, track) pair exists.
type Delta struct {
	trackRepo database.TrackRepository
	chunkSize int
}

type DeltaResult struct {
	// Unique is the number of distinct media ids synced.
	Unique int
	// Duplicates counts fetched occurrences dropped by keep-first dedup.
	Duplicates int
}

func NewDelta(trackRepo database.TrackRepository, chunkSize int) *Delta {
	if chunkSize == 0 {
		chunkSize = 200
	}
	return &Delta{
		trackRepo: trackRepo,
		chunkSize: chunkSize,
	}
}

func (d *Delta) Run(playlistID string, items []catalog.Item, now time.Time) (*DeltaResult, error) {
	unique, duplicates := dedupeItems(items)

	upserts := make([]database.TrackUpsert, len(unique))
	for i, item := range unique {
		upserts[i] = database.TrackUpsert{
			ExternalID: item.MediaID,
			Title:      item.Title,
			Artist:     item.CreatorName,
			CoverURL:   item.ThumbnailURL,
		}
	}

	if err := d.trackRepo.UpsertTracks(upserts, d.chunkSize, now); err != nil {
		return nil, fmt.Errorf("failed to upsert tracks: %w", err)
	}

	externalIDs := make([]string, len(unique))
	for i, item := range unique {
		externalIDs[i] = item.MediaID
	}

	resolved, err := d.trackRepo.ResolveTrackIDs(externalIDs, d.chunkSize)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve track ids: %w", err)
	}

	links := make([]database.Link, 0, len(unique))
	for position, item := range unique {
		trackID, ok := resolved[item.MediaID]
		if !ok {
			return nil, fmt.Errorf("track %s missing after upsert", item.MediaID)
		}
		links = append(links, database.Link{TrackID: trackID, Position: position})
	}

	if err := d.trackRepo.ReplaceLinks(playlistID, links, d.chunkSize, now); err != nil {
		return nil, fmt.Errorf("failed to rebuild links: %w", err)
	}

	return &DeltaResult{Unique: len(unique), Duplicates: duplicates}, nil
}

// dedupeItems keeps the first occurrence of each media id, preserving
// fetch order.
func dedupeItems(items []catalog.Item) ([]catalog.Item, int) {
	seen := make(map[string]bool, len(items))
	unique := make([]catalog.Item, 0, len(items))
	duplicates := 0

	for _, item := range items {
		if seen[item.MediaID] {
			duplicates++
			continue
		}
		seen[item.MediaID] = true
		unique = append(unique, item)
	}

	return unique, duplicates
}
