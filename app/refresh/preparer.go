package refresh

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nikolastojadinov/hajde-music-stream/app/database"
	"github.com/nikolastojadinov/hajde-music-stream/app/manifest"
)

// Preparer materializes the ordered batch manifest for one slot: the
// playlists most overdue for a refresh, capped at the batch size.
type Preparer struct {
	playlistRepo  database.PlaylistRepository
	store         manifest.Store
	batchSize     int
	minTrackCount int
	mixPrefixes   []string
}

// PrepareOutcome is recorded in the prepare job's payload. The entries
// double as the run stage's second fallback when the manifest store is
// unreachable at run time.
type PrepareOutcome struct {
	DayKey    string           `json:"dayKey"`
	SlotIndex int              `json:"slotIndex"`
	Selected  int              `json:"selected"`
	Location  string           `json:"location"`
	Entries   []manifest.Entry `json:"entries"`
}

func NewPreparer(playlistRepo database.PlaylistRepository, store manifest.Store,
	batchSize, minTrackCount int, mixPrefixes []string) *Preparer {
	return &Preparer{
		playlistRepo:  playlistRepo,
		store:         store,
		batchSize:     batchSize,
		minTrackCount: minTrackCount,
		mixPrefixes:   mixPrefixes,
	}
}

func (p *Preparer) Prepare(dayKey string, slotIndex int, now time.Time) (*PrepareOutcome, error) {
	playlists, err := p.playlistRepo.SelectEligible(p.minTrackCount, p.mixPrefixes, p.batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to select eligible playlists: %w", err)
	}

	if len(playlists) < p.batchSize {
		slog.Info("Fewer eligible playlists than batch size", "day_key", dayKey, "slot", slotIndex,
			"eligible", len(playlists), "batch_size", p.batchSize)
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

	m := &manifest.Manifest{
		DayKey:     dayKey,
		SlotIndex:  slotIndex,
		Entries:    entries,
		PreparedAt: now.UTC(),
	}

	location, err := p.store.Write(m)
	if err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}

	return &PrepareOutcome{
		DayKey:    dayKey,
		SlotIndex: slotIndex,
		Selected:  len(entries),
		Location:  location,
		Entries:   entries,
	}, nil
}
