package refresh

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nikolastojadinov/hajde-music-stream/app/catalog"
	"github.com/nikolastojadinov/hajde-music-stream/app/database"
	"github.com/nikolastojadinov/hajde-music-stream/app/manifest"
)

// Shared fixtures for the refresh package tests: an in-memory store, a
// scripted catalog client and a fully wired engine.

func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.NewConnection(":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return db
}

func seedPlaylist(t *testing.T, repo database.PlaylistRepository, externalID string, itemCount int, etag string) *database.Playlist {
	t.Helper()

	now := time.Now().UTC()
	playlist := &database.Playlist{
		ID:         uuid.NewString(),
		ExternalID: externalID,
		Title:      "Playlist " + externalID,
		LastEtag:   etag,
		ItemCount:  itemCount,
		SyncStatus: database.SyncStatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := repo.InsertPlaylist(playlist); err != nil {
		t.Fatalf("Failed to seed playlist: %v", err)
	}

	return playlist
}

// fakeCatalog serves scripted responses per external id and records the
// validators it was called with.
type fakeCatalog struct {
	results    map[string]*catalog.Result
	errs       map[string]error
	calls      []string
	validators map[string]string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		results:    make(map[string]*catalog.Result),
		errs:       make(map[string]error),
		validators: make(map[string]string),
	}
}

func (f *fakeCatalog) FetchAll(_ context.Context, externalID string, etag string, _ int) (*catalog.Result, error) {
	f.calls = append(f.calls, externalID)
	f.validators[externalID] = etag

	if err, ok := f.errs[externalID]; ok {
		return nil, err
	}
	if result, ok := f.results[externalID]; ok {
		return result, nil
	}
	return &catalog.Result{}, nil
}

func items(mediaIDs ...string) []catalog.Item {
	list := make([]catalog.Item, len(mediaIDs))
	for i, id := range mediaIDs {
		list[i] = catalog.Item{MediaID: id, Title: "Track " + id, CreatorName: "Artist", Position: i}
	}
	return list
}

type engineFixture struct {
	db           *database.DB
	playlistRepo database.PlaylistRepository
	trackRepo    database.TrackRepository
	client       *fakeCatalog
	store        manifest.Store
	registry     *MemoryRegistry
	engine       *Engine
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	db := newTestDB(t)
	playlistRepo := database.NewPlaylistRepository(db)
	trackRepo := database.NewTrackRepository(db)
	client := newFakeCatalog()
	store := manifest.NewFileStore(t.TempDir())
	registry := NewMemoryRegistry(0)
	delta := NewDelta(trackRepo, 200)

	return &engineFixture{
		db:           db,
		playlistRepo: playlistRepo,
		trackRepo:    trackRepo,
		client:       client,
		store:        store,
		registry:     registry,
		engine:       NewEngine(playlistRepo, client, delta, registry, store, 500, 4, 3, []string{"RD"}),
	}
}

func (f *engineFixture) writeManifest(t *testing.T, dayKey string, slotIndex int, playlists ...*database.Playlist) {
	t.Helper()

	entries := make([]manifest.Entry, len(playlists))
	for i, playlist := range playlists {
		entries[i] = manifest.Entry{
			PlaylistID: playlist.ID,
			ExternalID: playlist.ExternalID,
			Title:      playlist.Title,
			TrackCount: playlist.ItemCount,
		}
	}

	_, err := f.store.Write(&manifest.Manifest{
		DayKey:     dayKey,
		SlotIndex:  slotIndex,
		Entries:    entries,
		PreparedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Failed to write manifest: %v", err)
	}
}
