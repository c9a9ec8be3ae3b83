package database

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewConnection(":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return db
}

func seedPlaylist(t *testing.T, repo PlaylistRepository, externalID string, itemCount int, lastRefreshedOn *time.Time) *Playlist {
	t.Helper()

	now := time.Now().UTC()
	playlist := &Playlist{
		ID:              uuid.NewString(),
		ExternalID:      externalID,
		Title:           "Playlist " + externalID,
		ItemCount:       itemCount,
		LastRefreshedOn: lastRefreshedOn,
		SyncStatus:      SyncStatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := repo.InsertPlaylist(playlist); err != nil {
		t.Fatalf("Failed to seed playlist: %v", err)
	}

	return playlist
}
