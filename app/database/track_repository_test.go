package database

import (
	"testing"
	"time"
)

func TestTrackRepository_UpsertTracksRefreshesInPlace(t *testing.T) {
	repo := NewTrackRepository(newTestDB(t))

	now := time.Now()
	err := repo.UpsertTracks([]TrackUpsert{
		{ExternalID: "media-1", Title: "Original Title", Artist: "Artist A"},
	}, 100, now)
	if err != nil {
		t.Fatalf("UpsertTracks failed: %v", err)
	}

	first, err := repo.GetTrackByExternalID("media-1")
	if err != nil {
		t.Fatalf("GetTrackByExternalID failed: %v", err)
	}
	if first == nil {
		t.Fatal("Expected track after upsert")
	}

	err = repo.UpsertTracks([]TrackUpsert{
		{ExternalID: "media-1", Title: "Renamed Title", Artist: "Artist A"},
	}, 100, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Second UpsertTracks failed: %v", err)
	}

	second, err := repo.GetTrackByExternalID("media-1")
	if err != nil {
		t.Fatalf("GetTrackByExternalID failed: %v", err)
	}
	if second.ID != first.ID {
		t.Error("Expected upsert to keep the original track id")
	}
	if second.Title != "Renamed Title" {
		t.Errorf("Expected refreshed title, got %q", second.Title)
	}

	count, err := repo.GetTrackCount()
	if err != nil {
		t.Fatalf("GetTrackCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected a single track row, got %d", count)
	}
}

func TestTrackRepository_UpsertTracksChunked(t *testing.T) {
	repo := NewTrackRepository(newTestDB(t))

	tracks := make([]TrackUpsert, 7)
	ids := make([]string, 7)
	for i := range tracks {
		id := "media-chunk-" + string(rune('a'+i))
		tracks[i] = TrackUpsert{ExternalID: id, Title: "Track"}
		ids[i] = id
	}

	if err := repo.UpsertTracks(tracks, 3, time.Now()); err != nil {
		t.Fatalf("UpsertTracks failed: %v", err)
	}

	resolved, err := repo.ResolveTrackIDs(ids, 3)
	if err != nil {
		t.Fatalf("ResolveTrackIDs failed: %v", err)
	}
	if len(resolved) != 7 {
		t.Errorf("Expected all 7 ids resolved, got %d", len(resolved))
	}
}

func TestTrackRepository_ResolveTrackIDsSkipsUnknown(t *testing.T) {
	repo := NewTrackRepository(newTestDB(t))

	if err := repo.UpsertTracks([]TrackUpsert{{ExternalID: "media-1", Title: "One"}}, 100, time.Now()); err != nil {
		t.Fatalf("UpsertTracks failed: %v", err)
	}

	resolved, err := repo.ResolveTrackIDs([]string{"media-1", "media-unknown"}, 100)
	if err != nil {
		t.Fatalf("ResolveTrackIDs failed: %v", err)
	}
	if len(resolved) != 1 {
		t.Fatalf("Expected 1 resolved id, got %d", len(resolved))
	}
	if _, ok := resolved["media-unknown"]; ok {
		t.Error("Expected unknown id to be absent from the result")
	}
}

func TestTrackRepository_ReplaceLinksRebuilds(t *testing.T) {
	db := newTestDB(t)
	repo := NewTrackRepository(db)
	playlist := seedPlaylist(t, NewPlaylistRepository(db), "PLlinks000000000aa", 3, nil)

	now := time.Now()
	err := repo.UpsertTracks([]TrackUpsert{
		{ExternalID: "media-1", Title: "One"},
		{ExternalID: "media-2", Title: "Two"},
		{ExternalID: "media-3", Title: "Three"},
	}, 100, now)
	if err != nil {
		t.Fatalf("UpsertTracks failed: %v", err)
	}
	ids, err := repo.ResolveTrackIDs([]string{"media-1", "media-2", "media-3"}, 100)
	if err != nil {
		t.Fatalf("ResolveTrackIDs failed: %v", err)
	}

	err = repo.ReplaceLinks(playlist.ID, []Link{
		{TrackID: ids["media-1"], Position: 0},
		{TrackID: ids["media-2"], Position: 1},
		{TrackID: ids["media-3"], Position: 2},
	}, 100, now)
	if err != nil {
		t.Fatalf("ReplaceLinks failed: %v", err)
	}

	// Rebuild with a different, smaller set in a new order.
	err = repo.ReplaceLinks(playlist.ID, []Link{
		{TrackID: ids["media-3"], Position: 0},
		{TrackID: ids["media-1"], Position: 1},
	}, 100, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Second ReplaceLinks failed: %v", err)
	}

	links, err := repo.GetLinks(playlist.ID)
	if err != nil {
		t.Fatalf("GetLinks failed: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("Expected exactly 2 links after rebuild, got %d", len(links))
	}
	if links[0].TrackID != ids["media-3"] || links[0].Position != 0 {
		t.Errorf("Unexpected first link: %+v", links[0])
	}
	if links[1].TrackID != ids["media-1"] || links[1].Position != 1 {
		t.Errorf("Unexpected second link: %+v", links[1])
	}
}

func TestTrackRepository_ReplaceLinksDedupesByTrack(t *testing.T) {
	db := newTestDB(t)
	repo := NewTrackRepository(db)
	playlist := seedPlaylist(t, NewPlaylistRepository(db), "PLdedupe00000000aa", 2, nil)

	now := time.Now()
	if err := repo.UpsertTracks([]TrackUpsert{{ExternalID: "media-1", Title: "One"}}, 100, now); err != nil {
		t.Fatalf("UpsertTracks failed: %v", err)
	}
	ids, err := repo.ResolveTrackIDs([]string{"media-1"}, 100)
	if err != nil {
		t.Fatalf("ResolveTrackIDs failed: %v", err)
	}

	// The same track at two positions keeps only the earliest one.
	err = repo.ReplaceLinks(playlist.ID, []Link{
		{TrackID: ids["media-1"], Position: 4},
		{TrackID: ids["media-1"], Position: 1},
	}, 100, now)
	if err != nil {
		t.Fatalf("ReplaceLinks failed: %v", err)
	}

	links, err := repo.GetLinks(playlist.ID)
	if err != nil {
		t.Fatalf("GetLinks failed: %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("Expected 1 link after dedup, got %d", len(links))
	}
	if links[0].Position != 1 {
		t.Errorf("Expected lowest position kept, got %d", links[0].Position)
	}
}

func TestTrackRepository_GetPlaylistTracksOrdered(t *testing.T) {
	db := newTestDB(t)
	repo := NewTrackRepository(db)
	playlist := seedPlaylist(t, NewPlaylistRepository(db), "PLordered0000000aa", 2, nil)

	now := time.Now()
	err := repo.UpsertTracks([]TrackUpsert{
		{ExternalID: "media-1", Title: "First", Artist: "A"},
		{ExternalID: "media-2", Title: "Second", Artist: "B"},
	}, 100, now)
	if err != nil {
		t.Fatalf("UpsertTracks failed: %v", err)
	}
	ids, err := repo.ResolveTrackIDs([]string{"media-1", "media-2"}, 100)
	if err != nil {
		t.Fatalf("ResolveTrackIDs failed: %v", err)
	}

	err = repo.ReplaceLinks(playlist.ID, []Link{
		{TrackID: ids["media-2"], Position: 0},
		{TrackID: ids["media-1"], Position: 1},
	}, 100, now)
	if err != nil {
		t.Fatalf("ReplaceLinks failed: %v", err)
	}

	tracks, err := repo.GetPlaylistTracks(playlist.ID)
	if err != nil {
		t.Fatalf("GetPlaylistTracks failed: %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("Expected 2 tracks, got %d", len(tracks))
	}
	if tracks[0].Title != "Second" || tracks[1].Title != "First" {
		t.Errorf("Expected link-position order, got %q then %q", tracks[0].Title, tracks[1].Title)
	}
}
