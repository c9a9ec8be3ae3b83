package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var _ TrackRepository = (*trackRepository)(nil)

type trackRepository struct {
	db *DB
}

func NewTrackRepository(db *DB) TrackRepository {
	return &trackRepository{db: db}
}

// UpsertTracks writes fetched items into the global tracks table in
// chunks. The external id is the dedup key: an existing row is refreshed
// in place, never duplicated.
func (r *trackRepository) UpsertTracks(tracks []TrackUpsert, chunkSize int, now time.Time) error {
	for _, chunk := range chunkTracks(tracks, chunkSize) {
		if err := r.upsertChunk(chunk, now); err != nil {
			return err
		}
	}
	return nil
}

func (r *trackRepository) upsertChunk(tracks []TrackUpsert, now time.Time) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin upsert transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO tracks (id, external_id, title, artist, cover_url, duration, sync_status, last_synced_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (external_id) DO UPDATE SET
			title = excluded.title,
			artist = excluded.artist,
			cover_url = excluded.cover_url,
			duration = excluded.duration,
			sync_status = excluded.sync_status,
			last_synced_at = excluded.last_synced_at,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare track upsert: %w", err)
	}
	defer stmt.Close()

	for _, track := range tracks {
		_, err := stmt.Exec(uuid.NewString(), track.ExternalID, track.Title, track.Artist,
			track.CoverURL, track.Duration, SyncStatusActive, now.UTC(), now.UTC(), now.UTC())
		if err != nil {
			return fmt.Errorf("failed to upsert track %s: %w", track.ExternalID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit track upsert: %w", err)
	}

	return nil
}

// ResolveTrackIDs maps external media identifiers to internal track ids
// with chunked IN queries.
func (r *trackRepository) ResolveTrackIDs(externalIDs []string, chunkSize int) (map[string]string, error) {
	resolved := make(map[string]string, len(externalIDs))

	for _, chunk := range chunkStrings(externalIDs, chunkSize) {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}

		rows, err := r.db.Query(`SELECT external_id, id FROM tracks WHERE external_id IN (`+placeholders+`)`, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve track ids: %w", err)
		}

		for rows.Next() {
			var externalID, id string
			if err := rows.Scan(&externalID, &id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan track id row: %w", err)
			}
			resolved[externalID] = id
		}

		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("error iterating track id rows: %w", err)
		}
		rows.Close()
	}

	return resolved, nil
}

// ReplaceLinks rebuilds the playlist_tracks rows for one playlist: delete
// all, then insert the fresh set in chunks. Duplicate (playlist, track)
// pairs keep the lowest position. Runs in a single transaction so a
// failed rebuild never leaves the playlist half-linked.
func (r *trackRepository) ReplaceLinks(playlistID string, links []Link, chunkSize int, now time.Time) error {
	deduped := dedupeLinks(links)

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin link rebuild transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM playlist_tracks WHERE playlist_id = ?`, playlistID); err != nil {
		return fmt.Errorf("failed to clear links for playlist %s: %w", playlistID, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO playlist_tracks (playlist_id, track_id, position, added_at)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare link insert: %w", err)
	}
	defer stmt.Close()

	for i, link := range deduped {
		if _, err := stmt.Exec(playlistID, link.TrackID, link.Position, now.UTC()); err != nil {
			return fmt.Errorf("failed to insert link %d for playlist %s: %w", i, playlistID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit link rebuild: %w", err)
	}

	return nil
}

func (r *trackRepository) GetLinks(playlistID string) ([]PlaylistTrack, error) {
	rows, err := r.db.Query(`
		SELECT playlist_id, track_id, position, added_at
		FROM playlist_tracks
		WHERE playlist_id = ?
		ORDER BY position ASC
	`, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to get links: %w", err)
	}
	defer rows.Close()

	var links []PlaylistTrack
	for rows.Next() {
		var link PlaylistTrack
		if err := rows.Scan(&link.PlaylistID, &link.TrackID, &link.Position, &link.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan link row: %w", err)
		}
		links = append(links, link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating link rows: %w", err)
	}

	return links, nil
}

func (r *trackRepository) GetPlaylistTracks(playlistID string) ([]Track, error) {
	rows, err := r.db.Query(`
		SELECT t.id, t.external_id, t.title, t.artist, t.cover_url, t.duration,
		       t.sync_status, t.last_synced_at, t.playlist_id, t.created_at, t.updated_at
		FROM tracks t
		JOIN playlist_tracks pt ON pt.track_id = t.id
		WHERE pt.playlist_id = ?
		ORDER BY pt.position ASC
	`, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist tracks: %w", err)
	}
	defer rows.Close()

	var tracks []Track
	for rows.Next() {
		var t Track
		err := rows.Scan(&t.ID, &t.ExternalID, &t.Title, &t.Artist, &t.CoverURL,
			&t.Duration, &t.SyncStatus, &t.LastSyncedAt, &t.PlaylistID, &t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track row: %w", err)
		}
		tracks = append(tracks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating track rows: %w", err)
	}

	return tracks, nil
}

func (r *trackRepository) GetTrackByExternalID(externalID string) (*Track, error) {
	var t Track
	err := r.db.QueryRow(`
		SELECT id, external_id, title, artist, cover_url, duration, sync_status, last_synced_at, playlist_id, created_at, updated_at
		FROM tracks
		WHERE external_id = ?
	`, externalID).Scan(&t.ID, &t.ExternalID, &t.Title, &t.Artist, &t.CoverURL,
		&t.Duration, &t.SyncStatus, &t.LastSyncedAt, &t.PlaylistID, &t.CreatedAt, &t.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get track by external id: %w", err)
	}

	return &t, nil
}

func (r *trackRepository) GetTrackCount() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM tracks`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get track count: %w", err)
	}
	return count, nil
}

func dedupeLinks(links []Link) []Link {
	best := make(map[string]int, len(links))
	for _, link := range links {
		if pos, ok := best[link.TrackID]; !ok || link.Position < pos {
			best[link.TrackID] = link.Position
		}
	}

	deduped := make([]Link, 0, len(best))
	seen := make(map[string]bool, len(best))
	for _, link := range links {
		if seen[link.TrackID] {
			continue
		}
		seen[link.TrackID] = true
		deduped = append(deduped, Link{TrackID: link.TrackID, Position: best[link.TrackID]})
	}

	return deduped
}

func chunkTracks(tracks []TrackUpsert, size int) [][]TrackUpsert {
	var chunks [][]TrackUpsert
	for start := 0; start < len(tracks); start += size {
		end := min(start+size, len(tracks))
		chunks = append(chunks, tracks[start:end])
	}
	return chunks
}

func chunkStrings(values []string, size int) [][]string {
	var chunks [][]string
	for start := 0; start < len(values); start += size {
		end := min(start+size, len(values))
		chunks = append(chunks, values[start:end])
	}
	return chunks
}
