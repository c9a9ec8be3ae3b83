package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

var _ PlaylistRepository = (*playlistRepository)(nil)

type playlistRepository struct {
	db *DB
}

func NewPlaylistRepository(db *DB) PlaylistRepository {
	return &playlistRepository{db: db}
}

const playlistColumns = `id, external_id, title, last_etag, last_refreshed_on, item_count, region, category, sync_status, created_at, updated_at`

func (r *playlistRepository) GetPlaylist(playlistID string) (*Playlist, error) {
	return r.getPlaylist(`SELECT `+playlistColumns+` FROM playlists WHERE id = ?`, playlistID)
}

func (r *playlistRepository) GetPlaylistByExternalID(externalID string) (*Playlist, error) {
	return r.getPlaylist(`SELECT `+playlistColumns+` FROM playlists WHERE external_id = ?`, externalID)
}

func (r *playlistRepository) getPlaylist(query string, arg any) (*Playlist, error) {
	var p Playlist
	err := r.db.QueryRow(query, arg).Scan(
		&p.ID, &p.ExternalID, &p.Title, &p.LastEtag, &p.LastRefreshedOn,
		&p.ItemCount, &p.Region, &p.Category, &p.SyncStatus, &p.CreatedAt, &p.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist: %w", err)
	}

	return &p, nil
}

func (r *playlistRepository) InsertPlaylist(playlist *Playlist) error {
	_, err := r.db.Exec(`
		INSERT INTO playlists (id, external_id, title, last_etag, last_refreshed_on, item_count, region, category, sync_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, playlist.ID, playlist.ExternalID, playlist.Title, playlist.LastEtag,
		playlist.LastRefreshedOn, playlist.ItemCount, playlist.Region,
		playlist.Category, playlist.SyncStatus, playlist.CreatedAt.UTC(), playlist.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert playlist: %w", err)
	}
	return nil
}

func (r *playlistRepository) ListPlaylists(limit, offset int) ([]Playlist, error) {
	rows, err := r.db.Query(`
		SELECT `+playlistColumns+`
		FROM playlists
		ORDER BY title ASC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}
	defer rows.Close()

	return scanPlaylists(rows)
}

// SelectEligible returns playlists due for refresh: active, with a real
// external id that is not a catalog-generated mix, holding at least
// minTrackCount items. Longest-unrefreshed first, never-refreshed before
// that, ties broken randomly so the same playlists do not hog a slot.
func (r *playlistRepository) SelectEligible(minTrackCount int, mixPrefixes []string, limit int) ([]Playlist, error) {
	query := `
		SELECT ` + playlistColumns + `
		FROM playlists
		WHERE sync_status = ?
		  AND external_id != ''
		  AND item_count >= ?`

	args := []any{SyncStatusActive, minTrackCount}
	for _, prefix := range mixPrefixes {
		query += `
		  AND external_id NOT LIKE ? ESCAPE '\'`
		args = append(args, escapeLike(prefix)+"%")
	}

	query += `
		ORDER BY last_refreshed_on IS NOT NULL, last_refreshed_on ASC, RANDOM()
		LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select eligible playlists: %w", err)
	}
	defer rows.Close()

	return scanPlaylists(rows)
}

func (r *playlistRepository) UpdateRefreshBookkeeping(playlistID string, etag string, itemCount int, now time.Time) error {
	_, err := r.db.Exec(`
		UPDATE playlists
		SET last_etag = ?, item_count = ?, last_refreshed_on = ?, updated_at = ?
		WHERE id = ?
	`, etag, itemCount, now.UTC(), now.UTC(), playlistID)
	if err != nil {
		return fmt.Errorf("failed to update refresh bookkeeping: %w", err)
	}
	return nil
}

// TouchRefreshedOn records a cache-validated (unchanged) refresh: only the
// refresh timestamp moves, counts and etag stay as they were.
func (r *playlistRepository) TouchRefreshedOn(playlistID string, now time.Time) error {
	_, err := r.db.Exec(`
		UPDATE playlists
		SET last_refreshed_on = ?, updated_at = ?
		WHERE id = ?
	`, now.UTC(), now.UTC(), playlistID)
	if err != nil {
		return fmt.Errorf("failed to touch refreshed_on: %w", err)
	}
	return nil
}

// RemovePlaylist cascade-deletes a playlist the catalog no longer serves.
// Order matters: links, likes, category links, views, then the playlist
// row. Tracks are shared across playlists and are never deleted here; rows
// still carrying the legacy playlist_id reference are detached instead.
// The whole cascade runs in one transaction so a failed step leaves the
// playlist intact for a later retry.
func (r *playlistRepository) RemovePlaylist(playlistID string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin removal transaction: %w", err)
	}
	defer tx.Rollback()

	steps := []struct {
		name  string
		query string
	}{
		{"playlist_tracks", `DELETE FROM playlist_tracks WHERE playlist_id = ?`},
		{"playlist_likes", `DELETE FROM playlist_likes WHERE playlist_id = ?`},
		{"playlist_categories", `DELETE FROM playlist_categories WHERE playlist_id = ?`},
		{"playlist_views", `DELETE FROM playlist_views WHERE playlist_id = ?`},
		{"tracks detach", `UPDATE tracks SET playlist_id = NULL WHERE playlist_id = ?`},
		{"playlist", `DELETE FROM playlists WHERE id = ?`},
	}

	for _, step := range steps {
		if _, err := tx.Exec(step.query, playlistID); err != nil {
			return fmt.Errorf("failed to remove %s for playlist %s: %w", step.name, playlistID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit playlist removal: %w", err)
	}

	return nil
}

func (r *playlistRepository) GetPlaylistCount() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM playlists`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get playlist count: %w", err)
	}
	return count, nil
}

func (r *playlistRepository) GetActivePlaylistCount() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM playlists WHERE sync_status = ?`, SyncStatusActive).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get active playlist count: %w", err)
	}
	return count, nil
}

func scanPlaylists(rows *sql.Rows) ([]Playlist, error) {
	var playlists []Playlist
	for rows.Next() {
		var p Playlist
		err := rows.Scan(
			&p.ID, &p.ExternalID, &p.Title, &p.LastEtag, &p.LastRefreshedOn,
			&p.ItemCount, &p.Region, &p.Category, &p.SyncStatus, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan playlist row: %w", err)
		}
		playlists = append(playlists, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating playlist rows: %w", err)
	}

	return playlists, nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
