package manifest

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nikolastojadinov/hajde-music-stream/app/database"
)

// DBStore keeps manifests in the batch_manifests table so multiple
// processor instances see the same selection regardless of which one ran
// the prepare stage.
type DBStore struct {
	db *database.DB
}

func NewDBStore(db *database.DB) *DBStore {
	return &DBStore{db: db}
}

func (s *DBStore) Write(m *Manifest) (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to marshal manifest: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO batch_manifests (day_key, slot_index, payload, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (day_key, slot_index) DO UPDATE SET
			payload = excluded.payload,
			created_at = excluded.created_at
	`, m.DayKey, m.SlotIndex, string(data), time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to store manifest: %w", err)
	}

	return fmt.Sprintf("batch_manifests/%s/%d", m.DayKey, m.SlotIndex), nil
}

func (s *DBStore) Read(dayKey string, slotIndex int) (*Manifest, error) {
	var payload string
	err := s.db.QueryRow(`
		SELECT payload FROM batch_manifests WHERE day_key = ? AND slot_index = ?
	`, dayKey, slotIndex).Scan(&payload)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest payload: %w", err)
	}

	return &m, nil
}
