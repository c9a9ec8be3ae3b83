package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrNotFound is returned when no manifest exists for a (dayKey, slot)
// pair. The run stage treats this as a cue to fall back to re-querying
// eligibility, not as a hard failure.
var ErrNotFound = errors.New("manifest not found")

// Entry is one selected playlist in a batch manifest.
type Entry struct {
	PlaylistID      string     `json:"playlistId"`
	ExternalID      string     `json:"externalId"`
	Title           string     `json:"title"`
	LastRefreshedOn *time.Time `json:"lastRefreshedOn"`
	TrackCount      int        `json:"trackCount"`
}

// Manifest is the ordered selection produced by the prepare stage for one
// slot and consumed by the run stage.
type Manifest struct {
	DayKey     string    `json:"dayKey"`
	SlotIndex  int       `json:"slotIndex"`
	Entries    []Entry   `json:"entries"`
	PreparedAt time.Time `json:"preparedAt"`
}

// Store persists manifests keyed by (dayKey, slotIndex).
type Store interface {
	Write(m *Manifest) (location string, err error)
	Read(dayKey string, slotIndex int) (*Manifest, error)
}

// FileStore keeps manifests as JSON files under a base directory. Suited
// to single-instance deployments where prepare and run share a disk.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(dayKey string, slotIndex int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s-slot%02d.json", dayKey, slotIndex))
}

func (s *FileStore) Write(m *Manifest) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create manifest directory: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal manifest: %w", err)
	}

	path := s.path(m.DayKey, m.SlotIndex)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write manifest file: %w", err)
	}

	return path, nil
}

func (s *FileStore) Read(dayKey string, slotIndex int) (*Manifest, error) {
	data, err := os.ReadFile(s.path(dayKey, slotIndex))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest file: %w", err)
	}

	return &m, nil
}
