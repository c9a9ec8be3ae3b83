package api

import (
	"encoding/json"
	"time"
)

type jobResponse struct {
	ID          string          `json:"id"`
	SlotIndex   int             `json:"slotIndex"`
	Type        string          `json:"type"`
	ScheduledAt time.Time       `json:"scheduledAt"`
	DayKey      string          `json:"dayKey"`
	Status      string          `json:"status"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type playlistResponse struct {
	ID              string          `json:"id"`
	ExternalID      string          `json:"externalId"`
	Title           string          `json:"title"`
	LastRefreshedOn *time.Time      `json:"lastRefreshedOn"`
	ItemCount       int             `json:"itemCount"`
	Region          string          `json:"region,omitempty"`
	Category        string          `json:"category,omitempty"`
	SyncStatus      string          `json:"syncStatus"`
	Tracks          []trackResponse `json:"tracks,omitempty"`
}

type trackResponse struct {
	ID         string `json:"id"`
	ExternalID string `json:"externalId"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	CoverURL   string `json:"coverUrl,omitempty"`
	Duration   int    `json:"duration,omitempty"`
}
