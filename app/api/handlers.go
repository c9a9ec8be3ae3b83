package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nikolastojadinov/hajde-music-stream/app/cfg"
	"github.com/nikolastojadinov/hajde-music-stream/app/database"
	"github.com/nikolastojadinov/hajde-music-stream/app/refresh"
)

type Handler struct {
	playlistRepo database.PlaylistRepository
	trackRepo    database.TrackRepository
	jobRepo      database.JobRepository
	engine       *refresh.Engine
}

func NewHandler(playlistRepo database.PlaylistRepository, trackRepo database.TrackRepository,
	jobRepo database.JobRepository, engine *refresh.Engine) *Handler {
	return &Handler{
		playlistRepo: playlistRepo,
		trackRepo:    trackRepo,
		jobRepo:      jobRepo,
		engine:       engine,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]any{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"version":   cfg.Get().Version,
	}

	if count, err := h.playlistRepo.GetPlaylistCount(); err == nil {
		health["playlists"] = count
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := map[string]any{}

	if count, err := h.playlistRepo.GetPlaylistCount(); err == nil {
		stats["playlists"] = count
	}
	if count, err := h.playlistRepo.GetActivePlaylistCount(); err == nil {
		stats["active_playlists"] = count
	}
	if count, err := h.trackRepo.GetTrackCount(); err == nil {
		stats["tracks"] = count
	}
	if counts, err := h.jobRepo.CountByStatus(); err == nil {
		stats["jobs"] = counts
	}

	c.JSON(http.StatusOK, stats)
}

// ListJobs returns the jobs for one day key (default: today in the
// configured timezone), the refresh pipeline's audit trail.
func (h *Handler) ListJobs(c *gin.Context) {
	dayKey := c.Query("day")
	if dayKey == "" {
		dayKey = time.Now().In(cfg.Get().Location).Format("2006-01-02")
	}

	jobs, err := h.jobRepo.ListByDayKey(dayKey)
	if err != nil {
		slog.Error("Database error", "operation", "list_jobs", "day_key", dayKey, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	responses := make([]jobResponse, len(jobs))
	for i, job := range jobs {
		responses[i] = toJobResponse(job)
	}

	c.JSON(http.StatusOK, gin.H{"dayKey": dayKey, "jobs": responses})
}

func (h *Handler) GetJob(c *gin.Context) {
	job, err := h.jobRepo.GetJob(c.Param("id"))
	if err != nil {
		slog.Error("Database error", "operation", "get_job", "job", c.Param("id"), "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if job == nil {
		c.Status(http.StatusNotFound)
		return
	}

	c.JSON(http.StatusOK, toJobResponse(*job))
}

func (h *Handler) ListPlaylists(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit < 1 || limit > 200 {
		limit = 50
	}

	playlists, err := h.playlistRepo.ListPlaylists(limit, offset)
	if err != nil {
		slog.Error("Database error", "operation", "list_playlists", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	responses := make([]playlistResponse, len(playlists))
	for i, playlist := range playlists {
		responses[i] = toPlaylistResponse(playlist, nil)
	}

	c.JSON(http.StatusOK, gin.H{"playlists": responses})
}

func (h *Handler) GetPlaylist(c *gin.Context) {
	playlist, err := h.playlistRepo.GetPlaylist(c.Param("id"))
	if err != nil {
		slog.Error("Database error", "operation", "get_playlist", "playlist", c.Param("id"), "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if playlist == nil {
		c.Status(http.StatusNotFound)
		return
	}

	tracks, err := h.trackRepo.GetPlaylistTracks(playlist.ID)
	if err != nil {
		slog.Error("Database error", "operation", "get_playlist_tracks", "playlist", playlist.ID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, toPlaylistResponse(*playlist, tracks))
}

// TriggerRefresh refreshes one playlist outside the schedule. Duplicate
// triggers collapse through the engine's registry.
func (h *Handler) TriggerRefresh(c *gin.Context) {
	outcome, err := h.engine.RefreshByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		slog.Error("Manual refresh failed", "playlist", c.Param("id"), "error", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, outcome)
}

func toJobResponse(job database.RefreshJob) jobResponse {
	resp := jobResponse{
		ID:          job.ID,
		SlotIndex:   job.SlotIndex,
		Type:        job.Type,
		ScheduledAt: job.ScheduledAt,
		DayKey:      job.DayKey,
		Status:      job.Status,
		UpdatedAt:   job.UpdatedAt,
	}
	if json.Valid([]byte(job.Payload)) {
		resp.Payload = json.RawMessage(job.Payload)
	}
	return resp
}

func toPlaylistResponse(playlist database.Playlist, tracks []database.Track) playlistResponse {
	resp := playlistResponse{
		ID:              playlist.ID,
		ExternalID:      playlist.ExternalID,
		Title:           playlist.Title,
		LastRefreshedOn: playlist.LastRefreshedOn,
		ItemCount:       playlist.ItemCount,
		Region:          playlist.Region,
		Category:        playlist.Category,
		SyncStatus:      playlist.SyncStatus,
	}

	for _, track := range tracks {
		resp.Tracks = append(resp.Tracks, trackResponse{
			ID:         track.ID,
			ExternalID: track.ExternalID,
			Title:      track.Title,
			Artist:     track.Artist,
			CoverURL:   track.CoverURL,
			Duration:   track.Duration,
		})
	}

	return resp
}
