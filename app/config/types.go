package config

// Policy holds the tunable behavior of the refresh pipeline. It is loaded
// from a single YAML file so deployments can adjust schedule density and
// catalog etiquette without a rebuild.
type Policy struct {
	Schedule  SchedulePolicy  `yaml:"schedule"`
	Selection SelectionPolicy `yaml:"selection"`
	Refresh   RefreshPolicy   `yaml:"refresh"`
	Catalog   CatalogPolicy   `yaml:"catalog"`
}

type SchedulePolicy struct {
	SlotsPerDay        int    `yaml:"slots_per_day"`
	FirstSlotTime      string `yaml:"first_slot_time"` // "HH:MM" in the configured timezone
	SlotSpacingMinutes int    `yaml:"slot_spacing_minutes"`
	PrepareDelayMin    int    `yaml:"prepare_to_run_delay_minutes"`
	PostbatchDelayMin  int    `yaml:"postbatch_delay_minutes"`
	TickSeconds        int    `yaml:"tick_seconds"`
	StaleRunningMin    int    `yaml:"stale_running_minutes"`
	RetentionDays      int    `yaml:"job_retention_days"`
}

type SelectionPolicy struct {
	BatchSize     int      `yaml:"batch_size"`
	MinTrackCount int      `yaml:"min_track_count"`
	MixPrefixes   []string `yaml:"mix_prefixes"`
}

type RefreshPolicy struct {
	TrackCap  int `yaml:"track_cap"`
	ChunkSize int `yaml:"chunk_size"`
}

type CatalogPolicy struct {
	PageSize          int     `yaml:"page_size"`
	MaxRetries        int     `yaml:"max_retries"`
	InitialBackoffSec int     `yaml:"initial_backoff_seconds"`
	RequestTimeoutSec int     `yaml:"request_timeout_seconds"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}
