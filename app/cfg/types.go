package cfg

import "time"

type Cfg struct {
	// Storage configuration
	DBPath string

	// Application configuration
	PolicyFile       string
	Port             string
	APIAccessKey     string
	ManifestDir      string
	ManifestStore    string
	RedisAddr        string
	DisabledJobTypes []string

	// Catalog API configuration
	CatalogBaseURL string
	CatalogAPIKey  string

	// Application metadata
	UserAgent string
	Timezone  string
	Location  *time.Location
	Debug     bool
	Version   string
}
