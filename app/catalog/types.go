package catalog

import "errors"

// Sentinel outcomes surfaced to the refresh engine. Transient failures
// (5xx, network, rate limit after retry exhaustion) come back as ordinary
// wrapped errors.
var (
	// ErrUnchanged: the validator still matches (HTTP 304 on the first
	// page) - nothing to sync.
	ErrUnchanged = errors.New("playlist unchanged")
	// ErrGone: the catalog no longer serves this id (HTTP 404/410).
	ErrGone = errors.New("playlist permanently unavailable")
	// ErrForbidden: quota or access problem (HTTP 403). The playlist is
	// kept and retried on a later day.
	ErrForbidden = errors.New("playlist access forbidden")
)

// Item is one entry of a catalog playlist page.
type Item struct {
	MediaID      string `json:"mediaId"`
	Title        string `json:"title"`
	CreatorName  string `json:"creatorName"`
	ThumbnailURL string `json:"thumbnailUrl"`
	Position     int    `json:"position"`
}

// Page is a single decoded catalog response.
type Page struct {
	Items         []Item `json:"items"`
	NextPageToken string `json:"nextPageToken"`
	TotalResults  int    `json:"totalResults"`
	Etag          string `json:"-"`
}

// Result is the accumulated outcome of a full paginated fetch.
type Result struct {
	Items []Item
	// Etag is the list-level validator from the first full page, stored
	// for the next conditional fetch.
	Etag string
	// Truncated is set when pagination stopped at the item cap.
	Truncated bool
	// TotalResults is the catalog's count hint, when present.
	TotalResults int
	// Pages is the number of pages fetched.
	Pages int
}
