package config

import "time"

// DefaultAPIURL is the ActiveAnts test environment.
const DefaultAPIURL = "https://shopapitest.activeants.nl"

// Tap represents the full config for one tap run. JSON config files are
// accepted as-is since yaml.v3 reads JSON.
type Tap struct {
	Username       string   `yaml:"username"`                   // Required
	Password       string   `yaml:"password"`                   // Required
	APIURL         string   `yaml:"api_url,omitempty"`          // Defaults to DefaultAPIURL
	ProjectIDs     []string `yaml:"project_ids,omitempty"`      // Informational
	StartDate      string   `yaml:"start_date,omitempty"`       // RFC3339 or YYYY-MM-DD, informational
	Token          string   `yaml:"token,omitempty"`            // Persisted bearer token
	TokenExpiresAt string   `yaml:"token_expires_at,omitempty"` // Persisted expiry, RFC3339

	Streams                   []string    `yaml:"streams,omitempty"`      // Empty means all
	ErrorPolicy               ErrorPolicy `yaml:"error_policy,omitempty"` // isolated or strict
	Concurrency               int         `yaml:"concurrency,omitempty"`
	RequestTimeoutSeconds     int         `yaml:"request_timeout_seconds,omitempty"`
	TokenRefreshBeforeSeconds *int        `yaml:"token_refresh_before_seconds,omitempty"`
	ConformRecords            bool        `yaml:"conform_records,omitempty"` // Coerce values to the stream schema

	RateLimit  *RateLimit  `yaml:"rate_limit,omitempty"`
	Pagination *Pagination `yaml:"pagination,omitempty"`
	TokenStore TokenStore  `yaml:"token_store,omitempty"`
	Output     Output      `yaml:"output,omitempty"`
	Logging    Logging     `yaml:"logging,omitempty"`
}

// ErrorPolicy decides what a stream failure does to the rest of the run
type ErrorPolicy string

const (
	ErrorPolicyIsolated ErrorPolicy = "isolated"
	ErrorPolicyStrict   ErrorPolicy = "strict"
)

// RateLimit caps outgoing requests
type RateLimit struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst,omitempty"`
}

// Pagination defines how list endpoints are paged
type Pagination struct {
	Type PaginationType `yaml:"type"` // page or link

	// Page-based pagination (if Type="page")
	PageParam      string `yaml:"page_param,omitempty"`
	SizeParam      string `yaml:"size_param,omitempty"`
	PageSize       int    `yaml:"page_size,omitempty"`
	TotalPagesPath string `yaml:"total_pages_path,omitempty"`
	HasMorePath    string `yaml:"has_more_path,omitempty"`

	// Link-based pagination (if Type="link")
	NextLinkPath string `yaml:"next_link_path,omitempty"` // defaults to links.next
}

// PaginationType defines supported pagination types
type PaginationType string

const (
	PaginationTypePage PaginationType = "page"
	PaginationTypeLink PaginationType = "link"
)

// TokenStore selects where the bearer token is persisted between runs
type TokenStore struct {
	Type TokenStoreType `yaml:"type,omitempty"`
	Path string         `yaml:"path,omitempty"` // sqlite database file
}

// TokenStoreType defines supported token stores
type TokenStoreType string

const (
	TokenStoreConfig TokenStoreType = "config"
	TokenStoreSQLite TokenStoreType = "sqlite"
	TokenStoreMemory TokenStoreType = "memory"
)

// Output configures the CSV export
type Output struct {
	Dir     string      `yaml:"dir,omitempty"`
	Columns ColumnsMode `yaml:"columns,omitempty"`
}

// ColumnsMode picks how CSV headers are derived
type ColumnsMode string

const (
	ColumnsObserved ColumnsMode = "observed"
	ColumnsSchema   ColumnsMode = "schema"
)

// Logging configures the run logger
type Logging struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// RequestTimeout returns the per-request timeout.
func (t *Tap) RequestTimeout() time.Duration {
	return time.Duration(t.RequestTimeoutSeconds) * time.Second
}

// RefreshBefore returns how long before expiry a token is considered stale.
func (t *Tap) RefreshBefore() time.Duration {
	if t.TokenRefreshBeforeSeconds == nil {
		return 0
	}
	return time.Duration(*t.TokenRefreshBeforeSeconds) * time.Second
}

// PersistedToken returns the token stored in the config, if any.
func (t *Tap) PersistedToken() (string, time.Time, bool) {
	if t.Token == "" || t.TokenExpiresAt == "" {
		return "", time.Time{}, false
	}
	exp, err := ParseTimestamp(t.TokenExpiresAt)
	if err != nil {
		return "", time.Time{}, false
	}
	return t.Token, exp, true
}

// ParseTimestamp accepts RFC3339 (with or without zone, as written by
// older tooling) or a bare date.
func ParseTimestamp(s string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999",
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
	var err error
	for _, layout := range layouts {
		var ts time.Time
		if ts, err = time.ParseInLocation(layout, s, time.Local); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, err
}
