package config

import "time"

// Defaults applied by ApplyDefaults when the config file or flags leave a
// field unset.
const (
	DefaultSeedURL         = "http://loukiehoos.nl"
	DefaultOutputDir       = "archive"
	DefaultUserAgent       = "site-archiver/1.0"
	DefaultContentSelector = "#content"
	DefaultImageSrcMarker  = "default"
	DefaultTagPathSegment  = "/tag/"
	DefaultRetryAttempts   = 3
	DefaultRetryDelay      = 5 * time.Second
	DefaultDownloadWorkers = 4
	DefaultLogFilename     = "crawl.log"
)

// AppConfig holds the full application configuration
type AppConfig struct {
	SeedURL              string        `yaml:"seed_url"`
	OutputDir            string        `yaml:"output_dir"`
	UserAgent            string        `yaml:"user_agent,omitempty"`
	ContentSelector      string        `yaml:"content_selector,omitempty"`       // Main-content container for image scoping
	ImageSrcMarker       string        `yaml:"image_src_marker,omitempty"`       // Substring marking representative image sources
	TagPathSegment       string        `yaml:"tag_path_segment,omitempty"`       // Path substring identifying tag-listing URLs
	ExcludedPathPatterns []string      `yaml:"excluded_path_patterns,omitempty"` // Regex patterns for paths never fetched
	RetryAttempts        int           `yaml:"retry_attempts,omitempty"`         // Download attempts per image URL
	RetryDelay           time.Duration `yaml:"retry_delay,omitempty"`            // Fixed delay between attempts
	DownloadWorkers      int           `yaml:"download_workers,omitempty"`       // Bounded download concurrency
	MaxPageSizeBytes     int64         `yaml:"max_page_size_bytes,omitempty"`    // Cap on fetched HTML size (0 = default)
	LogFile              string        `yaml:"log_file,omitempty"`               // Relative to OutputDir unless absolute
	HTTPClientSettings   HTTPClientConfig `yaml:"http_client_settings,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
}

// ApplyDefaults fills unset fields with the package defaults.
func (c *AppConfig) ApplyDefaults() {
	if c.SeedURL == "" {
		c.SeedURL = DefaultSeedURL
	}
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.ContentSelector == "" {
		c.ContentSelector = DefaultContentSelector
	}
	if c.ImageSrcMarker == "" {
		c.ImageSrcMarker = DefaultImageSrcMarker
	}
	if c.TagPathSegment == "" {
		c.TagPathSegment = DefaultTagPathSegment
	}
	if c.ExcludedPathPatterns == nil {
		c.ExcludedPathPatterns = []string{DefaultTagPathSegment}
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = DefaultRetryAttempts
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.DownloadWorkers <= 0 {
		c.DownloadWorkers = DefaultDownloadWorkers
	}
	if c.MaxPageSizeBytes <= 0 {
		c.MaxPageSizeBytes = 10 << 20 // 10 MiB
	}
	if c.LogFile == "" {
		c.LogFile = DefaultLogFilename
	}
	if c.HTTPClientSettings.Timeout <= 0 {
		c.HTTPClientSettings.Timeout = 60 * time.Second
	}
	if c.HTTPClientSettings.DialerTimeout <= 0 {
		c.HTTPClientSettings.DialerTimeout = 15 * time.Second
	}
	if c.HTTPClientSettings.IdleConnTimeout <= 0 {
		c.HTTPClientSettings.IdleConnTimeout = 90 * time.Second
	}
	if c.HTTPClientSettings.TLSHandshakeTimeout <= 0 {
		c.HTTPClientSettings.TLSHandshakeTimeout = 10 * time.Second
	}
}
