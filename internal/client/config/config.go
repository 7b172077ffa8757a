package config

import "time"

// Config holds runtime settings for the DriveKeeper client.
type Config struct {
	// ServerAddr is the base URL of the backend HTTP API.
	ServerAddr string
	// SocketURL is the websocket endpoint for server-pushed item events.
	SocketURL string
	// DatabasePath is the local SQLite database file.
	DatabasePath string

	// ChunkSize is the transfer chunk size in bytes.
	ChunkSize int64
	// MaxConcurrentTransfers bounds simultaneously active transfers.
	MaxConcurrentTransfers int
	// TransferThreads bounds in-flight chunk operations across transfers.
	TransferThreads int
	// WriterSlots bounds decrypted chunks buffered awaiting their write turn.
	WriterSlots int

	MaxUploadRetries   int
	MaxDownloadRetries int
	RetryBackoff       time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerAddr = "http://127.0.0.1:8080"
	c.SocketURL = "ws://127.0.0.1:8080/ws"
	c.DatabasePath = "drivekeeper.db"
	c.ChunkSize = 1 << 20
	c.MaxConcurrentTransfers = 3
	c.TransferThreads = 8
	c.WriterSlots = 8
	c.MaxUploadRetries = 2
	c.MaxDownloadRetries = 2
	c.RetryBackoff = 500 * time.Millisecond
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present) and command-line flags (if present). Later sources
// take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
