package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/drivekeeper/internal/flagx"
	"github.com/dmitrijs2005/drivekeeper/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations can
// be strings like "500ms" or integer nanoseconds.
type JsonConfig struct {
	ServerAddr             string         `json:"server_addr"`
	SocketURL              string         `json:"socket_url"`
	DatabasePath           string         `json:"database_path"`
	ChunkSize              int64          `json:"chunk_size"`
	MaxConcurrentTransfers int            `json:"max_concurrent_transfers"`
	TransferThreads        int            `json:"transfer_threads"`
	WriterSlots            int            `json:"writer_slots"`
	MaxUploadRetries       int            `json:"max_upload_retries"`
	MaxDownloadRetries     int            `json:"max_download_retries"`
	RetryBackoff           timex.Duration `json:"retry_backoff"`
}

// parseJson overlays cfg with values from the JSON file named by the -c or
// -config flags. Absent file means no overlay; zero-valued fields keep the
// value already in cfg. Panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerAddr != "" {
		cfg.ServerAddr = jc.ServerAddr
	}
	if jc.SocketURL != "" {
		cfg.SocketURL = jc.SocketURL
	}
	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.ChunkSize > 0 {
		cfg.ChunkSize = jc.ChunkSize
	}
	if jc.MaxConcurrentTransfers > 0 {
		cfg.MaxConcurrentTransfers = jc.MaxConcurrentTransfers
	}
	if jc.TransferThreads > 0 {
		cfg.TransferThreads = jc.TransferThreads
	}
	if jc.WriterSlots > 0 {
		cfg.WriterSlots = jc.WriterSlots
	}
	if jc.MaxUploadRetries > 0 {
		cfg.MaxUploadRetries = jc.MaxUploadRetries
	}
	if jc.MaxDownloadRetries > 0 {
		cfg.MaxDownloadRetries = jc.MaxDownloadRetries
	}
	if jc.RetryBackoff.Duration > 0 {
		cfg.RetryBackoff = time.Duration(jc.RetryBackoff.Duration)
	}
}
