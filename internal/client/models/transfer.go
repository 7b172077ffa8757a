package models

import "time"

// TransferState describes where a transfer is in its lifecycle.
type TransferState string

const (
	TransferQueued  TransferState = "queued"
	TransferRunning TransferState = "running"
	TransferPaused  TransferState = "paused"
	TransferDone    TransferState = "done"
	TransferStopped TransferState = "stopped"
	TransferErrored TransferState = "errored"
)

// Transfer is the ephemeral progress record of one upload or download,
// identified by the item's UUID. It is never persisted.
type Transfer struct {
	UUID      string
	Name      string
	Total     int64
	Done      int64
	StartedAt time.Time
	UpdatedAt time.Time
	RateBps   float64
	ETA       time.Duration
	State     TransferState
}
