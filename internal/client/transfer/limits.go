// Package transfer implements the chunked, encrypted, pausable transfer
// engine: uploads, downloads and the streamed zip assembler, all competing
// for one shared set of concurrency pools.
package transfer

import "github.com/dmitrijs2005/drivekeeper/internal/syncx"

// Limits holds the three semaphore tiers shared by every transfer in the
// process. Sharing is intentional backpressure: it bounds total network and
// memory usage app-wide no matter how many transfers run at once.
type Limits struct {
	// Transfers bounds the number of concurrently active transfers.
	Transfers *syncx.Semaphore
	// Threads bounds in-flight chunk operations across all transfers.
	Threads *syncx.Semaphore
	// Writers bounds concurrent decrypt-and-write work on chunks whose
	// turn at the write cursor has arrived. Its capacity doubles as the
	// per-transfer admission window for fetched chunks.
	Writers *syncx.Semaphore
}

// NewLimits builds the shared pools from configured capacities.
func NewLimits(transfers, threads, writers int) *Limits {
	return &Limits{
		Transfers: syncx.NewSemaphore(transfers),
		Threads:   syncx.NewSemaphore(threads),
		Writers:   syncx.NewSemaphore(writers),
	}
}
