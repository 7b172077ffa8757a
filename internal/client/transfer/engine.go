package transfer

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/drivekeeper/internal/client/api"
	"github.com/dmitrijs2005/drivekeeper/internal/client/events"
	"github.com/dmitrijs2005/drivekeeper/internal/client/models"
	"github.com/dmitrijs2005/drivekeeper/internal/client/store"
	"github.com/dmitrijs2005/drivekeeper/internal/common"
	"github.com/dmitrijs2005/drivekeeper/internal/logging"
)

// Config carries the transfer tunables.
type Config struct {
	ChunkSize          int64
	MaxUploadRetries   int
	MaxDownloadRetries int
	RetryBackoff       time.Duration
}

// Engine runs chunked encrypted uploads, downloads and zip assemblies. All
// transfers share the pools in Limits and are addressable for
// pause/resume/stop by their item UUID.
type Engine struct {
	logger logging.Logger
	api    api.Client
	store  *store.Store
	kv     store.KV
	bus    *events.Bus
	limits *Limits
	ctrl   *Controller
	cfg    Config
}

func NewEngine(logger logging.Logger, client api.Client, st *store.Store, kv store.KV, bus *events.Bus, limits *Limits, cfg Config) *Engine {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1 << 20
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	return &Engine{
		logger: logger,
		api:    client,
		store:  st,
		kv:     kv,
		bus:    bus,
		limits: limits,
		ctrl:   NewController(),
		cfg:    cfg,
	}
}

// Pause suspends chunk dispatch for the transfer with the given UUID.
func (e *Engine) Pause(uuid string) { e.ctrl.Pause(uuid) }

// Resume resumes a paused transfer.
func (e *Engine) Resume(uuid string) { e.ctrl.Resume(uuid) }

// Stop aborts a transfer. The abort is reported as a clean cancellation,
// not an error.
func (e *Engine) Stop(uuid string) { e.ctrl.Stop(uuid) }

// transferContext derives a context that is cancelled when the transfer is
// stopped, so blocked semaphore acquisitions and network calls unwind too.
func (e *Engine) transferContext(ctx context.Context, uuid string) (context.Context, context.CancelFunc) {
	tctx, cancel := context.WithCancel(ctx)
	stopped := e.ctrl.Stopped(uuid)
	if stopped == nil {
		return tctx, cancel
	}
	go func() {
		select {
		case <-stopped:
			cancel()
		case <-tctx.Done():
		}
	}()
	return tctx, cancel
}

// classify maps an abort cause onto the taxonomy: cancellations collapse to
// common.ErrStopped once the transfer's stop signal fired.
func (e *Engine) classify(uuid string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, common.ErrStopped) {
		return common.ErrStopped
	}
	if errors.Is(err, context.Canceled) {
		if stopped := e.ctrl.Stopped(uuid); stopped != nil {
			select {
			case <-stopped:
				return common.ErrStopped
			default:
			}
		}
	}
	return err
}

// report publishes the terminal event for a failed or stopped transfer.
// Stops are silent, quota exhaustion raises the upgrade prompt, everything
// else becomes a per-item error event.
func (e *Engine) report(uuid string, m *Meter, err error) {
	switch {
	case errors.Is(err, common.ErrStopped):
		e.bus.Publish(events.Event{Topic: events.TopicTransferStopped, UUID: uuid, Transfer: m.Snapshot(models.TransferStopped)})
	case errors.Is(err, api.ErrStorageFull):
		e.bus.Publish(events.Event{Topic: events.TopicStorageFull, UUID: uuid})
		e.bus.Publish(events.Event{Topic: events.TopicTransferError, UUID: uuid, Transfer: m.Snapshot(models.TransferErrored), Err: err})
	default:
		e.bus.Publish(events.Event{Topic: events.TopicTransferError, UUID: uuid, Transfer: m.Snapshot(models.TransferErrored), Err: err})
	}
}

// withRetry runs op with bounded constant-backoff retries. op decides
// retryability by wrapping transient errors with retry.RetryableError.
func (e *Engine) withRetry(ctx context.Context, maxRetries int, op func(ctx context.Context) error) error {
	if maxRetries <= 0 {
		return op(ctx)
	}
	b := retry.WithMaxRetries(uint64(maxRetries), retry.NewConstant(e.cfg.RetryBackoff))
	return retry.Do(ctx, b, op)
}

// retryable marks transient transfer errors for the retry policy. Fatal
// remote conditions and cancellations pass through unmarked.
func retryable(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, common.ErrStopped) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, api.ErrStorageFull) ||
		errors.Is(err, api.ErrAlreadyExists) ||
		errors.Is(err, api.ErrUnauthorized) {
		return err
	}
	return retry.RetryableError(err)
}
