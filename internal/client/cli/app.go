package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/drivekeeper/internal/client/api"
	"github.com/dmitrijs2005/drivekeeper/internal/client/config"
	"github.com/dmitrijs2005/drivekeeper/internal/client/events"
	"github.com/dmitrijs2005/drivekeeper/internal/client/models"
	"github.com/dmitrijs2005/drivekeeper/internal/client/services"
	"github.com/dmitrijs2005/drivekeeper/internal/client/socket"
	"github.com/dmitrijs2005/drivekeeper/internal/client/store"
	"github.com/dmitrijs2005/drivekeeper/internal/client/transfer"
	"github.com/dmitrijs2005/drivekeeper/internal/common"
	"github.com/dmitrijs2005/drivekeeper/internal/logging"

	_ "modernc.org/sqlite"
)

// App wires the client services behind the REPL.
type App struct {
	config *config.Config
	logger logging.Logger

	api    *api.HTTPClient
	auth   services.AuthService
	items  services.ItemService
	engine *transfer.Engine
	store  *store.Store
	kv     store.KV
	bus    *events.Bus

	masterKey []byte
	userName  string

	// cwd is the UUID of the folder the user is browsing.
	cwd     string
	listing []*models.Item

	reader *bufio.Reader
}

func NewApp(c *config.Config, logger logging.Logger) (*App, error) {
	ctx := context.Background()

	db, err := store.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	apiClient := api.NewHTTPClient(c.ServerAddr)
	kv := store.NewSQLiteKV(db)
	st := store.NewStore(kv)
	bus := events.NewBus()
	limits := transfer.NewLimits(c.MaxConcurrentTransfers, c.TransferThreads, c.WriterSlots)
	engine := transfer.NewEngine(logger, apiClient, st, kv, bus, limits, transfer.Config{
		ChunkSize:          c.ChunkSize,
		MaxUploadRetries:   c.MaxUploadRetries,
		MaxDownloadRetries: c.MaxDownloadRetries,
		RetryBackoff:       c.RetryBackoff,
	})

	return &App{
		config: c,
		logger: logger,
		api:    apiClient,
		auth:   services.NewAuthService(apiClient, kv),
		items:  services.NewItemService(logger, apiClient, st, bus),
		engine: engine,
		store:  st,
		kv:     kv,
		bus:    bus,
		cwd:    common.ParentBase,
		reader: bufio.NewReader(os.Stdin),
	}, nil
}

func (a *App) isLoggedIn() bool {
	return a.masterKey != nil
}

// Run starts the REPL and, once logged in, the socket listener that keeps
// the local cache in step with other sessions.
func (a *App) Run(ctx context.Context) {
	defer func() { _ = a.auth.Close() }()

	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, a.getStatus, scanner)
}

func (a *App) startSocketListener(ctx context.Context) {
	l := socket.NewListener(a.logger, a.config.SocketURL, a.api.AccessToken, a.store, a.bus, a.masterKey)
	go func() {
		if err := l.Run(ctx); err != nil && ctx.Err() == nil {
			a.logger.Warn(ctx, "socket listener exited", "error", err)
		}
	}()
}

func (a *App) getStatus() string {
	if a.userName == "" {
		return ""
	}
	return fmt.Sprintf("(%s:%s)", a.userName, a.cwd)
}
