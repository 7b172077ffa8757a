// Package httpapi exposes the server's JSON API and the websocket push
// channel. Handlers translate transport concerns to service calls; all
// business rules live in the services package.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/drivekeeper/internal/logging"
	"github.com/dmitrijs2005/drivekeeper/internal/server/models"
	"github.com/dmitrijs2005/drivekeeper/internal/server/services"
)

// UserProvider is the slice of UserService the transport needs.
type UserProvider interface {
	Register(ctx context.Context, username string, salt, verifier []byte) (*models.User, error)
	GetSalt(ctx context.Context, username string) ([]byte, error)
	Login(ctx context.Context, username string, verifier []byte) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
}

// ItemProvider is the slice of ItemService the transport needs.
type ItemProvider interface {
	Quota(ctx context.Context, userID string) (used, max int64, err error)
	CreateFolder(ctx context.Context, userID string, item *models.Item) error
	FolderExists(ctx context.Context, userID, parent, nameHash string) (bool, string, error)
	ListFolder(ctx context.Context, userID, parent string) ([]*models.Item, error)
	UploadChunkURL(ctx context.Context, userID, uuid string, index int64, parent, uploadKey string) (string, error)
	DownloadChunkURL(ctx context.Context, userID, uuid string, index int64) (string, error)
	FinishUpload(ctx context.Context, userID string, req *services.FinishUploadRequest) (*models.Item, error)
	Move(ctx context.Context, userID, uuid, parent string) error
	Trash(ctx context.Context, userID, uuid string) error
	Restore(ctx context.Context, userID, uuid, parent string) error
	Favorite(ctx context.Context, userID, uuid string, value bool) error
	ChangeColor(ctx context.Context, userID, uuid, color string) error
}

// Server is the HTTP front of the backend.
type Server struct {
	logger    logging.Logger
	addr      string
	jwtSecret []byte
	users     UserProvider
	items     ItemProvider
	hub       *Hub
	http      *http.Server
}

func NewServer(addr string, logger logging.Logger, users UserProvider, items ItemProvider, jwtSecret []byte) *Server {
	s := &Server{
		logger:    logger,
		addr:      addr,
		jwtSecret: jwtSecret,
		users:     users,
		items:     items,
		hub:       NewHub(logger),
	}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Hub returns the websocket hub so it can be attached as the item
// services' notifier.
func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Post("/api/auth/register", s.handleRegister)
	r.Post("/api/auth/salt", s.handleGetSalt)
	r.Post("/api/auth/login", s.handleLogin)
	r.Post("/api/auth/refresh", s.handleRefresh)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/api/quota", s.handleQuota)

		r.Post("/api/folders", s.handleCreateFolder)
		r.Post("/api/folders/exists", s.handleFolderExists)
		r.Get("/api/folders/{parent}/content", s.handleListFolder)

		r.Post("/api/uploads/{uuid}/chunks/{index}/url", s.handleUploadChunkURL)
		r.Post("/api/uploads/{uuid}/done", s.handleUploadDone)
		r.Post("/api/files/{uuid}/chunks/{index}/url", s.handleDownloadChunkURL)

		r.Post("/api/items/{uuid}/move", s.handleMove)
		r.Post("/api/items/{uuid}/trash", s.handleTrash)
		r.Post("/api/items/{uuid}/restore", s.handleRestore)
		r.Post("/api/items/{uuid}/favorite", s.handleFavorite)
		r.Post("/api/items/{uuid}/color", s.handleColor)

		r.Get("/ws", s.handleSocket)
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info(ctx, "http server listening", "addr", s.addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.hub.CloseAll()
	return s.http.Shutdown(shutdownCtx)
}
