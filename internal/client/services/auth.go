// Package services contains the client application services: authentication
// and the batch item operations (move, trash, restore, favorite, color)
// that keep the remote account and the local metadata cache in step.
package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/drivekeeper/internal/client/api"
	"github.com/dmitrijs2005/drivekeeper/internal/client/store"
	"github.com/dmitrijs2005/drivekeeper/internal/common"
	"github.com/dmitrijs2005/drivekeeper/internal/cryptox"
)

// ErrLocalDataNotAvailable is returned when offline login is attempted
// before any successful online login cached the auth metadata.
var ErrLocalDataNotAvailable = errors.New("local auth data not available")

// AuthService defines authentication operations for the CLI.
//
// Contract:
//   - Login: authenticate against the server and persist offline auth data.
//   - OfflineLogin: verify credentials against locally cached data.
//   - Register: create a new account on the server.
//   - Close: release underlying client resources.
//
// The master key returned by the login methods never leaves the process.
type AuthService interface {
	Login(ctx context.Context, username string, password []byte) ([]byte, error)
	OfflineLogin(ctx context.Context, username string, password []byte) ([]byte, error)
	Register(ctx context.Context, username string, password []byte) error
	Close() error
}

type authService struct {
	client api.Client
	kv     store.KV
}

// NewAuthService constructs an AuthService bound to the given API client and
// key-value store.
func NewAuthService(client api.Client, kv store.KV) AuthService {
	return &authService{client: client, kv: kv}
}

// Register creates a new account on the server. It generates a random salt,
// derives a master key from the provided password, computes a verifier, and
// sends salt and verifier to the server. The password itself is never sent.
func (a *authService) Register(ctx context.Context, username string, password []byte) error {
	salt := cryptox.GenerateSalt(32)
	key := cryptox.DeriveMasterKey(password, salt)
	verifier := cryptox.MakeVerifier(key)

	if err := a.client.Register(ctx, username, salt, verifier); err != nil {
		return err
	}
	return nil
}

// Login authenticates against the server, caches the auth metadata for
// offline login, and returns the derived master key.
func (a *authService) Login(ctx context.Context, username string, password []byte) ([]byte, error) {
	salt, err := a.client.GetSalt(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("get salt error: %w", err)
	}

	masterKey := cryptox.DeriveMasterKey(password, salt)
	verifier := cryptox.MakeVerifier(masterKey)

	if err := a.client.Login(ctx, username, verifier); err != nil {
		return nil, fmt.Errorf("login error: %w", err)
	}

	if err := a.saveOfflineData(ctx, username, salt, verifier); err != nil {
		return nil, fmt.Errorf("offline data saving error: %w", err)
	}
	return masterKey, nil
}

// OfflineLogin derives a master key from (password, salt) cached locally and
// verifies it against the cached verifier. Returns the master key on
// success; ErrLocalDataNotAvailable when no online login has happened yet.
func (a *authService) OfflineLogin(ctx context.Context, username string, password []byte) ([]byte, error) {
	savedUsername, err := a.getMetadata(ctx, "username")
	if err != nil {
		return nil, err
	}
	if string(savedUsername) != username {
		return nil, common.ErrUnauthorized
	}

	savedSalt, err := a.getMetadata(ctx, "salt")
	if err != nil {
		return nil, err
	}
	savedVerifier, err := a.getMetadata(ctx, "verifier")
	if err != nil {
		return nil, err
	}

	masterKey := cryptox.DeriveMasterKey(password, savedSalt)
	verifier := cryptox.MakeVerifier(masterKey)

	if subtle.ConstantTimeCompare(savedVerifier, verifier) == 0 {
		return nil, common.ErrUnauthorized
	}
	return masterKey, nil
}

func (a *authService) getMetadata(ctx context.Context, key string) ([]byte, error) {
	value, err := a.kv.Get(ctx, key, store.BucketMetadata)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, ErrLocalDataNotAvailable
		}
		return nil, err
	}
	return value, nil
}

func (a *authService) saveOfflineData(ctx context.Context, username string, salt, verifier []byte) error {
	if err := a.kv.Set(ctx, "username", []byte(username), store.BucketMetadata); err != nil {
		return err
	}
	if err := a.kv.Set(ctx, "salt", salt, store.BucketMetadata); err != nil {
		return err
	}
	return a.kv.Set(ctx, "verifier", verifier, store.BucketMetadata)
}

// Close releases resources held by the underlying client.
func (a *authService) Close() error {
	return a.client.Close()
}
