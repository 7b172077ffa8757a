package cli

import (
	"context"
	"errors"
	"os"

	"github.com/dmitrijs2005/drivekeeper/internal/client/api"
	"github.com/dmitrijs2005/drivekeeper/internal/common"
)

// Register prompts for credentials and creates an account.
func (a *App) Register(ctx context.Context) error {
	username, err := GetSimpleText(a.reader, "Enter username", os.Stdout)
	if err != nil {
		return err
	}
	password, err := GetPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.auth.Register(ctx, username, password); err != nil {
		if errors.Is(err, api.ErrAlreadyExists) {
			printlnFn("User already exists")
			return nil
		}
		return err
	}
	printlnFn("Registered. You can log in now.")
	return nil
}

// Login authenticates, falls back to offline verification when the server
// is unreachable, and starts the socket listener on success.
func (a *App) Login(ctx context.Context) error {
	username, err := GetSimpleText(a.reader, "Enter username", os.Stdout)
	if err != nil {
		return err
	}
	password, err := GetPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	masterKey, err := a.auth.Login(ctx, username, password)
	if err != nil {
		if errors.Is(err, api.ErrUnavailable) {
			printlnFn("Server unreachable, trying offline login")
			masterKey, err = a.auth.OfflineLogin(ctx, username, password)
		}
		if err != nil {
			return err
		}
	} else {
		a.startSocketListener(ctx)
	}

	a.masterKey = masterKey
	a.userName = username
	a.cwd = common.ParentBase
	printlnFn("Logged in.")
	return nil
}

// Logout wipes the in-memory key material.
func (a *App) Logout(ctx context.Context) error {
	common.WipeByteArray(a.masterKey)
	a.masterKey = nil
	a.userName = ""
	a.listing = nil
	a.cwd = common.ParentBase
	printlnFn("Logged out.")
	return nil
}
