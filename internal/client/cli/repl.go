package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	List(ctx context.Context) error
	ChangeDir(ctx context.Context, args []string) error
	MakeDir(ctx context.Context, args []string) error
	Put(ctx context.Context, args []string) error
	Get(ctx context.Context, args []string) error
	ZipSelection(ctx context.Context, args []string) error
	Move(ctx context.Context, args []string) error
	Trash(ctx context.Context, args []string) error
	Restore(ctx context.Context, args []string) error
	Favorite(ctx context.Context, args []string) error
	Color(ctx context.Context, args []string) error
	Pause(args []string) error
	Resume(args []string) error
	Stop(args []string) error
	Logout(ctx context.Context) error
}

// runREPL starts a read-eval-print loop. It reads a line from the scanner,
// parses the first token as the command, and dispatches to methods on 'a'.
// The loop exits on scanner EOF or when the user types "exit" or "quit".
//
// Any errors returned by command handlers are reported inline; the loop
// itself stays alive.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("dk> %s ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]
		args := parts[1:]

		var err error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: ls, cd, mkdir, put, get, zip, mv, trash, restore, fav, color, pause, resume, stop, logout, exit")
			} else {
				printlnFn("Available commands: register, login, exit")
			}

		case "register":
			err = a.Register(ctx)
		case "login":
			err = a.Login(ctx)
		case "l", "ls", "list":
			err = a.List(ctx)
		case "cd":
			err = a.ChangeDir(ctx, args)
		case "mkdir":
			err = a.MakeDir(ctx, args)
		case "put":
			err = a.Put(ctx, args)
		case "get":
			err = a.Get(ctx, args)
		case "zip":
			err = a.ZipSelection(ctx, args)
		case "mv":
			err = a.Move(ctx, args)
		case "trash", "rm":
			err = a.Trash(ctx, args)
		case "restore":
			err = a.Restore(ctx, args)
		case "fav":
			err = a.Favorite(ctx, args)
		case "color":
			err = a.Color(ctx, args)
		case "pause":
			err = a.Pause(args)
		case "resume":
			err = a.Resume(args)
		case "stop":
			err = a.Stop(args)
		case "logout":
			err = a.Logout(ctx)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err.Error())
		}
	}
}
