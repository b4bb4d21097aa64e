package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophpass/internal/common"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

var errUsage = errors.New("usage")

// execIface is the command surface of the REPL. *App implements it.
type execIface interface {
	isUnlocked() bool
	touch()
	Login(ctx context.Context) error
	Add(ctx context.Context) error
	Edit(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) error
	Find(ctx context.Context, domain string) error
	Show(ctx context.Context, id int64) error
	Copy(ctx context.Context, id int64) error
	ClearClipboard() error
	Lock()
	Reset(ctx context.Context) error
}

const (
	helpLocked   = "Available commands: login, clear, help, exit"
	helpUnlocked = "Available commands: add, edit <id>, delete <id>, list, find <domain>, show <id>, copy <id>, clear, lock, reset, help, exit"
)

// runREPL reads one command per line from scanner and dispatches it to a.
// Every non-empty line counts as activity for the inactivity timer. The loop
// ends on end of input or on exit/quit.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("gophpass (%s)> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		a.touch()
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			if a.isUnlocked() {
				printlnFn(helpUnlocked)
			} else {
				printlnFn(helpLocked)
			}

		case "login":
			err = a.Login(ctx)

		case "add":
			err = a.Add(ctx)

		case "edit":
			err = withID(args, "edit <id>", func(id int64) error { return a.Edit(ctx, id) })

		case "delete", "rm":
			err = withID(args, "delete <id>", func(id int64) error { return a.Delete(ctx, id) })

		case "l", "list":
			err = a.List(ctx)

		case "find":
			if len(args) != 1 {
				printlnFn("Usage: find <domain>")
				continue
			}
			err = a.Find(ctx, args[0])

		case "show":
			err = withID(args, "show <id>", func(id int64) error { return a.Show(ctx, id) })

		case "copy", "cp":
			err = withID(args, "copy <id>", func(id int64) error { return a.Copy(ctx, id) })

		case "clear":
			err = a.ClearClipboard()

		case "lock":
			a.Lock()

		case "reset":
			err = a.Reset(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn(describe(err))
		}
	}
}

func withID(args []string, usage string, fn func(id int64) error) error {
	id, err := parseID(args)
	if errors.Is(err, errUsage) {
		printlnFn("Usage: " + usage)
		return nil
	}
	if err != nil {
		return err
	}
	return fn(id)
}

// describe turns an error into a line for the user.
func describe(err error) string {
	switch {
	case errors.Is(err, common.ErrLockedSessionAccess):
		return "Session is locked, type 'login' first."
	case errors.Is(err, common.ErrSessionBusy):
		return "Already logged in, type 'lock' to switch user."
	case errors.Is(err, common.ErrInsecureContext):
		return "Refusing to derive secrets: not running on an interactive terminal."
	case errors.Is(err, common.ErrNotFound):
		return "No such site."
	case errors.Is(err, common.ErrInvalidRecord):
		return "Invalid site: " + err.Error()
	case errors.Is(err, common.ErrStoreUnavailable):
		return "Site store unavailable: " + err.Error()
	default:
		return "Error: " + err.Error()
	}
}
