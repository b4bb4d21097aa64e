package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/gophpass/internal/cryptox"
	"github.com/dmitrijs2005/gophpass/internal/logging"
	"github.com/dmitrijs2005/gophpass/internal/session"
	"github.com/dmitrijs2005/gophpass/internal/sites"
)

// Session is the part of *session.Session the front end drives.
type Session interface {
	State() session.State
	Username() string
	Events() <-chan session.LockEvent
	Touch()
	Unlock(ctx context.Context, passphrase []byte, id cryptox.Identity) error
	Lock(reason session.Reason)
	CreateSite(ctx context.Context, rec sites.SiteRecord) (sites.SiteRecord, error)
	ListSites(ctx context.Context) ([]sites.SiteRecord, error)
	FindSites(ctx context.Context, domain string) ([]sites.SiteRecord, error)
	Site(ctx context.Context, id int64) (sites.SiteRecord, error)
	UpdateSite(ctx context.Context, rec sites.SiteRecord) error
	DeleteSite(ctx context.Context, id int64) error
	Reset(ctx context.Context) error
	Password(ctx context.Context, rec sites.SiteRecord, length int) (string, error)
	Passwords(ctx context.Context, recs []sites.SiteRecord, length int) []session.Result
}

// Clipboard is the part of *clipboard.Copier the front end drives.
type Clipboard interface {
	Copy(text string) error
	Clear() error
	Stop() error
	ClearAfter() time.Duration
}

type App struct {
	sess   Session
	clip   Clipboard
	log    logging.Logger
	in     *bufio.Scanner
	out    io.Writer
	length int
}

// NewApp reads commands and answers from in and writes prompts to out.
func NewApp(sess Session, clip Clipboard, log logging.Logger, in io.Reader, out io.Writer, length int) *App {
	return &App{
		sess:   sess,
		clip:   clip,
		log:    log.With("component", "cli"),
		in:     bufio.NewScanner(in),
		out:    out,
		length: length,
	}
}

// Run serves the REPL until exit or end of input, then locks the session and
// clears the clipboard.
func (a *App) Run(ctx context.Context) {
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.watchLocks(watchCtx)

	printlnFn("Welcome to gophpass (type 'help' for commands)")
	runREPL(ctx, a, a.status, a.in)

	a.sess.Lock(session.ReasonManual)
	if err := a.clip.Stop(); err != nil {
		a.log.Warn(ctx, "clear clipboard on exit", "error", err)
	}
}

func (a *App) status() string {
	if u := a.sess.Username(); u != "" {
		return u
	}
	return a.sess.State().String()
}

func (a *App) isUnlocked() bool { return a.sess.State() == session.Unlocked }

func (a *App) touch() { a.sess.Touch() }

// watchLocks tells the user to log in again whenever the session locks and
// clears the clipboard with it.
func (a *App) watchLocks(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-a.sess.Events():
			if err := a.clip.Clear(); err != nil {
				a.log.Warn(ctx, "clear clipboard on lock", "error", err)
			}
			if ev.Reason == session.ReasonManual {
				continue
			}
			printlnFn(fmt.Sprintf("session locked (%s), type 'login' to continue", ev.Reason))
		}
	}
}
