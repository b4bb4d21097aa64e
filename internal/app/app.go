// Package app wires configuration, the derivation worker, the session, the
// clipboard and the interactive front end into one process.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/gophpass/internal/buildinfo"
	"github.com/dmitrijs2005/gophpass/internal/cli"
	"github.com/dmitrijs2005/gophpass/internal/clipboard"
	"github.com/dmitrijs2005/gophpass/internal/config"
	"github.com/dmitrijs2005/gophpass/internal/cryptox"
	"github.com/dmitrijs2005/gophpass/internal/logging"
	"github.com/dmitrijs2005/gophpass/internal/session"
	"github.com/dmitrijs2005/gophpass/internal/sites"
	"github.com/dmitrijs2005/gophpass/internal/worker"
)

// clipboardWriter, clipboardSupported and stdinFd are test seams.
var (
	clipboardWriter    = clipboard.System
	clipboardSupported = clipboard.Supported
	stdinFd            = func() int { return int(os.Stdin.Fd()) }
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	worker  *worker.Worker
	session *session.Session
	copier  *clipboard.Copier
	front   *cli.App
}

// NewApp builds every component from c. Logs go to errOut, the REPL reads in
// and writes out.
func NewApp(c *config.Config, in io.Reader, out, errOut io.Writer) (*App, error) {
	logger, err := logging.NewText(errOut, c.LogLevel)
	if err != nil {
		return nil, err
	}

	var check cryptox.ContextCheck = cryptox.AssumeSecure
	if c.RequireTerminal {
		check = cryptox.TerminalCheck(stdinFd())
	}
	engine, err := cryptox.NewEngine(c.KDFParams(), check)
	if err != nil {
		return nil, fmt.Errorf("engine init error: %w", err)
	}
	p := engine.Params()
	logger.Debug(context.Background(), "kdf params", "time", p.Time, "memory_kib", p.MemoryKiB, "threads", p.Threads)

	alphabet, err := c.AlphabetSet()
	if err != nil {
		return nil, fmt.Errorf("alphabet: %w", err)
	}

	dsn, err := c.ResolveDSN()
	if err != nil {
		return nil, fmt.Errorf("resolve dsn: %w", err)
	}
	driver := c.Driver
	open := func(ctx context.Context) (sites.Store, error) {
		store, err := sites.Open(ctx, driver, dsn)
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	w := worker.New(engine, logger, worker.Options{
		Alphabet:   alphabet,
		Oversample: c.Oversample,
		QueueSize:  c.WorkerQueue,
	})
	sess := session.New(w, open, logger, session.Options{
		InactivityTimeout: c.InactivityTimeout,
		PasswordLength:    c.PasswordLength,
	})
	if !clipboardSupported() {
		logger.Warn(context.Background(), "no clipboard utility found, 'copy' will fail")
	}
	copier := clipboard.NewCopier(clipboardWriter(), c.ClipboardClearAfter, logger)

	return &App{
		config:  c,
		logger:  logger,
		worker:  w,
		session: sess,
		copier:  copier,
		front:   cli.NewApp(sess, copier, logger, in, out, c.PasswordLength),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) func() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		if _, ok := <-sigs; ok {
			cancelFunc()
		}
	}()
	return func() {
		signal.Stop(sigs)
		close(sigs)
	}
}

// Run serves the front end until it exits or ctx is cancelled. Either way
// the session is locked, the clipboard cleared and the worker stopped.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	stop := app.initSignalHandler(cancelFunc)
	defer stop()

	app.logger.Info(ctx, "Starting gophpass...", "version", buildinfo.Version(), "driver", app.config.Driver)

	done := make(chan struct{})
	go func() {
		defer close(done)
		app.front.Run(ctx)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		app.logger.Info(context.Background(), "Interrupted, shutting down...")
	}

	app.shutdown()
}

func (app *App) shutdown() {
	app.session.Lock(session.ReasonManual)
	if err := app.copier.Stop(); err != nil {
		app.logger.Debug(context.Background(), "clear clipboard", "error", err)
	}
	app.worker.Close()
	app.logger.Info(context.Background(), "Stopped")
}
