// Package clipboard copies derived passwords to the system clipboard and
// overwrites them with an empty string after a delay.
package clipboard

import (
	"context"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/dmitrijs2005/gophpass/internal/logging"
)

const DefaultClearAfter = 20 * time.Second

// Writer is the clipboard backend.
type Writer interface {
	WriteAll(text string) error
	ReadAll() (string, error)
}

type system struct{}

func (system) WriteAll(text string) error { return clipboard.WriteAll(text) }
func (system) ReadAll() (string, error) { return clipboard.ReadAll() }

// System returns the OS clipboard. Unsupported platforms fail on first use.
func System() Writer { return system{} }

// Supported reports whether the OS clipboard has a usable backend.
func Supported() bool { return !clipboard.Unsupported }

// Copier owns at most one scheduled clear.
type Copier struct {
	w     Writer
	after time.Duration
	log   logging.Logger

	mu      sync.Mutex
	timer   *time.Timer
	last    string
	pending bool
	gen     uint64
}

func NewCopier(w Writer, after time.Duration, log logging.Logger) *Copier {
	if after <= 0 {
		after = DefaultClearAfter
	}
	return &Copier{w: w, after: after, log: log.With("component", "clipboard")}
}

// ClearAfter is the delay between a copy and its clear.
func (c *Copier) ClearAfter() time.Duration { return c.after }

// Copy writes text and schedules its removal. A newer copy replaces the
// pending clear.
func (c *Copier) Copy(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.w.WriteAll(text); err != nil {
		return err
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.last = text
	c.pending = true
	c.gen++
	gen := c.gen
	c.timer = time.AfterFunc(c.after, func() { c.expire(gen) })
	return nil
}

func (c *Copier) expire(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	_ = c.clearLocked(false)
}

// Clear empties the clipboard now if it still holds the last copied text.
func (c *Copier) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clearLocked(true)
}

// Stop cancels the scheduled clear and clears immediately.
func (c *Copier) Stop() error {
	return c.Clear()
}

// clearLocked leaves the clipboard alone when the user has copied something
// else since. force also clears when nothing is pending.
func (c *Copier) clearLocked(force bool) error {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if !c.pending && !force {
		return nil
	}
	if !c.pending && c.last == "" {
		return nil
	}
	last := c.last
	c.last, c.pending = "", false

	current, err := c.w.ReadAll()
	if err != nil {
		c.log.Warn(context.Background(), "read clipboard", "error", err)
		return err
	}
	if last == "" || current != last {
		return nil
	}
	if err := c.w.WriteAll(""); err != nil {
		c.log.Warn(context.Background(), "clear clipboard", "error", err)
		return err
	}
	c.log.Debug(context.Background(), "clipboard cleared")
	return nil
}
