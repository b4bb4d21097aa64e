// Package session implements the lock state machine that owns the master
// secret, the passphrase and the in-memory password cache while unlocked.
//
// Every command is gated: a locked session returns
// common.ErrLockedSessionAccess before any side effect. Locking destroys the
// secret material, purges the cache, closes the store and bumps an epoch so
// that derivations still running in the worker are discarded on arrival.
package session

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophpass/internal/common"
	"github.com/dmitrijs2005/gophpass/internal/cryptox"
	"github.com/dmitrijs2005/gophpass/internal/logging"
	"github.com/dmitrijs2005/gophpass/internal/sites"
	"github.com/dmitrijs2005/gophpass/internal/worker"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultInactivityTimeout = 90 * time.Second
	DefaultPasswordLength    = 20

	eventBuffer = 8
)

// StoreOpener opens the site store once the master secret is available.
type StoreOpener func(ctx context.Context) (sites.Store, error)

// Deriver submits work to the derivation worker.
type Deriver interface {
	Do(ctx context.Context, req worker.Request) (worker.Response, error)
}

type Options struct {
	InactivityTimeout time.Duration
	PasswordLength    int
}

type cachedPassword struct {
	length   int
	password string
}

// Session is safe for concurrent use.
type Session struct {
	deriver Deriver
	open    StoreOpener
	log     logging.Logger
	timeout time.Duration
	length  int

	mu     sync.Mutex
	state  State
	epoch  uint64
	id     cryptox.Identity
	secret *cryptox.Secret
	pass   *cryptox.Secret
	store  sites.Store
	timer  *time.Timer
	cache  map[string]cachedPassword

	// ops is held shared by store commands and exclusively while the store
	// is being closed.
	ops    sync.RWMutex
	group  singleflight.Group
	events chan LockEvent
}

func New(deriver Deriver, open StoreOpener, log logging.Logger, opts Options) *Session {
	if opts.InactivityTimeout <= 0 {
		opts.InactivityTimeout = DefaultInactivityTimeout
	}
	if opts.PasswordLength <= 0 {
		opts.PasswordLength = DefaultPasswordLength
	}
	return &Session{
		deriver: deriver,
		open:    open,
		log:     log.With("component", "session"),
		timeout: opts.InactivityTimeout,
		length:  opts.PasswordLength,
		cache:   make(map[string]cachedPassword),
		events:  make(chan LockEvent, eventBuffer),
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Events delivers lock notifications. Events are dropped when the consumer
// falls more than a few behind.
func (s *Session) Events() <-chan LockEvent {
	return s.events
}

// Username is the identity of the unlocked session, or "" when locked.
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Unlocked {
		return ""
	}
	return s.id.Username
}

// Unlock derives the master secret and opens the store. The passphrase is
// moved into locked memory and wiped. Unlock is only valid from Locked;
// otherwise it returns common.ErrSessionBusy. On any failure the session is
// Locked again with no secret material left behind.
func (s *Session) Unlock(ctx context.Context, passphrase []byte, id cryptox.Identity) error {
	if len(passphrase) == 0 {
		return common.ErrEmptyPassphrase
	}
	if err := id.Validate(); err != nil {
		cryptox.Wipe(passphrase)
		return err
	}

	s.mu.Lock()
	if st := s.state; st != Locked {
		s.mu.Unlock()
		cryptox.Wipe(passphrase)
		return fmt.Errorf("unlock: %w: session is %s", common.ErrSessionBusy, st)
	}
	s.state = Unlocking
	s.epoch++
	epoch := s.epoch
	s.mu.Unlock()

	work := make([]byte, len(passphrase))
	copy(work, passphrase)
	pass := cryptox.NewSecret(passphrase)

	resp, err := s.deriver.Do(ctx, worker.Request{Op: worker.OpDerive, Passphrase: work, Identity: id})
	if err != nil {
		pass.Destroy()
		s.abortUnlock(epoch)
		return fmt.Errorf("derive master secret: %w", err)
	}
	secret := cryptox.NewSecret(resp.Secret)

	store, err := s.open(ctx)
	if err != nil {
		pass.Destroy()
		secret.Destroy()
		s.abortUnlock(epoch)
		return fmt.Errorf("open store: %w", err)
	}

	s.mu.Lock()
	if s.epoch != epoch || s.state != Unlocking {
		s.mu.Unlock()
		pass.Destroy()
		secret.Destroy()
		s.closeStore(store)
		return fmt.Errorf("unlock: %w: locked while unlocking", common.ErrLockedSessionAccess)
	}
	s.id = id
	s.pass = pass
	s.secret = secret
	s.store = store
	s.state = Unlocked
	s.timer = time.AfterFunc(s.timeout, func() { s.expire(epoch) })
	s.mu.Unlock()

	s.log.Info(ctx, "session unlocked", "user", id.Username)
	return nil
}

func (s *Session) abortUnlock(epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch == epoch && s.state == Unlocking {
		s.state = Locked
	}
}

func (s *Session) expire(epoch uint64) {
	s.mu.Lock()
	current := s.epoch == epoch && s.state == Unlocked
	s.mu.Unlock()
	if current {
		s.Lock(ReasonTimeout)
	}
}

// Lock moves the session to Locked from any state. Locking a locked session
// does nothing and publishes nothing.
func (s *Session) Lock(reason Reason) {
	s.mu.Lock()
	if s.state == Locked {
		s.mu.Unlock()
		return
	}
	s.state = Locked
	s.epoch++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.secret != nil {
		s.secret.Destroy()
		s.secret = nil
	}
	if s.pass != nil {
		s.pass.Destroy()
		s.pass = nil
	}
	s.id = cryptox.Identity{}
	clear(s.cache)
	store := s.store
	s.store = nil
	s.mu.Unlock()

	if store != nil {
		s.ops.Lock()
		s.closeStore(store)
		s.ops.Unlock()
	}

	s.log.Info(context.Background(), "session locked", "reason", string(reason))
	select {
	case s.events <- LockEvent{Reason: reason, At: time.Now()}:
	default:
		s.log.Warn(context.Background(), "lock event dropped", "reason", string(reason))
	}
}

func (s *Session) closeStore(store sites.Store) {
	if err := store.Close(); err != nil {
		s.log.Warn(context.Background(), "close store", "error", err)
	}
}

// Touch restarts the inactivity timer of an unlocked session.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
}

func (s *Session) touchLocked() {
	if s.state == Unlocked && s.timer != nil {
		s.timer.Reset(s.timeout)
	}
}

// acquire gates a command. It must be called with ops held.
func (s *Session) acquire() (sites.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Unlocked {
		return nil, common.ErrLockedSessionAccess
	}
	s.touchLocked()
	return s.store, nil
}

// Password returns the password for rec, from the cache when possible.
// Concurrent requests for the same site share one derivation. A length of 0
// uses the configured default.
func (s *Session) Password(ctx context.Context, rec sites.SiteRecord, length int) (string, error) {
	if length <= 0 {
		length = s.length
	}
	key := rec.InfoKey()

	s.mu.Lock()
	if s.state != Unlocked {
		s.mu.Unlock()
		return "", common.ErrLockedSessionAccess
	}
	s.touchLocked()
	if c, ok := s.cache[key]; ok && c.length == length {
		s.mu.Unlock()
		return c.password, nil
	}
	epoch := s.epoch
	id := s.id
	s.mu.Unlock()

	flight := strconv.FormatUint(epoch, 10) + "/" + strconv.Itoa(length) + "/" + key
	v, err, _ := s.group.Do(flight, func() (any, error) {
		return s.generate(ctx, epoch, id, key, length)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *Session) generate(ctx context.Context, epoch uint64, id cryptox.Identity, key string, length int) (string, error) {
	s.mu.Lock()
	if s.epoch != epoch || s.pass == nil {
		s.mu.Unlock()
		return "", common.ErrLockedSessionAccess
	}
	pass := s.pass.Copy()
	s.mu.Unlock()

	s.log.Debug(ctx, "generating password", "info_key", key)
	resp, err := s.deriver.Do(ctx, worker.Request{
		Op:         worker.OpGenerate,
		Passphrase: pass,
		Identity:   id,
		InfoKey:    key,
		Length:     length,
	})
	if err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || s.state != Unlocked {
		s.log.Debug(ctx, "discarding password derived before lock", "info_key", key)
		return "", common.ErrLockedSessionAccess
	}
	s.cache[key] = cachedPassword{length: length, password: resp.Password}
	return resp.Password, nil
}

// Result is one entry of a bulk generation.
type Result struct {
	Record   sites.SiteRecord
	Password string
	Err      error
}

// Passwords generates for each record in order, one at a time. A failure is
// reported on its own entry and does not stop the rest.
func (s *Session) Passwords(ctx context.Context, recs []sites.SiteRecord, length int) []Result {
	out := make([]Result, len(recs))
	for i, rec := range recs {
		out[i].Record = rec
		out[i].Password, out[i].Err = s.Password(ctx, rec, length)
	}
	return out
}

func (s *Session) purge(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.cache, k)
	}
}

func (s *Session) CreateSite(ctx context.Context, rec sites.SiteRecord) (sites.SiteRecord, error) {
	s.ops.RLock()
	defer s.ops.RUnlock()

	store, err := s.acquire()
	if err != nil {
		return sites.SiteRecord{}, err
	}
	id, err := store.Create(ctx, rec)
	if err != nil {
		return sites.SiteRecord{}, err
	}
	rec.Normalize()
	rec.ID = id
	return rec, nil
}

// ListSites returns every record, newest first.
func (s *Session) ListSites(ctx context.Context) ([]sites.SiteRecord, error) {
	s.ops.RLock()
	defer s.ops.RUnlock()

	store, err := s.acquire()
	if err != nil {
		return nil, err
	}
	recs, err := store.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	sites.SortByRecency(recs)
	return recs, nil
}

func (s *Session) FindSites(ctx context.Context, domain string) ([]sites.SiteRecord, error) {
	s.ops.RLock()
	defer s.ops.RUnlock()

	store, err := s.acquire()
	if err != nil {
		return nil, err
	}
	recs, err := store.FindByDomain(ctx, domain)
	if err != nil {
		return nil, err
	}
	sites.SortByRecency(recs)
	return recs, nil
}

// Site returns the record with id.
func (s *Session) Site(ctx context.Context, id int64) (sites.SiteRecord, error) {
	s.ops.RLock()
	defer s.ops.RUnlock()

	store, err := s.acquire()
	if err != nil {
		return sites.SiteRecord{}, err
	}
	return lookup(ctx, store, id)
}

func lookup(ctx context.Context, store sites.Store, id int64) (sites.SiteRecord, error) {
	recs, err := store.ReadAll(ctx)
	if err != nil {
		return sites.SiteRecord{}, err
	}
	for _, r := range recs {
		if r.ID == id {
			return r, nil
		}
	}
	return sites.SiteRecord{}, fmt.Errorf("site %d: %w", id, common.ErrNotFound)
}

// UpdateSite replaces a record and forgets the cached passwords of both its
// old and new info keys.
func (s *Session) UpdateSite(ctx context.Context, rec sites.SiteRecord) error {
	s.ops.RLock()
	defer s.ops.RUnlock()

	store, err := s.acquire()
	if err != nil {
		return err
	}
	old, err := lookup(ctx, store, rec.ID)
	if err != nil {
		return err
	}
	if err := store.Update(ctx, rec); err != nil {
		return err
	}
	rec.Normalize()
	s.purge(old.InfoKey(), rec.InfoKey())
	return nil
}

func (s *Session) DeleteSite(ctx context.Context, id int64) error {
	s.ops.RLock()
	defer s.ops.RUnlock()

	store, err := s.acquire()
	if err != nil {
		return err
	}
	old, err := lookup(ctx, store, id)
	if err != nil {
		return err
	}
	if err := store.Delete(ctx, id); err != nil {
		return err
	}
	s.purge(old.InfoKey())
	return nil
}

// Reset deletes every record and locks the session with ReasonReset.
func (s *Session) Reset(ctx context.Context) error {
	if err := s.reset(ctx); err != nil {
		return err
	}
	s.Lock(ReasonReset)
	return nil
}

func (s *Session) reset(ctx context.Context) error {
	s.ops.RLock()
	defer s.ops.RUnlock()

	store, err := s.acquire()
	if err != nil {
		return err
	}
	return store.Reset(ctx)
}
