package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/gophpass/internal/common"
	"github.com/dmitrijs2005/gophpass/internal/cryptox"
	"github.com/dmitrijs2005/gophpass/internal/sites"
	"github.com/dmitrijs2005/gophpass/internal/worker"
)

// fakeDeriver answers like the worker without doing any key stretching.
type fakeDeriver struct {
	mu        sync.Mutex
	calls     map[worker.Op]int
	passes    []string
	deriveErr error
	failKey   string

	// When gate is set, requests of gateOp announce themselves on started
	// and wait for gate to close.
	gateOp  worker.Op
	gate    chan struct{}
	started chan struct{}
}

func newFakeDeriver() *fakeDeriver {
	return &fakeDeriver{calls: map[worker.Op]int{}}
}

func (f *fakeDeriver) Do(ctx context.Context, req worker.Request) (worker.Response, error) {
	f.mu.Lock()
	f.calls[req.Op]++
	f.passes = append(f.passes, string(req.Passphrase))
	gated := f.gate != nil && req.Op == f.gateOp
	f.mu.Unlock()
	cryptox.Wipe(req.Passphrase)

	if gated {
		select {
		case f.started <- struct{}{}:
		default:
		}
		<-f.gate
	}

	switch req.Op {
	case worker.OpDerive:
		if f.deriveErr != nil {
			return worker.Response{ID: req.ID, Err: f.deriveErr}, f.deriveErr
		}
		return worker.Response{ID: req.ID, Secret: []byte("master-secret-for-" + req.Identity.Username)}, nil
	case worker.OpGenerate:
		if req.InfoKey == f.failKey {
			err := fmt.Errorf("%w: boom", common.ErrWorkerFault)
			return worker.Response{ID: req.ID, Err: err}, err
		}
		return worker.Response{ID: req.ID, InfoKey: req.InfoKey, Password: fmt.Sprintf("%s#%d", req.InfoKey, req.Length)}, nil
	}
	return worker.Response{}, errors.New("unexpected op")
}

func (f *fakeDeriver) count(op worker.Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeDeriver) gateOn(op worker.Op) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gateOp = op
	f.gate = make(chan struct{})
	f.started = make(chan struct{}, 1)
}

// fakeStore is an in-memory sites.Store.
type fakeStore struct {
	mu     sync.Mutex
	next   int64
	recs   map[int64]sites.SiteRecord
	closed bool
	calls  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{recs: map[int64]sites.SiteRecord{}}
}

func (s *fakeStore) touch() error {
	s.calls++
	if s.closed {
		return fmt.Errorf("%w: closed", common.ErrStoreUnavailable)
	}
	return nil
}

func (s *fakeStore) Create(_ context.Context, rec sites.SiteRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.touch(); err != nil {
		return 0, err
	}
	rec.Normalize()
	if err := rec.Validate(); err != nil {
		return 0, err
	}
	s.next++
	rec.ID = s.next
	s.recs[rec.ID] = rec
	return rec.ID, nil
}

func (s *fakeStore) ReadAll(_ context.Context) ([]sites.SiteRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.touch(); err != nil {
		return nil, err
	}
	var out []sites.SiteRecord
	for id := int64(1); id <= s.next; id++ {
		if r, ok := s.recs[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeStore) FindByDomain(ctx context.Context, domain string) ([]sites.SiteRecord, error) {
	all, err := s.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []sites.SiteRecord
	for _, r := range all {
		if r.Domain == domain {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeStore) Update(_ context.Context, rec sites.SiteRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.touch(); err != nil {
		return err
	}
	if _, ok := s.recs[rec.ID]; !ok {
		return common.ErrNotFound
	}
	rec.Normalize()
	s.recs[rec.ID] = rec
	return nil
}

func (s *fakeStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.touch(); err != nil {
		return err
	}
	if _, ok := s.recs[id]; !ok {
		return common.ErrNotFound
	}
	delete(s.recs, id)
	return nil
}

func (s *fakeStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.touch(); err != nil {
		return err
	}
	clear(s.recs)
	return nil
}

func (s *fakeStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeStore) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
