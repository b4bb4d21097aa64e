// Package worker runs every memory-hard derivation on one dedicated
// goroutine and correlates each response with the request that caused it.
package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/gophpass/internal/common"
	"github.com/dmitrijs2005/gophpass/internal/cryptox"
	"github.com/dmitrijs2005/gophpass/internal/logging"
	"github.com/google/uuid"
)

// Op selects the derivation a request asks for.
type Op int

const (
	// OpDerive computes the master secret.
	OpDerive Op = iota + 1
	// OpGenerate computes one site password.
	OpGenerate
)

func (o Op) String() string {
	switch o {
	case OpDerive:
		return "derive"
	case OpGenerate:
		return "generate"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Request is one unit of work. Passphrase is owned by the worker once
// submitted and is wiped after use.
type Request struct {
	ID         string
	Op         Op
	Passphrase []byte
	Identity   cryptox.Identity
	InfoKey    string
	Length     int
}

// Response carries the result of the request with the same ID. Secret is set
// for OpDerive, Password for OpGenerate.
type Response struct {
	ID       string
	InfoKey  string
	Secret   []byte
	Password string
	Err      error
}

// Engine is the part of cryptox.Engine the worker drives.
type Engine interface {
	Derive(pass []byte, id cryptox.Identity) ([]byte, error)
	SitePassword(pass []byte, id cryptox.Identity, infoKey string, length int, alphabet cryptox.Alphabet, oversample int) (string, error)
}

// Options tune password generation and the queue.
type Options struct {
	Alphabet   cryptox.Alphabet
	Oversample int
	QueueSize  int
}

type Worker struct {
	engine Engine
	log    logging.Logger
	opts   Options

	queue chan Request
	done  chan struct{}
	wg    sync.WaitGroup

	mu      sync.Mutex
	pending map[string]pendingReq
	closed  bool
}

type pendingReq struct {
	op      Op
	infoKey string
	reply   chan Response
}

// New starts the worker goroutine. Call Close to stop it.
func New(engine Engine, log logging.Logger, opts Options) *Worker {
	if opts.Alphabet == nil {
		opts.Alphabet = cryptox.DefaultAlphabet
	}
	if opts.Oversample < 1 {
		opts.Oversample = cryptox.DefaultOversample
	}
	if opts.QueueSize < 0 {
		opts.QueueSize = 0
	}

	w := &Worker{
		engine:  engine,
		log:     log.With("component", "worker"),
		opts:    opts,
		queue:   make(chan Request, opts.QueueSize),
		done:    make(chan struct{}),
		pending: make(map[string]pendingReq),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

// Do submits req and waits for its response. When ctx ends first Do returns
// ctx.Err(); the computation still finishes and its result is dropped.
func (w *Worker) Do(ctx context.Context, req Request) (Response, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	reply := make(chan Response, 1)

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		cryptox.Wipe(req.Passphrase)
		return Response{}, fmt.Errorf("%w: worker closed", common.ErrWorkerFault)
	}
	if _, dup := w.pending[req.ID]; dup {
		w.mu.Unlock()
		cryptox.Wipe(req.Passphrase)
		return Response{}, fmt.Errorf("%w: duplicate request id %s", common.ErrWorkerFault, req.ID)
	}
	w.pending[req.ID] = pendingReq{op: req.Op, infoKey: req.InfoKey, reply: reply}
	w.mu.Unlock()

	select {
	case w.queue <- req:
		w.sweepIfClosed()
	case <-ctx.Done():
		w.forget(req.ID)
		cryptox.Wipe(req.Passphrase)
		return Response{}, ctx.Err()
	case <-w.done:
		w.forget(req.ID)
		cryptox.Wipe(req.Passphrase)
		return Response{}, fmt.Errorf("%w: worker closed", common.ErrWorkerFault)
	}

	select {
	case resp := <-reply:
		return resp, resp.Err
	case <-ctx.Done():
		w.forget(req.ID)
		return Response{}, ctx.Err()
	case <-w.done:
		w.forget(req.ID)
		return Response{}, fmt.Errorf("%w: worker closed", common.ErrWorkerFault)
	}
}

// Close stops accepting requests, lets the goroutine finish the one in
// progress and returns. Queued requests are failed.
func (w *Worker) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()

	close(w.done)
	w.wg.Wait()
	w.drain()
}

// sweepIfClosed covers a send that won the race against Close: nothing will
// run the request, so its passphrase is wiped here.
func (w *Worker) sweepIfClosed() {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		w.drain()
	}
}

func (w *Worker) drain() {
	for {
		select {
		case req := <-w.queue:
			cryptox.Wipe(req.Passphrase)
		default:
			return
		}
	}
}

func (w *Worker) forget(id string) {
	w.mu.Lock()
	delete(w.pending, id)
	w.mu.Unlock()
}

func (w *Worker) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case req := <-w.queue:
			w.dispatch(w.execute(req))
		}
	}
}

// execute never lets an engine panic escape the worker goroutine.
func (w *Worker) execute(req Request) (resp Response) {
	resp = Response{ID: req.ID}
	defer cryptox.Wipe(req.Passphrase)
	defer func() {
		if p := recover(); p != nil {
			w.log.Error(context.Background(), "derivation panicked", "id", req.ID, "op", req.Op.String())
			resp = Response{ID: req.ID, Err: fmt.Errorf("%w: %v", common.ErrWorkerFault, p)}
		}
	}()

	switch req.Op {
	case OpDerive:
		resp.Secret, resp.Err = w.engine.Derive(req.Passphrase, req.Identity)
	case OpGenerate:
		resp.InfoKey = req.InfoKey
		resp.Password, resp.Err = w.engine.SitePassword(req.Passphrase, req.Identity, req.InfoKey, req.Length, w.opts.Alphabet, w.opts.Oversample)
	default:
		resp.Err = fmt.Errorf("%w: unknown op %s", common.ErrWorkerFault, req.Op)
	}
	return resp
}

// dispatch hands resp to the waiter registered under its ID. Results nobody
// waits for any more are wiped and dropped.
func (w *Worker) dispatch(resp Response) {
	w.mu.Lock()
	p, ok := w.pending[resp.ID]
	delete(w.pending, resp.ID)
	w.mu.Unlock()

	if !ok {
		w.log.Debug(context.Background(), "dropping late result", "id", resp.ID)
		cryptox.Wipe(resp.Secret)
		return
	}

	if resp.Err == nil && p.op == OpGenerate && resp.InfoKey != p.infoKey {
		w.log.Error(context.Background(), "response does not match request", "id", resp.ID)
		resp = Response{ID: resp.ID, Err: fmt.Errorf("%w: response for another site", common.ErrWorkerFault)}
	}
	p.reply <- resp
}
