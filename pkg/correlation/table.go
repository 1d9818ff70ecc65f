// Package correlation tracks in-flight requests by id and settles each one
// exactly once with the matching response or error.
package correlation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/morezero/beacon-dapp/pkg/beacon"
	"github.com/morezero/beacon-dapp/pkg/metrics"
)

const logPrefix = "correlation:table"

// Outcome is either Success or Failure.
type Outcome interface {
	isOutcome()
}

// Success carries the matching response and where it arrived from.
type Success struct {
	Message *beacon.Message
	Context beacon.ConnectionContext
}

// Failure carries the error a request was rejected with.
type Failure struct {
	Err error
}

func (Success) isOutcome() {}
func (Failure) isOutcome() {}

// Pending is the waiting side of one registered request.
type Pending struct {
	id      string
	once    sync.Once
	done    chan struct{}
	outcome Outcome
}

func newPending(id string) *Pending {
	return &Pending{id: id, done: make(chan struct{})}
}

// ID returns the request id the entry is keyed by.
func (p *Pending) ID() string { return p.id }

// Done is closed once the entry is settled.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the entry is settled or ctx ends. Ending ctx does not
// remove the entry; see Table.Cancel.
func (p *Pending) Wait(ctx context.Context) (*Success, error) {
	select {
	case <-p.done:
		return p.result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pending) result() (*Success, error) {
	switch o := p.outcome.(type) {
	case Success:
		return &o, nil
	case Failure:
		return nil, o.Err
	default:
		return nil, fmt.Errorf("%s - request %s settled with unknown outcome %T", logPrefix, p.id, o)
	}
}

func (p *Pending) settle(o Outcome) {
	p.once.Do(func() {
		p.outcome = o
		close(p.done)
	})
}

// Table holds one Pending per in-flight request id.
type Table struct {
	metrics *metrics.Metrics

	mu      sync.Mutex
	pending map[string]*Pending
}

// NewTable creates an empty table. m may be nil.
func NewTable(m *metrics.Metrics) *Table {
	return &Table{metrics: m, pending: make(map[string]*Pending)}
}

// Register creates the entry for id. It must be called before the request
// is sent so an immediate response cannot arrive first.
func (t *Table) Register(id string) (*Pending, error) {
	t.mu.Lock()
	if _, exists := t.pending[id]; exists {
		t.mu.Unlock()
		return nil, beacon.NewError(beacon.CodeDuplicateID, "request id %s is already registered", id)
	}
	p := newPending(id)
	t.pending[id] = p
	n := len(t.pending)
	t.mu.Unlock()

	t.metrics.SetPending(n)
	return p, nil
}

// Settle delivers o to the entry for id and removes it. It returns false,
// and does nothing else, when no entry exists.
func (t *Table) Settle(id string, o Outcome) bool {
	p, ok := t.take(id)
	if !ok {
		slog.Debug(fmt.Sprintf("%s - No open request for id=%s, dropping", logPrefix, id))
		return false
	}
	p.settle(o)
	return true
}

// Cancel rejects the entry for id with a CANCELED error wrapping cause.
func (t *Table) Cancel(id string, cause error) bool {
	p, ok := t.take(id)
	if !ok {
		return false
	}
	slog.Debug(fmt.Sprintf("%s - Canceled request id=%s", logPrefix, id))
	p.settle(Failure{Err: beacon.WrapError(beacon.CodeCanceled, cause, fmt.Sprintf("request %s canceled", id))})
	return true
}

// Len returns the number of open entries.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

func (t *Table) take(id string) (*Pending, bool) {
	t.mu.Lock()
	p, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	n := len(t.pending)
	t.mu.Unlock()

	if ok {
		t.metrics.SetPending(n)
	}
	return p, ok
}
