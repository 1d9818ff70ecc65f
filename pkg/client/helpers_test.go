package client

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/morezero/beacon-dapp/pkg/beacon"
	"github.com/morezero/beacon-dapp/pkg/correlation"
	"github.com/morezero/beacon-dapp/pkg/dispatcher"
	"github.com/morezero/beacon-dapp/pkg/events"
	"github.com/morezero/beacon-dapp/pkg/metrics"
	"github.com/morezero/beacon-dapp/pkg/session"
	"github.com/morezero/beacon-dapp/pkg/storage"
	"github.com/morezero/beacon-dapp/pkg/transport"
)

const (
	clientTestPrefix = "client:client_test"
	testSenderID     = "3vCpbGkAVN2Hs"
)

var walletContext = beacon.ConnectionContext{Origin: beacon.OriginP2P, ID: "wallet-peer"}

// fakeTransport records every payload and optionally answers it.
type fakeTransport struct {
	mu         sync.Mutex
	sends      [][]byte
	inits      int
	connects   int
	initErr    error
	connectErr error
	sendErr    error
	onSend     func(data []byte)
}

func (f *fakeTransport) Init(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inits++
	return f.initErr
}

func (f *fakeTransport) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	return f.connectErr
}

func (f *fakeTransport) Send(_ context.Context, data []byte) error {
	f.mu.Lock()
	if f.sendErr != nil {
		f.mu.Unlock()
		return f.sendErr
	}
	f.sends = append(f.sends, data)
	onSend := f.onSend
	f.mu.Unlock()

	if onSend != nil {
		onSend(data)
	}
	return nil
}

func (f *fakeTransport) SetHandler(transport.Handler) {}

func (f *fakeTransport) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

func (f *fakeTransport) sent(i int) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sends[i]
}

type staticIdentity struct {
	id  string
	err error
}

func (s staticIdentity) SenderID(context.Context) (string, error) { return s.id, s.err }

// eventRecorder collects every published event type.
type eventRecorder struct {
	mu    sync.Mutex
	types []events.Type
	last  map[events.Type]*events.Event
}

func (r *eventRecorder) record(_ context.Context, e *events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, e.Type)
	r.last[e.Type] = e
}

func (r *eventRecorder) has(t events.Type) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.last[t]
	return ok
}

func (r *eventRecorder) get(t events.Type) *events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last[t]
}

type harness struct {
	client     *Client
	transport  *fakeTransport
	dispatcher *dispatcher.Dispatcher
	table      *correlation.Table
	session    *session.Manager
	store      *storage.Memory
	events     *eventRecorder
}

func newHarness(t *testing.T, configure ...func(*Options)) *harness {
	t.Helper()

	bus := events.NewBus()
	rec := &eventRecorder{last: make(map[events.Type]*events.Event)}
	bus.Subscribe("", rec.record)

	store := storage.NewMemory()
	table := correlation.NewTable(nil)
	sess := session.NewManager(store, bus)
	tr := &fakeTransport{}
	m := metrics.New()

	var seq int
	var seqMu sync.Mutex
	opts := Options{
		Transport: tr,
		Table:     table,
		Session:   sess,
		Accounts:  store,
		Identity:  staticIdentity{id: testSenderID},
		Publisher: bus,
		Metrics:   m,
		AppName:   "test-dapp",
		Now:       func() time.Time { return time.Unix(1_700_000_000, 0) },
		NewID: func() string {
			seqMu.Lock()
			defer seqMu.Unlock()
			seq++
			return fmt.Sprintf("req-%d", seq)
		},
	}
	for _, fn := range configure {
		fn(&opts)
	}

	c, err := New(opts)
	if err != nil {
		t.Fatalf("%s - New failed: %v", clientTestPrefix, err)
	}
	return &harness{
		client:     c,
		transport:  tr,
		dispatcher: dispatcher.NewDispatcher(table, nil, bus, m),
		table:      table,
		session:    sess,
		store:      store,
		events:     rec,
	}
}

// respondWith makes the fake wallet answer every request synchronously.
func (h *harness) respondWith(answer func(req *beacon.Message, fields map[string]json.RawMessage) *beacon.Message) {
	h.transport.onSend = func(data []byte) {
		req, fields := decodeSent(data)
		resp := answer(req, fields)
		if resp == nil {
			return
		}
		resp.ID = req.ID
		if resp.Version == "" {
			resp.Version = beacon.ProtocolVersion
		}
		h.dispatcher.HandleMessage(context.Background(), resp, walletContext)
	}
}

func decodeSent(data []byte) (*beacon.Message, map[string]json.RawMessage) {
	var msg beacon.Message
	var fields map[string]json.RawMessage
	_ = json.Unmarshal(data, &msg)
	_ = json.Unmarshal(data, &fields)
	return &msg, fields
}

func stringField(fields map[string]json.RawMessage, key string) string {
	var s string
	_ = json.Unmarshal(fields[key], &s)
	return s
}

func testPublicKey() string {
	priv := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{42}, ed25519.SeedSize))
	return hex.EncodeToString(priv.Public().(ed25519.PublicKey))
}

func grantedAccount(scopes ...beacon.PermissionScope) *beacon.AccountInfo {
	return &beacon.AccountInfo{
		AccountIdentifier: "acc-test",
		Address:           "tz1TestActiveAddress",
		Network:           beacon.Network{Type: beacon.NetworkDelphinet},
		Scopes:            scopes,
	}
}
