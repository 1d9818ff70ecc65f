package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/beacon-dapp/pkg/beacon"
	"github.com/morezero/beacon-dapp/pkg/commsutil"
)

const logPrefix = "transport:comms_transport"

// ErrNotConnected is returned by Send before Connect succeeded.
var ErrNotConnected = errors.New("transport not connected")

// CommsTransportOpts configures CommsTransport.
type CommsTransportOpts struct {
	// Conn is used when set; otherwise Init dials URL.
	Conn *comms.Conn
	URL  string
	Name string
	// RequestSubject is where envelopes are published for the wallet.
	RequestSubject string
	// ResponseSubject is the inbox the wallet answers on.
	ResponseSubject string
}

// CommsTransport carries envelopes over COMMS subjects.
type CommsTransport struct {
	opts CommsTransportOpts

	mu       sync.Mutex
	nc       *comms.Conn
	ownsConn bool
	sub      *comms.Subscription
	handler  Handler
}

// NewCommsTransport creates an unconnected transport.
func NewCommsTransport(opts CommsTransportOpts) *CommsTransport {
	if opts.RequestSubject == "" {
		opts.RequestSubject = commsutil.SubjectRequests
	}
	if opts.ResponseSubject == "" {
		opts.ResponseSubject = commsutil.SubjectResponses
	}
	if opts.Name == "" {
		opts.Name = commsutil.DefaultClientName
	}
	return &CommsTransport{opts: opts, nc: opts.Conn}
}

// SetHandler installs the inbound delivery hook.
func (t *CommsTransport) SetHandler(h Handler) {
	t.mu.Lock()
	t.handler = h
	t.mu.Unlock()
}

// Init establishes the COMMS connection.
func (t *CommsTransport) Init(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.nc != nil {
		return nil
	}
	nc, err := commsutil.Connect(t.opts.URL, t.opts.Name)
	if err != nil {
		return err
	}
	t.nc = nc
	t.ownsConn = true
	return nil
}

// Connect subscribes to the response subject.
func (t *CommsTransport) Connect(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sub != nil {
		return nil
	}
	if t.nc == nil {
		return fmt.Errorf("%s - %w: Init was not called", logPrefix, ErrNotConnected)
	}
	sub, err := t.nc.Subscribe(t.opts.ResponseSubject, t.onMsg)
	if err != nil {
		return fmt.Errorf("%s - failed to subscribe to %s: %w", logPrefix, t.opts.ResponseSubject, err)
	}
	t.sub = sub
	slog.Info(fmt.Sprintf("%s - Listening for responses on %s", logPrefix, t.opts.ResponseSubject))
	return nil
}

// Send publishes data on the request subject with the response subject as reply.
func (t *CommsTransport) Send(_ context.Context, data []byte) error {
	t.mu.Lock()
	nc, connected := t.nc, t.sub != nil
	t.mu.Unlock()
	if !connected {
		return fmt.Errorf("%s - %w", logPrefix, ErrNotConnected)
	}

	msg := &comms.Msg{
		Subject: t.opts.RequestSubject,
		Reply:   t.opts.ResponseSubject,
		Data:    data,
	}
	if err := nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("%s - failed to publish to %s: %w", logPrefix, t.opts.RequestSubject, err)
	}
	return nil
}

// Close unsubscribes and closes the connection if the transport dialled it.
func (t *CommsTransport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sub != nil {
		if err := t.sub.Unsubscribe(); err != nil {
			slog.Warn(fmt.Sprintf("%s - Unsubscribe failed: %v", logPrefix, err))
		}
		t.sub = nil
	}
	if t.ownsConn && t.nc != nil {
		t.nc.Close()
		t.nc = nil
	}
}

func (t *CommsTransport) onMsg(msg *comms.Msg) {
	t.mu.Lock()
	h := t.handler
	t.mu.Unlock()
	if h == nil {
		slog.Warn(fmt.Sprintf("%s - No handler installed, dropping message on %s", logPrefix, msg.Subject))
		return
	}
	h(context.Background(), msg.Data, connectionContext(msg))
}

func connectionContext(msg *comms.Msg) beacon.ConnectionContext {
	cc := beacon.ConnectionContext{Origin: beacon.OriginP2P, ID: msg.Subject}
	if msg.Header == nil {
		return cc
	}
	if origin := msg.Header.Get(commsutil.HeaderOrigin); origin != "" {
		cc.Origin = beacon.Origin(origin)
	}
	if peer := msg.Header.Get(commsutil.HeaderPeer); peer != "" {
		cc.ID = peer
	}
	return cc
}
