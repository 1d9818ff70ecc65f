// Package client is the dApp-side request engine: it gates, sends and
// correlates Beacon requests and exposes one typed call per request kind.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/morezero/beacon-dapp/pkg/beacon"
	"github.com/morezero/beacon-dapp/pkg/commsutil"
	"github.com/morezero/beacon-dapp/pkg/correlation"
	"github.com/morezero/beacon-dapp/pkg/events"
	"github.com/morezero/beacon-dapp/pkg/metrics"
	"github.com/morezero/beacon-dapp/pkg/permission"
	"github.com/morezero/beacon-dapp/pkg/ratelimit"
	"github.com/morezero/beacon-dapp/pkg/session"
	"github.com/morezero/beacon-dapp/pkg/storage"
	"github.com/morezero/beacon-dapp/pkg/transport"
)

const logPrefix = "client:client"

// IdentitySource yields the senderId stamped on outbound envelopes.
type IdentitySource interface {
	SenderID(ctx context.Context) (string, error)
}

// Options wires a Client. Transport, Table, Session and Accounts are required.
type Options struct {
	Transport  transport.Transport
	Serializer commsutil.Serializer
	Table      *correlation.Table
	Session    *session.Manager
	Accounts   storage.AccountStore
	Identity   IdentitySource
	Limiter    ratelimit.Limiter
	Publisher  events.EventPublisher
	Metrics    *metrics.Metrics

	AppName string
	AppIcon string
	// DefaultNetwork is used when a request names none. Zero means mainnet.
	DefaultNetwork beacon.Network

	// Now and NewID are replaced in tests.
	Now   func() time.Time
	NewID func() string
}

// Client is the request orchestrator.
type Client struct {
	transport  transport.Transport
	serializer commsutil.Serializer
	table      *correlation.Table
	session    *session.Manager
	accounts   storage.AccountStore
	identity   IdentitySource
	limiter    ratelimit.Limiter
	publisher  events.EventPublisher
	metrics    *metrics.Metrics
	gate       *permission.Gate

	appName        string
	appIcon        string
	defaultNetwork beacon.Network

	now   func() time.Time
	newID func() string
}

// New validates opts and builds a Client.
func New(opts Options) (*Client, error) {
	if opts.Transport == nil {
		return nil, fmt.Errorf("%s - transport is required", logPrefix)
	}
	if opts.Table == nil {
		return nil, fmt.Errorf("%s - correlation table is required", logPrefix)
	}
	if opts.Session == nil {
		return nil, fmt.Errorf("%s - session manager is required", logPrefix)
	}
	if opts.Accounts == nil {
		return nil, fmt.Errorf("%s - account store is required", logPrefix)
	}

	c := &Client{
		transport:      opts.Transport,
		serializer:     opts.Serializer,
		table:          opts.Table,
		session:        opts.Session,
		accounts:       opts.Accounts,
		identity:       opts.Identity,
		limiter:        opts.Limiter,
		publisher:      opts.Publisher,
		metrics:        opts.Metrics,
		gate:           permission.NewGate(opts.Session),
		appName:        opts.AppName,
		appIcon:        opts.AppIcon,
		defaultNetwork: opts.DefaultNetwork,
		now:            opts.Now,
		newID:          opts.NewID,
	}
	if c.serializer == nil {
		c.serializer = commsutil.JSONSerializer{}
	}
	if c.limiter == nil {
		c.limiter = ratelimit.Unlimited{}
	}
	if c.publisher == nil {
		c.publisher = &events.NoOpPublisher{}
	}
	if c.defaultNetwork.Type == "" {
		c.defaultNetwork = beacon.DefaultNetwork()
	}
	if c.appName == "" {
		c.appName = "beacon-dapp"
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	return c, nil
}

// Send gates req, registers it and hands it to the transport. The returned
// entry settles when the matching response arrives.
func (c *Client) Send(ctx context.Context, req beacon.Request) (*correlation.Pending, error) {
	kind := req.MessageType()

	if err := c.transport.Init(ctx); err != nil {
		return nil, beacon.WrapError(beacon.CodeTransportFailure, err, "transport init failed")
	}
	if err := c.transport.Connect(ctx); err != nil {
		return nil, beacon.WrapError(beacon.CodeTransportFailure, err, "transport connect failed")
	}

	if !c.limiter.Allow(string(kind)) {
		c.publish(ctx, events.New(events.LocalRateLimitReached, &events.RequestPayload{Kind: kind}))
		c.metrics.RequestRejected(string(kind), string(beacon.CodeRateLimited))
		return nil, beacon.NewError(beacon.CodeRateLimited, "rate limit reached for %s", kind)
	}

	if err := c.gate.Check(kind); err != nil {
		c.publish(ctx, events.New(events.NoPermissions, &events.RequestPayload{Kind: kind}))
		c.metrics.RequestRejected(string(kind), string(codeOf(err)))
		return nil, err
	}

	if ev, ok := events.ForKind(kind); ok {
		c.publish(ctx, events.New(ev.Sent, &events.RequestPayload{Kind: kind}))
	}

	senderID, err := c.senderID(ctx)
	if err != nil {
		c.metrics.RequestRejected(string(kind), string(beacon.CodeIdentityNotReady))
		return nil, err
	}

	env := beacon.Envelope{
		ID:       c.newID(),
		Version:  beacon.ProtocolVersion,
		SenderID: senderID,
		Request:  stampSender(req, senderID),
	}

	pending, err := c.table.Register(env.ID)
	if err != nil {
		return nil, err
	}

	data, err := c.serializer.Serialize(env)
	if err != nil {
		c.table.Cancel(env.ID, err)
		return nil, beacon.WrapError(beacon.CodeTransportFailure, err, "failed to serialize "+string(kind))
	}
	if err := c.transport.Send(ctx, data); err != nil {
		c.table.Cancel(env.ID, err)
		return nil, beacon.WrapError(beacon.CodeTransportFailure, err, "failed to send "+string(kind))
	}

	c.metrics.RequestSent(string(kind))
	slog.Debug(fmt.Sprintf("%s - Sent %s id=%s", logPrefix, kind, env.ID))
	return pending, nil
}

// Submit sends req and waits for its response. When ctx ends first the
// entry is cancelled so it cannot leak.
func (c *Client) Submit(ctx context.Context, req beacon.Request) (*correlation.Success, error) {
	pending, err := c.Send(ctx, req)
	if err != nil {
		return nil, err
	}

	res, err := pending.Wait(ctx)
	if err == nil {
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		// Either Cancel wins or the response landed first; both leave the
		// outcome on the entry.
		c.table.Cancel(pending.ID(), ctxErr)
		return pending.Wait(context.Background())
	}
	return nil, err
}

// Cancel rejects an in-flight request. It returns false for unknown ids.
func (c *Client) Cancel(id string) bool {
	return c.table.Cancel(id, context.Canceled)
}

// ActiveAccount returns a copy of the active account, or nil.
func (c *Client) ActiveAccount() *beacon.AccountInfo {
	return c.session.Active()
}

// SetActiveAccount switches to an account from the account store.
func (c *Client) SetActiveAccount(ctx context.Context, accountIdentifier string) error {
	account, err := c.accounts.GetAccount(ctx, accountIdentifier)
	if err != nil {
		return err
	}
	if account == nil {
		return beacon.NewError(beacon.CodeInvalidInput, "unknown account %s", accountIdentifier)
	}
	return c.session.SetActive(ctx, account)
}

func (c *Client) senderID(ctx context.Context) (string, error) {
	if c.identity == nil {
		return "", beacon.NewError(beacon.CodeIdentityNotReady, "no sender identity configured")
	}
	id, err := c.identity.SenderID(ctx)
	if err != nil {
		return "", beacon.WrapError(beacon.CodeIdentityNotReady, err, "sender identity unavailable")
	}
	if id == "" {
		return "", beacon.NewError(beacon.CodeIdentityNotReady, "sender identity is empty")
	}
	return id, nil
}

func (c *Client) publish(ctx context.Context, ev *events.Event) {
	if err := c.publisher.Publish(ctx, ev); err != nil {
		slog.Warn(fmt.Sprintf("%s - Failed to publish %s: %v", logPrefix, ev.Type, err))
	}
}

// stampSender fills in the app metadata senderId on permission requests.
func stampSender(req beacon.Request, senderID string) beacon.Request {
	if p, ok := req.(beacon.PermissionRequestBody); ok && p.AppMetadata.SenderID == "" {
		p.AppMetadata.SenderID = senderID
		return p
	}
	return req
}

func codeOf(err error) beacon.Code {
	var be *beacon.Error
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}
