// Package transport moves serialized envelopes between the dApp and a wallet.
package transport

import (
	"context"

	"github.com/morezero/beacon-dapp/pkg/beacon"
)

// Handler receives every inbound payload together with where it came from.
type Handler func(ctx context.Context, data []byte, cc beacon.ConnectionContext)

// Transport is a fire-and-forget channel with an inbound delivery hook.
// Init and Connect are idempotent.
type Transport interface {
	Init(ctx context.Context) error
	Connect(ctx context.Context) error
	Send(ctx context.Context, data []byte) error
	SetHandler(h Handler)
}
