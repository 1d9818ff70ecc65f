// Package dispatcher routes decoded inbound messages to the request that is
// waiting for them.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/morezero/beacon-dapp/pkg/beacon"
	"github.com/morezero/beacon-dapp/pkg/commsutil"
	"github.com/morezero/beacon-dapp/pkg/correlation"
	"github.com/morezero/beacon-dapp/pkg/events"
	"github.com/morezero/beacon-dapp/pkg/metrics"
)

const logPrefix = "dispatcher:dispatcher"

// Dispatcher settles correlation entries from inbound messages.
type Dispatcher struct {
	table      *correlation.Table
	serializer commsutil.Serializer
	publisher  events.EventPublisher
	metrics    *metrics.Metrics
}

// NewDispatcher creates a new Dispatcher. A nil serializer means JSON and a
// nil publisher drops events.
func NewDispatcher(table *correlation.Table, serializer commsutil.Serializer, publisher events.EventPublisher, m *metrics.Metrics) *Dispatcher {
	if serializer == nil {
		serializer = commsutil.JSONSerializer{}
	}
	if publisher == nil {
		publisher = &events.NoOpPublisher{}
	}
	return &Dispatcher{table: table, serializer: serializer, publisher: publisher, metrics: m}
}

// HandleData decodes data and routes it. Undecodable payloads are dropped.
func (d *Dispatcher) HandleData(ctx context.Context, data []byte, cc beacon.ConnectionContext) {
	var msg beacon.Message
	if err := d.serializer.Deserialize(data, &msg); err != nil {
		slog.Warn(fmt.Sprintf("%s - Dropping undecodable message from %s/%s: %v", logPrefix, cc.Origin, cc.ID, err))
		d.metrics.ResponseRouted("undecodable")
		return
	}
	d.HandleMessage(ctx, &msg, cc)
}

// HandleMessage is the inbound delivery hook. The success or failure of a
// response is decided here, once.
func (d *Dispatcher) HandleMessage(ctx context.Context, msg *beacon.Message, cc beacon.ConnectionContext) {
	if msg == nil {
		return
	}
	slog.Debug(fmt.Sprintf("%s - type=%s id=%s origin=%s", logPrefix, msg.Type, msg.ID, cc.Origin))

	if msg.Version != "" {
		if err := beacon.CheckVersion(msg.Version); err != nil {
			slog.Warn(fmt.Sprintf("%s - Message %s: %v", logPrefix, msg.ID, err))
		}
	}

	switch msg.Type {
	case beacon.Acknowledge:
		d.metrics.ResponseRouted("acknowledge")
		ev := events.New(events.AcknowledgeReceived, &events.AcknowledgePayload{ID: msg.ID, Context: cc})
		if err := d.publisher.Publish(ctx, ev); err != nil {
			slog.Warn(fmt.Sprintf("%s - Failed to publish %s: %v", logPrefix, ev.Type, err))
		}
		return
	case beacon.Disconnect:
		slog.Info(fmt.Sprintf("%s - Peer %s/%s disconnected", logPrefix, cc.Origin, cc.ID))
		return
	}

	outcome, label := classify(msg, cc)
	if !d.table.Settle(msg.ID, outcome) {
		d.metrics.ResponseRouted("unmatched")
		return
	}
	d.metrics.ResponseRouted(label)
}

func classify(msg *beacon.Message, cc beacon.ConnectionContext) (correlation.Outcome, string) {
	if msg.IsError() {
		return correlation.Failure{Err: beacon.NewRemoteError(msg)}, "failure"
	}
	return correlation.Success{Message: msg, Context: cc}, "success"
}
