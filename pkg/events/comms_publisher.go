package events

import (
	"context"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/beacon-dapp/pkg/commsutil"
)

const commsPublisherLogPrefix = "events:comms_publisher"

// CommsPublisherOpts configures CommsPublisher. Nil or zero values use defaults.
type CommsPublisherOpts struct {
	// SubjectPrefix overrides the event subject prefix (e.g. from BEACON_EVENT_SUBJECT_PREFIX).
	SubjectPrefix string
	// Serializer encodes events; JSON when nil.
	Serializer commsutil.Serializer
}

// CommsPublisher mirrors engine events onto COMMS, one subject per event type,
// so that processes other than the dApp can observe request lifecycles.
type CommsPublisher struct {
	nc            *comms.Conn
	subjectPrefix string
	serializer    commsutil.Serializer
}

// NewCommsPublisher creates a new CommsPublisher. Pass nil for opts to use defaults.
func NewCommsPublisher(nc *comms.Conn, opts *CommsPublisherOpts) *CommsPublisher {
	p := &CommsPublisher{
		nc:            nc,
		subjectPrefix: commsutil.SubjectEventsPrefix,
		serializer:    commsutil.JSONSerializer{},
	}
	if opts != nil {
		if opts.SubjectPrefix != "" {
			p.subjectPrefix = opts.SubjectPrefix
		}
		if opts.Serializer != nil {
			p.serializer = opts.Serializer
		}
	}
	return p
}

// Publish sends the event to <prefix>.<lowercased type> with the raw type in
// the Beacon-Event header.
func (p *CommsPublisher) Publish(_ context.Context, event *Event) error {
	if event == nil {
		return nil
	}
	data, err := p.serializer.Serialize(event)
	if err != nil {
		return fmt.Errorf("%s - failed to encode %s event: %w", commsPublisherLogPrefix, event.Type, err)
	}

	msg := comms.NewMsg(commsutil.BuildEventSubject(p.subjectPrefix, string(event.Type)))
	msg.Header.Set(commsutil.HeaderEvent, string(event.Type))
	msg.Data = data
	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("%s - failed to publish to %s: %w", commsPublisherLogPrefix, msg.Subject, err)
	}

	slog.Debug(fmt.Sprintf("%s - Published %s event", commsPublisherLogPrefix, event.Type))
	return nil
}
