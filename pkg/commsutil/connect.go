// Package commsutil provides COMMS connection helpers, wire serializers and
// subject naming for the Beacon transport.
package commsutil

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	comms "github.com/nats-io/nats.go"
)

const logPrefix = "commsutil:connect"

// DefaultClientName is used when Connect is given no name.
const DefaultClientName = "beacon-dapp"

// Connect dials COMMS as a Beacon client. Reconnects are unlimited since
// pending requests stay open across a broker restart. extra options are
// applied after the defaults.
func Connect(url, name string, extra ...comms.Option) (*comms.Conn, error) {
	if name == "" {
		name = DefaultClientName
	}
	slog.Info(fmt.Sprintf("%s - Connecting to COMMS at %s as %s", logPrefix, url, name))

	opts := []comms.Option{
		comms.Name(name),
		comms.Timeout(10 * time.Second),
		comms.ReconnectWait(2 * time.Second),
		comms.MaxReconnects(-1),
		comms.DrainTimeout(5 * time.Second),
		comms.DisconnectErrHandler(func(_ *comms.Conn, err error) {
			slog.Warn(fmt.Sprintf("%s - COMMS disconnected: %v", logPrefix, err))
		}),
		comms.ReconnectHandler(func(nc *comms.Conn) {
			slog.Info(fmt.Sprintf("%s - COMMS reconnected to %s", logPrefix, nc.ConnectedUrl()))
		}),
		comms.ErrorHandler(func(_ *comms.Conn, sub *comms.Subscription, err error) {
			if errors.Is(err, comms.ErrSlowConsumer) && sub != nil {
				slog.Error(fmt.Sprintf("%s - Dropping messages on %s, responses may be lost", logPrefix, sub.Subject))
				return
			}
			slog.Error(fmt.Sprintf("%s - COMMS async error: %v", logPrefix, err))
		}),
	}
	nc, err := comms.Connect(url, append(opts, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to connect to COMMS: %w", logPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Connected to COMMS at %s", logPrefix, nc.ConnectedUrl()))
	return nc, nil
}
