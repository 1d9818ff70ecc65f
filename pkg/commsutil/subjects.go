package commsutil

import (
	"fmt"
	"strings"
)

// Default COMMS subjects.
const (
	SubjectRequests     = "beacon.wallet.requests"
	SubjectResponses    = "beacon.dapp.responses"
	SubjectEventsPrefix = "beacon.events"
)

// HeaderOrigin and HeaderPeer carry the connection context of an inbound
// message. HeaderEvent names the type of a mirrored engine event.
const (
	HeaderOrigin = "Beacon-Origin"
	HeaderPeer   = "Beacon-Peer"
	HeaderEvent  = "Beacon-Event"
)

// BuildEventSubject builds the subject an event type is published on.
func BuildEventSubject(prefix, eventType string) string {
	if prefix == "" {
		prefix = SubjectEventsPrefix
	}
	return fmt.Sprintf("%s.%s", prefix, strings.ToLower(eventType))
}

// BuildInboxSubject builds the per-client response subject for senderID.
func BuildInboxSubject(base, senderID string) string {
	if senderID == "" {
		return base
	}
	return fmt.Sprintf("%s.%s", base, senderID)
}
