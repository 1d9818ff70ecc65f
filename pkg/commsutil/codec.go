package commsutil

import (
	"encoding/json"
	"fmt"

	"github.com/morezero/beacon-dapp/pkg/address"
)

const codecLogPrefix = "commsutil:codec"

// Wire formats accepted by NewSerializer.
const (
	FormatJSON   = "json"
	FormatBase58 = "base58"
)

// Serializer turns envelopes into wire bytes and back.
type Serializer interface {
	Serialize(v interface{}) ([]byte, error)
	Deserialize(data []byte, v interface{}) error
}

// JSONSerializer sends plain JSON.
type JSONSerializer struct{}

func (JSONSerializer) Serialize(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONSerializer) Deserialize(data []byte, v interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("%s - empty payload", codecLogPrefix)
	}
	return json.Unmarshal(data, v)
}

// Base58Serializer sends base58check(JSON), the form Beacon peers exchange.
type Base58Serializer struct{}

func (Base58Serializer) Serialize(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to encode payload: %w", codecLogPrefix, err)
	}
	return []byte(address.EncodeCheck(nil, data)), nil
}

func (Base58Serializer) Deserialize(data []byte, v interface{}) error {
	raw, err := address.DecodeCheck(string(data), nil)
	if err != nil {
		return fmt.Errorf("%s - failed to decode base58 payload: %w", codecLogPrefix, err)
	}
	return json.Unmarshal(raw, v)
}

// NewSerializer returns the serializer for format.
func NewSerializer(format string) (Serializer, error) {
	switch format {
	case "", FormatJSON:
		return JSONSerializer{}, nil
	case FormatBase58:
		return Base58Serializer{}, nil
	default:
		return nil, fmt.Errorf("%s - unknown wire format %q", codecLogPrefix, format)
	}
}
