// Package address derives Tezos addresses and stable account identifiers from
// wallet public keys.
package address

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/mr-tron/base58/base58"
)

const base58LogPrefix = "address:base58check"

// ErrChecksum is returned when a base58check string fails verification.
var ErrChecksum = errors.New("base58check checksum mismatch")

func checksum(payload []byte) []byte {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	return second[:4]
}

// EncodeCheck encodes prefix||payload followed by a 4-byte double-sha256 checksum.
func EncodeCheck(prefix, payload []byte) string {
	buf := make([]byte, 0, len(prefix)+len(payload)+4)
	buf = append(buf, prefix...)
	buf = append(buf, payload...)
	buf = append(buf, checksum(buf)...)
	return base58.Encode(buf)
}

// DecodeCheck verifies the checksum and returns the bytes after prefix.
func DecodeCheck(s string, prefix []byte) ([]byte, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%s - invalid base58: %w", base58LogPrefix, err)
	}
	if len(raw) < len(prefix)+4 {
		return nil, fmt.Errorf("%s - input too short (%d bytes)", base58LogPrefix, len(raw))
	}
	body, sum := raw[:len(raw)-4], raw[len(raw)-4:]
	if !bytes.Equal(checksum(body), sum) {
		return nil, fmt.Errorf("%s - %w", base58LogPrefix, ErrChecksum)
	}
	if !bytes.HasPrefix(body, prefix) {
		return nil, fmt.Errorf("%s - unexpected prefix", base58LogPrefix)
	}
	return body[len(prefix):], nil
}
