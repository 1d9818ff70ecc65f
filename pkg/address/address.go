package address

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/morezero/beacon-dapp/pkg/beacon"
)

const logPrefix = "address:address"

var (
	prefixEd25519PublicKey   = []byte{13, 15, 37, 217}
	prefixSecp256k1PublicKey = []byte{3, 254, 226, 86}
	prefixP256PublicKey      = []byte{3, 178, 139, 127}

	prefixTz1 = []byte{6, 161, 159}
	prefixTz2 = []byte{6, 161, 161}
	prefixTz3 = []byte{6, 161, 164}
)

type keyKind struct {
	encoded string
	prefix  []byte
	size    int
	address []byte
}

var keyKinds = []keyKind{
	{encoded: "edpk", prefix: prefixEd25519PublicKey, size: 32, address: prefixTz1},
	{encoded: "sppk", prefix: prefixSecp256k1PublicKey, size: 33, address: prefixTz2},
	{encoded: "p2pk", prefix: prefixP256PublicKey, size: 33, address: prefixTz3},
}

// EncodeEd25519PublicKey returns the edpk form of a raw 32-byte key.
func EncodeEd25519PublicKey(raw []byte) string {
	return EncodeCheck(prefixEd25519PublicKey, raw)
}

// FromPublicKey derives the implicit account address for a public key. The key
// is either a base58check edpk/sppk/p2pk string or 64 hex characters holding a
// raw ed25519 key.
func FromPublicKey(publicKey string) (string, error) {
	publicKey = strings.TrimSpace(publicKey)
	if publicKey == "" {
		return "", fmt.Errorf("%s - public key is empty", logPrefix)
	}

	if len(publicKey) == 64 {
		raw, err := hex.DecodeString(publicKey)
		if err == nil {
			return hashKey(raw, prefixTz1)
		}
	}

	for _, k := range keyKinds {
		if !strings.HasPrefix(publicKey, k.encoded) {
			continue
		}
		raw, err := DecodeCheck(publicKey, k.prefix)
		if err != nil {
			return "", fmt.Errorf("%s - invalid %s key: %w", logPrefix, k.encoded, err)
		}
		if len(raw) != k.size {
			return "", fmt.Errorf("%s - %s key has %d bytes, want %d", logPrefix, k.encoded, len(raw), k.size)
		}
		return hashKey(raw, k.address)
	}
	return "", fmt.Errorf("%s - unsupported public key format", logPrefix)
}

func hashKey(raw, prefix []byte) (string, error) {
	h, err := blake2b.New(20, nil)
	if err != nil {
		return "", err
	}
	h.Write(raw)
	return EncodeCheck(prefix, h.Sum(nil)), nil
}

// AccountIdentifier derives the stable identifier under which an account is
// stored. It depends only on the address and the network.
func AccountIdentifier(addr string, network beacon.Network) string {
	parts := []string{addr, string(network.Type)}
	if network.Name != "" {
		parts = append(parts, "name:"+network.Name)
	}
	if network.RPCURL != "" {
		parts = append(parts, "rpc:"+network.RPCURL)
	}
	sum := blake2b.Sum256([]byte(strings.Join(parts, "-")))
	return EncodeCheck(nil, sum[:10])
}

// SenderID derives the short sender id announced for a hex-encoded public key.
func SenderID(publicKeyHex string) (string, error) {
	raw, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return "", fmt.Errorf("%s - sender key is not hex: %w", logPrefix, err)
	}
	h, err := blake2b.New(5, nil)
	if err != nil {
		return "", err
	}
	h.Write(raw)
	return EncodeCheck(nil, h.Sum(nil)), nil
}
