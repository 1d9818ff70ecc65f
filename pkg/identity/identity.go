// Package identity owns the dApp's own key pair, from which the beaconId and
// the senderId stamped on every outbound message are derived.
package identity

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/crypto/hkdf"

	"github.com/morezero/beacon-dapp/pkg/address"
	"github.com/morezero/beacon-dapp/pkg/storage"
)

const (
	logPrefix       = "identity:identity"
	hkdfInfoSigning = "beacon/dapp/signing/v1"
	seedSize        = 32
)

// Keys is the derived client key pair.
type Keys struct {
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
	// BeaconID is the hex-encoded public key.
	BeaconID string
	SenderID string
}

// DeriveKeys expands seed into the client signing key pair.
func DeriveKeys(seed []byte) (*Keys, error) {
	if len(seed) != seedSize {
		return nil, fmt.Errorf("%s - seed has %d bytes, want %d", logPrefix, len(seed), seedSize)
	}
	reader := hkdf.New(sha256.New, seed, nil, []byte(hkdfInfoSigning))
	signingSeed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(reader, signingSeed); err != nil {
		return nil, fmt.Errorf("%s - hkdf expand failed: %w", logPrefix, err)
	}

	priv := ed25519.NewKeyFromSeed(signingSeed)
	pub := priv.Public().(ed25519.PublicKey)
	beaconID := hex.EncodeToString(pub)
	senderID, err := address.SenderID(beaconID)
	if err != nil {
		return nil, err
	}
	return &Keys{PublicKey: pub, PrivateKey: priv, BeaconID: beaconID, SenderID: senderID}, nil
}

// Provider lazily loads, or creates and persists, the client seed.
type Provider struct {
	store storage.KVStore

	mu   sync.Mutex
	keys *Keys
}

// NewProvider creates a Provider backed by store.
func NewProvider(store storage.KVStore) *Provider {
	return &Provider{store: store}
}

// Keys returns the client keys, generating a seed on first use.
func (p *Provider) Keys(ctx context.Context) (*Keys, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.keys != nil {
		return p.keys, nil
	}
	if p.store == nil {
		return nil, fmt.Errorf("%s - no key store configured", logPrefix)
	}

	seed, err := p.loadOrCreateSeed(ctx)
	if err != nil {
		return nil, err
	}
	keys, err := DeriveKeys(seed)
	if err != nil {
		return nil, err
	}
	p.keys = keys
	slog.Info(fmt.Sprintf("%s - Client identity ready senderId=%s", logPrefix, keys.SenderID))
	return keys, nil
}

// SenderID returns the id placed on outbound envelopes.
func (p *Provider) SenderID(ctx context.Context) (string, error) {
	keys, err := p.Keys(ctx)
	if err != nil {
		return "", err
	}
	return keys.SenderID, nil
}

func (p *Provider) loadOrCreateSeed(ctx context.Context) ([]byte, error) {
	stored, ok, err := p.store.Get(ctx, storage.KeySecretSeed)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to read seed: %w", logPrefix, err)
	}
	if ok {
		seed, err := hex.DecodeString(stored)
		if err != nil {
			return nil, fmt.Errorf("%s - stored seed is corrupt: %w", logPrefix, err)
		}
		return seed, nil
	}

	seed := make([]byte, seedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("%s - failed to generate seed: %w", logPrefix, err)
	}
	if err := p.store.Set(ctx, storage.KeySecretSeed, hex.EncodeToString(seed)); err != nil {
		return nil, fmt.Errorf("%s - failed to persist seed: %w", logPrefix, err)
	}
	slog.Info(fmt.Sprintf("%s - Generated new client seed", logPrefix))
	return seed, nil
}
