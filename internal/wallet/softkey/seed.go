package softkey

import (
	"crypto/sha512"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip32"
	"github/chapool/go-stark-signer/internal/wallet/starknet"
	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 2048 // BIP39 standard iterations
	pbkdf2KeyLength  = 64   // BIP39 standard key length (512 bits)
)

var ErrSeedCleared = errors.New("seed has been cleared")

// seedHolder keeps the BIP39 seed with thread-safe access.
type seedHolder struct {
	mu   sync.RWMutex
	seed []byte
}

// newSeedHolder converts mnemonic to a seed using PBKDF2.
// BIP39: seed = PBKDF2(mnemonic, "mnemonic" + passphrase, 2048, 64, SHA512)
func newSeedHolder(mnemonic string, passphrase string) (*seedHolder, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if mnemonic == "" {
		return nil, errors.New("mnemonic is required")
	}

	seed := pbkdf2.Key(
		[]byte(mnemonic),
		[]byte("mnemonic"+passphrase),
		pbkdf2Iterations,
		pbkdf2KeyLength,
		sha512.New,
	)

	return &seedHolder{seed: seed}, nil
}

// derivePrivateKey walks path from the master key.
// WARNING: Caller must clear the private key after use
func (h *seedHolder) derivePrivateKey(path starknet.DerivationPath) ([]byte, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.seed == nil {
		return nil, ErrSeedCleared
	}

	key, err := bip32.NewMasterKey(h.seed)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create master key")
	}

	for _, index := range path.Indices() {
		key, err = key.NewChildKey(index)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to derive child key at index %d", index)
		}
	}

	return key.Key, nil
}

// clear wipes the seed from memory.
func (h *seedHolder) clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := range h.seed {
		h.seed[i] = 0
	}
	h.seed = nil
}
