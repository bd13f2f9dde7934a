package starknet

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const hardenedOffset uint32 = 0x80000000

// Default derivation paths used by the hardware apps.
const (
	// DefaultStarknetPath follows EIP-2645 for the Starknet Ledger app
	DefaultStarknetPath = "m/2645'/1195502025'/1148870696'/0'/0'/0"
	// DefaultEthereumPath is the first BIP44 Ethereum account
	DefaultEthereumPath = "m/44'/60'/0'/0/0"
)

// DerivationPath identifies a key on a hardware device. It is a value type and never mutated.
type DerivationPath struct {
	text    string
	indices []uint32
}

// ParseDerivationPath parses a path such as "m/44'/60'/0'/0/0". The leading "m/" is optional.
// Hardened segments are marked with a trailing apostrophe (or "h").
func ParseDerivationPath(path string) (DerivationPath, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(path, "m"), "/")
	if trimmed == "" {
		return DerivationPath{}, fmt.Errorf("invalid derivation path: %q", path)
	}

	parts := strings.Split(trimmed, "/")
	indices := make([]uint32, 0, len(parts))
	for _, part := range parts {
		hardened := false
		if strings.HasSuffix(part, "'") || strings.HasSuffix(part, "h") {
			hardened = true
			part = part[:len(part)-1]
		}

		index, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return DerivationPath{}, errors.Wrapf(err, "invalid path segment %q", part)
		}
		if hardened {
			if uint32(index) >= hardenedOffset {
				return DerivationPath{}, fmt.Errorf("hardened path segment out of range: %s", part)
			}
			index += uint64(hardenedOffset)
		}

		indices = append(indices, uint32(index))
	}

	return DerivationPath{text: path, indices: indices}, nil
}

// MustDerivationPath is ParseDerivationPath for constants.
func MustDerivationPath(path string) DerivationPath {
	p, err := ParseDerivationPath(path)
	if err != nil {
		panic(err)
	}
	return p
}

// Indices returns a copy of the numeric path components.
func (p DerivationPath) Indices() []uint32 {
	out := make([]uint32, len(p.indices))
	copy(out, p.indices)
	return out
}

// IsZero reports whether p was never parsed.
func (p DerivationPath) IsZero() bool {
	return len(p.indices) == 0
}

func (p DerivationPath) String() string {
	return p.text
}
