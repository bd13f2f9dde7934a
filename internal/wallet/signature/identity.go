// Package signature encodes device signatures into the signer enum the multisig account expects.
package signature

import (
	"fmt"
	"math/big"

	"github.com/NethermindEth/juno/core/felt"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github/chapool/go-stark-signer/internal/wallet/starknet"
)

// Tag is the position of a variant in the account's signer enum.
type Tag uint8

const (
	TagStarknet Tag = iota
	TagSecp256k1
	TagSecp256r1
	TagEip191
	TagWebauthn

	variantCount = 5
)

func (t Tag) String() string {
	switch t {
	case TagStarknet:
		return "Starknet"
	case TagSecp256k1:
		return "Secp256k1"
	case TagSecp256r1:
		return "Secp256r1"
	case TagEip191:
		return "Eip191"
	case TagWebauthn:
		return "Webauthn"
	default:
		return fmt.Sprintf("Tag(%d)", uint8(t))
	}
}

// SignerIdentity is one populated variant of the signer enum. The set of implementations is
// closed to this package.
type SignerIdentity interface {
	Tag() Tag
	signerIdentity()
}

// StarknetSigner is a native stark key.
type StarknetSigner struct {
	PublicKey *felt.Felt
}

// Secp256k1Signer is identified by the keccak hash of its public key (an Ethereum address).
type Secp256k1Signer struct {
	PubkeyHash *felt.Felt
}

// Secp256r1Signer is a P-256 key given by its x coordinate as u256.
type Secp256r1Signer struct {
	PublicKey *big.Int
}

// Eip191Signer verifies personal-sign signatures of an Ethereum address.
type Eip191Signer struct {
	EthAddress *felt.Felt
}

// WebauthnSigner is a passkey bound to an origin and relying party.
type WebauthnSigner struct {
	Origin    []byte
	RPIDHash  *big.Int
	PublicKey *big.Int
}

func (StarknetSigner) Tag() Tag  { return TagStarknet }
func (Secp256k1Signer) Tag() Tag { return TagSecp256k1 }
func (Secp256r1Signer) Tag() Tag { return TagSecp256r1 }
func (Eip191Signer) Tag() Tag    { return TagEip191 }
func (WebauthnSigner) Tag() Tag  { return TagWebauthn }

func (StarknetSigner) signerIdentity()  {}
func (Secp256k1Signer) signerIdentity() {}
func (Secp256r1Signer) signerIdentity() {}
func (Eip191Signer) signerIdentity()    {}
func (WebauthnSigner) signerIdentity()  {}

// Variants returns the enum as five slots in contract order. Exactly one slot is non-nil.
func Variants(identity SignerIdentity) [variantCount]SignerIdentity {
	var out [variantCount]SignerIdentity
	if identity != nil && int(identity.Tag()) < variantCount {
		out[identity.Tag()] = identity
	}
	return out
}

// StarknetIdentity builds the identity of a 32 byte stark public key.
func StarknetIdentity(publicKey []byte) (StarknetSigner, error) {
	if len(publicKey) != 32 {
		return StarknetSigner{}, errors.Errorf("stark public key has %d bytes, want 32", len(publicKey))
	}
	pub, err := starknet.FeltFromBytes(publicKey)
	if err != nil {
		return StarknetSigner{}, errors.Wrap(err, "stark public key out of range")
	}
	return StarknetSigner{PublicKey: pub}, nil
}

// Eip191Identity builds the identity of an uncompressed secp256k1 public key.
func Eip191Identity(publicKey []byte) (Eip191Signer, error) {
	address, err := ethAddressFelt(publicKey)
	if err != nil {
		return Eip191Signer{}, err
	}
	return Eip191Signer{EthAddress: address}, nil
}

// Secp256k1Identity builds the identity of an uncompressed secp256k1 public key.
func Secp256k1Identity(publicKey []byte) (Secp256k1Signer, error) {
	address, err := ethAddressFelt(publicKey)
	if err != nil {
		return Secp256k1Signer{}, err
	}
	return Secp256k1Signer{PubkeyHash: address}, nil
}

func ethAddressFelt(publicKey []byte) (*felt.Felt, error) {
	pub, err := ethcrypto.UnmarshalPubkey(publicKey)
	if err != nil {
		return nil, errors.Wrap(err, "invalid secp256k1 public key")
	}
	address := ethcrypto.PubkeyToAddress(*pub)
	return starknet.FeltFromBytes(address.Bytes())
}
