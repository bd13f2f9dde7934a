package signer

import (
	"context"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/pkg/errors"
	"github/chapool/go-stark-signer/internal/wallet/device"
	"github/chapool/go-stark-signer/internal/wallet/signature"
	"github/chapool/go-stark-signer/internal/wallet/starknet"
	"github/chapool/go-stark-signer/internal/wallet/typeddata"
)

var (
	ErrNoSignerConfigured = errors.New("no signer configured")
	ErrUnknownScheme      = errors.New("unknown signer scheme")
)

// Service is the signing capability set an account needs.
type Service interface {
	// PublicKey returns the device public key of the session path.
	PublicKey(ctx context.Context) ([]byte, error)
	// Identity returns the signer enum variant of the session key.
	Identity(ctx context.Context) (signature.SignerIdentity, error)
	// SignMessage signs the SNIP-12 hash of td for account.
	SignMessage(ctx context.Context, td *typeddata.TypedData, account *felt.Felt) (signature.EncodedSignature, error)
	// SignTransaction signs an invoke of calls.
	SignTransaction(ctx context.Context, calls []starknet.Call, details *starknet.InvocationDetails) (signature.EncodedSignature, error)
	// SignDeployAccountTransaction signs the account's own deployment.
	SignDeployAccountTransaction(ctx context.Context, details *starknet.DeployAccountDetails) (signature.EncodedSignature, error)
	// SignDeclareTransaction always fails with txhash.ErrNotImplemented.
	SignDeclareTransaction(ctx context.Context, details *starknet.DeclareDetails) (signature.EncodedSignature, error)
}

// State is the lifecycle of the most recent signing request.
type State int

const (
	StateIdle State = iota
	StateAwaitingDeviceConfirmation
	StateSigned
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingDeviceConfirmation:
		return "awaiting_device_confirmation"
	case StateSigned:
		return "signed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Scheme selects which device app signs and which signer variant is produced.
type Scheme string

const (
	// SchemeStarknet signs with the stark key of the Starknet app.
	SchemeStarknet Scheme = "starknet"
	// SchemeEip191 personal-signs with the secp256k1 key of the Ethereum app.
	SchemeEip191 Scheme = "eip191"
)

func ParseScheme(s string) (Scheme, error) {
	switch Scheme(s) {
	case SchemeStarknet, SchemeEip191:
		return Scheme(s), nil
	default:
		return "", errors.Wrapf(ErrUnknownScheme, "%q", s)
	}
}

func (s Scheme) keyType() device.KeyType {
	if s == SchemeEip191 {
		return device.KeyTypeSecp256k1
	}
	return device.KeyTypeStark
}

// Session is everything a signer needs from the outside: the device channel, the key path and
// the scheme. No process-wide state is consulted.
type Session struct {
	Device *device.Signer
	Path   starknet.DerivationPath
	Scheme Scheme
}
