// Package device adapts a hardware signing device to the signer. The device holds the private
// keys; this package only asks it for public keys and hash signatures and owns the channel to it.
package device

import (
	"context"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github/chapool/go-stark-signer/internal/metrics"
	"github/chapool/go-stark-signer/internal/util"
	"github/chapool/go-stark-signer/internal/wallet/starknet"
)

const (
	starkPublicKeySize        = 32
	secp256k1UncompressedSize = 65
	secp256k1CompressedSize   = 33

	opGetPublicKey = "get_public_key"
	opSignHash     = "sign_hash"
)

// Device is the capability set of a hardware signer. Both calls may block on physical
// confirmation and must honour ctx.
type Device interface {
	DerivePublicKey(ctx context.Context, path starknet.DerivationPath) ([]byte, error)
	SignHash(ctx context.Context, path starknet.DerivationPath, hash [32]byte) (RawSignature, error)
}

// RawSignature is the device output. V is the recovery id / y parity where the curve has one.
type RawSignature struct {
	R [32]byte
	S [32]byte
	V byte
}

// KeyType selects how public key material returned by the device is validated.
type KeyType int

const (
	KeyTypeStark KeyType = iota
	KeyTypeSecp256k1
)

func (k KeyType) String() string {
	if k == KeyTypeSecp256k1 {
		return "secp256k1"
	}
	return "stark"
}

// Signer owns the channel to a single device for the duration of a session.
// Only one device call is in flight at any time.
type Signer struct {
	device  Device
	slot    chan struct{}
	timeout time.Duration
	metrics *metrics.Metrics
}

// Option configures a Signer.
type Option func(*Signer)

// WithConfirmationTimeout bounds every device call. Zero disables the bound.
func WithConfirmationTimeout(timeout time.Duration) Option {
	return func(s *Signer) {
		s.timeout = timeout
	}
}

// WithMetrics records device call latencies.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Signer) {
		s.metrics = m
	}
}

// NewSigner wraps dev.
func NewSigner(dev Device, opts ...Option) (*Signer, error) {
	if dev == nil {
		return nil, errors.New("device is required")
	}

	s := &Signer{
		device: dev,
		slot:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// GetPublicKey derives the public key at path and validates its width for keyType.
// Stark keys are truncated to the 32-byte x coordinate; secp256k1 keys are returned uncompressed.
func (s *Signer) GetPublicKey(ctx context.Context, path starknet.DerivationPath, keyType KeyType) ([]byte, error) {
	var raw []byte
	err := s.do(ctx, opGetPublicKey, func(ctx context.Context) error {
		var err error
		raw, err = s.device.DerivePublicKey(ctx, path)
		return err
	})
	if err != nil {
		return nil, err
	}

	switch keyType {
	case KeyTypeStark:
		if len(raw) < starkPublicKeySize {
			return nil, NewError(KindMalformedResponse, opGetPublicKey,
				errors.Errorf("public key has %d bytes, want at least %d", len(raw), starkPublicKeySize))
		}
		out := make([]byte, starkPublicKeySize)
		copy(out, raw[:starkPublicKeySize])
		return out, nil

	case KeyTypeSecp256k1:
		switch len(raw) {
		case secp256k1UncompressedSize:
			pub, err := ethcrypto.UnmarshalPubkey(raw)
			if err != nil {
				return nil, NewError(KindMalformedResponse, opGetPublicKey, err)
			}
			return ethcrypto.FromECDSAPub(pub), nil
		case secp256k1CompressedSize:
			pub, err := ethcrypto.DecompressPubkey(raw)
			if err != nil {
				return nil, NewError(KindMalformedResponse, opGetPublicKey, err)
			}
			return ethcrypto.FromECDSAPub(pub), nil
		default:
			return nil, NewError(KindMalformedResponse, opGetPublicKey,
				errors.Errorf("secp256k1 public key has %d bytes", len(raw)))
		}

	default:
		return nil, errors.Errorf("unknown key type %d", int(keyType))
	}
}

// SignHash asks the device to sign hash at path. It may block until the user confirms.
func (s *Signer) SignHash(ctx context.Context, path starknet.DerivationPath, hash [32]byte) (RawSignature, error) {
	var sig RawSignature
	err := s.do(ctx, opSignHash, func(ctx context.Context) error {
		var err error
		sig, err = s.device.SignHash(ctx, path, hash)
		return err
	})
	if err != nil {
		return RawSignature{}, err
	}

	return sig, nil
}

// do runs fn while holding the device slot. The slot is released when fn returns, not when the
// caller gives up, so an abandoned confirmation never overlaps with the next request.
func (s *Signer) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	log := util.LogFromContext(ctx).With().Str("device_op", op).Logger()

	select {
	case s.slot <- struct{}{}:
	case <-ctx.Done():
		return classify(op, ctx.Err())
	}

	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if s.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
	}

	started := time.Now()
	done := make(chan error, 1)
	go func() {
		defer func() { <-s.slot }()
		done <- fn(callCtx)
	}()

	var err error
	select {
	case err = <-done:
	case <-callCtx.Done():
		err = callCtx.Err()
		log.Warn().Msg("Abandoning device call, device stays busy until it answers")
	}
	cancel()

	s.metrics.ObserveDeviceCall(op, time.Since(started), err)

	if err != nil {
		devErr := classify(op, err)
		log.Debug().Err(devErr).Str("kind", devErr.Kind.String()).Msg("Device call failed")
		return devErr
	}

	return nil
}
