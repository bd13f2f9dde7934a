// Package signer implements account signing on top of a hardware device, producing signatures
// in the multisig signer enum format.
package signer

import (
	"context"
	"sync"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github/chapool/go-stark-signer/internal/metrics"
	"github/chapool/go-stark-signer/internal/util"
	"github/chapool/go-stark-signer/internal/wallet/signature"
	"github/chapool/go-stark-signer/internal/wallet/starknet"
	"github/chapool/go-stark-signer/internal/wallet/txhash"
	"github/chapool/go-stark-signer/internal/wallet/typeddata"
)

const (
	opSignMessage       = "sign_message"
	opSignInvoke        = "sign_invoke"
	opSignDeployAccount = "sign_deploy_account"
	opSignDeclare       = "sign_declare"
)

// MultisigSigner signs with one device key. Every request starts over: the hash is computed, the
// device signs, the public key is re-derived and the signature encoded. Nothing is cached.
//
// Concurrent requests are allowed and queue on the device. State and LastError describe the most
// recently started request only; an older request finishing later does not overwrite them.
type MultisigSigner struct {
	session Session
	metrics *metrics.Metrics

	mu      sync.Mutex
	current uint64
	state   State
	lastErr error
}

var _ Service = (*MultisigSigner)(nil)

// New creates a signer for session. m may be nil.
func New(session Session, m *metrics.Metrics) (*MultisigSigner, error) {
	if session.Device == nil {
		return nil, ErrNoSignerConfigured
	}
	if session.Path.IsZero() {
		return nil, errors.New("derivation path is required")
	}
	if _, err := ParseScheme(string(session.Scheme)); err != nil {
		return nil, err
	}

	return &MultisigSigner{
		session: session,
		metrics: m,
		state:   StateIdle,
	}, nil
}

// State returns the state of the most recently started request.
func (s *MultisigSigner) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastError returns the cause of the last failure, nil unless State is StateFailed.
func (s *MultisigSigner) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// begin starts a request in state and returns its id.
func (s *MultisigSigner) begin(state State, err error) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current++
	s.state = state
	s.lastErr = err
	return s.current
}

// transition moves request id to state unless a newer request has started since.
func (s *MultisigSigner) transition(id uint64, state State, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != s.current {
		return
	}
	s.state = state
	s.lastErr = err
}

func (s *MultisigSigner) PublicKey(ctx context.Context) ([]byte, error) {
	return s.session.Device.GetPublicKey(ctx, s.session.Path, s.session.Scheme.keyType())
}

func (s *MultisigSigner) Identity(ctx context.Context) (signature.SignerIdentity, error) {
	pub, err := s.PublicKey(ctx)
	if err != nil {
		return nil, err
	}
	return s.identity(pub)
}

func (s *MultisigSigner) identity(pub []byte) (signature.SignerIdentity, error) {
	switch s.session.Scheme {
	case SchemeStarknet:
		return signature.StarknetIdentity(pub)
	case SchemeEip191:
		return signature.Eip191Identity(pub)
	default:
		return nil, errors.Wrapf(ErrUnknownScheme, "%q", s.session.Scheme)
	}
}

func (s *MultisigSigner) SignMessage(ctx context.Context, td *typeddata.TypedData, account *felt.Felt) (signature.EncodedSignature, error) {
	return s.sign(ctx, opSignMessage, func() (*felt.Felt, error) {
		if td == nil {
			return nil, errors.Wrap(typeddata.ErrInvalidSchema, "typed data is nil")
		}
		return typeddata.MessageHash(td, account)
	})
}

func (s *MultisigSigner) SignTransaction(ctx context.Context, calls []starknet.Call, details *starknet.InvocationDetails) (signature.EncodedSignature, error) {
	return s.sign(ctx, opSignInvoke, func() (*felt.Felt, error) {
		if details == nil {
			return nil, errors.Wrap(txhash.ErrInvalidPayload, "invocation details are nil")
		}
		return txhash.ComputeHash(starknet.KindInvoke, txhash.Invoke{Calls: calls, Details: *details})
	})
}

func (s *MultisigSigner) SignDeployAccountTransaction(ctx context.Context, details *starknet.DeployAccountDetails) (signature.EncodedSignature, error) {
	return s.sign(ctx, opSignDeployAccount, func() (*felt.Felt, error) {
		if details == nil {
			return nil, errors.Wrap(txhash.ErrInvalidPayload, "deploy account details are nil")
		}
		return txhash.ComputeHash(starknet.KindDeployAccount, txhash.DeployAccount{Details: *details})
	})
}

// SignDeclareTransaction is not supported. The device is never contacted.
func (s *MultisigSigner) SignDeclareTransaction(ctx context.Context, _ *starknet.DeclareDetails) (signature.EncodedSignature, error) {
	err := errors.Wrap(txhash.ErrNotImplemented, "declare transactions cannot be signed")
	s.begin(StateFailed, err)
	s.metrics.ObserveSignRequest(opSignDeclare, err)
	util.LogFromContext(ctx).Warn().Str("operation", opSignDeclare).Msg("Declare signing requested")
	return nil, err
}

func (s *MultisigSigner) sign(ctx context.Context, op string, hashFn func() (*felt.Felt, error)) (signature.EncodedSignature, error) {
	ctx = util.WithRequestID(ctx, uuid.NewString())
	log := util.LogFromContext(ctx).With().Str("operation", op).Str("scheme", string(s.session.Scheme)).Logger()

	id := s.begin(StateAwaitingDeviceConfirmation, nil)

	encoded, err := s.signHash(ctx, hashFn)
	s.metrics.ObserveSignRequest(op, err)
	if err != nil {
		s.transition(id, StateFailed, err)
		log.Error().Err(err).Msg("Signing request failed")
		return nil, err
	}

	s.transition(id, StateSigned, nil)
	log.Debug().Msg("Signing request completed")

	return encoded, nil
}

func (s *MultisigSigner) signHash(ctx context.Context, hashFn func() (*felt.Felt, error)) (signature.EncodedSignature, error) {
	hash, err := hashFn()
	if err != nil {
		return nil, err
	}

	util.LogFromContext(ctx).Debug().Str("hash", starknet.FeltToHex(hash)).Msg("Waiting for device confirmation")

	raw, err := s.session.Device.SignHash(ctx, s.session.Path, hash.Bytes())
	if err != nil {
		return nil, err
	}

	// re-derived on every request
	pub, err := s.PublicKey(ctx)
	if err != nil {
		return nil, err
	}

	identity, err := s.identity(pub)
	if err != nil {
		return nil, err
	}

	return signature.Encode(identity, raw)
}
