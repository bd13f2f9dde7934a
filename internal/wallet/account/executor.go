// Package account signs and submits invoke transactions of a deployed multisig account.
package account

import (
	"context"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/pkg/errors"
	"github/chapool/go-stark-signer/internal/util"
	"github/chapool/go-stark-signer/internal/wallet/rpc"
	"github/chapool/go-stark-signer/internal/wallet/signature"
	"github/chapool/go-stark-signer/internal/wallet/signer"
	"github/chapool/go-stark-signer/internal/wallet/starknet"
	"github/chapool/go-stark-signer/internal/wallet/txhash"
)

// RPC is the node API the executor needs.
type RPC interface {
	GetNonce(ctx context.Context, address *felt.Felt) (*felt.Felt, error)
	EstimateFee(ctx context.Context, txs []any, skipValidate bool) ([]rpc.FeeEstimate, error)
	AddInvokeTransaction(ctx context.Context, txn rpc.InvokeTxn) (*rpc.InvokeResult, error)
}

type Signer interface {
	SignTransaction(ctx context.Context, calls []starknet.Call, details *starknet.InvocationDetails) (signature.EncodedSignature, error)
}

type Options struct {
	ChainID          *felt.Felt
	Version          starknet.TransactionVersion
	CairoVersion     starknet.CairoVersion
	SkipValidate     bool
	FeeMarginPercent int64
}

// Signed is a fully prepared invoke: the details that were hashed and signed, the signature and
// the compiled calldata that goes on the wire.
type Signed struct {
	Details   starknet.InvocationDetails
	Calldata  []*felt.Felt
	Signature signature.EncodedSignature
	TxHash    *felt.Felt
	Fee       *rpc.FeeEstimate
}

type Executor struct {
	rpc    RPC
	signer Signer
	opts   Options
}

func NewExecutor(client RPC, s Signer, opts Options) (*Executor, error) {
	if s == nil {
		return nil, signer.ErrNoSignerConfigured
	}
	if client == nil {
		return nil, errors.New("rpc client is required")
	}
	if opts.ChainID == nil {
		return nil, errors.New("chain id is required")
	}
	if opts.Version.Family() == starknet.UnknownFamily {
		return nil, errors.Wrapf(txhash.ErrUnsupportedVersion, "%q", string(opts.Version))
	}
	if opts.FeeMarginPercent <= 0 {
		opts.FeeMarginPercent = rpc.DefaultFeeMarginPercent
	}

	return &Executor{rpc: client, signer: s, opts: opts}, nil
}

// Sign fetches the nonce of address, estimates the fee, attaches the suggested bounds and signs.
// Nothing is submitted.
func (e *Executor) Sign(ctx context.Context, address *felt.Felt, calls []starknet.Call) (*Signed, error) {
	if address == nil {
		return nil, errors.New("account address is required")
	}
	if len(calls) == 0 {
		return nil, errors.New("at least one call is required")
	}

	calldata, err := starknet.CompileExecuteCalldata(calls, e.opts.CairoVersion)
	if err != nil {
		return nil, err
	}
	nonce, err := e.rpc.GetNonce(ctx, address)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch account nonce")
	}

	details := starknet.InvocationDetails{
		FeeDetails: starknet.FeeDetails{
			Version:                   e.opts.Version,
			Nonce:                     nonce,
			ChainID:                   e.opts.ChainID,
			NonceDataAvailabilityMode: starknet.DAModeL1,
			FeeDataAvailabilityMode:   starknet.DAModeL1,
		},
		SenderAddress: address,
		CairoVersion:  e.opts.CairoVersion,
	}

	estimate, err := e.estimateFee(ctx, calls, calldata, details)
	if err != nil {
		return nil, err
	}
	if err := estimate.ApplyTo(&details.FeeDetails, e.opts.FeeMarginPercent); err != nil {
		return nil, err
	}

	sig, err := e.signer.SignTransaction(ctx, calls, &details)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign invoke transaction")
	}
	txHash, err := txhash.InvokeHashFromCalldata(calldata, &details)
	if err != nil {
		return nil, err
	}

	return &Signed{
		Details:   details,
		Calldata:  calldata,
		Signature: sig,
		TxHash:    txHash,
		Fee:       estimate,
	}, nil
}

// Submit broadcasts signed exactly once.
func (e *Executor) Submit(ctx context.Context, signed *Signed) (*felt.Felt, error) {
	sigFelts, err := signed.Signature.Felts()
	if err != nil {
		return nil, err
	}

	res, err := e.rpc.AddInvokeTransaction(ctx, rpc.NewInvokeTxn(signed.Calldata, &signed.Details, sigFelts))
	if err != nil {
		return nil, errors.Wrap(err, "failed to submit invoke transaction")
	}

	log := util.LogFromContext(ctx)
	if nodeHash, err := starknet.ParseFelt(res.TransactionHash); err == nil && !nodeHash.Equal(signed.TxHash) {
		log.Warn().Str("tx_hash", starknet.FeltToHex(signed.TxHash)).Str("node_tx_hash", res.TransactionHash).
			Msg("Node reported a different transaction hash")
	}
	log.Info().
		Str("address", starknet.FeltToHex(signed.Details.SenderAddress)).
		Str("tx_hash", starknet.FeltToHex(signed.TxHash)).
		Msg("Invoke submitted")

	return signed.TxHash, nil
}

// Execute signs and submits calls.
func (e *Executor) Execute(ctx context.Context, address *felt.Felt, calls []starknet.Call) (*Signed, error) {
	signed, err := e.Sign(ctx, address, calls)
	if err != nil {
		return nil, err
	}
	if _, err := e.Submit(ctx, signed); err != nil {
		return nil, err
	}
	return signed, nil
}

func (e *Executor) estimateFee(ctx context.Context, calls []starknet.Call, calldata []*felt.Felt, details starknet.InvocationDetails) (*rpc.FeeEstimate, error) {
	details.Version = details.Version.Query()

	var sigFelts []*felt.Felt
	if !e.opts.SkipValidate {
		sig, err := e.signer.SignTransaction(ctx, calls, &details)
		if err != nil {
			return nil, errors.Wrap(err, "failed to sign fee estimation")
		}
		if sigFelts, err = sig.Felts(); err != nil {
			return nil, err
		}
	}

	estimates, err := e.rpc.EstimateFee(ctx, []any{rpc.NewInvokeTxn(calldata, &details, sigFelts)}, e.opts.SkipValidate)
	if err != nil {
		return nil, errors.Wrap(err, "failed to estimate invoke fee")
	}
	if len(estimates) != 1 {
		return nil, errors.Errorf("expected 1 fee estimate, got %d", len(estimates))
	}

	return &estimates[0], nil
}
