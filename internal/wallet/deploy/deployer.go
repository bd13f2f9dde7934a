// Package deploy deploys multisig accounts with deploy-account transactions, at most once per
// address.
package deploy

import (
	"context"
	"time"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/pkg/errors"
	"github/chapool/go-stark-signer/internal/metrics"
	"github/chapool/go-stark-signer/internal/util"
	"github/chapool/go-stark-signer/internal/wallet/rpc"
	"github/chapool/go-stark-signer/internal/wallet/signature"
	"github/chapool/go-stark-signer/internal/wallet/signer"
	"github/chapool/go-stark-signer/internal/wallet/starknet"
	"github/chapool/go-stark-signer/internal/wallet/txhash"
)

var (
	ErrNoSignerConfigured = signer.ErrNoSignerConfigured
	ErrNoAddressComputed  = errors.New("no account address computed")
	ErrAddressMismatch    = errors.New("account address does not match class hash, salt and constructor calldata")
	// ErrPriorSubmissionUnconfirmed is returned when an earlier submission is recorded as pending
	// but the node does not know its transaction. The record has to be discarded explicitly
	// before a new submission is made.
	ErrPriorSubmissionUnconfirmed = errors.New("prior deployment submission is unconfirmed")
)

// RPC is the node API the deployer needs.
type RPC interface {
	GetClassHashAt(ctx context.Context, address *felt.Felt) (*felt.Felt, error)
	EstimateFee(ctx context.Context, txs []any, skipValidate bool) ([]rpc.FeeEstimate, error)
	AddDeployAccountTransaction(ctx context.Context, txn rpc.DeployAccountTxn) (*rpc.DeployAccountResult, error)
	GetTransactionStatus(ctx context.Context, txHash *felt.Felt) (*rpc.TransactionStatus, error)
}

// Signer signs the account's own deploy-account transaction.
type Signer interface {
	SignDeployAccountTransaction(ctx context.Context, details *starknet.DeployAccountDetails) (signature.EncodedSignature, error)
}

type Options struct {
	ChainID *felt.Felt
	// Version is the signed transaction version; estimates use its query variant.
	Version          starknet.TransactionVersion
	SkipValidate     bool
	FeeMarginPercent int64
}

// Payload describes the account to deploy.
type Payload struct {
	ClassHash           *felt.Felt
	Salt                *felt.Felt
	ConstructorCalldata []*felt.Felt
}

type Status int

const (
	StatusAlreadyDeployed Status = iota
	StatusDeployed
	StatusPending
)

func (s Status) String() string {
	switch s {
	case StatusAlreadyDeployed:
		return "already_deployed"
	case StatusDeployed:
		return "deployed"
	case StatusPending:
		return "pending"
	default:
		return "unknown"
	}
}

// Result is AlreadyDeployed, Deployed with the submitted transaction hash, or Pending with the
// hash of an earlier submission that is still in flight.
type Result struct {
	Status  Status
	Address *felt.Felt
	TxHash  *felt.Felt
	Fee     *rpc.FeeEstimate
}

type Deployer struct {
	rpc     RPC
	signer  Signer
	store   Store
	opts    Options
	metrics *metrics.Metrics
}

// NewDeployer validates its dependencies. m may be nil.
func NewDeployer(client RPC, s Signer, store Store, opts Options, m *metrics.Metrics) (*Deployer, error) {
	if s == nil {
		return nil, ErrNoSignerConfigured
	}
	if client == nil {
		return nil, errors.New("rpc client is required")
	}
	if store == nil {
		store = NewMemoryStore()
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

	return &Deployer{
		rpc:     client,
		signer:  s,
		store:   store,
		opts:    opts,
		metrics: m,
	}, nil
}

// ComputeAddress derives the deploy-account address of a class for the given constructor
// calldata and salt.
func ComputeAddress(classHash *felt.Felt, constructorCalldata []*felt.Felt, salt *felt.Felt) *felt.Felt {
	return starknet.ComputeContractAddress(salt, classHash, constructorCalldata, nil)
}

// MultisigConstructorCalldata serializes the multisig constructor arguments: the threshold
// followed by the signer array.
func MultisigConstructorCalldata(threshold uint64, identities ...signature.SignerIdentity) ([]*felt.Felt, error) {
	if len(identities) == 0 {
		return nil, errors.New("at least one signer is required")
	}
	if threshold == 0 || threshold > uint64(len(identities)) {
		return nil, errors.Errorf("threshold %d out of range for %d signers", threshold, len(identities))
	}

	out := []*felt.Felt{starknet.FeltFromUint64(threshold), starknet.FeltFromUint64(uint64(len(identities)))}
	for _, id := range identities {
		encoded, err := signature.EncodeSigner(id)
		if err != nil {
			return nil, err
		}
		out = append(out, encoded...)
	}

	return out, nil
}

// NewMultisigPayload builds the payload of a single-owner multisig account (threshold 1). The
// signer key is used as address salt.
func NewMultisigPayload(classHash *felt.Felt, identity signature.SignerIdentity) (Payload, error) {
	if classHash == nil {
		return Payload{}, errors.Wrap(txhash.ErrInvalidPayload, "class hash is required")
	}

	ctor, err := MultisigConstructorCalldata(1, identity)
	if err != nil {
		return Payload{}, err
	}
	encoded, err := signature.EncodeSigner(identity)
	if err != nil {
		return Payload{}, err
	}

	return Payload{
		ClassHash:           classHash,
		Salt:                encoded[len(encoded)-1],
		ConstructorCalldata: ctor,
	}, nil
}

// Address returns the address p deploys to.
func (p Payload) Address() (*felt.Felt, error) {
	if p.ClassHash == nil || p.Salt == nil {
		return nil, errors.Wrap(ErrNoAddressComputed, "payload is missing class hash or salt")
	}
	return ComputeAddress(p.ClassHash, p.ConstructorCalldata, p.Salt), nil
}

// DeployIfAbsent deploys the account at address unless a contract already lives there. The
// deploy-account transaction is submitted at most once per call and never retried; when the
// submission outcome is unknown the record stays pending and later calls check its status
// instead of submitting again.
func (d *Deployer) DeployIfAbsent(ctx context.Context, address *felt.Felt, payload Payload) (*Result, error) {
	res, err := d.deployIfAbsent(ctx, address, payload)
	if err != nil {
		d.metrics.ObserveDeployment("error")
		return nil, err
	}
	d.metrics.ObserveDeployment(res.Status.String())
	return res, nil
}

func (d *Deployer) deployIfAbsent(ctx context.Context, address *felt.Felt, payload Payload) (*Result, error) {
	if d.signer == nil {
		return nil, ErrNoSignerConfigured
	}
	if address == nil {
		return nil, ErrNoAddressComputed
	}
	computed, err := payload.Address()
	if err != nil {
		return nil, err
	}
	if !computed.Equal(address) {
		return nil, errors.Wrapf(ErrAddressMismatch, "expected %s, got %s",
			starknet.FeltToHex(computed), starknet.FeltToHex(address))
	}

	log := util.LogFromContext(ctx).With().Str("address", starknet.FeltToHex(address)).Logger()

	classHash, err := d.rpc.GetClassHashAt(ctx, address)
	switch {
	case err == nil:
		log.Info().Str("class_hash", starknet.FeltToHex(classHash)).Msg("Account already deployed")
		d.markDeployed(ctx, address, payload)
		return &Result{Status: StatusAlreadyDeployed, Address: address}, nil
	case errors.Is(err, rpc.ErrContractNotFound):
	default:
		return nil, errors.Wrap(err, "failed to check whether the account is deployed")
	}

	pending, err := d.checkPending(ctx, address)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		log.Info().Str("tx_hash", starknet.FeltToHex(pending.TxHash)).Msg("Deployment already submitted")
		return pending, nil
	}

	details := &starknet.DeployAccountDetails{
		FeeDetails: starknet.FeeDetails{
			Version:                   d.opts.Version,
			Nonce:                     new(felt.Felt),
			ChainID:                   d.opts.ChainID,
			NonceDataAvailabilityMode: starknet.DAModeL1,
			FeeDataAvailabilityMode:   starknet.DAModeL1,
		},
		ClassHash:           payload.ClassHash,
		AddressSalt:         payload.Salt,
		ConstructorCalldata: payload.ConstructorCalldata,
		ContractAddress:     address,
	}

	estimate, err := d.estimateFee(ctx, details)
	if err != nil {
		return nil, err
	}
	if err := estimate.ApplyTo(&details.FeeDetails, d.opts.FeeMarginPercent); err != nil {
		return nil, err
	}

	sig, err := d.signer.SignDeployAccountTransaction(ctx, details)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign deploy account transaction")
	}
	sigFelts, err := sig.Felts()
	if err != nil {
		return nil, err
	}
	txHash, err := txhash.DeployAccountHash(details)
	if err != nil {
		return nil, err
	}

	rec := Record{
		Address:   address,
		ClassHash: payload.ClassHash,
		Salt:      payload.Salt,
		TxHash:    txHash,
		Status:    RecordPending,
	}
	if err := d.store.Save(ctx, rec); err != nil {
		return nil, errors.Wrap(err, "failed to record deployment before submission")
	}

	submitted, err := d.rpc.AddDeployAccountTransaction(ctx, rpc.NewDeployAccountTxn(details, sigFelts))
	if err != nil {
		if rpc.IsTransient(err) {
			log.Warn().Err(err).Str("tx_hash", starknet.FeltToHex(txHash)).
				Msg("Deployment submission outcome unknown, leaving it pending")
			return nil, errors.Wrap(err, "deployment submission outcome unknown")
		}

		rec.Status = RecordFailed
		if saveErr := d.store.Save(ctx, rec); saveErr != nil {
			log.Error().Err(saveErr).Msg("Failed to mark deployment record failed")
		}
		return nil, errors.Wrap(err, "deployment rejected by node")
	}

	if nodeHash, err := starknet.ParseFelt(submitted.TransactionHash); err == nil && !nodeHash.Equal(txHash) {
		log.Warn().Str("tx_hash", starknet.FeltToHex(txHash)).Str("node_tx_hash", submitted.TransactionHash).
			Msg("Node reported a different transaction hash")
	}

	log.Info().Str("tx_hash", starknet.FeltToHex(txHash)).Msg("Deployment submitted")

	return &Result{
		Status:  StatusDeployed,
		Address: address,
		TxHash:  txHash,
		Fee:     estimate,
	}, nil
}

// DiscardPending marks the pending record of address failed so that the next DeployIfAbsent
// submits again. Use it only once the earlier transaction is known to be dropped.
func (d *Deployer) DiscardPending(ctx context.Context, address *felt.Felt) error {
	rec, err := d.store.Get(ctx, address)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if rec.Status != RecordPending {
		return nil
	}

	rec.Status = RecordFailed
	rec.UpdatedAt = time.Now()
	return d.store.Save(ctx, *rec)
}

// checkPending returns a Pending result when an earlier submission for address is still in
// flight. Failed submissions are cleared so a new one can be made.
func (d *Deployer) checkPending(ctx context.Context, address *felt.Felt) (*Result, error) {
	rec, err := d.store.Get(ctx, address)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to load deployment record")
	}
	if rec.Status != RecordPending || rec.TxHash == nil {
		return nil, nil
	}

	status, err := d.rpc.GetTransactionStatus(ctx, rec.TxHash)
	if err != nil {
		if errors.Is(err, rpc.ErrTransactionNotFound) {
			return nil, errors.Wrapf(ErrPriorSubmissionUnconfirmed, "transaction %s", starknet.FeltToHex(rec.TxHash))
		}
		return nil, errors.Wrap(err, "failed to check prior deployment submission")
	}

	if status.Failed() {
		util.LogFromContext(ctx).Warn().
			Str("tx_hash", starknet.FeltToHex(rec.TxHash)).
			Str("finality_status", status.FinalityStatus).
			Str("failure_reason", status.FailureReason).
			Msg("Prior deployment failed, submitting again")

		rec.Status = RecordFailed
		rec.UpdatedAt = time.Now()
		if err := d.store.Save(ctx, *rec); err != nil {
			return nil, errors.Wrap(err, "failed to mark deployment record failed")
		}
		return nil, nil
	}

	return &Result{Status: StatusPending, Address: address, TxHash: rec.TxHash}, nil
}

// estimateFee estimates with the query version. With validation the query transaction is signed
// too, which costs an extra device confirmation.
func (d *Deployer) estimateFee(ctx context.Context, details *starknet.DeployAccountDetails) (*rpc.FeeEstimate, error) {
	query := *details
	query.Version = details.Version.Query()

	var sigFelts []*felt.Felt
	if !d.opts.SkipValidate {
		sig, err := d.signer.SignDeployAccountTransaction(ctx, &query)
		if err != nil {
			return nil, errors.Wrap(err, "failed to sign fee estimation")
		}
		if sigFelts, err = sig.Felts(); err != nil {
			return nil, err
		}
	}

	estimates, err := d.rpc.EstimateFee(ctx, []any{rpc.NewDeployAccountTxn(&query, sigFelts)}, d.opts.SkipValidate)
	if err != nil {
		return nil, errors.Wrap(err, "failed to estimate deployment fee")
	}
	if len(estimates) != 1 {
		return nil, errors.Errorf("expected 1 fee estimate, got %d", len(estimates))
	}

	return &estimates[0], nil
}

func (d *Deployer) markDeployed(ctx context.Context, address *felt.Felt, payload Payload) {
	rec, err := d.store.Get(ctx, address)
	if err == nil && rec.Status == RecordDeployed {
		return
	}
	next := Record{Address: address, ClassHash: payload.ClassHash, Salt: payload.Salt, Status: RecordDeployed, UpdatedAt: time.Now()}
	if err == nil {
		next.TxHash = rec.TxHash
	}
	if err := d.store.Save(ctx, next); err != nil {
		util.LogFromContext(ctx).Warn().Err(err).Msg("Failed to record deployed account")
	}
}
