// Package txhash computes the protocol message hashes of Starknet account transactions.
// Every function in this package is pure.
package txhash

import (
	"github.com/NethermindEth/juno/core/crypto"
	"github.com/NethermindEth/juno/core/felt"
	"github.com/pkg/errors"
	"github/chapool/go-stark-signer/internal/wallet/starknet"
)

var (
	prefixInvoke        = starknet.MustShortString("invoke")
	prefixDeployAccount = starknet.MustShortString("deploy_account")
)

// ComputeHash returns the transaction hash of payload, which has to be of the given kind.
// Declare transactions always fail with ErrNotImplemented.
func ComputeHash(kind starknet.TransactionKind, payload Payload) (*felt.Felt, error) {
	if kind == starknet.KindDeclare {
		return nil, errors.Wrap(ErrNotImplemented, "declare transaction hash")
	}
	if payload == nil {
		return nil, errors.Wrap(ErrInvalidPayload, "payload is nil")
	}
	if payload.Kind() != kind {
		return nil, errors.Wrapf(ErrInvalidPayload, "payload of kind %s passed as %s", payload.Kind(), kind)
	}

	switch p := payload.(type) {
	case Invoke:
		return InvokeHash(p.Calls, &p.Details)
	case *Invoke:
		return InvokeHash(p.Calls, &p.Details)
	case DeployAccount:
		return DeployAccountHash(&p.Details)
	case *DeployAccount:
		return DeployAccountHash(&p.Details)
	default:
		return nil, errors.Wrapf(ErrInvalidPayload, "unknown payload type %T", payload)
	}
}

// InvokeHash compiles calls into __execute__ calldata and hashes the invoke transaction.
func InvokeHash(calls []starknet.Call, details *starknet.InvocationDetails) (*felt.Felt, error) {
	calldata, err := starknet.CompileExecuteCalldata(calls, details.CairoVersion)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidPayload, err.Error())
	}
	return InvokeHashFromCalldata(calldata, details)
}

// InvokeHashFromCalldata hashes an invoke transaction whose calldata is already compiled.
func InvokeHashFromCalldata(calldata []*felt.Felt, details *starknet.InvocationDetails) (*felt.Felt, error) {
	version, err := versionFelt(details.Version)
	if err != nil {
		return nil, err
	}
	if details.SenderAddress == nil || details.Nonce == nil || details.ChainID == nil {
		return nil, errors.Wrap(ErrInvalidPayload, "invoke requires sender address, nonce and chain id")
	}

	switch details.Version.Family() {
	case starknet.FeeFamily:
		return crypto.PedersenArray(
			prefixInvoke,
			version,
			details.SenderAddress,
			new(felt.Felt), // entry point selector, unused since v1
			crypto.PedersenArray(calldata...),
			feltOrZero(details.MaxFee),
			details.ChainID,
			details.Nonce,
		), nil

	case starknet.ResourceFamily:
		feeFields, daModes, err := resourceFields(&details.FeeDetails)
		if err != nil {
			return nil, err
		}
		return crypto.PoseidonArray(
			prefixInvoke,
			version,
			details.SenderAddress,
			feeFields,
			crypto.PoseidonArray(details.PaymasterData...),
			details.ChainID,
			details.Nonce,
			daModes,
			crypto.PoseidonArray(details.AccountDeploymentData...),
			crypto.PoseidonArray(calldata...),
		), nil

	case starknet.UnknownFamily:
		fallthrough
	default:
		return nil, errors.Wrapf(ErrUnsupportedVersion, "%q", string(details.Version))
	}
}

// DeployAccountHash hashes a deploy-account transaction. The contract address is derived from
// class hash, salt and constructor calldata; a preset address must match the derived one.
func DeployAccountHash(details *starknet.DeployAccountDetails) (*felt.Felt, error) {
	version, err := versionFelt(details.Version)
	if err != nil {
		return nil, err
	}
	if details.ClassHash == nil || details.AddressSalt == nil || details.ChainID == nil {
		return nil, errors.Wrap(ErrInvalidPayload, "deploy account requires class hash, address salt and chain id")
	}

	address := starknet.ComputeContractAddress(details.AddressSalt, details.ClassHash, details.ConstructorCalldata, nil)
	if details.ContractAddress != nil && !details.ContractAddress.Equal(address) {
		return nil, errors.Wrapf(ErrInvalidPayload, "contract address %s was not derived from the address salt",
			starknet.FeltToHex(details.ContractAddress))
	}
	nonce := feltOrZero(details.Nonce)

	switch details.Version.Family() {
	case starknet.FeeFamily:
		preimage := append([]*felt.Felt{details.ClassHash, details.AddressSalt}, details.ConstructorCalldata...)
		return crypto.PedersenArray(
			prefixDeployAccount,
			version,
			address,
			new(felt.Felt),
			crypto.PedersenArray(preimage...),
			feltOrZero(details.MaxFee),
			details.ChainID,
			nonce,
		), nil

	case starknet.ResourceFamily:
		feeFields, daModes, err := resourceFields(&details.FeeDetails)
		if err != nil {
			return nil, err
		}
		return crypto.PoseidonArray(
			prefixDeployAccount,
			version,
			address,
			feeFields,
			crypto.PoseidonArray(details.PaymasterData...),
			details.ChainID,
			nonce,
			daModes,
			crypto.PoseidonArray(details.ConstructorCalldata...),
			details.ClassHash,
			details.AddressSalt,
		), nil

	case starknet.UnknownFamily:
		fallthrough
	default:
		return nil, errors.Wrapf(ErrUnsupportedVersion, "%q", string(details.Version))
	}
}

// DeclareHash exists so callers get a typed error instead of a silently wrong hash.
func DeclareHash(_ *starknet.DeclareDetails) (*felt.Felt, error) {
	return nil, errors.Wrap(ErrNotImplemented, "declare transaction hash")
}

func versionFelt(v starknet.TransactionVersion) (*felt.Felt, error) {
	if v.Family() == starknet.UnknownFamily {
		return nil, errors.Wrapf(ErrUnsupportedVersion, "%q", string(v))
	}
	return v.Felt()
}

func feltOrZero(f *felt.Felt) *felt.Felt {
	if f == nil {
		return new(felt.Felt)
	}
	return f
}
