package txhash

import (
	"github.com/pkg/errors"
	"github/chapool/go-stark-signer/internal/wallet/starknet"
)

var (
	// ErrUnsupportedVersion is returned for versions outside of the fee and resource families
	ErrUnsupportedVersion = errors.New("unsupported transaction version")
	// ErrNotImplemented is returned for every declare transaction
	ErrNotImplemented = errors.New("not implemented")
	// ErrInvalidPayload is returned when required payload fields are missing or malformed
	ErrInvalidPayload = errors.New("invalid transaction payload")
)

// Payload is a hashable transaction. Implemented by Invoke, DeployAccount and Declare.
type Payload interface {
	Kind() starknet.TransactionKind
	version() starknet.TransactionVersion
}

// Invoke bundles the calls of an invoke transaction with its signer details.
type Invoke struct {
	Calls   []starknet.Call
	Details starknet.InvocationDetails
}

// DeployAccount wraps the signer details of a deploy-account transaction.
type DeployAccount struct {
	Details starknet.DeployAccountDetails
}

// Declare wraps the signer details of a declare transaction.
type Declare struct {
	Details starknet.DeclareDetails
}

func (Invoke) Kind() starknet.TransactionKind        { return starknet.KindInvoke }
func (DeployAccount) Kind() starknet.TransactionKind { return starknet.KindDeployAccount }
func (Declare) Kind() starknet.TransactionKind       { return starknet.KindDeclare }

func (p Invoke) version() starknet.TransactionVersion        { return p.Details.Version }
func (p DeployAccount) version() starknet.TransactionVersion { return p.Details.Version }
func (p Declare) version() starknet.TransactionVersion       { return p.Details.Version }
