package starknet

import (
	"math/big"

	"github.com/NethermindEth/juno/core/felt"
)

// Call is a single contract invocation bundled into an account's __execute__.
type Call struct {
	ContractAddress *felt.Felt
	EntryPoint      string
	Calldata        []*felt.Felt
}

// ResourceBound limits one resource of a V3 transaction.
type ResourceBound struct {
	MaxAmount       uint64
	MaxPricePerUnit *big.Int // u128
}

// ResourceBounds is the V3 fee model. L1DataGas is only hashed when set.
type ResourceBounds struct {
	L1Gas     ResourceBound
	L2Gas     ResourceBound
	L1DataGas *ResourceBound
}

// FeeDetails holds the fee and versioning fields shared by every account transaction.
// MaxFee is read for FeeFamily versions, the remaining fields for ResourceFamily versions.
type FeeDetails struct {
	Version TransactionVersion
	Nonce   *felt.Felt
	ChainID *felt.Felt

	MaxFee *felt.Felt

	ResourceBounds            ResourceBounds
	Tip                       uint64
	PaymasterData             []*felt.Felt
	NonceDataAvailabilityMode DAMode
	FeeDataAvailabilityMode   DAMode
}

// InvocationDetails are the signer details of an invoke transaction.
type InvocationDetails struct {
	FeeDetails

	SenderAddress         *felt.Felt
	CairoVersion          CairoVersion
	AccountDeploymentData []*felt.Felt
}

// DeployAccountDetails are the signer details of a deploy-account transaction.
// ContractAddress is derived from the other fields when left nil.
type DeployAccountDetails struct {
	FeeDetails

	ClassHash           *felt.Felt
	AddressSalt         *felt.Felt
	ConstructorCalldata []*felt.Felt
	ContractAddress     *felt.Felt
}

// DeclareDetails are accepted for interface completeness; declare hashing is not supported.
type DeclareDetails struct {
	FeeDetails

	SenderAddress     *felt.Felt
	ClassHash         *felt.Felt
	CompiledClassHash *felt.Felt
}

// Well-known chain identifiers.
var (
	ChainIDMainnet = MustShortString("SN_MAIN")
	ChainIDSepolia = MustShortString("SN_SEPOLIA")
)
