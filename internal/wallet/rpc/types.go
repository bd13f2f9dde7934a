package rpc

import (
	"encoding/json"
	"math/big"
	"strconv"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/pkg/errors"
	"github/chapool/go-stark-signer/internal/wallet/starknet"
)

const (
	txTypeInvoke        = "INVOKE"
	txTypeDeployAccount = "DEPLOY_ACCOUNT"

	BlockLatest = "latest"

	simulationSkipValidate = "SKIP_VALIDATE"
)

// Finality and execution statuses of starknet_getTransactionStatus.
const (
	StatusReceived     = "RECEIVED"
	StatusRejected     = "REJECTED"
	StatusAcceptedOnL2 = "ACCEPTED_ON_L2"
	StatusAcceptedOnL1 = "ACCEPTED_ON_L1"

	ExecutionSucceeded = "SUCCEEDED"
	ExecutionReverted  = "REVERTED"
)

type ResourceBound struct {
	MaxAmount       string `json:"max_amount"`
	MaxPricePerUnit string `json:"max_price_per_unit"`
}

type ResourceBoundsMapping struct {
	L1Gas     ResourceBound  `json:"l1_gas"`
	L2Gas     ResourceBound  `json:"l2_gas"`
	L1DataGas *ResourceBound `json:"l1_data_gas,omitempty"`
}

// DeployAccountTxn is the broadcasted deploy-account transaction. Fields not used by the
// version's fee model are left out of the JSON.
type DeployAccountTxn struct {
	Version             starknet.TransactionVersion
	Signature           []string
	Nonce               string
	ContractAddressSalt string
	ConstructorCalldata []string
	ClassHash           string

	MaxFee string

	ResourceBounds            ResourceBoundsMapping
	Tip                       string
	PaymasterData             []string
	NonceDataAvailabilityMode starknet.DAMode
	FeeDataAvailabilityMode   starknet.DAMode
}

// InvokeTxn is the broadcasted invoke transaction.
type InvokeTxn struct {
	Version       starknet.TransactionVersion
	Signature     []string
	Nonce         string
	SenderAddress string
	Calldata      []string

	MaxFee string

	ResourceBounds            ResourceBoundsMapping
	Tip                       string
	PaymasterData             []string
	AccountDeploymentData     []string
	NonceDataAvailabilityMode starknet.DAMode
	FeeDataAvailabilityMode   starknet.DAMode
}

func (t DeployAccountTxn) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"type":                  txTypeDeployAccount,
		"version":               string(t.Version),
		"signature":             nonNil(t.Signature),
		"nonce":                 t.Nonce,
		"contract_address_salt": t.ContractAddressSalt,
		"constructor_calldata":  nonNil(t.ConstructorCalldata),
		"class_hash":            t.ClassHash,
	}
	if err := addFeeFields(out, t.Version, t.MaxFee, t.ResourceBounds, t.Tip, t.PaymasterData, t.NonceDataAvailabilityMode, t.FeeDataAvailabilityMode); err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

func (t InvokeTxn) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"type":           txTypeInvoke,
		"version":        string(t.Version),
		"signature":      nonNil(t.Signature),
		"nonce":          t.Nonce,
		"sender_address": t.SenderAddress,
		"calldata":       nonNil(t.Calldata),
	}
	if err := addFeeFields(out, t.Version, t.MaxFee, t.ResourceBounds, t.Tip, t.PaymasterData, t.NonceDataAvailabilityMode, t.FeeDataAvailabilityMode); err != nil {
		return nil, err
	}
	if t.Version.Family() == starknet.ResourceFamily {
		out["account_deployment_data"] = nonNil(t.AccountDeploymentData)
	}
	return json.Marshal(out)
}

func addFeeFields(
	out map[string]any,
	version starknet.TransactionVersion,
	maxFee string,
	bounds ResourceBoundsMapping,
	tip string,
	paymasterData []string,
	nonceDA, feeDA starknet.DAMode,
) error {
	switch version.Family() {
	case starknet.FeeFamily:
		out["max_fee"] = maxFee
	case starknet.ResourceFamily:
		out["resource_bounds"] = bounds
		out["tip"] = tip
		out["paymaster_data"] = nonNil(paymasterData)
		out["nonce_data_availability_mode"] = string(nonceDA)
		out["fee_data_availability_mode"] = string(feeDA)
	default:
		return errors.Errorf("unsupported transaction version %q", string(version))
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func hexUint(v uint64) string {
	return "0x" + strconv.FormatUint(v, 16)
}

func hexBig(v *big.Int) string {
	if v == nil {
		return "0x0"
	}
	return "0x" + v.Text(16)
}

func hexFelt(f *felt.Felt) string {
	if f == nil {
		return "0x0"
	}
	return starknet.FeltToHex(f)
}

func resourceBounds(b starknet.ResourceBounds) ResourceBoundsMapping {
	out := ResourceBoundsMapping{
		L1Gas: ResourceBound{MaxAmount: hexUint(b.L1Gas.MaxAmount), MaxPricePerUnit: hexBig(b.L1Gas.MaxPricePerUnit)},
		L2Gas: ResourceBound{MaxAmount: hexUint(b.L2Gas.MaxAmount), MaxPricePerUnit: hexBig(b.L2Gas.MaxPricePerUnit)},
	}
	if b.L1DataGas != nil {
		out.L1DataGas = &ResourceBound{MaxAmount: hexUint(b.L1DataGas.MaxAmount), MaxPricePerUnit: hexBig(b.L1DataGas.MaxPricePerUnit)}
	}
	return out
}

// NewDeployAccountTxn builds the broadcast form of details. The signature is sent as hex.
func NewDeployAccountTxn(details *starknet.DeployAccountDetails, signature []*felt.Felt) DeployAccountTxn {
	return DeployAccountTxn{
		Version:                   details.Version,
		Signature:                 starknet.FeltsToHex(signature),
		Nonce:                     hexFelt(details.Nonce),
		ContractAddressSalt:       hexFelt(details.AddressSalt),
		ConstructorCalldata:       starknet.FeltsToHex(details.ConstructorCalldata),
		ClassHash:                 hexFelt(details.ClassHash),
		MaxFee:                    hexFelt(details.MaxFee),
		ResourceBounds:            resourceBounds(details.ResourceBounds),
		Tip:                       hexUint(details.Tip),
		PaymasterData:             starknet.FeltsToHex(details.PaymasterData),
		NonceDataAvailabilityMode: details.NonceDataAvailabilityMode,
		FeeDataAvailabilityMode:   details.FeeDataAvailabilityMode,
	}
}

// NewInvokeTxn builds the broadcast form of an invoke with already compiled calldata.
func NewInvokeTxn(calldata []*felt.Felt, details *starknet.InvocationDetails, signature []*felt.Felt) InvokeTxn {
	return InvokeTxn{
		Version:                   details.Version,
		Signature:                 starknet.FeltsToHex(signature),
		Nonce:                     hexFelt(details.Nonce),
		SenderAddress:             hexFelt(details.SenderAddress),
		Calldata:                  starknet.FeltsToHex(calldata),
		MaxFee:                    hexFelt(details.MaxFee),
		ResourceBounds:            resourceBounds(details.ResourceBounds),
		Tip:                       hexUint(details.Tip),
		PaymasterData:             starknet.FeltsToHex(details.PaymasterData),
		AccountDeploymentData:     starknet.FeltsToHex(details.AccountDeploymentData),
		NonceDataAvailabilityMode: details.NonceDataAvailabilityMode,
		FeeDataAvailabilityMode:   details.FeeDataAvailabilityMode,
	}
}

type DeployAccountResult struct {
	TransactionHash string `json:"transaction_hash"`
	ContractAddress string `json:"contract_address"`
}

type InvokeResult struct {
	TransactionHash string `json:"transaction_hash"`
}

type TransactionStatus struct {
	FinalityStatus  string `json:"finality_status"`
	ExecutionStatus string `json:"execution_status,omitempty"`
	FailureReason   string `json:"failure_reason,omitempty"`
}

// Failed reports whether the transaction can never be included successfully.
func (s TransactionStatus) Failed() bool {
	return s.FinalityStatus == StatusRejected || s.ExecutionStatus == ExecutionReverted
}

// Accepted reports whether the transaction made it into a block and succeeded.
func (s TransactionStatus) Accepted() bool {
	return (s.FinalityStatus == StatusAcceptedOnL2 || s.FinalityStatus == StatusAcceptedOnL1) &&
		s.ExecutionStatus != ExecutionReverted
}
