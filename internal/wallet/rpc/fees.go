package rpc

import (
	"math/big"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github/chapool/go-stark-signer/internal/wallet/starknet"
	"github/chapool/go-stark-signer/internal/wallet/txhash"
)

// DefaultFeeMarginPercent is added on top of an estimate before it is signed.
const DefaultFeeMarginPercent = 50

// FeeEstimate is one entry of starknet_estimateFee. Both the 0.7 field set (gas_consumed,
// data_gas_consumed) and the 0.8 field set (l1_gas_consumed, l2_gas_consumed,
// l1_data_gas_consumed) are understood.
type FeeEstimate struct {
	GasConsumed     string `json:"gas_consumed,omitempty"`
	GasPrice        string `json:"gas_price,omitempty"`
	DataGasConsumed string `json:"data_gas_consumed,omitempty"`
	DataGasPrice    string `json:"data_gas_price,omitempty"`

	L1GasConsumed     string `json:"l1_gas_consumed,omitempty"`
	L1GasPrice        string `json:"l1_gas_price,omitempty"`
	L2GasConsumed     string `json:"l2_gas_consumed,omitempty"`
	L2GasPrice        string `json:"l2_gas_price,omitempty"`
	L1DataGasConsumed string `json:"l1_data_gas_consumed,omitempty"`
	L1DataGasPrice    string `json:"l1_data_gas_price,omitempty"`

	OverallFee string `json:"overall_fee"`
	Unit       string `json:"unit"`
}

// SuggestedMaxFee returns overall_fee plus marginPercent percent.
func (e FeeEstimate) SuggestedMaxFee(marginPercent int64) (*felt.Felt, error) {
	overall, err := parseQuantity(e.OverallFee)
	if err != nil {
		return nil, errors.Wrap(err, "overall_fee")
	}
	return starknet.FeltFromBig(withMargin(overall, marginPercent))
}

// SuggestedResourceBounds turns the consumed amounts and prices into V3 bounds with
// marginPercent percent added to both. L1 data gas is only bounded when the node reports it in
// the 0.8 field set.
func (e FeeEstimate) SuggestedResourceBounds(marginPercent int64) (starknet.ResourceBounds, error) {
	l1Amount, l1Price := e.L1GasConsumed, e.L1GasPrice
	if l1Amount == "" {
		l1Amount, l1Price = e.GasConsumed, e.GasPrice
	}

	var (
		bounds starknet.ResourceBounds
		err    error
	)
	if bounds.L1Gas, err = resourceBound(l1Amount, l1Price, marginPercent); err != nil {
		return starknet.ResourceBounds{}, errors.Wrap(err, "l1 gas")
	}
	if bounds.L2Gas, err = resourceBound(e.L2GasConsumed, e.L2GasPrice, marginPercent); err != nil {
		return starknet.ResourceBounds{}, errors.Wrap(err, "l2 gas")
	}
	if e.L1DataGasConsumed != "" {
		dataGas, err := resourceBound(e.L1DataGasConsumed, e.L1DataGasPrice, marginPercent)
		if err != nil {
			return starknet.ResourceBounds{}, errors.Wrap(err, "l1 data gas")
		}
		bounds.L1DataGas = &dataGas
	}

	return bounds, nil
}

// ApplyTo stores the suggested max fee or resource bounds on details, depending on the version
// family. The stored values are the ones that get hashed, signed and submitted.
func (e FeeEstimate) ApplyTo(details *starknet.FeeDetails, marginPercent int64) error {
	switch details.Version.Family() {
	case starknet.FeeFamily:
		maxFee, err := e.SuggestedMaxFee(marginPercent)
		if err != nil {
			return errors.Wrap(err, "invalid fee estimate")
		}
		details.MaxFee = maxFee
	case starknet.ResourceFamily:
		bounds, err := e.SuggestedResourceBounds(marginPercent)
		if err != nil {
			return errors.Wrap(err, "invalid fee estimate")
		}
		details.ResourceBounds = bounds
	case starknet.UnknownFamily:
		fallthrough
	default:
		return errors.Wrapf(txhash.ErrUnsupportedVersion, "%q", string(details.Version))
	}
	return nil
}

// OverallFeeDecimal renders overall_fee in whole tokens (18 decimals) for display.
func (e FeeEstimate) OverallFeeDecimal() (decimal.Decimal, error) {
	overall, err := parseQuantity(e.OverallFee)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromBigInt(overall, -18), nil
}

func resourceBound(amount, price string, marginPercent int64) (starknet.ResourceBound, error) {
	a, err := parseQuantity(amount)
	if err != nil {
		return starknet.ResourceBound{}, err
	}
	p, err := parseQuantity(price)
	if err != nil {
		return starknet.ResourceBound{}, err
	}

	a = withMargin(a, marginPercent)
	if !a.IsUint64() {
		return starknet.ResourceBound{}, errors.Errorf("max amount %s exceeds 64 bits", a)
	}
	p = withMargin(p, marginPercent)
	if p.Cmp(starknet.Max128) >= 0 {
		return starknet.ResourceBound{}, errors.Errorf("max price %s exceeds 128 bits", p)
	}

	return starknet.ResourceBound{MaxAmount: a.Uint64(), MaxPricePerUnit: p}, nil
}

// parseQuantity reads a hex or decimal quantity. Empty means zero.
func parseQuantity(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	f, err := starknet.ParseFelt(s)
	if err != nil {
		return nil, err
	}
	return starknet.FeltToBig(f), nil
}

func withMargin(v *big.Int, marginPercent int64) *big.Int {
	if marginPercent <= 0 {
		return new(big.Int).Set(v)
	}
	out := new(big.Int).Mul(v, big.NewInt(100+marginPercent))
	return out.Quo(out, big.NewInt(100))
}
