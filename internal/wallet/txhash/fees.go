package txhash

import (
	"math/big"

	"github.com/NethermindEth/juno/core/crypto"
	"github.com/NethermindEth/juno/core/felt"
	"github.com/pkg/errors"
	"github/chapool/go-stark-signer/internal/wallet/starknet"
)

const (
	boundNameShift   = 192
	boundAmountShift = 128
	daModeShift      = 32
)

var (
	resourceL1Gas     = starknet.FeltToBig(starknet.MustShortString("L1_GAS"))
	resourceL2Gas     = starknet.FeltToBig(starknet.MustShortString("L2_GAS"))
	resourceL1DataGas = starknet.FeltToBig(starknet.MustShortString("L1_DATA"))
)

// resourceFields returns the poseidon hash of tip and resource bounds, and the packed DA modes.
func resourceFields(d *starknet.FeeDetails) (*felt.Felt, *felt.Felt, error) {
	l1, err := encodeResourceBound(resourceL1Gas, d.ResourceBounds.L1Gas)
	if err != nil {
		return nil, nil, errors.Wrap(err, "l1_gas")
	}
	l2, err := encodeResourceBound(resourceL2Gas, d.ResourceBounds.L2Gas)
	if err != nil {
		return nil, nil, errors.Wrap(err, "l2_gas")
	}

	fields := []*felt.Felt{starknet.FeltFromUint64(d.Tip), l1, l2}
	if d.ResourceBounds.L1DataGas != nil {
		l1Data, err := encodeResourceBound(resourceL1DataGas, *d.ResourceBounds.L1DataGas)
		if err != nil {
			return nil, nil, errors.Wrap(err, "l1_data_gas")
		}
		fields = append(fields, l1Data)
	}

	daModes, err := EncodeDAModes(d.NonceDataAvailabilityMode, d.FeeDataAvailabilityMode)
	if err != nil {
		return nil, nil, err
	}

	return crypto.PoseidonArray(fields...), daModes, nil
}

// encodeResourceBound packs name<<192 | max_amount<<128 | max_price_per_unit.
func encodeResourceBound(name *big.Int, bound starknet.ResourceBound) (*felt.Felt, error) {
	price := bound.MaxPricePerUnit
	if price == nil {
		price = new(big.Int)
	}
	if price.Sign() < 0 || price.Cmp(starknet.Max128) >= 0 {
		return nil, errors.Wrap(ErrInvalidPayload, "max_price_per_unit must fit into 128 bits")
	}

	packed := new(big.Int).Lsh(name, boundNameShift)
	packed.Or(packed, new(big.Int).Lsh(new(big.Int).SetUint64(bound.MaxAmount), boundAmountShift))
	packed.Or(packed, price)

	return starknet.FeltFromBig(packed)
}

// EncodeDAModes packs the nonce and fee data-availability modes as nonce<<32 + fee.
func EncodeDAModes(nonceMode, feeMode starknet.DAMode) (*felt.Felt, error) {
	nonceInt, err := nonceMode.Int()
	if err != nil {
		return nil, errors.Wrap(ErrInvalidPayload, "nonce_data_availability_mode: "+err.Error())
	}
	feeInt, err := feeMode.Int()
	if err != nil {
		return nil, errors.Wrap(ErrInvalidPayload, "fee_data_availability_mode: "+err.Error())
	}

	return starknet.FeltFromUint64(nonceInt<<daModeShift + feeInt), nil
}
