package starknet

import (
	"math/big"

	"github.com/NethermindEth/juno/core/crypto"
	"github.com/NethermindEth/juno/core/felt"
)

var (
	contractAddressPrefix = MustShortString("STARKNET_CONTRACT_ADDRESS")

	// l2AddressUpperBound is 2^251 - 256
	l2AddressUpperBound = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 251), big.NewInt(256))
)

// ComputeContractAddress derives the address a contract gets when deployed with the given
// salt, class hash and constructor calldata by deployer (zero for deploy-account transactions).
// It is a pure function of its inputs.
func ComputeContractAddress(salt, classHash *felt.Felt, constructorCalldata []*felt.Felt, deployer *felt.Felt) *felt.Felt {
	if deployer == nil {
		deployer = new(felt.Felt)
	}

	h := crypto.PedersenArray(
		contractAddressPrefix,
		deployer,
		salt,
		classHash,
		crypto.PedersenArray(constructorCalldata...),
	)

	n := FeltToBig(h)
	return new(felt.Felt).SetBigInt(n.Mod(n, l2AddressUpperBound))
}
