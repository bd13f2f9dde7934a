package softkey_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-stark-signer/internal/wallet/softkey"
	"github/chapool/go-stark-signer/internal/wallet/starknet"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestDerivePublicKeyKnownAddress(t *testing.T) {
	dev, err := softkey.New(testMnemonic, "")
	require.NoError(t, err)

	pub, err := dev.DerivePublicKey(t.Context(), starknet.MustDerivationPath(starknet.DefaultEthereumPath))
	require.NoError(t, err)
	require.Len(t, pub, 65)

	key, err := ethcrypto.UnmarshalPubkey(pub)
	require.NoError(t, err)
	assert.Equal(t, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", ethcrypto.PubkeyToAddress(*key).Hex())
}

func TestSignHashIsPersonalSign(t *testing.T) {
	dev, err := softkey.New(testMnemonic, "")
	require.NoError(t, err)
	path := starknet.MustDerivationPath(starknet.DefaultEthereumPath)

	pub, err := dev.DerivePublicKey(t.Context(), path)
	require.NoError(t, err)

	hash := [32]byte{0xde, 0xad, 0xbe, 0xef}
	sig, err := dev.SignHash(t.Context(), path, hash)
	require.NoError(t, err)
	assert.LessOrEqual(t, sig.V, byte(1))

	raw := append(append(append([]byte{}, sig.R[:]...), sig.S[:]...), sig.V)
	recovered, err := ethcrypto.Ecrecover(accounts.TextHash(hash[:]), raw)
	require.NoError(t, err)
	assert.Equal(t, pub, recovered)
}

func TestPassphraseChangesKeys(t *testing.T) {
	path := starknet.MustDerivationPath(starknet.DefaultEthereumPath)

	a, err := softkey.New(testMnemonic, "")
	require.NoError(t, err)
	b, err := softkey.New(testMnemonic, "TREZOR")
	require.NoError(t, err)

	pubA, err := a.DerivePublicKey(t.Context(), path)
	require.NoError(t, err)
	pubB, err := b.DerivePublicKey(t.Context(), path)
	require.NoError(t, err)
	assert.NotEqual(t, pubA, pubB)
}

func TestEmptyMnemonic(t *testing.T) {
	_, err := softkey.New("   ", "")
	require.Error(t, err)
}

func TestCloseClearsSeed(t *testing.T) {
	dev, err := softkey.New(testMnemonic, "")
	require.NoError(t, err)
	require.NoError(t, dev.Close())

	_, err = dev.DerivePublicKey(t.Context(), starknet.MustDerivationPath(starknet.DefaultEthereumPath))
	assert.ErrorIs(t, err, softkey.ErrSeedCleared)
}
