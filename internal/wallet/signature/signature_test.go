package signature_test

import (
	"math/big"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-stark-signer/internal/wallet/device"
	"github/chapool/go-stark-signer/internal/wallet/signature"
	"github/chapool/go-stark-signer/internal/wallet/starknet"
)

func bytes32(hex string) [32]byte {
	var out [32]byte
	starknet.FeltToBig(starknet.MustParseFelt(hex)).FillBytes(out[:])
	return out
}

func TestEncodeStarknet(t *testing.T) {
	identity := signature.StarknetSigner{PublicKey: starknet.MustParseFelt("0x1ef15c18599971b7beced415a40f0c7deacfd9b0d1819e03d723d8bc943cfca")}
	sig := device.RawSignature{R: bytes32("0x1"), S: bytes32("0xff")}

	encoded, err := signature.Encode(identity, sig)
	require.NoError(t, err)
	assert.Equal(t, signature.EncodedSignature{
		"0",
		"0x1ef15c18599971b7beced415a40f0c7deacfd9b0d1819e03d723d8bc943cfca",
		"1",
		"255",
	}, encoded)
}

func TestEncodeStarknetRejectsOutOfFieldValues(t *testing.T) {
	identity := signature.StarknetSigner{PublicKey: starknet.FeltFromUint64(1)}
	var r [32]byte
	for i := range r {
		r[i] = 0xff
	}

	_, err := signature.Encode(identity, device.RawSignature{R: r})
	assert.ErrorIs(t, err, signature.ErrInvalidSignature)
}

func TestEncodeEip191(t *testing.T) {
	r := new(big.Int).Add(new(big.Int).Lsh(big.NewInt(2), 128), big.NewInt(1))
	s := new(big.Int).Add(new(big.Int).Lsh(big.NewInt(4), 128), big.NewInt(3))
	var sig device.RawSignature
	r.FillBytes(sig.R[:])
	s.FillBytes(sig.S[:])
	sig.V = 28

	identity := signature.Eip191Signer{EthAddress: starknet.MustParseFelt("0x9858effd232b4033e47d90003d41ec34ecaeda94")}
	encoded, err := signature.Encode(identity, sig)
	require.NoError(t, err)
	assert.Equal(t, signature.EncodedSignature{
		"3",
		"0x9858effd232b4033e47d90003d41ec34ecaeda94",
		"1", "2",
		"3", "4",
		"1",
	}, encoded)
}

func TestEncodeRejectsBadRecoveryID(t *testing.T) {
	identity := signature.Eip191Signer{EthAddress: starknet.FeltFromUint64(1)}
	_, err := signature.Encode(identity, device.RawSignature{V: 5})
	assert.ErrorIs(t, err, signature.ErrInvalidSignature)
}

func TestEncodeUnsupportedIdentities(t *testing.T) {
	for _, identity := range []signature.SignerIdentity{
		signature.Secp256r1Signer{PublicKey: big.NewInt(1)},
		signature.WebauthnSigner{Origin: []byte("x"), RPIDHash: big.NewInt(1), PublicKey: big.NewInt(1)},
		nil,
	} {
		_, err := signature.Encode(identity, device.RawSignature{})
		assert.ErrorIs(t, err, signature.ErrUnsupportedIdentity)
	}
}

func TestRoundTrip(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	eip191, err := signature.Eip191Identity(ethcrypto.FromECDSAPub(&key.PublicKey))
	require.NoError(t, err)
	secp, err := signature.Secp256k1Identity(ethcrypto.FromECDSAPub(&key.PublicKey))
	require.NoError(t, err)
	starkPub := bytes32("0x3a8b7c")
	stark, err := signature.StarknetIdentity(starkPub[:])
	require.NoError(t, err)

	var secpSig device.RawSignature
	for i := range secpSig.R {
		secpSig.R[i] = byte(0xf0 - i)
		secpSig.S[i] = byte(i + 1)
	}
	secpSig.V = 1

	tests := []struct {
		identity signature.SignerIdentity
		sig      device.RawSignature
	}{
		{stark, device.RawSignature{R: bytes32("0x1234"), S: bytes32("0x5678")}},
		{eip191, secpSig},
		{secp, secpSig},
	}

	for _, tt := range tests {
		t.Run(tt.identity.Tag().String(), func(t *testing.T) {
			encoded, err := signature.Encode(tt.identity, tt.sig)
			require.NoError(t, err)

			identity, sig, err := signature.Decode(encoded)
			require.NoError(t, err)
			assert.Equal(t, tt.identity, identity)
			assert.Equal(t, tt.sig.R, sig.R)
			assert.Equal(t, tt.sig.S, sig.S)
			if tt.identity.Tag() != signature.TagStarknet {
				assert.Equal(t, tt.sig.V, sig.V)
			}

			variants := signature.Variants(identity)
			populated := 0
			for i, v := range variants {
				if v != nil {
					populated++
					assert.Equal(t, signature.Tag(i), identity.Tag())
				}
			}
			assert.Equal(t, 1, populated)
		})
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	tests := map[string]signature.EncodedSignature{
		"empty":          {},
		"unknown tag":    {"9", "0x1", "1", "2"},
		"trailing data":  {"0", "0x1", "1", "2", "3"},
		"short eip191":   {"3", "0x1", "1", "2", "3"},
		"bad parity":     {"3", "0x1", "1", "2", "3", "4", "2"},
		"limb too large": {"3", "0x1", "340282366920938463463374607431768211456", "0", "0", "0", "0"},
		"not a number":   {"0", "zz", "1", "2"},
	}

	for name, encoded := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := signature.Decode(encoded)
			assert.ErrorIs(t, err, signature.ErrInvalidSignature)
		})
	}

	_, _, err := signature.Decode(signature.EncodedSignature{"2", "1", "2"})
	assert.ErrorIs(t, err, signature.ErrUnsupportedIdentity)
}

func TestVariantsOfNil(t *testing.T) {
	for _, v := range signature.Variants(nil) {
		assert.Nil(t, v)
	}
}

func TestEncodeSigner(t *testing.T) {
	felts, err := signature.EncodeSigner(signature.StarknetSigner{PublicKey: starknet.FeltFromUint64(7)})
	require.NoError(t, err)
	assert.Equal(t, []string{"0x0", "0x7"}, starknet.FeltsToHex(felts))

	felts, err = signature.EncodeSigner(signature.Eip191Signer{EthAddress: starknet.FeltFromUint64(9)})
	require.NoError(t, err)
	assert.Equal(t, []string{"0x3", "0x9"}, starknet.FeltsToHex(felts))

	pub := new(big.Int).Add(new(big.Int).Lsh(big.NewInt(5), 128), big.NewInt(6))
	felts, err = signature.EncodeSigner(signature.Secp256r1Signer{PublicKey: pub})
	require.NoError(t, err)
	assert.Equal(t, []string{"0x2", "0x6", "0x5"}, starknet.FeltsToHex(felts))

	felts, err = signature.EncodeSigner(signature.WebauthnSigner{Origin: []byte("ab"), RPIDHash: big.NewInt(1), PublicKey: big.NewInt(2)})
	require.NoError(t, err)
	assert.Equal(t, []string{"0x4", "0x2", "0x61", "0x62", "0x1", "0x0", "0x2", "0x0"}, starknet.FeltsToHex(felts))

	_, err = signature.EncodeSigner(nil)
	assert.Error(t, err)
}

func TestEncodedSignatureHex(t *testing.T) {
	hex, err := signature.EncodedSignature{"0", "0x1f", "16", "255"}.Hex()
	require.NoError(t, err)
	assert.Equal(t, []string{"0x0", "0x1f", "0x10", "0xff"}, hex)
}

func TestEip191IdentityMatchesAddress(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)

	identity, err := signature.Eip191Identity(ethcrypto.FromECDSAPub(&key.PublicKey))
	require.NoError(t, err)

	want := new(big.Int).SetBytes(ethcrypto.PubkeyToAddress(key.PublicKey).Bytes())
	assert.Equal(t, 0, want.Cmp(starknet.FeltToBig(identity.EthAddress)))

	_, err = signature.Eip191Identity([]byte{0x04, 0x01})
	assert.Error(t, err)
	_, err = signature.StarknetIdentity(make([]byte, 31))
	assert.Error(t, err)
}
