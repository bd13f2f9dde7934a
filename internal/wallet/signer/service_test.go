package signer_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/ethereum/go-ethereum/accounts"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github/chapool/go-stark-signer/internal/wallet/device"
	"github/chapool/go-stark-signer/internal/wallet/signature"
	"github/chapool/go-stark-signer/internal/wallet/signer"
	"github/chapool/go-stark-signer/internal/wallet/softkey"
	"github/chapool/go-stark-signer/internal/wallet/starknet"
	"github/chapool/go-stark-signer/internal/wallet/txhash"
	"github/chapool/go-stark-signer/internal/wallet/typeddata"
)

const message = `{
  "types": {
    "StarkNetDomain": [
      {"name": "name", "type": "felt"},
      {"name": "version", "type": "felt"},
      {"name": "chainId", "type": "felt"}
    ],
    "Approval": [
      {"name": "spender", "type": "felt"},
      {"name": "amount", "type": "felt"}
    ]
  },
  "primaryType": "Approval",
  "domain": {"name": "Multisig", "version": "1", "chainId": "SN_SEPOLIA"},
  "message": {"spender": "0x1234", "amount": "1000"}
}`

type mockDevice struct {
	mock.Mock
}

func (m *mockDevice) DerivePublicKey(ctx context.Context, path starknet.DerivationPath) ([]byte, error) {
	args := m.Called(ctx, path)
	pub, _ := args.Get(0).([]byte)
	return pub, args.Error(1)
}

func (m *mockDevice) SignHash(ctx context.Context, path starknet.DerivationPath, hash [32]byte) (device.RawSignature, error) {
	args := m.Called(ctx, path, hash)
	sig, _ := args.Get(0).(device.RawSignature)
	return sig, args.Error(1)
}

var starkPath = starknet.MustDerivationPath(starknet.DefaultStarknetPath)

func starkKey(b byte) []byte {
	key := make([]byte, 32)
	key[0] = 0x01
	key[31] = b
	return key
}

func newStarknetSigner(t *testing.T, dev device.Device) *signer.MultisigSigner {
	t.Helper()

	ds, err := device.NewSigner(dev)
	require.NoError(t, err)

	s, err := signer.New(signer.Session{Device: ds, Path: starkPath, Scheme: signer.SchemeStarknet}, nil)
	require.NoError(t, err)
	assert.Equal(t, signer.StateIdle, s.State())

	return s
}

func fixedSignature() device.RawSignature {
	var sig device.RawSignature
	sig.R[31] = 0x0a
	sig.S[30] = 0x01
	return sig
}

func TestSignMessage(t *testing.T) {
	td, err := typeddata.Parse([]byte(message))
	require.NoError(t, err)
	account := starknet.MustParseFelt("0x7e00d496e324876bbc8531f2d9a82bf154d1a04a50218ee74cdd372f75a551a")

	hash, err := typeddata.MessageHash(td, account)
	require.NoError(t, err)

	dev := &mockDevice{}
	dev.On("SignHash", mock.Anything, starkPath, hash.Bytes()).Return(fixedSignature(), nil).Once()
	dev.On("DerivePublicKey", mock.Anything, starkPath).Return(starkKey(0x42), nil).Once()

	s := newStarknetSigner(t, dev)
	encoded, err := s.SignMessage(t.Context(), td, account)
	require.NoError(t, err)

	assert.Equal(t, signature.EncodedSignature{
		"0",
		"0x100000000000000000000000000000000000000000000000000000000000042",
		"10",
		"256",
	}, encoded)
	assert.Equal(t, signer.StateSigned, s.State())
	assert.NoError(t, s.LastError())
	dev.AssertExpectations(t)
}

func TestSignMessageIsDeterministic(t *testing.T) {
	td, err := typeddata.Parse([]byte(message))
	require.NoError(t, err)
	account := starknet.FeltFromUint64(1)

	dev := &mockDevice{}
	dev.On("SignHash", mock.Anything, starkPath, mock.Anything).Return(fixedSignature(), nil)
	dev.On("DerivePublicKey", mock.Anything, starkPath).Return(starkKey(0x42), nil)

	s := newStarknetSigner(t, dev)
	first, err := s.SignMessage(t.Context(), td, account)
	require.NoError(t, err)
	second, err := s.SignMessage(t.Context(), td, account)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	// nothing is memoized: both requests went to the device
	dev.AssertNumberOfCalls(t, "SignHash", 2)
	dev.AssertNumberOfCalls(t, "DerivePublicKey", 2)
}

func TestPublicKeyIsDerivedAfterSigning(t *testing.T) {
	td, err := typeddata.Parse([]byte(message))
	require.NoError(t, err)

	dev := &mockDevice{}
	dev.On("SignHash", mock.Anything, starkPath, mock.Anything).Return(fixedSignature(), nil)
	dev.On("DerivePublicKey", mock.Anything, starkPath).Return(starkKey(0x01), nil).Once()
	dev.On("DerivePublicKey", mock.Anything, starkPath).Return(starkKey(0x02), nil).Once()

	s := newStarknetSigner(t, dev)
	first, err := s.SignMessage(t.Context(), td, starknet.FeltFromUint64(1))
	require.NoError(t, err)
	second, err := s.SignMessage(t.Context(), td, starknet.FeltFromUint64(1))
	require.NoError(t, err)

	assert.NotEqual(t, first[1], second[1])
	assert.Equal(t, first[2:], second[2:])
}

func TestUserRejectionFailsRequest(t *testing.T) {
	td, err := typeddata.Parse([]byte(message))
	require.NoError(t, err)

	dev := &mockDevice{}
	dev.On("SignHash", mock.Anything, starkPath, mock.Anything).
		Return(device.RawSignature{}, device.NewError(device.KindUserRejected, "", nil)).Once()

	s := newStarknetSigner(t, dev)
	_, err = s.SignMessage(t.Context(), td, starknet.FeltFromUint64(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, device.ErrUserRejected)
	assert.False(t, device.IsRetryable(err))

	assert.Equal(t, signer.StateFailed, s.State())
	assert.ErrorIs(t, s.LastError(), device.ErrUserRejected)
	dev.AssertNotCalled(t, "DerivePublicKey", mock.Anything, mock.Anything)

	// the next request starts over
	dev.On("SignHash", mock.Anything, starkPath, mock.Anything).Return(fixedSignature(), nil).Once()
	dev.On("DerivePublicKey", mock.Anything, starkPath).Return(starkKey(0x42), nil).Once()

	_, err = s.SignMessage(t.Context(), td, starknet.FeltFromUint64(1))
	require.NoError(t, err)
	assert.Equal(t, signer.StateSigned, s.State())
	assert.NoError(t, s.LastError())
}

func TestMalformedPublicKeyFailsRequest(t *testing.T) {
	td, err := typeddata.Parse([]byte(message))
	require.NoError(t, err)

	dev := &mockDevice{}
	dev.On("SignHash", mock.Anything, starkPath, mock.Anything).Return(fixedSignature(), nil)
	dev.On("DerivePublicKey", mock.Anything, starkPath).Return(make([]byte, 16), nil)

	s := newStarknetSigner(t, dev)
	_, err = s.SignMessage(t.Context(), td, starknet.FeltFromUint64(1))
	assert.ErrorIs(t, err, device.ErrMalformedResponse)
	assert.Equal(t, signer.StateFailed, s.State())
}

func TestAwaitingConfirmationWhileDeviceSigns(t *testing.T) {
	td, err := typeddata.Parse([]byte(message))
	require.NoError(t, err)

	dev := &mockDevice{}
	s := newStarknetSigner(t, dev)

	var observed signer.State
	dev.On("SignHash", mock.Anything, starkPath, mock.Anything).
		Run(func(mock.Arguments) { observed = s.State() }).
		Return(fixedSignature(), nil)
	dev.On("DerivePublicKey", mock.Anything, starkPath).Return(starkKey(0x42), nil)

	_, err = s.SignMessage(t.Context(), td, starknet.FeltFromUint64(1))
	require.NoError(t, err)
	assert.Equal(t, signer.StateAwaitingDeviceConfirmation, observed)
}

func TestStateTracksMostRecentRequest(t *testing.T) {
	td, err := typeddata.Parse([]byte(message))
	require.NoError(t, err)

	dev := &mockDevice{}
	s := newStarknetSigner(t, dev)

	started, release := make(chan struct{}), make(chan struct{})
	dev.On("SignHash", mock.Anything, starkPath, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(fixedSignature(), nil).Once()
	dev.On("DerivePublicKey", mock.Anything, starkPath).Return(starkKey(0x42), nil).Once()

	errCh := make(chan error, 1)
	go func() {
		_, err := s.SignMessage(t.Context(), td, starknet.FeltFromUint64(1))
		errCh <- err
	}()
	<-started

	_, err = s.SignTransaction(t.Context(), nil, nil)
	require.ErrorIs(t, err, txhash.ErrInvalidPayload)
	assert.Equal(t, signer.StateFailed, s.State())

	close(release)
	require.NoError(t, <-errCh)

	assert.Equal(t, signer.StateFailed, s.State())
	assert.ErrorIs(t, s.LastError(), txhash.ErrInvalidPayload)
	dev.AssertExpectations(t)
}

func TestSignDeclareNeverReachesDevice(t *testing.T) {
	dev := &mockDevice{}
	s := newStarknetSigner(t, dev)

	_, err := s.SignDeclareTransaction(t.Context(), &starknet.DeclareDetails{})
	assert.ErrorIs(t, err, txhash.ErrNotImplemented)
	assert.Equal(t, signer.StateFailed, s.State())
	dev.AssertNotCalled(t, "SignHash", mock.Anything, mock.Anything, mock.Anything)
}

func v3Details() starknet.FeeDetails {
	return starknet.FeeDetails{
		Version: starknet.TransactionV3,
		Nonce:   starknet.FeltFromUint64(3),
		ChainID: starknet.ChainIDSepolia,
		ResourceBounds: starknet.ResourceBounds{
			L1Gas: starknet.ResourceBound{MaxAmount: 1000, MaxPricePerUnit: big.NewInt(100)},
			L2Gas: starknet.ResourceBound{MaxAmount: 0, MaxPricePerUnit: big.NewInt(0)},
		},
		NonceDataAvailabilityMode: starknet.DAModeL1,
		FeeDataAvailabilityMode:   starknet.DAModeL1,
	}
}

func TestSignTransactionSignsInvokeHash(t *testing.T) {
	calls := []starknet.Call{{
		ContractAddress: starknet.MustParseFelt("0x49d36570d4e46f48e99674bd3fcc84644ddd6b96f7c741b1562b82f9e004dc7"),
		EntryPoint:      "transfer",
		Calldata:        []*felt.Felt{starknet.FeltFromUint64(1), starknet.FeltFromUint64(100), starknet.FeltFromUint64(0)},
	}}
	details := &starknet.InvocationDetails{
		FeeDetails:    v3Details(),
		SenderAddress: starknet.MustParseFelt("0x123"),
		CairoVersion:  starknet.Cairo1,
	}

	want, err := txhash.InvokeHash(calls, details)
	require.NoError(t, err)

	dev := &mockDevice{}
	dev.On("SignHash", mock.Anything, starkPath, want.Bytes()).Return(fixedSignature(), nil).Once()
	dev.On("DerivePublicKey", mock.Anything, starkPath).Return(starkKey(0x42), nil).Once()

	s := newStarknetSigner(t, dev)
	_, err = s.SignTransaction(t.Context(), calls, details)
	require.NoError(t, err)
	dev.AssertExpectations(t)
}

func TestSignTransactionUnsupportedVersion(t *testing.T) {
	dev := &mockDevice{}
	s := newStarknetSigner(t, dev)

	details := &starknet.InvocationDetails{FeeDetails: v3Details(), SenderAddress: starknet.FeltFromUint64(1)}
	details.Version = starknet.TransactionVersion("0x7")

	_, err := s.SignTransaction(t.Context(), nil, details)
	assert.ErrorIs(t, err, txhash.ErrUnsupportedVersion)
	assert.Equal(t, signer.StateFailed, s.State())
	dev.AssertNotCalled(t, "SignHash", mock.Anything, mock.Anything, mock.Anything)
}

func TestSignDeployAccountTransaction(t *testing.T) {
	pub := starkKey(0x42)
	pubFelt, err := starknet.FeltFromBytes(pub)
	require.NoError(t, err)

	details := &starknet.DeployAccountDetails{
		FeeDetails:          v3Details(),
		ClassHash:           starknet.MustParseFelt("0x0737ee2f87ce571a58c6c8da558ec18a07ceb64a6172d5ec46171fbc80077a48"),
		AddressSalt:         pubFelt,
		ConstructorCalldata: []*felt.Felt{starknet.FeltFromUint64(1), pubFelt},
	}
	details.Nonce = starknet.FeltFromUint64(0)

	want, err := txhash.DeployAccountHash(details)
	require.NoError(t, err)

	dev := &mockDevice{}
	dev.On("SignHash", mock.Anything, starkPath, want.Bytes()).Return(fixedSignature(), nil).Once()
	dev.On("DerivePublicKey", mock.Anything, starkPath).Return(pub, nil).Once()

	s := newStarknetSigner(t, dev)
	encoded, err := s.SignDeployAccountTransaction(t.Context(), details)
	require.NoError(t, err)

	identity, _, err := signature.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, signature.StarknetSigner{PublicKey: pubFelt}, identity)
}

func TestEip191SchemeWithSoftkey(t *testing.T) {
	dev, err := softkey.New("abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about", "")
	require.NoError(t, err)
	ds, err := device.NewSigner(dev)
	require.NoError(t, err)

	path := starknet.MustDerivationPath(starknet.DefaultEthereumPath)
	s, err := signer.New(signer.Session{Device: ds, Path: path, Scheme: signer.SchemeEip191}, nil)
	require.NoError(t, err)

	td, err := typeddata.Parse([]byte(message))
	require.NoError(t, err)
	account := starknet.FeltFromUint64(5)
	hash, err := typeddata.MessageHash(td, account)
	require.NoError(t, err)

	encoded, err := s.SignMessage(t.Context(), td, account)
	require.NoError(t, err)
	require.Len(t, encoded, 7)
	assert.Equal(t, "3", encoded[0])

	identity, sig, err := signature.Decode(encoded)
	require.NoError(t, err)

	digest := hash.Bytes()
	raw := append(append(append([]byte{}, sig.R[:]...), sig.S[:]...), sig.V)
	recovered, err := ethcrypto.SigToPub(accounts.TextHash(digest[:]), raw)
	require.NoError(t, err)

	wantIdentity, err := signature.Eip191Identity(ethcrypto.FromECDSAPub(recovered))
	require.NoError(t, err)
	assert.Equal(t, wantIdentity, identity)

	got, err := s.Identity(t.Context())
	require.NoError(t, err)
	assert.Equal(t, wantIdentity, got)
}

func TestNewValidatesSession(t *testing.T) {
	_, err := signer.New(signer.Session{Path: starkPath, Scheme: signer.SchemeStarknet}, nil)
	assert.ErrorIs(t, err, signer.ErrNoSignerConfigured)

	ds, err := device.NewSigner(&mockDevice{})
	require.NoError(t, err)

	_, err = signer.New(signer.Session{Device: ds, Scheme: signer.SchemeStarknet}, nil)
	assert.Error(t, err)

	_, err = signer.New(signer.Session{Device: ds, Path: starkPath, Scheme: "ed25519"}, nil)
	assert.ErrorIs(t, err, signer.ErrUnknownScheme)
}
