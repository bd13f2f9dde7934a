package app_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-stark-signer/internal/app"
	"github/chapool/go-stark-signer/internal/config"
	"github/chapool/go-stark-signer/internal/wallet/deploy"
	"github/chapool/go-stark-signer/internal/wallet/signature"
	"github/chapool/go-stark-signer/internal/wallet/signer"
	"github/chapool/go-stark-signer/internal/wallet/starknet"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func softkeyConfig(t *testing.T) config.Server {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)

	cfg.Device.Transport = config.DeviceTransportSoftkey
	cfg.Device.Scheme = string(signer.SchemeEip191)
	cfg.Device.Mnemonic = testMnemonic
	cfg.Device.Passphrase = ""
	cfg.Device.EthereumPath = starknet.DefaultEthereumPath
	cfg.Starknet.RPCURLs = []string{"http://127.0.0.1:1"}
	cfg.Starknet.ChainID = "SN_SEPOLIA"
	cfg.Starknet.TxVersion = "3"
	cfg.Starknet.CairoVersion = "1"
	cfg.Database.DSN = ""
	cfg.Metrics.PushGatewayURL = ""
	return cfg
}

func TestInitDeviceSessionWithSoftkey(t *testing.T) {
	cfg := softkeyConfig(t)

	ds, cleanup, err := app.InitDeviceSession(t.Context(), cfg)
	require.NoError(t, err)
	defer cleanup()

	identity, err := ds.Signer.Identity(t.Context())
	require.NoError(t, err)
	eip, ok := identity.(signature.Eip191Signer)
	require.True(t, ok)
	assert.Equal(t, "0x9858effd232b4033e47d90003d41ec34ecaeda94", starknet.FeltToHex(eip.EthAddress))
	assert.NotNil(t, ds.Metrics)
}

func TestInitSessionWithoutNetworkCalls(t *testing.T) {
	cfg := softkeyConfig(t)

	s, cleanup, err := app.InitSession(t.Context(), cfg)
	require.NoError(t, err)
	defer cleanup()

	assert.True(t, s.TxOptions.ChainID.Equal(starknet.ChainIDSepolia))
	assert.Equal(t, starknet.TransactionV3, s.TxOptions.Version)
	assert.IsType(t, &deploy.MemoryStore{}, s.Store)
	assert.NotNil(t, s.Deployer)
	assert.NotNil(t, s.Executor)
}

func TestNewDeviceRejectsInvalidCombinations(t *testing.T) {
	cfg := softkeyConfig(t)
	cfg.Device.Scheme = string(signer.SchemeStarknet)
	_, _, err := app.NewDevice(t.Context(), cfg)
	require.Error(t, err)

	cfg = softkeyConfig(t)
	cfg.Device.Transport = "usb-magic"
	_, _, err = app.NewDevice(t.Context(), cfg)
	assert.ErrorIs(t, err, app.ErrUnknownTransport)

	cfg = softkeyConfig(t)
	cfg.Device.Scheme = "ed25519"
	_, _, err = app.NewDevice(t.Context(), cfg)
	assert.ErrorIs(t, err, signer.ErrUnknownScheme)
}

func TestNewSignerSessionPicksPath(t *testing.T) {
	cfg := softkeyConfig(t)

	session, err := app.NewSignerSession(nil, cfg)
	require.NoError(t, err)
	assert.Equal(t, starknet.DefaultEthereumPath, session.Path.String())
	assert.Equal(t, signer.SchemeEip191, session.Scheme)

	cfg.Device.Scheme = string(signer.SchemeStarknet)
	session, err = app.NewSignerSession(nil, cfg)
	require.NoError(t, err)
	assert.Equal(t, starknet.DefaultStarknetPath, session.Path.String())

	cfg.Device.StarknetPath = "m/not/a/path"
	_, err = app.NewSignerSession(nil, cfg)
	require.Error(t, err)
}

func TestNewTxOptions(t *testing.T) {
	cfg := softkeyConfig(t)

	cfg.Starknet.ChainID = "0x534e5f4d41494e"
	opts, err := app.NewTxOptions(t.Context(), cfg, nil)
	require.NoError(t, err)
	assert.True(t, opts.ChainID.Equal(starknet.ChainIDMainnet))
	assert.Equal(t, starknet.Cairo1, opts.CairoVersion)

	cfg.Starknet.TxVersion = "0x1"
	cfg.Starknet.CairoVersion = "0"
	opts, err = app.NewTxOptions(t.Context(), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, starknet.TransactionV1, opts.Version)
	assert.Equal(t, starknet.Cairo0, opts.CairoVersion)

	cfg.Starknet.CairoVersion = "2"
	_, err = app.NewTxOptions(t.Context(), cfg, nil)
	require.Error(t, err)

	cfg.Starknet.CairoVersion = "1"
	cfg.Starknet.TxVersion = "7"
	_, err = app.NewTxOptions(t.Context(), cfg, nil)
	require.Error(t, err)
}

func TestPushMetricsWithoutGateway(t *testing.T) {
	assert.NoError(t, app.PushMetrics(softkeyConfig(t), nil))
}
