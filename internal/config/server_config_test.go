package config_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-stark-signer/internal/config"
)

func TestPrintServiceEnv(t *testing.T) {
	config := config.DefaultServiceConfigFromEnv()
	_, err := json.MarshalIndent(config, "", "  ")

	if err != nil {
		t.Fatal(err)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "SN_SEPOLIA", cfg.Starknet.ChainID)
	assert.Equal(t, "3", cfg.Starknet.TxVersion)
	assert.Equal(t, int64(50), cfg.Starknet.FeeMarginPercent)
	assert.Equal(t, config.DeviceTransportLedgerHID, cfg.Device.Transport)
	assert.Equal(t, 2*time.Minute, cfg.Device.ConfirmTimeout)
	assert.Equal(t, "info", cfg.Logger.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("STARKNET_CHAIN_ID", "SN_MAIN")
	t.Setenv("STARKNET_RPC_URLS", "http://a.example,http://b.example")
	t.Setenv("DEVICE_CONFIRM_TIMEOUT", "45s")
	t.Setenv("DEVICE_TRANSPORT", config.DeviceTransportSpeculos)

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "SN_MAIN", cfg.Starknet.ChainID)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.Starknet.RPCURLs)
	assert.Equal(t, 45*time.Second, cfg.Device.ConfirmTimeout)
	assert.Equal(t, config.DeviceTransportSpeculos, cfg.Device.Transport)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "signer.yaml")
	require.NoError(t, os.WriteFile(file, []byte("starknet:\n  skip_validate: true\n  cairo_version: \"0\"\n"), 0o600))

	cfg, err := config.Load(file)
	require.NoError(t, err)

	assert.True(t, cfg.Starknet.SkipValidate)
	assert.Equal(t, "0", cfg.Starknet.CairoVersion)
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestMnemonicNotSerialized(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Device.Mnemonic = "secret words"

	out, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "secret words")
}
