package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

const (
	DeviceTransportLedgerHID = "ledger-hid"
	DeviceTransportSpeculos  = "speculos"
	DeviceTransportSoftkey   = "softkey"
)

type Logger struct {
	Level              string `mapstructure:"level"`
	PrettyPrintConsole bool   `mapstructure:"pretty_print_console"`
}

type Device struct {
	// Transport is one of ledger-hid, speculos or softkey.
	Transport      string        `mapstructure:"transport"`
	Address        string        `mapstructure:"address"`
	HIDPath        string        `mapstructure:"hid_path"`
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout"`
	StarknetPath   string        `mapstructure:"starknet_path"`
	EthereumPath   string        `mapstructure:"ethereum_path"`
	// Scheme is the multisig signer scheme, "starknet" or "eip191".
	Scheme     string `mapstructure:"scheme"`
	Mnemonic   string `mapstructure:"mnemonic" json:"-"`
	Passphrase string `mapstructure:"passphrase" json:"-"`
}

type Starknet struct {
	RPCURLs          []string      `mapstructure:"rpc_urls"`
	ChainID          string        `mapstructure:"chain_id"`
	ClassHash        string        `mapstructure:"class_hash"`
	CairoVersion     string        `mapstructure:"cairo_version"`
	TxVersion        string        `mapstructure:"tx_version"`
	SkipValidate     bool          `mapstructure:"skip_validate"`
	FeeMarginPercent int64         `mapstructure:"fee_margin_percent"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
}

type Database struct {
	// DSN is optional; without it deployment records are kept in memory.
	DSN string `mapstructure:"dsn" json:"-"`
}

type Metrics struct {
	PushGatewayURL string `mapstructure:"push_gateway_url"`
	Job            string `mapstructure:"job"`
}

type Server struct {
	Logger   Logger   `mapstructure:"logger"`
	Device   Device   `mapstructure:"device"`
	Starknet Starknet `mapstructure:"starknet"`
	Database Database `mapstructure:"database"`
	Metrics  Metrics  `mapstructure:"metrics"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", zerolog.InfoLevel.String())
	v.SetDefault("logger.pretty_print_console", false)

	v.SetDefault("device.transport", DeviceTransportLedgerHID)
	v.SetDefault("device.address", "127.0.0.1:9999")
	v.SetDefault("device.hid_path", "")
	v.SetDefault("device.confirm_timeout", 2*time.Minute)
	v.SetDefault("device.starknet_path", "m/2645'/1195502025'/1148870696'/0'/0'/0")
	v.SetDefault("device.ethereum_path", "m/44'/60'/0'/0/0")
	v.SetDefault("device.scheme", "starknet")
	v.SetDefault("device.mnemonic", "")
	v.SetDefault("device.passphrase", "")

	v.SetDefault("starknet.rpc_urls", []string{})
	v.SetDefault("starknet.chain_id", "SN_SEPOLIA")
	v.SetDefault("starknet.class_hash", "0x0737ee2f87ce571a58c6c8da558ec18a07ceb64a6172d5ec46171fbc80077a48")
	v.SetDefault("starknet.cairo_version", "1")
	v.SetDefault("starknet.tx_version", "3")
	v.SetDefault("starknet.skip_validate", false)
	v.SetDefault("starknet.fee_margin_percent", 50)
	v.SetDefault("starknet.request_timeout", 30*time.Second)

	v.SetDefault("database.dsn", "")

	v.SetDefault("metrics.push_gateway_url", "")
	v.SetDefault("metrics.job", ModuleName)
}

// Load reads the configuration from the environment, an optional config file and optional .env
// files. Environment variables use the upper-cased key with dots replaced by underscores,
// e.g. STARKNET_RPC_URLS or DEVICE_CONFIRM_TIMEOUT.
func Load(configFile string, envFiles ...string) (Server, error) {
	for _, f := range envFiles {
		if err := gotenv.Load(f); err != nil && !os.IsNotExist(errors.Cause(err)) {
			return Server{}, errors.Wrapf(err, "failed to load env file %s", f)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Server{}, errors.Wrapf(err, "failed to read config file %s", configFile)
		}
	}

	var cfg Server
	if err := v.Unmarshal(&cfg); err != nil {
		return Server{}, errors.Wrap(err, "failed to decode config")
	}

	return cfg, nil
}

// DefaultServiceConfigFromEnv returns the server config as parsed from environment variables
// and an optional .env file in the working directory. Invalid values fall back to defaults.
func DefaultServiceConfigFromEnv() Server {
	cfg, err := Load("", ".env")
	if err != nil {
		cfg, _ = Load("")
	}
	return cfg
}
