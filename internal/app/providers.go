package app

import (
	"context"
	"database/sql"
	"strings"

	"github.com/NethermindEth/juno/core/felt"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/push"
	"github/chapool/go-stark-signer/internal/config"
	"github/chapool/go-stark-signer/internal/metrics"
	"github/chapool/go-stark-signer/internal/util"
	"github/chapool/go-stark-signer/internal/wallet/account"
	"github/chapool/go-stark-signer/internal/wallet/deploy"
	"github/chapool/go-stark-signer/internal/wallet/device"
	"github/chapool/go-stark-signer/internal/wallet/ledger"
	"github/chapool/go-stark-signer/internal/wallet/rpc"
	"github/chapool/go-stark-signer/internal/wallet/signer"
	"github/chapool/go-stark-signer/internal/wallet/softkey"
	"github/chapool/go-stark-signer/internal/wallet/starknet"
)

var ErrUnknownTransport = errors.New("unknown device transport")

// TxOptions are the transaction settings shared by deployments and invokes.
type TxOptions struct {
	ChainID          *felt.Felt
	Version          starknet.TransactionVersion
	CairoVersion     starknet.CairoVersion
	SkipValidate     bool
	FeeMarginPercent int64
}

// NewDevice opens the configured device. Ledger transports talk to the app matching the signer
// scheme; the software key only signs EIP-191.
func NewDevice(ctx context.Context, cfg config.Server) (device.Device, func(), error) {
	scheme, err := signer.ParseScheme(cfg.Device.Scheme)
	if err != nil {
		return nil, nil, err
	}

	log := util.LogFromContext(ctx)

	var transport ledger.Transport
	switch cfg.Device.Transport {
	case config.DeviceTransportSoftkey:
		if scheme != signer.SchemeEip191 {
			return nil, nil, errors.Errorf("transport %s only supports the %s scheme", cfg.Device.Transport, signer.SchemeEip191)
		}
		dev, err := softkey.New(cfg.Device.Mnemonic, cfg.Device.Passphrase)
		if err != nil {
			return nil, nil, err
		}
		log.Warn().Msg("Using software key device, do not use it with funds")
		return dev, func() {
			if err := dev.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close software key device")
			}
		}, nil

	case config.DeviceTransportSpeculos:
		t, err := ledger.DialSpeculos(ctx, cfg.Device.Address)
		if err != nil {
			return nil, nil, err
		}
		transport = t

	case config.DeviceTransportLedgerHID:
		t, err := ledger.OpenHID(cfg.Device.HIDPath)
		if err != nil {
			return nil, nil, err
		}
		transport = t

	default:
		return nil, nil, errors.Wrapf(ErrUnknownTransport, "%q", cfg.Device.Transport)
	}

	cleanup := func() {
		if err := transport.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close device transport")
		}
	}

	if scheme == signer.SchemeEip191 {
		return ledger.NewEthereumApp(transport), cleanup, nil
	}
	return ledger.NewStarknetApp(transport), cleanup, nil
}

func NewDeviceSigner(dev device.Device, cfg config.Server, m *metrics.Metrics) (*device.Signer, error) {
	return device.NewSigner(dev,
		device.WithConfirmationTimeout(cfg.Device.ConfirmTimeout),
		device.WithMetrics(m),
	)
}

// NewSignerSession picks the derivation path of the configured scheme.
func NewSignerSession(ds *device.Signer, cfg config.Server) (signer.Session, error) {
	scheme, err := signer.ParseScheme(cfg.Device.Scheme)
	if err != nil {
		return signer.Session{}, err
	}

	raw := cfg.Device.StarknetPath
	if scheme == signer.SchemeEip191 {
		raw = cfg.Device.EthereumPath
	}
	path, err := starknet.ParseDerivationPath(raw)
	if err != nil {
		return signer.Session{}, errors.Wrapf(err, "invalid %s derivation path", scheme)
	}

	return signer.Session{Device: ds, Path: path, Scheme: scheme}, nil
}

func NewRPCClient(ctx context.Context, cfg config.Server) (*rpc.Client, func(), error) {
	client, err := rpc.NewClient(ctx, cfg.Starknet.RPCURLs, cfg.Starknet.RequestTimeout)
	if err != nil {
		return nil, nil, err
	}
	return client, client.Close, nil
}

// NewStore keeps deployment records in postgres when a DSN is configured and in memory otherwise.
func NewStore(ctx context.Context, cfg config.Server) (deploy.Store, func(), error) {
	if cfg.Database.DSN == "" {
		return deploy.NewMemoryStore(), func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to open database")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, errors.Wrap(err, "failed to connect to database")
	}

	return deploy.NewPostgresStore(db), func() {
		if err := db.Close(); err != nil {
			util.LogFromContext(ctx).Error().Err(err).Msg("Failed to close database")
		}
	}, nil
}

// NewTxOptions reads the transaction settings. Without a configured chain id the node is asked.
func NewTxOptions(ctx context.Context, cfg config.Server, client *rpc.Client) (TxOptions, error) {
	version, err := starknet.ParseTransactionVersion(cfg.Starknet.TxVersion)
	if err != nil {
		return TxOptions{}, err
	}

	var chainID *felt.Felt
	switch id := strings.TrimSpace(cfg.Starknet.ChainID); {
	case id == "":
		if chainID, err = client.ChainID(ctx); err != nil {
			return TxOptions{}, errors.Wrap(err, "failed to fetch chain id")
		}
	case strings.HasPrefix(id, "0x"):
		if chainID, err = starknet.ParseFelt(id); err != nil {
			return TxOptions{}, errors.Wrap(err, "invalid chain id")
		}
	default:
		if chainID, err = starknet.EncodeShortString(id); err != nil {
			return TxOptions{}, errors.Wrap(err, "invalid chain id")
		}
	}

	cairo := starknet.CairoVersion(cfg.Starknet.CairoVersion)
	if cairo != starknet.Cairo0 && cairo != starknet.Cairo1 {
		return TxOptions{}, errors.Errorf("unknown cairo version %q", cfg.Starknet.CairoVersion)
	}

	return TxOptions{
		ChainID:          chainID,
		Version:          version,
		CairoVersion:     cairo,
		SkipValidate:     cfg.Starknet.SkipValidate,
		FeeMarginPercent: cfg.Starknet.FeeMarginPercent,
	}, nil
}

func NewDeployer(client *rpc.Client, s *signer.MultisigSigner, store deploy.Store, opts TxOptions, m *metrics.Metrics) (*deploy.Deployer, error) {
	return deploy.NewDeployer(client, s, store, deploy.Options{
		ChainID:          opts.ChainID,
		Version:          opts.Version,
		SkipValidate:     opts.SkipValidate,
		FeeMarginPercent: opts.FeeMarginPercent,
	}, m)
}

func NewExecutor(client *rpc.Client, s *signer.MultisigSigner, opts TxOptions) (*account.Executor, error) {
	return account.NewExecutor(client, s, account.Options{
		ChainID:          opts.ChainID,
		Version:          opts.Version,
		CairoVersion:     opts.CairoVersion,
		SkipValidate:     opts.SkipValidate,
		FeeMarginPercent: opts.FeeMarginPercent,
	})
}

// PushMetrics sends the collected metrics to the configured push gateway, if any.
func PushMetrics(cfg config.Server, m *metrics.Metrics) error {
	if cfg.Metrics.PushGatewayURL == "" || m == nil {
		return nil
	}
	return push.New(cfg.Metrics.PushGatewayURL, cfg.Metrics.Job).Gatherer(m.Registry).Push()
}
