package probe

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/go-stark-signer/internal/config"
	"github/chapool/go-stark-signer/internal/util/command"
	"github/chapool/go-stark-signer/internal/wallet/signer"
	"github/chapool/go-stark-signer/internal/wallet/starknet"
)

func newConfig() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Validates the configuration without touching the device or the network",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}
			verbose, _ := cmd.Flags().GetBool(verboseFlag)

			problems := validate(cfg)
			for _, p := range problems {
				fmt.Fprintf(cmd.ErrOrStderr(), "config: %v\n", p)
			}
			if len(problems) > 0 {
				return errors.Errorf("%d configuration problem(s)", len(problems))
			}
			if verbose {
				fmt.Fprintln(cmd.OutOrStdout(), "config: ok")
			}
			return nil
		},
	}

	cmd.Flags().BoolP(verboseFlag, "v", false, "Show verbose output.")

	return cmd
}

func validate(cfg config.Server) []error {
	var problems []error

	scheme, err := signer.ParseScheme(cfg.Device.Scheme)
	if err != nil {
		problems = append(problems, err)
	}

	switch cfg.Device.Transport {
	case config.DeviceTransportLedgerHID, config.DeviceTransportSpeculos:
	case config.DeviceTransportSoftkey:
		if err == nil && scheme != signer.SchemeEip191 {
			problems = append(problems, errors.Errorf("transport %s requires scheme %s", cfg.Device.Transport, signer.SchemeEip191))
		}
	default:
		problems = append(problems, errors.Errorf("unknown device transport %q", cfg.Device.Transport))
	}

	if _, err := starknet.ParseDerivationPath(cfg.Device.StarknetPath); err != nil {
		problems = append(problems, errors.Wrap(err, "device.starknet_path"))
	}
	if _, err := starknet.ParseDerivationPath(cfg.Device.EthereumPath); err != nil {
		problems = append(problems, errors.Wrap(err, "device.ethereum_path"))
	}
	if len(cfg.Starknet.RPCURLs) == 0 {
		problems = append(problems, errors.New("starknet.rpc_urls is empty"))
	}
	if _, err := starknet.ParseFelt(cfg.Starknet.ClassHash); err != nil {
		problems = append(problems, errors.Wrap(err, "starknet.class_hash"))
	}
	if _, err := starknet.ParseTransactionVersion(cfg.Starknet.TxVersion); err != nil {
		problems = append(problems, errors.Wrap(err, "starknet.tx_version"))
	}
	if v := starknet.CairoVersion(cfg.Starknet.CairoVersion); v != starknet.Cairo0 && v != starknet.Cairo1 {
		problems = append(problems, errors.Errorf("starknet.cairo_version %q", cfg.Starknet.CairoVersion))
	}

	return problems
}
