package env

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github/chapool/go-stark-signer/internal/util/command"
)

func New() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Prints the effective configuration as JSON",
		Long: `Prints the configuration resolved from ENV, .env and --config as JSON.
Secrets (mnemonic, passphrase, database DSN) are never printed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
