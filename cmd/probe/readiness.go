package probe

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github/chapool/go-stark-signer/internal/app"
	"github/chapool/go-stark-signer/internal/util/command"
	"github/chapool/go-stark-signer/internal/wallet/starknet"
)

func newReadiness() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "readiness",
		Short: "Checks that the device answers and the starknet node is reachable",
		Long: `Checks that the device answers and the starknet node is reachable.
Returns a non-zero exit code if either check fails.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}
			verbose, _ := cmd.Flags().GetBool(verboseFlag)

			return command.WithSession(cmd.Context(), cfg, func(ctx context.Context, s *app.Session) error {
				if _, err := s.Signer.PublicKey(ctx); err != nil {
					return err
				}
				chainID, err := s.RPC.ChainID(ctx)
				if err != nil {
					return err
				}

				if verbose {
					fmt.Fprintf(cmd.OutOrStdout(), "device: ok\nnode:   ok (%s)\n", starknet.DecodeShortString(chainID))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolP(verboseFlag, "v", false, "Show verbose output.")

	return cmd
}
