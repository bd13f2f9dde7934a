package account

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github/chapool/go-stark-signer/internal/app"
	"github/chapool/go-stark-signer/internal/util/command"
	"github/chapool/go-stark-signer/internal/wallet/deploy"
	"github/chapool/go-stark-signer/internal/wallet/signer"
	"github/chapool/go-stark-signer/internal/wallet/starknet"
)

const (
	discardPendingFlag string = "discard-pending"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("account",
		newAddress(),
		newDeploy(),
	)
}

// payloadFor builds the single-signer multisig payload of the device key.
func payloadFor(ctx context.Context, s *signer.MultisigSigner, classHash string) (deploy.Payload, error) {
	hash, err := starknet.ParseFelt(classHash)
	if err != nil {
		return deploy.Payload{}, err
	}
	identity, err := s.Identity(ctx)
	if err != nil {
		return deploy.Payload{}, err
	}
	return deploy.NewMultisigPayload(hash, identity)
}

func newAddress() *cobra.Command {
	return &cobra.Command{
		Use:   "address",
		Short: "Prints the counterfactual multisig account address of the device key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}

			return command.WithDeviceSession(cmd.Context(), cfg, func(ctx context.Context, s *app.DeviceSession) error {
				payload, err := payloadFor(ctx, s.Signer, cfg.Starknet.ClassHash)
				if err != nil {
					return err
				}
				address, err := payload.Address()
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "address:     %s\n", starknet.FeltToHex(address))
				fmt.Fprintf(out, "class hash:  %s\n", starknet.FeltToHex(payload.ClassHash))
				fmt.Fprintf(out, "salt:        %s\n", starknet.FeltToHex(payload.Salt))
				fmt.Fprintf(out, "constructor: %v\n", starknet.FeltsToHex(payload.ConstructorCalldata))
				return nil
			})
		},
	}
}

func newDeploy() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploys the multisig account of the device key unless it already exists",
		Long: `Deploys the multisig account of the device key unless it already exists.

The deploy-account transaction is submitted at most once. If an earlier submission is still
unknown to the node, the command stops; pass --discard-pending once you know it was dropped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}
			discard, err := cmd.Flags().GetBool(discardPendingFlag)
			if err != nil {
				return err
			}

			return command.WithSession(cmd.Context(), cfg, func(ctx context.Context, s *app.Session) error {
				payload, err := payloadFor(ctx, s.Signer, cfg.Starknet.ClassHash)
				if err != nil {
					return err
				}
				address, err := payload.Address()
				if err != nil {
					return err
				}

				if discard {
					if err := s.Deployer.DiscardPending(ctx, address); err != nil {
						return err
					}
				}

				res, err := s.Deployer.DeployIfAbsent(ctx, address, payload)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "address: %s\n", starknet.FeltToHex(address))
				fmt.Fprintf(out, "status:  %s\n", res.Status)
				if res.TxHash != nil {
					fmt.Fprintf(out, "tx hash: %s\n", starknet.FeltToHex(res.TxHash))
				}
				if res.Fee != nil {
					if fee, err := res.Fee.OverallFeeDecimal(); err == nil {
						fmt.Fprintf(out, "fee:     %s %s (estimate)\n", fee.String(), res.Fee.Unit)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().Bool(discardPendingFlag, false, "Mark an unconfirmed earlier submission as failed before deploying")

	return cmd
}
