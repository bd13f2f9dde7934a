package device

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
	"github/chapool/go-stark-signer/internal/app"
	"github/chapool/go-stark-signer/internal/util/command"
	"github/chapool/go-stark-signer/internal/wallet/signature"
	"github/chapool/go-stark-signer/internal/wallet/starknet"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("device",
		newPubkey(),
	)
}

func newPubkey() *cobra.Command {
	return &cobra.Command{
		Use:   "pubkey",
		Short: "Prints the device public key and the multisig signer it maps to",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}

			return command.WithDeviceSession(cmd.Context(), cfg, func(ctx context.Context, s *app.DeviceSession) error {
				pub, err := s.Signer.PublicKey(ctx)
				if err != nil {
					return err
				}
				identity, err := s.Signer.Identity(ctx)
				if err != nil {
					return err
				}
				encoded, err := signature.EncodeSigner(identity)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "public key: 0x%s\n", hex.EncodeToString(pub))
				fmt.Fprintf(out, "signer:     %s %v\n", identity.Tag(), starknet.FeltsToHex(encoded[1:]))
				return nil
			})
		},
	}
}
