package sign

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/go-stark-signer/internal/app"
	"github/chapool/go-stark-signer/internal/util/command"
	"github/chapool/go-stark-signer/internal/wallet/signature"
	"github/chapool/go-stark-signer/internal/wallet/starknet"
	"github/chapool/go-stark-signer/internal/wallet/typeddata"
)

const (
	fileFlag    string = "file"
	accountFlag string = "account"
	submitFlag  string = "submit"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("sign",
		newMessage(),
		newInvoke(),
	)
}

// readInput reads path, or stdin for "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" {
		return nil, errors.Errorf("--%s is required", fileFlag)
	}
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func printSignature(w io.Writer, sig signature.EncodedSignature) error {
	out, err := json.Marshal(sig)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "signature: %s\n", out)
	return nil
}

func newMessage() *cobra.Command {
	var file, account string

	cmd := &cobra.Command{
		Use:   "message",
		Short: "Signs a SNIP-12 typed data message for an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}
			data, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			td, err := typeddata.Parse(data)
			if err != nil {
				return err
			}
			address, err := starknet.ParseFelt(account)
			if err != nil {
				return errors.Wrapf(err, "invalid --%s", accountFlag)
			}

			return command.WithDeviceSession(cmd.Context(), cfg, func(ctx context.Context, s *app.DeviceSession) error {
				hash, err := typeddata.MessageHash(td, address)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "message hash: %s\n", starknet.FeltToHex(hash))

				sig, err := s.Signer.SignMessage(ctx, td, address)
				if err != nil {
					return err
				}
				return printSignature(cmd.OutOrStdout(), sig)
			})
		},
	}

	cmd.Flags().StringVar(&file, fileFlag, "", "Typed data JSON file, - for stdin")
	cmd.Flags().StringVar(&account, accountFlag, "", "Account address the message is signed for")

	return cmd
}

// callJSON is the wire format of one call, as produced by starknet.js.
type callJSON struct {
	ContractAddress string   `json:"contractAddress"`
	Entrypoint      string   `json:"entrypoint"`
	Calldata        []string `json:"calldata"`
}

func parseCalls(data []byte) ([]starknet.Call, error) {
	var raw []callJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		var single callJSON
		if errSingle := json.Unmarshal(data, &single); errSingle != nil {
			return nil, errors.Wrap(err, "failed to decode calls")
		}
		raw = []callJSON{single}
	}

	calls := make([]starknet.Call, 0, len(raw))
	for i, c := range raw {
		to, err := starknet.ParseFelt(c.ContractAddress)
		if err != nil {
			return nil, errors.Wrapf(err, "call %d contract address", i)
		}
		calldata, err := starknet.ParseFelts(c.Calldata)
		if err != nil {
			return nil, errors.Wrapf(err, "call %d calldata", i)
		}
		calls = append(calls, starknet.Call{ContractAddress: to, EntryPoint: c.Entrypoint, Calldata: calldata})
	}

	return calls, nil
}

func newInvoke() *cobra.Command {
	var (
		file, account string
		submit        bool
	)

	cmd := &cobra.Command{
		Use:   "invoke",
		Short: "Signs an invoke transaction of a deployed account, optionally submitting it",
		Long: `Signs an invoke transaction of a deployed account.

The nonce is fetched and the fee estimated from the node; the suggested fee is signed.
With --submit the transaction is broadcast once.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}
			data, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			calls, err := parseCalls(data)
			if err != nil {
				return err
			}
			address, err := starknet.ParseFelt(account)
			if err != nil {
				return errors.Wrapf(err, "invalid --%s", accountFlag)
			}

			return command.WithSession(cmd.Context(), cfg, func(ctx context.Context, s *app.Session) error {
				signed, err := s.Executor.Sign(ctx, address, calls)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "tx hash:   %s\n", starknet.FeltToHex(signed.TxHash))
				fmt.Fprintf(out, "nonce:     %s\n", starknet.FeltToHex(signed.Details.Nonce))
				if fee, err := signed.Fee.OverallFeeDecimal(); err == nil {
					fmt.Fprintf(out, "fee:       %s %s (estimate)\n", fee.String(), signed.Fee.Unit)
				}
				if err := printSignature(out, signed.Signature); err != nil {
					return err
				}

				if !submit {
					return nil
				}
				if _, err := s.Executor.Submit(ctx, signed); err != nil {
					return err
				}
				fmt.Fprintln(out, "submitted")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&file, fileFlag, "", "Calls JSON file, - for stdin")
	cmd.Flags().StringVar(&account, accountFlag, "", "Sender account address")
	cmd.Flags().BoolVar(&submit, submitFlag, false, "Broadcast the signed transaction")

	return cmd
}
