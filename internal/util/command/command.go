package command

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/go-stark-signer/internal/app"
	"github/chapool/go-stark-signer/internal/config"
	"github/chapool/go-stark-signer/internal/util"
)

// NewSubcommandGroup returns a command that only groups subcommands and prints its help.
func NewSubcommandGroup(use string, subcommands ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("%s related subcommands", use),
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				log.Error().Err(err).Msg("Failed to print help")
			}
		},
	}

	cmd.AddCommand(subcommands...)

	return cmd
}

// WithDeviceSession opens the configured device, runs f and closes the device again.
func WithDeviceSession(ctx context.Context, cfg config.Server, f func(ctx context.Context, s *app.DeviceSession) error) error {
	util.NewLogger(cfg.Logger)
	if err := resolveSecrets(&cfg); err != nil {
		return err
	}

	s, cleanup, err := app.InitDeviceSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	defer pushMetrics(ctx, cfg, s)

	return f(ctx, s)
}

// WithSession opens the device, the RPC client and the deployment store, runs f and releases
// everything again.
func WithSession(ctx context.Context, cfg config.Server, f func(ctx context.Context, s *app.Session) error) error {
	util.NewLogger(cfg.Logger)
	if err := resolveSecrets(&cfg); err != nil {
		return err
	}

	s, cleanup, err := app.InitSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	defer pushMetrics(ctx, cfg, &s.DeviceSession)

	return f(ctx, s)
}

// resolveSecrets asks for the software key mnemonic when it is not configured.
func resolveSecrets(cfg *config.Server) error {
	if cfg.Device.Transport != config.DeviceTransportSoftkey || cfg.Device.Mnemonic != "" {
		return nil
	}

	mnemonic, err := readSecret("Mnemonic: ")
	if err != nil {
		return err
	}
	cfg.Device.Mnemonic = mnemonic
	return nil
}

var readSecret = ReadSecret

func pushMetrics(ctx context.Context, cfg config.Server, s *app.DeviceSession) {
	if err := app.PushMetrics(cfg, s.Metrics); err != nil {
		util.LogFromContext(ctx).Warn().Err(err).Msg("Failed to push metrics")
	}
}

const ConfigFlag = "config"

// LoadConfig loads the server config from the environment, .env and the file passed with --config.
func LoadConfig(cmd *cobra.Command) (config.Server, error) {
	file, err := cmd.Flags().GetString(ConfigFlag)
	if err != nil {
		file = ""
	}
	return config.Load(file, ".env")
}
