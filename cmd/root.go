package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/go-stark-signer/cmd/account"
	"github/chapool/go-stark-signer/cmd/db"
	"github/chapool/go-stark-signer/cmd/device"
	"github/chapool/go-stark-signer/cmd/env"
	"github/chapool/go-stark-signer/cmd/probe"
	"github/chapool/go-stark-signer/cmd/sign"
	"github/chapool/go-stark-signer/internal/config"
	"github/chapool/go-stark-signer/internal/util/command"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Version: config.GetFormattedBuildArgs(),
	Use:     "app",
	Short:   config.ModuleName,
	Long: fmt.Sprintf(`%v

Signs Starknet multisig account transactions with a Ledger device.
Configured through ENV, an optional .env file and an optional config file.`, config.ModuleName),
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	rootCmd.PersistentFlags().String(command.ConfigFlag, "", "Path to a config file (yaml, json or toml)")

	// attach the subcommands
	rootCmd.AddCommand(
		account.New(),
		db.New(),
		device.New(),
		env.New(),
		probe.New(),
		sign.New(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Failed to execute root command")
		os.Exit(1)
	}
}
