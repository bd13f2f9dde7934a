package db

import (
	"github.com/spf13/cobra"
	"github/chapool/go-stark-signer/internal/util/command"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("db",
		newMigrate(),
	)
}
