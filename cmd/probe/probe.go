package probe

import (
	"github.com/spf13/cobra"
	"github/chapool/go-stark-signer/internal/util/command"
)

const (
	verboseFlag string = "verbose"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("probe",
		newConfig(),
		newReadiness(),
	)
}
