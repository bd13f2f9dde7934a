package db

import (
	"database/sql"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/go-stark-signer/internal/util"
	"github/chapool/go-stark-signer/internal/util/command"
	"github/chapool/go-stark-signer/internal/wallet/deploy"
)

func newMigrate() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Executes all migrations of the deployment record store",
		Long: `Executes all migrations of the deployment record store.
Requires DATABASE_DSN.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := command.LoadConfig(cmd)
			if err != nil {
				return err
			}
			log := util.NewLogger(cfg.Logger)

			if cfg.Database.DSN == "" {
				return errors.New("DATABASE_DSN is required")
			}

			db, err := sql.Open("postgres", cfg.Database.DSN)
			if err != nil {
				return errors.Wrap(err, "failed to open database")
			}
			defer db.Close()

			if err := db.PingContext(cmd.Context()); err != nil {
				return errors.Wrap(err, "failed to connect to database")
			}

			n, err := deploy.Migrate(db)
			if err != nil {
				return err
			}

			log.Info().Int("migrations", n).Msg("Successfully applied migrations")
			return nil
		},
	}
}
