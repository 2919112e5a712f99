package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/estate-listings/internal/database"
	"github.com/iliyamo/estate-listings/internal/repository"
	"github.com/iliyamo/estate-listings/internal/service"
	"github.com/iliyamo/estate-listings/internal/utils"
)

// NewUserCmd creates the user administration subcommand.
func NewUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "deactivate <email>",
		Short: "Block future logins for an account",
		Long: `Deactivate sets is_active=false.  Sessions already issued stay
valid until their token expires.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			db, err := database.Open(cmd.Context(), cfg.DSN())
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			signer := utils.NewTokenSigner(cfg.JWTSecret, 0, nil)
			creds := service.NewCredentialService(repository.NewUserRepo(db), signer, cfg.BcryptCost, cfg.QueryTimeout, log)
			if err := creds.Deactivate(cmd.Context(), args[0]); err != nil {
				return err
			}
			log.Info("user deactivated", zap.String("email", args[0]))
			cmd.Printf("deactivated %s\n", args[0])
			return nil
		},
	})
	return cmd
}
