package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-portal/internal/domain"
	"github.com/spec-kit/repair-portal/internal/persistence"
	"github.com/spec-kit/repair-portal/internal/repository"
	"github.com/spec-kit/repair-portal/internal/service"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var userCreateOpts struct {
	name      string
	email     string
	password  string
	role      string
	specialty string
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account of any role",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		pg, err := persistence.NewPostgres(cmd.Context(), cfg.Postgres, logger)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()
		if !pg.Enabled() {
			return errors.New("user create: POSTGRES_DSN is required")
		}

		authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
			UserRepo: repository.NewUserRepository(pg.Pool),
			Logger:   logger,
		})
		user, err := authService.ProvisionUser(cmd.Context(), service.AccountInput{
			Name:      userCreateOpts.name,
			Email:     userCreateOpts.email,
			Password:  userCreateOpts.password,
			Role:      domain.Role(userCreateOpts.role),
			Specialty: userCreateOpts.specialty,
		})
		if err != nil {
			return err
		}
		logger.Info("account created", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
		fmt.Fprintln(cmd.OutOrStdout(), user.ID)
		return nil
	},
}

func init() {
	flags := userCreateCmd.Flags()
	flags.StringVar(&userCreateOpts.name, "name", "", "display name")
	flags.StringVar(&userCreateOpts.email, "email", "", "login email")
	flags.StringVar(&userCreateOpts.password, "password", "", "initial password")
	flags.StringVar(&userCreateOpts.role, "role", string(domain.RoleAdmin), "Customer, Technician, Employee, Manager or Admin")
	flags.StringVar(&userCreateOpts.specialty, "specialty", "", "device specialty, required for technicians")
	_ = userCreateCmd.MarkFlagRequired("email")
	_ = userCreateCmd.MarkFlagRequired("password")
	userCmd.AddCommand(userCreateCmd)
}
