package main

import (
	"errors"
	"fmt"
	"time"

	"barrel-backend/internal/auth"
	"barrel-backend/internal/models"

	"github.com/spf13/cobra"
)

var (
	tokenUser string
	tokenRole string
	tokenTTL  time.Duration
)

// tokenCmd mints a bearer token signed with the configured secret. Real
// tokens come from the identity provider; this is for local testing.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a development bearer token",
	RunE: run(func(cmd *cobra.Command, args []string) error {
		switch tokenRole {
		case models.RoleLab, models.RoleWorker, models.RoleSupervisor, models.RoleAdmin:
		default:
			return errors.New("--role must be one of lab, worker, supervisor, admin")
		}
		if tokenUser == "" {
			return errors.New("--user is required")
		}
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		token, err := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Issuer).GenerateToken(tokenUser, tokenRole, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	}),
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user id to embed")
	tokenCmd.Flags().StringVar(&tokenRole, "role", models.RoleLab, "role to embed")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 12*time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
