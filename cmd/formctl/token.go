package main

import (
	"fmt"
	"time"

	"github.com/Rrens/formvault/internal/config"
	"github.com/Rrens/formvault/internal/domain"
	"github.com/Rrens/formvault/internal/security"
	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	var (
		tenant  string
		subject string
		admin   bool
		secret  string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for development",
		Long: `Token signs an access token for the given tenant. The signing secret and
lifetime default to the server configuration (JWT_SECRET, auth.access_token_ttl).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" || ttl == 0 {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				if secret == "" {
					secret = cfg.Auth.JWTSecret
				}
				if ttl == 0 {
					ttl = cfg.Auth.AccessTokenTTL
				}
			}
			if len(secret) < config.MinJWTSecretLength {
				return fmt.Errorf("signing secret must be at least %d bytes: pass --secret or set JWT_SECRET", config.MinJWTSecretLength)
			}

			token, err := security.NewJWTManager(secret, ttl).
				GenerateAccessToken(subject, domain.TenantID(tenant), admin)
			if err != nil {
				return fmt.Errorf("failed to generate token: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant the token is scoped to")
	cmd.Flags().StringVar(&subject, "subject", "formctl", "Subject recorded in the token")
	cmd.Flags().BoolVar(&admin, "admin", false, "Grant access to the tenant registry")
	cmd.Flags().StringVar(&secret, "secret", "", "HMAC signing secret")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}
