package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"acp_dues/internal/access"
	"acp_dues/internal/config"
	"acp_dues/internal/transport/auth"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "API access tokens",
	}

	var (
		subject string
		role    string
		ttl     time.Duration
	)
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Sign a bearer token with JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load()
			if err != nil {
				return err
			}
			if settings.JWTSecret == "" {
				return errors.New("JWT_SECRET is not set")
			}
			id := access.Identity{Subject: subject, Role: access.Role(role)}
			if !id.Role.Valid() {
				return fmt.Errorf("unknown role %q", role)
			}
			tok, err := auth.NewTokens(settings.JWTSecret).Issue(id, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	issue.Flags().StringVar(&subject, "sub", "", "token subject")
	issue.Flags().StringVar(&role, "role", string(access.RoleViewer), "admin, operator or viewer")
	issue.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = issue.MarkFlagRequired("sub")

	cmd.AddCommand(issue)
	return cmd
}
