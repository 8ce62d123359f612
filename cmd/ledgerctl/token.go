package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"prodledger/internal/domain/auth"
)

func newTokenCmd(c *cli) *cobra.Command {
	var (
		name  string
		roles []string
		ttl   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <actor-id>",
		Short: "Issue an API bearer token signed with JWT_SECRET",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET is not set")
			}
			jwtCfg := auth.DefaultJWTConfig(c.cfg.JWTSecret)
			if ttl > 0 {
				jwtCfg.TokenTTL = ttl
			}

			token, expires, err := auth.NewJWTService(jwtCfg).IssueToken(strings.TrimSpace(args[0]), name, roles)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expires.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name carried in the token")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "role to grant (repeatable)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default 15m)")
	return cmd
}
