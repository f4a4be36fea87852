package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/lifecycle/errors"
	"github.com/kbukum/lifecycle/server/middleware"
)

func newTokenCommand(opts *rootOptions) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the admin API",
		Long: `Issue an HS256 bearer token signed with admin.auth_secret. A zero --ttl
issues a token without expiry.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(opts.loaderOptions())
			if err != nil {
				return err
			}
			if cfg.Admin.AuthSecret == "" {
				return errors.MissingField("admin.auth_secret")
			}
			if ttl < 0 {
				return errors.InvalidInput("ttl", "must not be negative")
			}
			token, err := middleware.IssueHS256([]byte(cfg.Admin.AuthSecret), subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "admin", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
