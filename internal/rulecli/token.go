package rulecli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"idv/pkg/platform/operatortoken"
)

// TokenOptions holds flags for the token command.
type TokenOptions struct {
	*RootOptions
	Actor     string
	TTL       time.Duration
	SecretEnv string
}

type tokenReport struct {
	Token     string    `json:"token"`
	Actor     string    `json:"actor"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewTokenCommand creates the token command.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an operator bearer token for the admin API",
		Long: `Sign a short lived operator token with the server's admin secret. Rule
changes made with the token are recorded under the given actor.`,
		Example: `  ADMIN_TOKEN=... rulectl token --actor alice --ttl 30m`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(cmd, opts, time.Now())
		},
	}
	cmd.Flags().StringVar(&opts.Actor, "actor", "", "operator name recorded on rule changes")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", time.Hour, "token lifetime")
	cmd.Flags().StringVar(&opts.SecretEnv, "secret-env", "ADMIN_TOKEN", "environment variable holding the admin secret")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

func runToken(cmd *cobra.Command, opts *TokenOptions, now time.Time) error {
	secret := os.Getenv(opts.SecretEnv)
	if secret == "" {
		return errors.New(opts.SecretEnv + " is not set")
	}
	token, err := operatortoken.NewService(secret, operatortoken.DefaultIssuer).Issue(opts.Actor, opts.TTL, now)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		return writeJSON(out, tokenReport{Token: token, Actor: opts.Actor, ExpiresAt: now.Add(opts.TTL).UTC()})
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
