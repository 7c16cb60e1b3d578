package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/boddenberg/extrato-ingest-go/internal/service"
)

func newTokenCommand() *cobra.Command {
	var (
		ttl    time.Duration
		secret string
	)

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Sign a development access token for /confirmar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			if secret == "" {
				return errors.New("no signing secret: pass --secret or set JWT_SECRET")
			}
			tok, err := service.NewTokenVerifier(secret).SignAccessToken(args[0], ttl)
			if err != nil {
				return fmt.Errorf("signing token: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	cmd.Flags().StringVar(&secret, "secret", "", "HMAC secret (defaults to $JWT_SECRET)")

	return cmd
}
