package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gosuda/lanes/internal/auth"
	"github.com/gosuda/lanes/internal/domain"
)

func tokenCmd() *cobra.Command {
	var email, name string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token, creating the user if needed",
		Long: `Issue a signed access token for a user. Lanes has no sign-up flow of its
own; accounts are created here by an operator.

Examples:
  lanes token --email ada@example.com
  lanes token --email ada@example.com --name ada`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			u, err := ensureUser(cmd.Context(), store.Users(), email, name)
			if err != nil {
				return err
			}

			tok, err := auth.IssueAccessToken(cfg.JWT.Secret, u.ID, u.Email, cfg.JWT.AccessTTL)
			if err != nil {
				return err
			}
			log.Info().Str("user_id", u.ID.String()).Dur("ttl", cfg.JWT.AccessTTL).Msg("token issued")
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "user email (required)")
	cmd.Flags().StringVar(&name, "name", "", "username for a newly created user")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

// ensureUser returns the user with email, creating it when absent.
func ensureUser(ctx context.Context, users domain.UserRepository, email, name string) (*domain.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email %q", email)
	}

	u, err := users.GetByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	u = &domain.User{ID: uuid.New(), Email: email, Username: strings.TrimSpace(name), CreatedAt: time.Now().UTC()}
	if err := users.Create(ctx, u); err != nil {
		return nil, err
	}
	log.Info().Str("user_id", u.ID.String()).Str("email", email).Msg("user created")
	return u, nil
}
