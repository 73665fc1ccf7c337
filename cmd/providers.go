package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/tunelink/internal/formatter"
	"github.com/desertthunder/tunelink/internal/shared"
	"github.com/urfave/cli/v3"
)

const defaultConnectTimeout = 5 * time.Minute

// ProvidersList shows both providers with their connection state.
func (r *Runner) ProvidersList(ctx context.Context, cmd *cli.Command) error {
	user, err := r.user(cmd)
	if err != nil {
		return err
	}

	statuses, err := r.accounts.ProviderStatus(user.ID)
	if err != nil {
		return err
	}
	return r.writeResult(cmd, statuses, func() string { return formatter.ProvidersTable(statuses) })
}

// ProvidersConnect performs the OAuth2 authorization flow for one provider.
//
// Starts the local HTTP server, opens the browser on the provider consent page, and
// waits for the callback to store the account and its token.
func (r *Runner) ProvidersConnect(ctx context.Context, cmd *cli.Command) error {
	provider, err := parseProvider(cmd.StringArg("provider"))
	if err != nil {
		return err
	}
	user, err := r.user(cmd)
	if err != nil {
		return err
	}

	srv, oauth, err := r.newOAuthServer()
	if err != nil {
		return err
	}

	authURL, err := oauth.AuthURL(user.ID, provider)
	if err != nil {
		return fmt.Errorf("failed to start %s authorization: %w", provider.DisplayName(), err)
	}

	ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
	defer cancel()

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Start(ctx) }()

	r.logger.Info("waiting for authorization", "provider", provider, "addr", r.config.Server.Addr())
	if err := shared.OpenOrPrint(r.output, authURL); err != nil {
		return err
	}

	select {
	case result := <-oauth.Result():
		if err := result.Error(); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
		}
		name := result.Account.DisplayName
		if name == "" {
			name = result.Account.ProviderUserID
		}
		r.writePlainln("✓ Connected %s as %s", provider.DisplayName(), name)
		r.writePlain("You can now use: tunelink sync pull\n")
		return nil
	case err := <-serveErr:
		if err == nil {
			err = ctx.Err()
		}
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w: no callback received: %v", shared.ErrAuthFailed, ctx.Err())
	}
}

// ProvidersDisconnect removes the account for one provider.
func (r *Runner) ProvidersDisconnect(ctx context.Context, cmd *cli.Command) error {
	provider, err := parseProvider(cmd.StringArg("provider"))
	if err != nil {
		return err
	}
	user, err := r.user(cmd)
	if err != nil {
		return err
	}

	if err := r.accounts.DisconnectAccount(user.ID, provider); err != nil {
		return err
	}
	return r.writePlain("✓ Disconnected %s\n", provider.DisplayName())
}
