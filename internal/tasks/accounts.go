package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunelink/internal/models"
	"github.com/desertthunder/tunelink/internal/repositories"
	"github.com/desertthunder/tunelink/internal/services"
	"github.com/desertthunder/tunelink/internal/shared"
	"github.com/desertthunder/tunelink/internal/vault"
)

// TokenVault is the part of [vault.Vault] the account service needs.
type TokenVault interface {
	SaveToken(accountID string, in vault.TokenInput) (*models.ProviderToken, error)
	GetValidAccessToken(ctx context.Context, accountID string) (*vault.TokenResult, error)
	DeleteToken(accountID string) error
}

// ProviderRegistry creates adapters and OAuth clients by provider.
type ProviderRegistry interface {
	Provider(p models.Provider, accessToken string) (services.Provider, error)
	Authenticator(p models.Provider) (services.Authenticator, error)
	Kinds() []models.Provider
}

// ProviderStatus is one row of [Accounts.ProviderStatus].
type ProviderStatus struct {
	Provider  models.Provider         `json:"provider"`
	Name      string                  `json:"name"`
	Connected bool                    `json:"connected"`
	Account   *models.ProviderAccount `json:"account,omitempty"`
}

// Accounts links provider accounts to users and hands out authorized adapters.
type Accounts struct {
	store    *repositories.Store
	vault    TokenVault
	registry ProviderRegistry
	logger   *log.Logger
}

// NewAccounts creates an [Accounts] service.
func NewAccounts(store *repositories.Store, v TokenVault, registry ProviderRegistry, logger *log.Logger) *Accounts {
	return &Accounts{store: store, vault: v, registry: registry, logger: logger}
}

// ConnectAccount exchanges code, fetches the provider profile, upserts the account
// for (userID, provider) and stores the encrypted token.
func (a *Accounts) ConnectAccount(ctx context.Context, userID string, provider models.Provider, code string) (*models.ProviderAccount, error) {
	auth, err := a.registry.Authenticator(provider)
	if err != nil {
		return nil, err
	}

	tok, err := auth.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	adapter, err := a.registry.Provider(provider, tok.AccessToken)
	if err != nil {
		return nil, err
	}
	profile, err := adapter.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s profile: %w", provider, err)
	}

	account := &models.ProviderAccount{
		UserID:         userID,
		Provider:       provider,
		ProviderUserID: profile.ID,
		DisplayName:    profile.DisplayName,
		Email:          profile.Email,
		ProfileURL:     profile.ProfileURL,
		ImageURL:       profile.ImageURL,
	}
	if err := a.store.Accounts.Upsert(account); err != nil {
		return nil, err
	}

	if _, err := a.vault.SaveToken(account.ID, vault.FromOAuth2(tok)); err != nil {
		return nil, err
	}

	a.logger.Info("account connected", "user", userID, "provider", provider, "account", account.ID)
	return account, nil
}

// DisconnectAccount removes the user's account for provider. Its token and mirrored
// playlists go with it.
func (a *Accounts) DisconnectAccount(userID string, provider models.Provider) error {
	account, err := a.store.Accounts.GetByUserAndProvider(userID, provider)
	if err != nil {
		return err
	}
	if err := a.store.Accounts.Delete(account.ID); err != nil {
		return err
	}
	a.logger.Info("account disconnected", "user", userID, "provider", provider)
	return nil
}

// ProviderStatus lists every supported provider with the user's connection, if any.
func (a *Accounts) ProviderStatus(userID string) ([]ProviderStatus, error) {
	accounts, err := a.store.Accounts.ListByUser(userID)
	if err != nil {
		return nil, err
	}

	byProvider := make(map[models.Provider]*models.ProviderAccount, len(accounts))
	for _, acct := range accounts {
		byProvider[acct.Provider] = acct
	}

	statuses := make([]ProviderStatus, 0, len(models.Providers))
	for _, p := range models.Providers {
		acct := byProvider[p]
		statuses = append(statuses, ProviderStatus{
			Provider:  p,
			Name:      p.DisplayName(),
			Connected: acct != nil,
			Account:   acct,
		})
	}
	return statuses, nil
}

// ListAccounts returns the user's connected accounts.
func (a *Accounts) ListAccounts(userID string) ([]*models.ProviderAccount, error) {
	return a.store.Accounts.ListByUser(userID)
}

// Session returns an adapter authorized as account, refreshing its token if needed.
func (a *Accounts) Session(ctx context.Context, account *models.ProviderAccount) (services.Provider, error) {
	result, err := a.vault.GetValidAccessToken(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	if result.Outcome == vault.OutcomeStale {
		a.logger.Warn("using stale access token", "account", account.ID, "provider", account.Provider, "error", result.RefreshErr)
	}
	return a.registry.Provider(account.Provider, result.AccessToken)
}

// SessionFor looks up the user's account for provider and returns an authorized adapter.
func (a *Accounts) SessionFor(ctx context.Context, userID string, provider models.Provider) (services.Provider, *models.ProviderAccount, error) {
	account, err := a.store.Accounts.GetByUserAndProvider(userID, provider)
	if errors.Is(err, shared.ErrAccountNotFound) {
		return nil, nil, fmt.Errorf("%w: %s", shared.ErrNotConnected, provider)
	}
	if err != nil {
		return nil, nil, err
	}

	adapter, err := a.Session(ctx, account)
	if err != nil {
		return nil, nil, err
	}
	return adapter, account, nil
}
