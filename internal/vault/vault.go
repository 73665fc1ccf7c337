// Package vault encrypts, stores and refreshes per-account OAuth credentials.
//
// Token strings are sealed with [Cipher] before they reach the [TokenStore] and are
// only ever decrypted in memory. [Vault.GetValidAccessToken] refreshes tokens that
// expire within the configured buffer and reports what happened as an [Outcome]:
// a failed refresh degrades to the stale token instead of failing the caller.
package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunelink/internal/metrics"
	"github.com/desertthunder/tunelink/internal/models"
	"github.com/desertthunder/tunelink/internal/shared"
	"golang.org/x/oauth2"
)

// DefaultRefreshBuffer is how close to expiry a token is refreshed.
const DefaultRefreshBuffer = 5 * time.Minute

// Outcome describes how [Vault.GetValidAccessToken] produced its token.
type Outcome string

const (
	OutcomeFresh     Outcome = "fresh"     // stored token was still valid
	OutcomeRefreshed Outcome = "refreshed" // provider issued a new token
	OutcomeStale     Outcome = "stale"     // refresh needed but failed or impossible
)

// TokenStore persists encrypted tokens, at most one per account.
type TokenStore interface {
	Upsert(token *models.ProviderToken) error
	GetByAccount(accountID string) (*models.ProviderToken, error)
	DeleteByAccount(accountID string) error
}

// Refresher exchanges a refresh token for a new token set with the account's provider.
type Refresher interface {
	Refresh(ctx context.Context, provider models.Provider, refreshToken string) (*oauth2.Token, error)
}

// TokenInput is the plaintext side of [Vault.SaveToken].
type TokenInput struct {
	AccessToken  string
	RefreshToken string // empty means none
	TokenType    string
	ExpiresAt    *time.Time
	Scope        string
}

// FromOAuth2 converts an exchanged or refreshed [oauth2.Token].
func FromOAuth2(tok *oauth2.Token) TokenInput {
	in := TokenInput{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
	}
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry.UTC()
		in.ExpiresAt = &exp
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		in.Scope = scope
	}
	return in
}

// TokenResult is a usable access token and how it was obtained.
type TokenResult struct {
	AccessToken string
	Outcome     Outcome
	ExpiresAt   *time.Time
	RefreshErr  error // set when Outcome is OutcomeStale after a failed refresh
}

// Opts configures a [Vault].
type Opts struct {
	Store     TokenStore
	Cipher    *Cipher
	Refresher Refresher
	Buffer    time.Duration
	Logger    *log.Logger
	Metrics   *metrics.Metrics
	Clock     shared.Clock
}

// Vault is the only component that sees token plaintext.
type Vault struct {
	store     TokenStore
	cipher    *Cipher
	refresher Refresher
	buffer    time.Duration
	logger    *log.Logger
	metrics   *metrics.Metrics
	clock     shared.Clock
}

// New creates a [Vault]. Store and Cipher are required.
func New(opts Opts) (*Vault, error) {
	if opts.Store == nil || opts.Cipher == nil {
		return nil, fmt.Errorf("%w: vault needs a store and a cipher", shared.ErrInvalidConfig)
	}
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultRefreshBuffer
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Vault{
		store:     opts.Store,
		cipher:    opts.Cipher,
		refresher: opts.Refresher,
		buffer:    opts.Buffer,
		logger:    shared.WithLogger(opts.Logger, "component", "vault"),
		metrics:   opts.Metrics,
		clock:     opts.Clock,
	}, nil
}

// SaveToken encrypts in and upserts it as the account's only token.
func (v *Vault) SaveToken(accountID string, in TokenInput) (*models.ProviderToken, error) {
	if accountID == "" {
		return nil, fmt.Errorf("%w: account id is required", shared.ErrInvalidInput)
	}
	if in.AccessToken == "" {
		return nil, fmt.Errorf("%w: access token is required", shared.ErrInvalidInput)
	}

	access, err := v.cipher.Encrypt(in.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}

	token := &models.ProviderToken{
		AccountID:            accountID,
		AccessTokenEncrypted: access,
		TokenType:            in.TokenType,
		ExpiresAt:            in.ExpiresAt,
	}
	if token.TokenType == "" {
		token.TokenType = "Bearer"
	}
	if in.RefreshToken != "" {
		refresh, err := v.cipher.Encrypt(in.RefreshToken)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt refresh token: %w", err)
		}
		token.RefreshTokenEncrypted = &refresh
	}
	if in.Scope != "" {
		token.Scope = &in.Scope
	}

	if err := v.store.Upsert(token); err != nil {
		return nil, fmt.Errorf("failed to store token: %w", err)
	}
	return token, nil
}

// GetValidAccessToken returns a decrypted access token for the account, refreshing it
// first when it expires within the buffer and a refresh token exists.
//
// A missing token row fails with [shared.ErrTokenNotFound] and unreadable ciphertext
// with [shared.ErrDecryption]. A failed refresh is not an error: the stale token is
// returned with [OutcomeStale] and the cause in RefreshErr.
func (v *Vault) GetValidAccessToken(ctx context.Context, accountID string) (*TokenResult, error) {
	stored, err := v.store.GetByAccount(accountID)
	if err != nil {
		return nil, err
	}

	access, err := v.cipher.Decrypt(stored.AccessTokenEncrypted)
	if err != nil {
		return nil, err
	}

	result := &TokenResult{AccessToken: access, Outcome: OutcomeFresh, ExpiresAt: stored.ExpiresAt}
	if !v.needsRefresh(stored) {
		v.metrics.RecordTokenOutcome(stored.Provider, string(OutcomeFresh))
		return result, nil
	}

	logger := v.logger.With("account", accountID, "provider", stored.Provider)

	if stored.RefreshTokenEncrypted == nil {
		logger.Warn("token expiring without a refresh token")
		result.Outcome = OutcomeStale
		result.RefreshErr = shared.ErrNoRefresh
		v.metrics.RecordTokenOutcome(stored.Provider, string(OutcomeStale))
		return result, nil
	}

	refresh, err := v.cipher.Decrypt(*stored.RefreshTokenEncrypted)
	if err != nil {
		return nil, err
	}

	refreshed, err := v.refresh(ctx, stored, refresh)
	if err != nil {
		logger.Warn("token refresh failed, using stale token", "error", err)
		result.Outcome = OutcomeStale
		result.RefreshErr = err
		v.metrics.RecordTokenOutcome(stored.Provider, string(OutcomeStale))
		return result, nil
	}

	logger.Info("token refreshed")
	v.metrics.RecordTokenOutcome(stored.Provider, string(OutcomeRefreshed))
	return refreshed, nil
}

func (v *Vault) needsRefresh(t *models.ProviderToken) bool {
	if t.ExpiresAt == nil {
		return false
	}
	return !v.clock.Now().Add(v.buffer).Before(*t.ExpiresAt)
}

// refresh calls the provider and persists the rotated token set. Providers that do
// not rotate refresh tokens return none, in which case the old one is kept.
func (v *Vault) refresh(ctx context.Context, stored *models.ProviderToken, refreshToken string) (*TokenResult, error) {
	if v.refresher == nil {
		return nil, fmt.Errorf("%w: no refresher configured", shared.ErrNotImplemented)
	}

	tok, err := v.refresher.Refresh(ctx, stored.Provider, refreshToken)
	if err != nil {
		return nil, err
	}
	if tok == nil || tok.AccessToken == "" {
		return nil, errors.New("provider returned an empty access token")
	}

	in := FromOAuth2(tok)
	if in.RefreshToken == "" {
		in.RefreshToken = refreshToken
	}
	if in.Scope == "" && stored.Scope != nil {
		in.Scope = *stored.Scope
	}

	saved, err := v.SaveToken(stored.AccountID, in)
	if err != nil {
		return nil, err
	}

	return &TokenResult{AccessToken: in.AccessToken, Outcome: OutcomeRefreshed, ExpiresAt: saved.ExpiresAt}, nil
}

// DeleteToken removes the account's token.
func (v *Vault) DeleteToken(accountID string) error {
	return v.store.DeleteByAccount(accountID)
}
