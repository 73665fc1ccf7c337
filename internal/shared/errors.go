package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig        = fmt.Errorf("configuration not found")
	ErrInvalidConfig        = fmt.Errorf("invalid configuration")
	ErrMissingCredentials   = fmt.Errorf("missing credentials")
	ErrMissingEncryptionKey = fmt.Errorf("encryption key is not configured")
	ErrInvalidEncryptionKey = fmt.Errorf("encryption key must be 64 hex characters")

	// Token and authentication errors
	ErrTokenNotFound = fmt.Errorf("%w: token", ErrNotFound)
	ErrDecryption    = fmt.Errorf("failed to decrypt token")
	ErrInvalidState  = fmt.Errorf("invalid or expired state")
	ErrAuthFailed    = fmt.Errorf("authentication failed")
	ErrNoRefresh     = fmt.Errorf("no refresh token available")

	// Provider errors
	ErrProviderRequest     = fmt.Errorf("provider request failed")
	ErrUnsupportedProvider = fmt.Errorf("unsupported provider")
	ErrNotConnected        = fmt.Errorf("%w: provider account not connected", ErrNotFound)

	// Lookup errors
	ErrNotFound         = fmt.Errorf("not found")
	ErrPlaylistNotFound = fmt.Errorf("%w: playlist", ErrNotFound)
	ErrTrackNotFound    = fmt.Errorf("%w: track", ErrNotFound)
	ErrConflictNotFound = fmt.Errorf("%w: conflict", ErrNotFound)
	ErrAccountNotFound  = fmt.Errorf("%w: provider account", ErrNotFound)
	ErrUserNotFound     = fmt.Errorf("%w: user", ErrNotFound)
	ErrItemNotFound     = fmt.Errorf("%w: playlist item", ErrNotFound)
	ErrSyncRunNotFound  = fmt.Errorf("%w: sync run", ErrNotFound)

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrInvalidPosition = fmt.Errorf("%w: position out of range", ErrInvalidInput)
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
