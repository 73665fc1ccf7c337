package services

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/desertthunder/tunelink/internal/models"
	"github.com/desertthunder/tunelink/internal/shared"
)

// ProviderError is a non-2xx answer from a provider API.
//
// errors.Is(err, shared.ErrProviderRequest) holds for every ProviderError.
type ProviderError struct {
	Provider   models.Provider
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s API error: status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

func (e *ProviderError) Is(target error) bool {
	return target == shared.ErrProviderRequest
}

// Unauthorized reports whether the provider rejected the access token.
func (e *ProviderError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// IsUnauthorized reports whether err is a 401 from any provider.
func IsUnauthorized(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Unauthorized()
}

func newProviderError(p models.Provider, resp *http.Response) *ProviderError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &ProviderError{Provider: p, StatusCode: resp.StatusCode, Body: string(body)}
}

func requestFailed(p models.Provider, err error) error {
	return fmt.Errorf("%w: %s: %w", shared.ErrProviderRequest, p, err)
}
