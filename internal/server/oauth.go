package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunelink/internal/models"
	"github.com/desertthunder/tunelink/internal/services"
	"github.com/desertthunder/tunelink/internal/shared"
)

// Connector finishes linking a provider account once the authorization code is known.
type Connector interface {
	ConnectAccount(ctx context.Context, userID string, provider models.Provider, code string) (*models.ProviderAccount, error)
}

// AuthSource looks up the OAuth client for a provider.
type AuthSource interface {
	Authenticator(p models.Provider) (services.Authenticator, error)
}

// OAuthResult is the outcome of one callback.
type OAuthResult struct {
	Provider models.Provider
	UserID   string
	Account  *models.ProviderAccount
	err      error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler serves the connect redirect and the provider callback.
//
// Each finished callback is also published on [OAuthHandler.Result] so the CLI can
// wait for the browser round trip. Nobody has to listen: results are dropped when the
// buffer is full.
type OAuthHandler struct {
	coordinator *Coordinator
	auths       AuthSource
	connector   Connector
	logger      *log.Logger
	results     chan OAuthResult
}

// NewOAuthHandler creates an [OAuthHandler].
func NewOAuthHandler(coordinator *Coordinator, auths AuthSource, connector Connector, logger *log.Logger) *OAuthHandler {
	return &OAuthHandler{
		coordinator: coordinator,
		auths:       auths,
		connector:   connector,
		logger:      logger,
		results:     make(chan OAuthResult, 1),
	}
}

const (
	connectRoute  = "GET /auth/{provider}/connect"
	callbackRoute = "GET /auth/{provider}/callback"
)

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{connectRoute, callbackRoute}
}

func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Pattern {
	case connectRoute:
		h.Connect(w, r)
	case callbackRoute:
		h.Callback(w, r)
	default:
		http.NotFound(w, r)
	}
}

// AuthURL issues a state for userID and returns the provider authorize URL.
func (h *OAuthHandler) AuthURL(userID string, provider models.Provider) (string, error) {
	auth, err := h.auths.Authenticator(provider)
	if err != nil {
		return "", err
	}
	state, err := h.coordinator.GenerateState(userID)
	if err != nil {
		return "", err
	}
	return auth.AuthURL(state), nil
}

// Connect redirects the browser to the provider consent page. The user is taken from ?user=.
func (h *OAuthHandler) Connect(w http.ResponseWriter, r *http.Request) {
	provider, err := models.ParseProvider(r.PathValue("provider"))
	if err != nil {
		http.Error(w, "Invalid provider", http.StatusBadRequest)
		return
	}

	userID := r.URL.Query().Get("user")
	if userID == "" {
		http.Error(w, "Missing user", http.StatusBadRequest)
		return
	}

	url, err := h.AuthURL(userID, provider)
	switch {
	case errors.Is(err, shared.ErrMissingCredentials), errors.Is(err, shared.ErrUnsupportedProvider):
		http.Error(w, "Provider is not configured", http.StatusServiceUnavailable)
		return
	case err != nil:
		h.logger.Error("failed to start oauth flow", "provider", provider, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, url, http.StatusFound)
}

// Callback redeems the state, then connects the account with the authorization code.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	provider, err := models.ParseProvider(r.PathValue("provider"))
	if err != nil {
		http.Error(w, "Invalid provider", http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		h.send(OAuthResult{Provider: provider, err: fmt.Errorf("%w: %s %s", shared.ErrAuthFailed, e, q.Get("error_description"))})
		h.render(w, http.StatusBadRequest, "Authorization Failed", "The provider reported: "+e)
		return
	}

	userID, err := h.coordinator.ValidateAndConsume(q.Get("state"))
	if err != nil {
		h.send(OAuthResult{Provider: provider, err: err})
		h.render(w, http.StatusBadRequest, "Authorization Failed", "This sign-in link is invalid or has expired.")
		return
	}

	code := q.Get("code")
	if code == "" {
		h.send(OAuthResult{Provider: provider, UserID: userID, err: fmt.Errorf("%w: missing code", shared.ErrAuthFailed)})
		h.render(w, http.StatusBadRequest, "Authorization Failed", "No authorization code was returned.")
		return
	}

	account, err := h.connector.ConnectAccount(r.Context(), userID, provider, code)
	if err != nil {
		h.logger.Error("oauth callback failed", "provider", provider, "user", userID, "error", err)
		h.send(OAuthResult{Provider: provider, UserID: userID, err: err})
		h.render(w, http.StatusBadGateway, "Connection Failed", "The account could not be connected.")
		return
	}

	h.logger.Info("provider connected", "provider", provider, "user", userID, "account", account.ID)
	h.send(OAuthResult{Provider: provider, UserID: userID, Account: account})
	h.render(w, http.StatusOK, "✓ Authorization Successful", "You can close this window and return to the terminal.")
}

func (h *OAuthHandler) send(result OAuthResult) {
	select {
	case h.results <- result:
	default:
	}
}

// Result returns the channel callback outcomes are published on.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.results
}

var resultPage = template.Must(template.New("result").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: {{if .OK}}#1DB954{{else}}#d9534f{{end}}; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <p>{{.Message}}</p>
    </div>
</body>
</html>
`))

func (h *OAuthHandler) render(w http.ResponseWriter, status int, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	data := struct {
		Title, Message string
		OK             bool
	}{title, message, status == http.StatusOK}
	if err := resultPage.Execute(w, data); err != nil {
		h.logger.Warn("failed to render result page", "error", err)
	}
}
