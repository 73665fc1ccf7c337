package services

import (
	"net/http"
	"time"

	"github.com/desertthunder/tunelink/internal/metrics"
	"github.com/desertthunder/tunelink/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	DefaultRequestTimeout = 15 * time.Second
	DefaultRateLimit      = 5.0
)

// ClientOpts configures the outbound HTTP stack of one provider.
type ClientOpts struct {
	Provider  models.Provider
	BaseURL   string // API root, overridden in tests
	Timeout   time.Duration
	RateLimit float64 // requests per second, shared by every client of the provider
	Metrics   *metrics.Metrics
	Base      http.RoundTripper
}

func (o ClientOpts) withDefaults() ClientOpts {
	if o.Timeout <= 0 {
		o.Timeout = DefaultRequestTimeout
	}
	if o.RateLimit <= 0 {
		o.RateLimit = DefaultRateLimit
	}
	if o.Base == nil {
		o.Base = http.DefaultTransport
	}
	return o
}

// Transport waits on a shared [rate.Limiter] before each request and records its
// status and latency.
type Transport struct {
	provider models.Provider
	base     http.RoundTripper
	limiter  *rate.Limiter
	metrics  *metrics.Metrics
}

// NewTransport builds the rate limited transport for opts.Provider.
func NewTransport(opts ClientOpts) *Transport {
	opts = opts.withDefaults()
	burst := int(opts.RateLimit)
	if burst < 1 {
		burst = 1
	}
	return &Transport{
		provider: opts.Provider,
		base:     opts.Base,
		limiter:  rate.NewLimiter(rate.Limit(opts.RateLimit), burst),
		metrics:  opts.Metrics,
	}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	status := 0
	if err == nil {
		status = resp.StatusCode
	}
	t.metrics.RecordProviderRequest(string(t.provider), status, time.Since(start))
	return resp, err
}

// authorizedClient wraps rt so every request carries "<tokenType> <accessToken>".
func authorizedClient(rt http.RoundTripper, timeout time.Duration, tokenType, accessToken string) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: tokenType}),
			Base:   rt,
		},
	}
}
