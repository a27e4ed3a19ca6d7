package httpclient

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// New creates an HTTP client tuned for outbound service-to-service communication.
// A zero timeout leaves the request bounded only by its context.
func New(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

type ClientCredentials struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// WithClientCredentials wraps base so every request carries an OAuth2 bearer
// token obtained with the client-credentials grant. Without a token URL base is
// returned unchanged.
func WithClientCredentials(ctx context.Context, base *http.Client, creds ClientCredentials) *http.Client {
	if creds.TokenURL == "" {
		return base
	}
	cfg := clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     creds.TokenURL,
		Scopes:       creds.Scopes,
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	client := cfg.Client(ctx)
	client.Timeout = base.Timeout
	return client
}

// Retry executes fn with simple exponential backoff retry semantics.
func Retry(ctx context.Context, attempts int, baseDelay time.Duration, fn func() error) error {
	return RetryIf(ctx, attempts, baseDelay, fn, func(error) bool { return true })
}

// RetryIf is Retry that gives up as soon as retriable reports false for an error.
func RetryIf(ctx context.Context, attempts int, baseDelay time.Duration, fn func() error, retriable func(error) bool) error {
	if attempts <= 1 {
		return fn()
	}

	var err error
	delay := baseDelay
	for i := 0; i < attempts; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err = fn()
		if err == nil {
			return nil
		}

		// Do not sleep after last attempt
		if i == attempts-1 || !retriable(err) {
			break
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}

		// exponential backoff with cap
		delay *= 2
		if delay > 2*time.Second {
			delay = 2 * time.Second
		}
	}

	return err
}

// IsRetriable determines if the error is worth retrying: timeouts and errors
// that report themselves as temporary (kafka-go broker errors do).
func IsRetriable(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var temp interface{ Temporary() bool }
	if errors.As(err, &temp) {
		return temp.Temporary()
	}
	return errors.Is(err, context.DeadlineExceeded)
}
