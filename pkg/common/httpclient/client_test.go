package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetryStopsOnSuccess(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 4, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestRetryReturnsLastError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 2, time.Millisecond, func() error {
		calls++
		return errors.New("down")
	})
	require.EqualError(t, err, "down")
	require.Equal(t, 2, calls)
}

func TestRetryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, 3, time.Millisecond, func() error { return errors.New("never") })
	require.ErrorIs(t, err, context.Canceled)
}

type temporaryError bool

func (e temporaryError) Error() string   { return "temporary" }
func (e temporaryError) Temporary() bool { return bool(e) }

func TestIsRetriable(t *testing.T) {
	require.True(t, IsRetriable(context.DeadlineExceeded))
	require.True(t, IsRetriable(fmt.Errorf("publish: %w", temporaryError(true))))
	require.False(t, IsRetriable(temporaryError(false)))
	require.False(t, IsRetriable(errors.New("boom")))
}

func TestRetryIfStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := RetryIf(context.Background(), 4, time.Millisecond, func() error {
		calls++
		if calls == 1 {
			return temporaryError(true)
		}
		return errors.New("message too large")
	}, IsRetriable)
	require.EqualError(t, err, "message too large")
	require.Equal(t, 2, calls)
}

func TestWithClientCredentialsWithoutTokenURL(t *testing.T) {
	base := New(time.Second)
	require.Same(t, base, WithClientCredentials(context.Background(), base, ClientCredentials{}))
}

func TestWithClientCredentialsAddsBearerToken(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "tok-123",
			"token_type":   "bearer",
			"expires_in":   3600,
		})
	}))
	defer tokenSrv.Close()

	var gotAuth string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer api.Close()

	client := WithClientCredentials(context.Background(), New(5*time.Second), ClientCredentials{
		TokenURL:     tokenSrv.URL,
		ClientID:     "hrp",
		ClientSecret: "secret",
	})
	resp, err := client.Get(api.URL)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, "Bearer tok-123", gotAuth)
	require.Equal(t, 5*time.Second, client.Timeout)
}
