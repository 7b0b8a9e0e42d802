package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		UserAgent:      "test-agent",
		Timeout:        2 * time.Second,
		MinDelay:       0,
		MaxRetries:     3,
		RetryBaseDelay: 10 * time.Millisecond,
		MaxContentSize: 1024 * 1024,
	}
}

func TestFetchSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Write([]byte("<html>ok</html>"))
	}))
	defer server.Close()

	f := New(testConfig())
	body, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", string(body))
}

func TestFetch404NoRetry(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := New(testConfig())
	body, err := f.Fetch(context.Background(), server.URL)

	assert.Nil(t, body)
	require.Error(t, err)
	assert.IsType(t, &PermanentAbsenceError{}, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "404 must produce zero retries")
}

func TestFetchRetriesUntilBudgetExhausted(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	f := New(testConfig())
	body, err := f.Fetch(context.Background(), server.URL)

	assert.Nil(t, body)
	require.Error(t, err)
	fetchErr, ok := err.(*FetchError)
	require.True(t, ok)
	assert.Equal(t, 3, fetchErr.Attempts)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchRecoversOnRetry(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("recovered"))
	}))
	defer server.Close()

	f := New(testConfig())
	body, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "recovered", string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRetryDelayLinearBackoff(t *testing.T) {
	base := 5 * time.Second
	assert.Equal(t, 5*time.Second, RetryDelay(base, 1), "delay before 2nd attempt")
	assert.Equal(t, 10*time.Second, RetryDelay(base, 2), "delay before 3rd attempt")
}

func TestFetchPolitenessDelay(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	config := testConfig()
	config.MinDelay = 100 * time.Millisecond
	f := New(config)

	ctx := context.Background()
	_, err := f.Fetch(ctx, server.URL)
	require.NoError(t, err)

	start := time.Now()
	_, err = f.Fetch(ctx, server.URL)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond,
		"second fetch should honor the minimum inter-request delay")
}

func TestFetchContentSizeLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 2048))
	}))
	defer server.Close()

	config := testConfig()
	config.MaxContentSize = 1024
	config.MaxRetries = 1
	f := New(config)

	body, err := f.Fetch(context.Background(), server.URL)
	assert.Nil(t, body)
	assert.Error(t, err)
}

func TestFetchAcceptsBodyAtSizeLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 1024))
	}))
	defer server.Close()

	config := testConfig()
	config.MaxContentSize = 1024
	f := New(config)

	body, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err, "a body exactly at the cap is not oversized")
	assert.Len(t, body, 1024)
}

func TestFetchContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	config := testConfig()
	config.RetryBaseDelay = 5 * time.Second
	f := New(config)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := f.Fetch(ctx, server.URL)
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	err := <-done
	require.Error(t, err)
	assert.Equal(t, context.Canceled, err)
}
