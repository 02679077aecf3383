package transport

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kapu/namedivider-go/internal/util"
	"github.com/kapu/namedivider-go/pkg/errors"
)

func TestPostSendsJSON(t *testing.T) {
	var (
		gotMethod, gotPath, gotContentType string
		gotBody                            []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"divided_names":[]}`))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL + "/", Logger: zap.NewNop()})
	resp, err := c.Post(context.Background(), DividePath, []byte(`{"names":["原敬"],"mode":"basic"}`))
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/divide", gotPath)
	assert.Equal(t, "application/json", gotContentType)
	assert.JSONEq(t, `{"names":["原敬"],"mode":"basic"}`, string(gotBody))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"divided_names":[]}`, string(resp.Body))
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(Options{})
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
	assert.Equal(t, DefaultTimeout, c.timeout)
}

func TestNon2xxIsServerError(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusInternalServerError, http.StatusServiceUnavailable} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
				_, _ = w.Write([]byte(`"Mode must be 'basic' or 'gbdt'."`))
			}))
			defer srv.Close()

			_, err := NewClient(Options{BaseURL: srv.URL}).Post(context.Background(), DividePath, []byte(`{}`))
			require.Error(t, err)

			var se *errors.ServerError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, status, se.StatusCode)
			assert.Contains(t, se.Body, "Mode must be")
		})
	}
}

func TestAcceptsAny2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	resp, err := NewClient(Options{BaseURL: srv.URL}).Post(context.Background(), DividePath, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestTimeoutIsTransportError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(Options{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	start := time.Now()
	_, err := c.Post(context.Background(), DividePath, []byte(`{}`))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	var te *errors.TransportError
	require.ErrorAs(t, err, &te)
	assert.True(t, te.Timeout)
}

func TestConnectionRefusedIsTransportError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = NewClient(Options{BaseURL: "http://" + addr, Timeout: time.Second}).Post(context.Background(), DividePath, []byte(`{}`))
	require.Error(t, err)
	assert.Equal(t, errors.KindTransport, errors.KindOf(err))
}

func TestCanceledContextIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(Options{BaseURL: srv.URL}).Post(ctx, DividePath, []byte(`{}`))
	assert.True(t, errors.IsTransport(err))
}

func TestRateLimiterWaitAborted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	c := NewClient(Options{BaseURL: srv.URL, Limiter: limiter})

	_, err := c.Post(context.Background(), DividePath, []byte(`{}`))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Post(ctx, DividePath, []byte(`{}`))
	assert.True(t, errors.IsTransport(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestCircuitBreakerOpensOnServerErrors(t *testing.T) {
	var divideCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == HealthPath {
			_, _ = w.Write([]byte(`{"health":"OK"}`))
			return
		}
		divideCalls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	breaker := util.NewCircuitBreaker(util.CircuitBreakerConfig{
		FailureThreshold:    2,
		ResetTimeout:        time.Hour,
		HealthCheckInterval: time.Hour,
	}, nil, zap.NewNop())
	c := NewClient(Options{BaseURL: srv.URL, Breaker: breaker})

	for i := 0; i < 2; i++ {
		_, err := c.Post(context.Background(), DividePath, []byte(`{}`))
		assert.True(t, errors.IsServer(err))
	}

	_, err := c.Post(context.Background(), DividePath, []byte(`{}`))
	assert.True(t, errors.IsTransport(err))
	assert.Contains(t, err.Error(), "circuit breaker open")
	assert.Equal(t, int32(2), divideCalls.Load())

	// Health probes are never blocked by the breaker.
	resp, err := c.Get(context.Background(), HealthPath)
	require.NoError(t, err)
	assert.Equal(t, `{"health":"OK"}`, string(resp.Body))
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	breaker := util.NewCircuitBreaker(util.CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour}, nil, nil)
	c := NewClient(Options{BaseURL: srv.URL, Breaker: breaker})

	for i := 0; i < 3; i++ {
		_, err := c.Post(context.Background(), DividePath, []byte(`{}`))
		assert.True(t, errors.IsServer(err))
	}
	assert.Equal(t, util.CircuitStateClosed, breaker.State())
}

func TestRateLimiterWaitBoundedByTimeout(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	limiter := rate.NewLimiter(rate.Limit(0.5), 1)
	c := NewClient(Options{BaseURL: srv.URL, Timeout: 50 * time.Millisecond, Limiter: limiter})

	_, err := c.Post(context.Background(), DividePath, []byte(`{}`))
	require.NoError(t, err)

	start := time.Now()
	_, err = c.Post(context.Background(), DividePath, []byte(`{}`))
	elapsed := time.Since(start)

	var te *errors.TransportError
	require.ErrorAs(t, err, &te)
	assert.True(t, te.Timeout)
	assert.Less(t, elapsed, time.Second)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCallerDeadlineDoesNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-time.After(200 * time.Millisecond):
			_, _ = w.Write([]byte(`{}`))
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	breaker := util.NewCircuitBreaker(util.CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Hour}, nil, nil)
	c := NewClient(Options{BaseURL: srv.URL, Timeout: 5 * time.Second, Breaker: breaker})

	for i := 0; i < 2; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		_, err := c.Post(ctx, DividePath, []byte(`{}`))
		cancel()
		assert.True(t, errors.IsTransport(err))
	}
	assert.Equal(t, util.CircuitStateClosed, breaker.State())

	_, err := c.Post(context.Background(), DividePath, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientTimeoutTripsBreaker(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	breaker := util.NewCircuitBreaker(util.CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Hour}, nil, nil)
	c := NewClient(Options{BaseURL: srv.URL, Timeout: 20 * time.Millisecond, Breaker: breaker})

	for i := 0; i < 2; i++ {
		_, err := c.Post(context.Background(), DividePath, []byte(`{}`))
		assert.True(t, errors.IsTransport(err))
	}
	assert.Equal(t, util.CircuitStateOpen, breaker.State())
}
