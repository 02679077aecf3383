package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kapu/namedivider-go/internal/constants"
	"github.com/kapu/namedivider-go/internal/util"
	"github.com/kapu/namedivider-go/pkg/errors"
)

const (
	DefaultBaseURL = "http://localhost:8000"
	DefaultTimeout = 30 * time.Second

	DividePath = "/divide"
	HealthPath = "/health"
)

// Requester performs single JSON requests against the name divider service.
type Requester interface {
	Post(ctx context.Context, path string, body []byte) (*Response, error)
	Get(ctx context.Context, path string) (*Response, error)
}

// Response is a successful (2xx) reply.
type Response struct {
	StatusCode int
	Body       []byte
}

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	// Limiter, when set, is waited on before every request.
	Limiter *rate.Limiter
	// Breaker, when set, short-circuits requests while open.
	Breaker *util.CircuitBreaker
	Logger  *zap.Logger
}

type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *util.CircuitBreaker
	logger     *zap.Logger
}

func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:    baseURL,
		timeout:    timeout,
		httpClient: httpClient,
		limiter:    opts.Limiter,
		breaker:    opts.Breaker,
		logger:     logger,
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetBreaker attaches a circuit breaker after construction, for breakers
// whose health probe needs the client itself.
func (c *Client) SetBreaker(breaker *util.CircuitBreaker) {
	c.breaker = breaker
}

func (c *Client) Post(ctx context.Context, path string, body []byte) (*Response, error) {
	return c.doRequest(ctx, http.MethodPost, path, body)
}

func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.doRequest(ctx, http.MethodGet, path, nil)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) (*Response, error) {
	url := c.baseURL + path

	// Health probes bypass the breaker; they are what closes it again.
	guarded := c.breaker != nil && path != HealthPath
	if guarded && !c.breaker.CanExecute() {
		return nil, errors.NewTransportError("circuit breaker open", url, nil)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// The limiter wait counts against the per-call timeout.
	if c.limiter != nil {
		if err := c.limiter.Wait(callCtx); err != nil {
			te := errors.NewTransportError("rate limiter wait aborted", url, err)
			te.Timeout = ctx.Err() != context.Canceled
			return nil, te
		}
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(callCtx, method, url, bodyReader)
	if err != nil {
		return nil, errors.NewTransportError("failed to create request", url, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Failures caused by the caller's own context do not count.
		if guarded && ctx.Err() == nil {
			c.breaker.RecordFailure()
		}
		c.logger.Debug("Request failed", zap.String("url", url), zap.Error(err))
		return nil, errors.NewTransportError("request failed", url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if guarded && ctx.Err() == nil {
			c.breaker.RecordFailure()
		}
		return nil, errors.NewTransportError("failed to read response body", url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if guarded && resp.StatusCode >= 500 {
			c.breaker.RecordFailure()
		}
		c.logger.Debug("Unexpected status",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
		)
		return nil, errors.NewServerError(resp.StatusCode, url, util.TruncateString(string(respBody), constants.StringLimits.ServerErrorBody))
	}

	if guarded {
		c.breaker.RecordSuccess()
	}
	return &Response{StatusCode: resp.StatusCode, Body: respBody}, nil
}
