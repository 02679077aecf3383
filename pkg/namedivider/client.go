// Package namedivider is a client for the NameDivider API, which splits
// Japanese full names into family and given names.
//
//	client, err := namedivider.New(namedivider.WithBaseURL("http://localhost:8000"))
//	if err != nil {
//		return err
//	}
//	names, err := client.DivideBasic(ctx, []string{"菅義偉", "安倍晋三"})
//
// Every error returned by the client carries one of the kinds defined in
// pkg/errors; use errors.KindOf to branch on it.
package namedivider

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kapu/namedivider-go/internal/codec"
	"github.com/kapu/namedivider-go/internal/dispatcher"
	"github.com/kapu/namedivider-go/internal/domain"
	"github.com/kapu/namedivider-go/internal/metrics"
	"github.com/kapu/namedivider-go/internal/transport"
	"github.com/kapu/namedivider-go/internal/util"
	"github.com/kapu/namedivider-go/pkg/errors"
)

type (
	Mode         = domain.Mode
	DividedName  = domain.DividedName
	Comparison   = domain.Comparison
	HealthStatus = domain.HealthStatus
	CircuitState = util.CircuitState
)

const (
	ModeBasic = domain.ModeBasic
	ModeGBDT  = domain.ModeGBDT

	DefaultBaseURL     = transport.DefaultBaseURL
	DefaultTimeout     = transport.DefaultTimeout
	DefaultConcurrency = dispatcher.DefaultConcurrency
	MaxNamesPerRequest = domain.MaxNamesPerRequest

	CircuitClosed   = util.CircuitStateClosed
	CircuitOpen     = util.CircuitStateOpen
	CircuitHalfOpen = util.CircuitStateHalfOpen
)

type options struct {
	baseURL     string
	timeout     time.Duration
	concurrency int
	httpClient  *http.Client
	logger      *zap.Logger
	limiter     *rate.Limiter
	breakerCfg  *util.CircuitBreakerConfig
	registerer  prometheus.Registerer
	namespace   string
}

type Option func(*options)

func WithBaseURL(baseURL string) Option {
	return func(o *options) { o.baseURL = baseURL }
}

// WithTimeout bounds every single HTTP call.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) { o.timeout = timeout }
}

// WithConcurrency sets how many calls DivideBatch keeps in flight.
func WithConcurrency(n int) Option {
	return func(o *options) { o.concurrency = n }
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRateLimit caps outgoing requests at rps per second with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(o *options) {
		if rps <= 0 {
			o.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		o.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithCircuitBreaker opens a breaker after threshold consecutive failures.
// While open, calls fail fast with a transport error; the /health endpoint is
// probed every healthInterval to close it again.
func WithCircuitBreaker(threshold int, resetTimeout, healthInterval time.Duration) Option {
	return func(o *options) {
		if threshold <= 0 {
			o.breakerCfg = nil
			return
		}
		o.breakerCfg = &util.CircuitBreakerConfig{
			FailureThreshold:    threshold,
			ResetTimeout:        resetTimeout,
			HealthCheckInterval: healthInterval,
		}
	}
}

// WithMetrics registers call metrics under namespace on reg.
func WithMetrics(namespace string, reg prometheus.Registerer) Option {
	return func(o *options) {
		o.namespace = namespace
		o.registerer = reg
	}
}

type Client struct {
	transport  *transport.Client
	dispatcher *dispatcher.Dispatcher
	breaker    *util.CircuitBreaker
	logger     *zap.Logger
}

// New creates a client. It fails only when metrics registration fails.
func New(opts ...Option) (*Client, error) {
	o := &options{
		baseURL:     DefaultBaseURL,
		timeout:     DefaultTimeout,
		concurrency: DefaultConcurrency,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	var collector *metrics.Collector
	if o.registerer != nil {
		var err error
		collector, err = metrics.NewCollector(o.namespace, o.registerer)
		if err != nil {
			return nil, err
		}
	}

	tc := transport.NewClient(transport.Options{
		BaseURL:    o.baseURL,
		Timeout:    o.timeout,
		HTTPClient: o.httpClient,
		Limiter:    o.limiter,
		Logger:     o.logger.Named("transport"),
	})

	c := &Client{
		transport: tc,
		dispatcher: dispatcher.New(tc, o.concurrency,
			dispatcher.WithMetrics(collector),
			dispatcher.WithLogger(o.logger.Named("dispatcher")),
		),
		logger: o.logger,
	}

	if o.breakerCfg != nil {
		c.breaker = util.NewCircuitBreaker(*o.breakerCfg, c.Ping, o.logger.Named("breaker"))
		tc.SetBreaker(c.breaker)
	}

	return c, nil
}

func (c *Client) BaseURL() string {
	return c.transport.BaseURL()
}

// Divide divides names with the given mode; the empty mode means basic.
// Result i belongs to names[i].
func (c *Client) Divide(ctx context.Context, names []string, mode Mode) ([]DividedName, error) {
	return c.dispatcher.Divide(ctx, names, mode)
}

func (c *Client) DivideBasic(ctx context.Context, names []string) ([]DividedName, error) {
	return c.Divide(ctx, names, ModeBasic)
}

func (c *Client) DivideGBDT(ctx context.Context, names []string) ([]DividedName, error) {
	return c.Divide(ctx, names, ModeGBDT)
}

// Compare divides names with both algorithms concurrently. It fails if either
// call fails.
func (c *Client) Compare(ctx context.Context, names []string) (*Comparison, error) {
	return c.dispatcher.Compare(ctx, names)
}

// DivideBatch sends every name list as its own request with bounded
// concurrency. Result i belongs to batches[i].
func (c *Client) DivideBatch(ctx context.Context, batches [][]string, mode Mode) ([][]DividedName, error) {
	return c.dispatcher.DivideBatch(ctx, batches, mode)
}

func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	resp, err := c.transport.Get(ctx, transport.HealthPath)
	if err != nil {
		return nil, errors.Normalize(err)
	}
	status, err := codec.DecodeHealth(resp.Body)
	if err != nil {
		return nil, err
	}
	return status, nil
}

// Ping reports whether the service answers its health check with OK.
func (c *Client) Ping(ctx context.Context) bool {
	status, err := c.Health(ctx)
	if err != nil {
		c.logger.Debug("Health check failed", zap.Error(err))
		return false
	}
	return status.IsOK()
}

// BreakerState returns the circuit breaker state, or CLOSED when no breaker
// is configured.
func (c *Client) BreakerState() CircuitState {
	if c.breaker == nil {
		return CircuitClosed
	}
	return c.breaker.State()
}
