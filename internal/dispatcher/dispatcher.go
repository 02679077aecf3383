package dispatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/kapu/namedivider-go/internal/codec"
	"github.com/kapu/namedivider-go/internal/domain"
	"github.com/kapu/namedivider-go/internal/metrics"
	"github.com/kapu/namedivider-go/internal/transport"
	"github.com/kapu/namedivider-go/pkg/errors"
)

const DefaultConcurrency = 3

// Dispatcher runs divide calls against a Requester. It holds no per-call
// state, so one Dispatcher may be shared by any number of goroutines.
type Dispatcher struct {
	requester   transport.Requester
	concurrency int
	metrics     *metrics.Collector
	logger      *zap.Logger
}

type Option func(*Dispatcher)

func WithMetrics(c *metrics.Collector) Option {
	return func(d *Dispatcher) { d.metrics = c }
}

func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New returns a Dispatcher whose batch calls run at most concurrency at a
// time. A non-positive concurrency falls back to DefaultConcurrency.
func New(requester transport.Requester, concurrency int, opts ...Option) *Dispatcher {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	d := &Dispatcher{
		requester:   requester,
		concurrency: concurrency,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Concurrency() int {
	return d.concurrency
}

// Divide sends names in one request and returns one result per name, in
// input order. An empty mode means basic.
func (d *Dispatcher) Divide(ctx context.Context, names []string, mode domain.Mode) ([]domain.DividedName, error) {
	req := domain.NewDivideRequest(names, mode)
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return d.send(ctx, req)
}

func (d *Dispatcher) send(ctx context.Context, req domain.DivideRequest) (result []domain.DividedName, err error) {
	mode := req.Mode.OrDefault().String()
	done := d.metrics.CallStarted(mode)
	start := time.Now()
	defer func() {
		err = errors.Normalize(err)
		if err != nil {
			done(errors.KindOf(err).String(), 0)
			d.logger.Warn("Divide call failed",
				zap.String("mode", mode),
				zap.Int("names", len(req.Names)),
				zap.String("kind", errors.KindOf(err).String()),
				zap.Error(err),
			)
			return
		}
		done(metrics.OutcomeOK, len(result))
		d.logger.Debug("Divide call completed",
			zap.String("mode", mode),
			zap.Int("names", len(req.Names)),
			zap.Duration("took", time.Since(start)),
		)
	}()

	body, err := codec.EncodeRequest(req)
	if err != nil {
		return nil, err
	}

	resp, err := d.requester.Post(ctx, transport.DividePath, body)
	if err != nil {
		return nil, err
	}

	decoded, err := codec.DecodeResponse(resp.Body)
	if err != nil {
		return nil, err
	}

	if len(decoded.DividedNames) != len(req.Names) {
		return nil, errors.NewProtocolError(
			fmt.Sprintf("response has %d divided names for %d requested", len(decoded.DividedNames), len(req.Names)),
			map[string]any{
				"requested": len(req.Names),
				"received":  len(decoded.DividedNames),
			},
			nil,
		)
	}

	return decoded.DividedNames, nil
}

// Compare divides names with both basic and gbdt concurrently.
func (d *Dispatcher) Compare(ctx context.Context, names []string) (*domain.Comparison, error) {
	first, second, err := d.ComparePair(ctx, names, domain.ModeBasic, domain.ModeGBDT)
	if err != nil {
		return nil, err
	}
	return &domain.Comparison{
		Names: append([]string(nil), names...),
		Basic: first,
		GBDT:  second,
	}, nil
}

// ComparePair runs the same names through two modes concurrently. Both calls
// always run to completion; if either fails no result is returned, and the
// first mode's error wins when both fail.
func (d *Dispatcher) ComparePair(ctx context.Context, names []string, first, second domain.Mode) ([]domain.DividedName, []domain.DividedName, error) {
	modes := [2]domain.Mode{first, second}
	reqs := [2]domain.DivideRequest{}
	for i, mode := range modes {
		reqs[i] = domain.NewDivideRequest(names, mode)
		if err := reqs[i].Validate(); err != nil {
			return nil, nil, err
		}
	}

	var (
		results [2][]domain.DividedName
		errs    [2]error
	)
	p := pool.New()
	for i := range reqs {
		i := i
		p.Go(func() {
			results[i], errs[i] = d.send(ctx, reqs[i])
		})
	}
	p.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, nil, err
		}
	}
	return results[0], results[1], nil
}

// DivideBatch sends each name list as its own request, at most Concurrency()
// at a time, and returns results indexed like batches.
//
// The input is processed in consecutive chunks of Concurrency() lists. A chunk
// starts only after every call of the previous chunk has returned. If any call
// in a chunk fails the batch fails with that error (the lowest failing index
// when several fail), calls still in flight are left to finish and their
// results dropped, and no further chunk is started.
func (d *Dispatcher) DivideBatch(ctx context.Context, batches [][]string, mode domain.Mode) ([][]domain.DividedName, error) {
	reqs := make([]domain.DivideRequest, len(batches))
	for i, names := range batches {
		reqs[i] = domain.NewDivideRequest(names, mode)
		if err := reqs[i].Validate(); err != nil {
			return nil, annotateIndex(err, i)
		}
	}

	results := make([][]domain.DividedName, len(reqs))
	for start := 0; start < len(reqs); start += d.concurrency {
		if err := ctx.Err(); err != nil {
			return nil, errors.Normalize(err)
		}

		end := min(start+d.concurrency, len(reqs))
		if err := d.runChunk(ctx, reqs[start:end], results[start:end]); err != nil {
			d.logger.Warn("Batch aborted",
				zap.Int("chunk_start", start),
				zap.Int("chunk_end", end),
				zap.Int("total", len(reqs)),
			)
			return nil, err
		}
	}

	return results, nil
}

// runChunk fills out[i] with the result of reqs[i]. Each goroutine writes only
// its own index, so no lock is needed.
func (d *Dispatcher) runChunk(ctx context.Context, reqs []domain.DivideRequest, out [][]domain.DividedName) error {
	d.metrics.ChunkDispatched()

	errs := make([]error, len(reqs))
	p := pool.New().WithMaxGoroutines(d.concurrency)
	for i := range reqs {
		i := i
		p.Go(func() {
			out[i], errs[i] = d.send(ctx, reqs[i])
		})
	}
	p.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// annotateIndex records which batch entry failed validation.
func annotateIndex(err error, index int) error {
	if ve, ok := err.(*errors.ValidationError); ok {
		if ve.Context == nil {
			ve.Context = map[string]any{}
		}
		ve.Context["batch_index"] = index
	}
	return err
}
