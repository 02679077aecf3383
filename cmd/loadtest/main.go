package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/kapu/namedivider-go/internal/app"
	"github.com/kapu/namedivider-go/internal/config"
	"github.com/kapu/namedivider-go/internal/constants"
	"github.com/kapu/namedivider-go/internal/domain"
	"github.com/kapu/namedivider-go/internal/util"
	"github.com/kapu/namedivider-go/pkg/errors"
	"github.com/kapu/namedivider-go/pkg/namedivider"
)

var testNames = []string{
	"原敬", "菅義偉", "安倍晋三", "中曽根康弘", "小泉純一郎", "田中角栄",
	"佐藤栄作", "吉田茂", "岸信介", "池田勇人", "福田赳夫", "大平正芳",
	"鈴木善幸", "竹下登", "宇野宗佑", "海部俊樹", "宮澤喜一", "細川護熙",
	"羽田孜", "村山富市", "橋本龍太郎", "小渕恵三", "森喜朗", "麻生太郎",
	"鳩山由紀夫", "菅直人", "野田佳彦", "岸田文雄", "石破茂",
}

// modes picked at random per request; the empty mode leaves the default to
// the client.
var modes = []domain.Mode{"", domain.ModeBasic, domain.ModeGBDT}

type result struct {
	mode    domain.Mode
	latency time.Duration
	err     error
}

func main() {
	workers := flag.Int("workers", constants.LoadTestConfig.Workers, "number of concurrent workers")
	requests := flag.Int("requests", constants.LoadTestConfig.Requests, "total number of requests")
	batchSize := flag.Int("batch-size", constants.LoadTestConfig.BatchSize, "names per request")
	flag.Parse()

	if err := validateFlags(*workers, *requests, *batchSize); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid flags: %v\n", err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := util.NewLogger(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	container, err := app.Build(ctx, cfg, logger, true)
	if err != nil {
		logger.Error("Failed to build client", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("Load test starting",
		zap.String("base_url", container.Client.BaseURL()),
		zap.Int("workers", *workers),
		zap.Int("requests", *requests),
		zap.Int("batch_size", *batchSize),
	)

	start := time.Now()
	results := run(ctx, container.Client, *workers, *requests, *batchSize)
	elapsed := time.Since(start)

	report(results, elapsed)

	families, err := container.Registry.Gather()
	if err != nil {
		logger.Warn("Failed to gather metrics", zap.Error(err))
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil {
				logger.Info("Metric", zap.String("name", mf.GetName()), zap.Any("labels", m.GetLabel()), zap.Float64("value", c.GetValue()))
			}
		}
	}
}

func validateFlags(workers, requests, batchSize int) error {
	if workers <= 0 {
		return fmt.Errorf("-workers must be positive, got %d", workers)
	}
	if requests <= 0 {
		return fmt.Errorf("-requests must be positive, got %d", requests)
	}
	if batchSize <= 0 || batchSize > domain.MaxNamesPerRequest {
		return fmt.Errorf("-batch-size must be between 1 and %d, got %d", domain.MaxNamesPerRequest, batchSize)
	}
	return nil
}

func run(ctx context.Context, client *namedivider.Client, workers, requests, batchSize int) []result {
	results := make([]result, requests)
	p := pool.New().WithMaxGoroutines(workers)
	for i := 0; i < requests; i++ {
		i := i
		p.Go(func() {
			mode := modes[rand.Intn(len(modes))]
			names := util.Sample(testNames, batchSize, rand.Perm)

			t0 := time.Now()
			divided, err := client.Divide(ctx, names, mode)
			res := result{mode: mode, latency: time.Since(t0), err: err}
			if err == nil {
				res.err = checkAlgorithm(divided, mode.OrDefault())
			}
			results[i] = res
		})
	}
	p.Wait()
	return results
}

func checkAlgorithm(divided []domain.DividedName, mode domain.Mode) error {
	for i, d := range divided {
		if d.Algorithm != "" && d.Algorithm != mode.String() {
			return fmt.Errorf("result %d: algorithm %q does not match mode %q", i, d.Algorithm, mode)
		}
	}
	return nil
}

func report(results []result, elapsed time.Duration) {
	var (
		latencies = make([]time.Duration, 0, len(results))
		failures  = map[string]int{}
		byMode    = map[string]int{}
	)
	for _, r := range results {
		label := r.mode.String()
		if label == "" {
			label = "(default)"
		}
		byMode[label]++
		if r.err != nil {
			kind := errors.KindOf(r.err).String()
			if kind == "" {
				kind = "MISMATCH"
			}
			failures[kind]++
			continue
		}
		latencies = append(latencies, r.latency)
	}

	total := len(results)
	ok := len(latencies)
	fmt.Printf("requests: %d  succeeded: %d  failed: %d  elapsed: %s\n", total, ok, total-ok, elapsed.Round(time.Millisecond))
	if total > 0 {
		fmt.Printf("success rate: %.1f%%  throughput: %.1f req/s\n",
			float64(ok)/float64(total)*100, float64(total)/elapsed.Seconds())
	}
	for mode, n := range byMode {
		fmt.Printf("  mode %-10s %d\n", mode, n)
	}
	for kind, n := range failures {
		fmt.Printf("  failure %-18s %d\n", kind, n)
	}
	if ok == 0 {
		return
	}

	slices.Sort(latencies)
	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	fmt.Printf("latency avg: %s  min: %s  p95: %s  max: %s\n",
		(sum / time.Duration(ok)).Round(time.Microsecond),
		latencies[0].Round(time.Microsecond),
		latencies[(ok*95)/100].Round(time.Microsecond),
		latencies[ok-1].Round(time.Microsecond),
	)
}
