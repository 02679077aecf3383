package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/kapu/namedivider-go/internal/app"
	"github.com/kapu/namedivider-go/internal/config"
	"github.com/kapu/namedivider-go/internal/domain"
	"github.com/kapu/namedivider-go/internal/util"
	"github.com/kapu/namedivider-go/pkg/errors"
)

func main() {
	modeFlag := flag.String("mode", "basic", "division mode: basic or gbdt")
	compare := flag.Bool("compare", false, "divide with both basic and gbdt and show them side by side")
	health := flag.Bool("health", false, "only check the API health endpoint")
	batchSize := flag.Int("batch-size", 0, "split the names into requests of this many names (0 sends one request)")
	flag.Parse()

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

	container, err := app.Build(ctx, cfg, logger, false)
	if err != nil {
		logger.Error("Failed to build client", zap.Error(err))
		os.Exit(1)
	}
	client := container.Client

	if *health {
		status, err := client.Health(ctx)
		if err != nil {
			exitWithError(logger, "Health check failed", err)
		}
		fmt.Printf("health: %s\n", status.Health)
		return
	}

	names := flag.Args()
	mode, err := domain.ParseMode(*modeFlag)
	if err != nil {
		exitWithError(logger, "Invalid mode", err)
	}

	switch {
	case *compare:
		cmp, err := client.Compare(ctx, names)
		if err != nil {
			exitWithError(logger, "Comparison failed", err)
		}
		for i, name := range cmp.Names {
			fmt.Printf("%d. %s -> basic: %s (%.4f) | gbdt: %s (%.4f)\n",
				i+1, name,
				cmp.Basic[i], cmp.Basic[i].Score,
				cmp.GBDT[i], cmp.GBDT[i].Score,
			)
		}
		fmt.Printf("agreement: %d/%d\n", cmp.Agreements(), len(cmp.Names))

	case *batchSize > 0:
		batches := chunkNames(names, *batchSize)
		results, err := client.DivideBatch(ctx, batches, mode)
		if err != nil {
			exitWithError(logger, "Batch division failed", err)
		}
		n := 0
		for bi, batch := range batches {
			for i, name := range batch {
				n++
				printDivided(n, name, results[bi][i])
			}
		}

	default:
		results, err := client.Divide(ctx, names, mode)
		if err != nil {
			exitWithError(logger, "Division failed", err)
		}
		for i, name := range names {
			printDivided(i+1, name, results[i])
		}
	}
}

func printDivided(n int, name string, d domain.DividedName) {
	fmt.Printf("%d. %s -> %s %s (score: %.4f, algorithm: %s)\n", n, name, d.Family, d.Given, d.Score, d.Algorithm)
}

func chunkNames(names []string, size int) [][]string {
	batches := make([][]string, 0, (len(names)+size-1)/size)
	for start := 0; start < len(names); start += size {
		batches = append(batches, names[start:min(start+size, len(names))])
	}
	return batches
}

func exitWithError(logger *zap.Logger, msg string, err error) {
	logger.Error(msg, zap.String("kind", errors.KindOf(err).String()), zap.Error(err))
	_ = logger.Sync()
	os.Exit(1)
}
