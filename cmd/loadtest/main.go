package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/erain9/ordercache/config"
	"github.com/erain9/ordercache/pkg/backend/memory"
	"github.com/erain9/ordercache/pkg/core"
	"github.com/erain9/ordercache/pkg/logging"
	"github.com/erain9/ordercache/pkg/messaging/driver"
	"github.com/erain9/ordercache/pkg/otel"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Operations issued by the workers
const (
	opAdd        = "add"
	opCancel     = "cancel"
	opCancelUser = "cancel_user"
	opCancelSec  = "cancel_security"
	opMatchingSz = "matching_size"
)

const (
	maxLatencyNs  = int64(10 * time.Second)
	histogramSigs = 3
)

// workload describes what the workers generate
type workload struct {
	Workers         int
	OrdersPerWorker int
	Rate            float64
	Securities      int
	Users           int
	Companies       int
	Seed            int64
}

// stats is one histogram of latencies in nanoseconds per operation
type stats map[string]*hdrhistogram.Histogram

func newStats() stats {
	s := make(stats)
	for _, op := range []string{opAdd, opCancel, opCancelUser, opCancelSec, opMatchingSz} {
		s[op] = hdrhistogram.New(1, maxLatencyNs, histogramSigs)
	}
	return s
}

func (s stats) record(op string, d time.Duration) {
	_ = s[op].RecordValue(min(d.Nanoseconds(), maxLatencyNs))
}

func (s stats) merge(other stats) {
	for op, h := range other {
		s[op].Merge(h)
	}
}

func main() {
	fs := flag.NewFlagSet("loadtest", flag.ExitOnError)
	seed := fs.Int64("seed", time.Now().UnixNano(), "Random seed for the generated workload")

	cfg, err := config.LoadConfig(fs, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logging.Setup(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, Output: os.Stderr})

	cleanup, err := otel.Init(otel.Config{
		ServiceName:      cfg.Telemetry.ServiceName + "-loadtest",
		Endpoint:         cfg.Telemetry.Endpoint,
		MetricInterval:   cfg.Telemetry.MetricInterval,
		CollectorEnabled: cfg.Telemetry.Enabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize telemetry")
	}
	defer cleanup()

	if cfg.Telemetry.Enabled {
		if err := otel.StartRuntimeMetrics(cfg.Telemetry.MetricInterval); err != nil {
			log.Warn().Err(err).Msg("Failed to start runtime metrics")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		log.Info().Msg("Received interrupt signal, stopping workers")
		cancel()
	}()

	runID := uuid.New().String()
	ctx = logging.WithRunID(ctx, runID)
	logger := logging.FromContext(ctx)

	sender, err := driver.NewSender(cfg, logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create event sender")
	}

	opts := []core.Option{core.WithLogger(logger.With().Str("component", "order_cache").Logger())}
	if sender != nil {
		opts = append(opts, core.WithMessageSender(sender))
		defer sender.Close()
	}
	cache := core.NewOrderCache(memory.NewMemoryBackend(), opts...)

	w := workload{
		Workers:         cfg.LoadTest.Workers,
		OrdersPerWorker: cfg.LoadTest.OrdersPerWorker,
		Rate:            cfg.LoadTest.Rate,
		Securities:      cfg.LoadTest.Securities,
		Users:           cfg.LoadTest.Users,
		Companies:       cfg.LoadTest.Companies,
		Seed:            *seed,
	}

	logger.Info().
		Int("workers", w.Workers).
		Int("orders_per_worker", w.OrdersPerWorker).
		Float64("rate", w.Rate).
		Int64("seed", w.Seed).
		Msg("Starting load test")

	start := time.Now()
	total := runLoad(ctx, cache, w)
	elapsed := time.Since(start)

	report(logger, total, elapsed, cache)
}

// runLoad drives cache with w.Workers concurrent workers and returns the
// merged latency histograms
func runLoad(ctx context.Context, cache *core.OrderCache, w workload) stats {
	limit := rate.Inf
	burst := 1
	if w.Rate > 0 {
		limit = rate.Limit(w.Rate)
		burst = max(1, int(w.Rate/10))
	}
	limiter := rate.NewLimiter(limit, burst)

	results := make(chan stats, w.Workers)
	var wg sync.WaitGroup
	for i := 0; i < w.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(w.Seed + int64(workerID)))
			results <- runWorker(ctx, cache, limiter, rng, w)
		}(i)
	}
	wg.Wait()
	close(results)

	total := newStats()
	for s := range results {
		total.merge(s)
	}
	return total
}

// runWorker issues w.OrdersPerWorker operations. Roughly 70% are inserts and
// the rest spread over cancels and matching queries.
func runWorker(ctx context.Context, cache *core.OrderCache, limiter *rate.Limiter, rng *rand.Rand, w workload) stats {
	s := newStats()
	added := make([]string, 0, w.OrdersPerWorker)

	for j := 0; j < w.OrdersPerWorker; j++ {
		if err := limiter.Wait(ctx); err != nil {
			return s
		}

		roll := rng.Intn(100)
		start := time.Now()
		var op string

		switch {
		case roll < 70 || len(added) == 0:
			op = opAdd
			order := randomOrder(rng, w)
			cache.AddOrder(order)
			added = append(added, order.ID())
		case roll < 85:
			op = opCancel
			idx := rng.Intn(len(added))
			cache.CancelOrder(added[idx])
			added[idx] = added[len(added)-1]
			added = added[:len(added)-1]
		case roll < 90:
			op = opCancelUser
			cache.CancelOrdersForUser(fmt.Sprintf("user-%d", rng.Intn(w.Users)))
		case roll < 95:
			op = opCancelSec
			cache.CancelOrdersForSecIdWithMinimumQty(
				fmt.Sprintf("SEC%d", rng.Intn(w.Securities)),
				uint64(500+rng.Intn(500)),
			)
		default:
			op = opMatchingSz
			_ = cache.GetMatchingSizeForSecurity(fmt.Sprintf("SEC%d", rng.Intn(w.Securities)))
		}

		s.record(op, time.Since(start))
	}
	return s
}

func randomOrder(rng *rand.Rand, w workload) *core.Order {
	side := core.Buy
	if rng.Intn(2) == 0 {
		side = core.Sell
	}
	return core.MustNewOrder(
		uuid.NewString(),
		fmt.Sprintf("SEC%d", rng.Intn(w.Securities)),
		side,
		uint64(1+rng.Intn(1000)),
		fmt.Sprintf("user-%d", rng.Intn(w.Users)),
		fmt.Sprintf("company-%d", rng.Intn(w.Companies)),
	)
}

func report(logger zerolog.Logger, total stats, elapsed time.Duration, cache *core.OrderCache) {
	ops := make([]string, 0, len(total))
	var count int64
	for op, h := range total {
		ops = append(ops, op)
		count += h.TotalCount()
	}
	sort.Strings(ops)

	logger.Info().
		Dur("elapsed", elapsed).
		Int64("operations", count).
		Float64("ops_per_sec", float64(count)/elapsed.Seconds()).
		Int("orders_cached", cache.Len()).
		Int("securities", len(cache.GetSecurities())).
		Msg("Load test completed")

	for _, op := range ops {
		h := total[op]
		if h.TotalCount() == 0 {
			continue
		}
		logger.Info().
			Str("op", op).
			Int64("count", h.TotalCount()).
			Dur("p50", time.Duration(h.ValueAtQuantile(50))).
			Dur("p99", time.Duration(h.ValueAtQuantile(99))).
			Dur("p999", time.Duration(h.ValueAtQuantile(99.9))).
			Dur("max", time.Duration(h.Max())).
			Msg("Latency")
	}
}
