package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/erain9/ordercache/config"
	"github.com/erain9/ordercache/pkg/backend/memory"
	"github.com/erain9/ordercache/pkg/core"
	"github.com/erain9/ordercache/pkg/fixture"
	"github.com/erain9/ordercache/pkg/harness"
	"github.com/erain9/ordercache/pkg/logging"
	"github.com/erain9/ordercache/pkg/messaging"
	"github.com/erain9/ordercache/pkg/messaging/driver"
	"github.com/erain9/ordercache/pkg/otel"
	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
)

func main() {
	fs := flag.NewFlagSet("selfcheck", flag.ExitOnError)
	showBook := fs.Bool("book", false, "Print the per-security state of every loaded book")
	noColor := fs.Bool("no-color", false, "Disable coloured output")

	cfg, err := config.LoadConfig(fs, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	logging.Setup(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, Output: os.Stderr})
	if *noColor {
		color.NoColor = true
	}

	cleanup, err := otel.Init(otel.Config{
		ServiceName:      cfg.Telemetry.ServiceName,
		ServiceVersion:   "dev",
		Endpoint:         cfg.Telemetry.Endpoint,
		ConnectTimeout:   5 * time.Second,
		MetricInterval:   cfg.Telemetry.MetricInterval,
		CollectorEnabled: cfg.Telemetry.Enabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize telemetry")
	}
	defer cleanup()

	f := fixture.Canonical()
	if cfg.Harness.FixtureFile != "" {
		f, err = fixture.Load(cfg.Harness.FixtureFile)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load fixture")
		}
	}

	sender, err := driver.NewSender(cfg, logging.Component("events"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create event sender")
	}

	opts := []core.Option{core.WithLogger(logging.Component("order_cache"))}
	if sender != nil {
		opts = append(opts, core.WithMessageSender(sender))
	}

	results := harness.NewRunner(opts...).Run(f)
	printResults(os.Stdout, results)

	if *showBook {
		if err := printFixtureBooks(os.Stdout, f); err != nil {
			log.Error().Err(err).Msg("Failed to print books")
		}
	}

	closeSender(sender)

	if !harness.Passed(results) {
		cleanup()
		os.Exit(1)
	}
}

func closeSender(sender messaging.MessageSender) {
	if sender == nil {
		return
	}
	if err := sender.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close event sender")
	}
}

// printResults writes one coloured [OK]/[FAILED] line per result
func printResults(w io.Writer, results []harness.Result) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	for _, r := range results {
		status := green("[OK]")
		if !r.OK {
			status = red("[FAILED]")
		}
		if r.Detail == "" {
			fmt.Fprintf(w, "%s %s\n", status, r.Name)
			continue
		}
		fmt.Fprintf(w, "%s %s: %s\n", status, r.Name, r.Detail)
	}
}

// printFixtureBooks prints the state table of the book and of every scenario
func printFixtureBooks(w io.Writer, f *fixture.File) error {
	if len(f.Book) > 0 {
		book, err := f.BookOrders()
		if err != nil {
			return err
		}
		if err := printBookState(w, "book", loadCache(book)); err != nil {
			return err
		}
	}

	for _, s := range f.Scenarios {
		orders, err := f.ScenarioOrders(s)
		if err != nil {
			return err
		}
		if err := printBookState(w, s.Name, loadCache(orders)); err != nil {
			return err
		}
	}
	return nil
}

func loadCache(orders []*core.Order) *core.OrderCache {
	cache := core.NewOrderCache(memory.NewMemoryBackend(), core.WithLogger(logging.Component("order_cache")))
	for _, o := range orders {
		cache.AddOrder(o)
	}
	return cache
}

// printBookState prints one row per security: order counts per side, the
// matching size and the number of fills that produced it
func printBookState(w io.Writer, title string, cache *core.OrderCache) error {
	cyan := color.New(color.FgCyan).SprintfFunc()
	red := color.New(color.FgRed).SprintfFunc()
	green := color.New(color.FgGreen).SprintfFunc()

	fmt.Fprintf(w, "\n%s (%d orders)\n", cyan(title), cache.Len())

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n",
		cyan("Security"), cyan("Buys"), cyan("Sells"), cyan("Matched"), cyan("Fills"))

	counts := make(map[string][2]int)
	for _, o := range cache.GetAllOrders() {
		c := counts[o.SecurityID()]
		c[o.Side()]++
		counts[o.SecurityID()] = c
	}

	for _, sec := range cache.GetSecurities() {
		result := cache.MatchForSecurity(sec)
		c := counts[sec]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t\n",
			sec,
			green("%d", c[core.Buy]),
			red("%d", c[core.Sell]),
			result.Total,
			len(result.Fills))
	}
	return tw.Flush()
}
