package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kanastasov/Forex-Strategy-Builder-sub001/cmd/common"
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/backtest"
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/indicators"
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/logger"
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/optimizer"
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/strategy"
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/pkg/reporting"
)

const appName = "optimizer"

type options struct {
	envFile      string
	configFile   string
	strategyFile string
	dataFile     string
	from         string
	to           string
	improved     bool
	seed         int64
	noReport     bool
	xlsx         bool
	out          string
	version      bool
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.envFile, "env", ".env", "Environment file path")
	flag.StringVar(&o.configFile, "config", "configs/optimizer.yaml", "Path to configuration file")
	flag.StringVar(&o.strategyFile, "strategy", "", "Strategy file to optimize (required)")
	flag.StringVar(&o.dataFile, "data", "", "Price data CSV (overrides backtest.data_file)")
	flag.StringVar(&o.from, "from", "", "Keep bars from this date (YYYY-MM-DD)")
	flag.StringVar(&o.to, "to", "", "Keep bars up to this date (YYYY-MM-DD, inclusive)")
	flag.BoolVar(&o.improved, "improved", false, "Run the mutation cycles even if the strategy was not improved before")
	flag.Int64Var(&o.seed, "seed", 0, "Random seed (0 uses optimizer.seed, then the clock)")
	flag.BoolVar(&o.noReport, "no-report", false, "Do not write the search trace")
	flag.BoolVar(&o.xlsx, "xlsx", false, "Also write the search trace as an Excel workbook")
	flag.StringVar(&o.out, "out", "", "Output path of the optimized strategy (default <strategy>-optimized.json)")
	flag.BoolVar(&o.version, "version", false, "Show version information")
	flag.Parse()
	return o
}

func main() {
	opts := parseFlags()
	if opts.version {
		common.PrintVersion(appName)
		return
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

func run(opts options) error {
	envLoaded, err := common.LoadEnvFile(opts.envFile)
	if err != nil {
		return fmt.Errorf("load env file: %w", err)
	}

	cfg, envOnly, err := common.LoadConfig(opts.configFile)
	if err != nil {
		return err
	}
	if opts.dataFile != "" {
		cfg.Backtest.DataFile = opts.dataFile
	}
	if opts.improved {
		cfg.Optimizer.Improved = true
	}
	if opts.seed != 0 {
		cfg.Optimizer.Seed = opts.seed
	}
	if opts.noReport {
		cfg.Report.Enabled = false
	}
	if opts.xlsx {
		cfg.Report.Excel = true
	}

	v := common.NewFlagValidator().
		ValidateFile("strategy", opts.strategyFile, true).
		ValidateFile("data", cfg.Backtest.DataFile, true)
	if err := v.GetError(); err != nil {
		return err
	}
	if err := common.ValidateConfig(cfg); err != nil {
		return err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()
	log.Info("starting",
		zap.String("version", common.GetVersionInfo().Version),
		zap.Bool("env_file", envLoaded),
		zap.Bool("env_only", envOnly))

	s, err := strategy.LoadFile(opts.strategyFile)
	if err != nil {
		return err
	}
	dm, err := common.NewDataManager(cfg.Backtest, log)
	if err != nil {
		return err
	}
	bars, err := dm.Load(cfg.Backtest.DataFile, cfg.Backtest.Period)
	if err != nil {
		return err
	}
	if opts.from != "" || opts.to != "" {
		from, to, err := parseDateRange(opts.from, opts.to)
		if err != nil {
			return err
		}
		bars = dm.FilterDataByDateRange(bars, from, to)
	}
	log.Info("price data loaded", zap.String("file", cfg.Backtest.DataFile), zap.Int("bars", len(bars)))

	registry := indicators.NewRegistry()
	bt := backtest.NewBacktestEngine(bars, registry, backtest.Settings{
		InitialBalance: cfg.Backtest.InitialBalance,
		EntryLots:      cfg.Backtest.EntryLots,
		Instrument:     cfg.Instrument,
	})

	seed := cfg.Optimizer.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	log.Info("random seed", zap.Int64("seed", seed))

	engine := optimizer.NewEngine(bt, registry, rand.New(rand.NewSource(seed)),
		optimizer.OptionsFromConfig(cfg.Optimizer, bt.Instrument()), log)
	trace := reporting.NewSearchTrace()
	if cfg.Report.Enabled {
		engine.SetTracer(trace)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// the engine owns the strategy until done is closed
	var (
		res    optimizer.Result
		runErr error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		res, runErr = engine.Optimize(ctx, s, cfg.Optimizer.Improved)
	}()
	<-done
	stop()

	if runErr != nil {
		return runErr
	}

	out := opts.out
	if out == "" {
		out = reporting.ReportBase(opts.strategyFile) + "-optimized.json"
	}
	if err := strategy.SaveFile(s, out); err != nil {
		return fmt.Errorf("save strategy: %w", err)
	}
	log.Info("optimized strategy saved", zap.String("path", out))

	if cfg.Report.Enabled {
		saveReports(log, trace, opts.strategyFile, cfg.Report.Excel)
	}

	reporting.PrintRunSummary(os.Stdout, res)
	return nil
}

// parseDateRange turns the -from/-to flags into an inclusive range. A missing
// bound is left open.
func parseDateRange(from, to string) (time.Time, time.Time, error) {
	start := time.Time{}
	end := time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	var err error
	if from != "" {
		if start, err = time.Parse(time.DateOnly, from); err != nil {
			return start, end, fmt.Errorf("invalid -from date %q: %w", from, err)
		}
	}
	if to != "" {
		if end, err = time.Parse(time.DateOnly, to); err != nil {
			return start, end, fmt.Errorf("invalid -to date %q: %w", to, err)
		}
		end = end.Add(24*time.Hour - time.Nanosecond)
	}
	if end.Before(start) {
		return start, end, fmt.Errorf("-to %s is before -from %s", to, from)
	}
	return start, end, nil
}

// saveReports writes the trace files. Failures are logged, the run result stands.
func saveReports(log *zap.Logger, trace *reporting.SearchTrace, strategyPath string, excel bool) {
	if path, err := trace.Save(strategyPath); err != nil {
		log.Warn("could not save search trace", zap.Error(err))
	} else {
		log.Info("search trace saved", zap.String("path", path), zap.Int("rows", trace.Len()))
	}
	if !excel {
		return
	}
	if path, err := trace.SaveXLSX(strategyPath); err != nil {
		log.Warn("could not save search trace workbook", zap.Error(err))
	} else {
		log.Info("search trace workbook saved", zap.String("path", path))
	}
}
