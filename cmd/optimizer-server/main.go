package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kanastasov/Forex-Strategy-Builder-sub001/cmd/common"
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/indicators"
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/logger"
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/monitoring"
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/server"
)

func main() {
	envFile := flag.String("env", ".env", "Environment file path")
	cfgPath := flag.String("config", os.Getenv("OPT_CONFIG"), "Path to configuration file")
	version := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *version {
		common.PrintVersion("optimizer-server")
		return
	}

	if _, err := common.LoadEnvFile(*envFile); err != nil {
		panic(err)
	}
	if *cfgPath == "" {
		*cfgPath = "configs/optimizer.yaml"
	}
	cfg, _, err := common.LoadConfig(*cfgPath)
	if err != nil {
		panic(err)
	}
	if err := common.ValidateConfig(cfg); err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	health := monitoring.NewHealthChecker()
	bars, err := common.NewDataManager(cfg.Backtest, log)
	if err != nil {
		log.Fatal("price loader", zap.Error(err))
	}
	manager := server.NewManager(cfg, bars, indicators.NewRegistry(), health, log)
	manager.Start()

	engine := server.NewRouter(cfg.App.Env, &server.RunHandler{Runs: manager, Health: health}, log)
	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("http server listening",
			zap.String("addr", cfg.Server.HTTPAddr),
			zap.Int("workers", cfg.Server.Workers),
			zap.String("data_dir", cfg.Backtest.DataDir))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown failed", zap.Error(err))
	}
	// running optimizations stop at their next cancellation check
	manager.Stop()
}
