package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"yieldgate/config"
	"yieldgate/core/events"
	"yieldgate/native/auction"
	nativecommon "yieldgate/native/common"
	"yieldgate/native/factory"
	"yieldgate/native/loan"
	"yieldgate/native/rights"
	"yieldgate/observability/logging"
	"yieldgate/observability/metrics"
	"yieldgate/rpc"
	"yieldgate/storage"
)

func main() {
	configPath := flag.String("config", "yieldgate.toml", "path to the service configuration")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString("load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger := logging.Setup("yieldgated", cfg.Env)

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ledger := storage.NewLedger(db)
	vault := storage.NewCollateralVault(db)
	yields := storage.NewYieldBook(db, ledger)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)
	emitter := events.Fanout{collector}

	pauses := nativecommon.NewPauseSet(cfg.PausedModules)

	auctions := auction.NewEngine(cfg.Factory(), cfg.Vault())
	auctions.SetState(ledger)
	auctions.SetVault(vault)
	auctions.SetEmitter(emitter)
	auctions.SetPauses(pauses)

	loans := loan.NewEngine(cfg.Factory(), cfg.Vault())
	loans.SetState(ledger)
	loans.SetVault(vault)
	loans.SetYieldSource(yields)
	loans.SetEmitter(emitter)
	loans.SetPauses(pauses)

	claims := rights.NewRegistry()
	claims.SetState(ledger)
	loans.SetRights(claims)

	coordinator := factory.NewCoordinator(cfg.Factory(), auctions, loans, claims, vault, logger)
	auctions.SetSettler(coordinator)

	server := rpc.NewServer(coordinator, auctions, loans, claims, logger, cfg.APITokens, registry)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "address", cfg.ListenAddress)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	logger.Info("stopped")
}
