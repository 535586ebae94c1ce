// Command kvserver runs a single storage server: it serves Get/Put/
// Append/Delete/MultiGet/MultiPut and the Move hand-off protocol over a
// framed TCP listener, registers itself with a shardcontroller on
// startup, and exposes Prometheus metrics on a side HTTP port.
//
// Configuration (environment, overridable by flag):
//
//	KVSERVER_ADDR            listen address for the data port (default ":9100")
//	KVSERVER_CONTROLLER_ADDR shardcontroller control-port address (required)
//	KVSERVER_METRICS_ADDR    listen address for the /metrics HTTP port (default ":9101")
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dreamware/torua/internal/appconfig"
	"github.com/dreamware/torua/internal/kvserver"
	"github.com/dreamware/torua/internal/transport"
)

func main() {
	var addr, controllerAddr, metricsAddr string

	root := &cobra.Command{
		Use:   "kvserver",
		Short: "run a sharded KV store storage server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(addr, controllerAddr, metricsAddr)
		},
	}
	root.Flags().StringVar(&addr, "addr", appconfig.String("KVSERVER_ADDR", ":9100"), "data-port listen address")
	root.Flags().StringVar(&controllerAddr, "controller-addr", appconfig.String("KVSERVER_CONTROLLER_ADDR", ""), "shardcontroller control-port address")
	root.Flags().StringVar(&metricsAddr, "metrics-addr", appconfig.String("KVSERVER_METRICS_ADDR", ":9101"), "Prometheus /metrics listen address")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(addr, controllerAddr, metricsAddr string) error {
	log, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer log.Sync()

	if controllerAddr == "" {
		log.Fatal("missing required configuration", zap.String("var", "KVSERVER_CONTROLLER_ADDR"))
	}

	pool := transport.NewPool(0, 0)
	defer pool.Close()

	kv := kvserver.New(addr, pool, log)
	reg := prometheus.NewRegistry()
	kv.MustRegisterMetrics(reg)

	srv, err := kvserver.Listen(addr, kv, log)
	if err != nil {
		log.Fatal("listen", zap.Error(err))
	}
	go func() {
		log.Info("kvserver listening", zap.String("addr", srv.Addr()))
		if err := srv.Serve(); err != nil {
			log.Info("data-port accept loop stopped", zap.Error(err))
		}
	}()

	if err := kvserver.JoinController(pool, controllerAddr, srv.Addr(), log); err != nil {
		log.Fatal("failed to join controller", zap.Error(err))
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{Addr: metricsAddr, Handler: metricsMux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("metrics listening", zap.String("addr", metricsAddr))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	if err := kvserver.LeaveController(pool, controllerAddr, srv.Addr()); err != nil {
		log.Warn("best-effort leave failed", zap.Error(err))
	}
	srv.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(ctx); err != nil {
		log.Error("metrics server shutdown", zap.Error(err))
	}
	return nil
}
