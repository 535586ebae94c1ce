// Command shardcontroller runs the authoritative placement service: it
// accepts Join/Leave/Move/Query requests from storage servers and
// clients over a framed TCP listener, and exposes Prometheus metrics on
// a side HTTP port.
//
// Configuration (environment, overridable by flag):
//
//	SHARDCONTROLLER_ADDR          listen address for the TCP control port (default ":9090")
//	SHARDCONTROLLER_METRICS_ADDR  listen address for the /metrics HTTP port (default ":9091")
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
	"github.com/dreamware/torua/internal/shardcontroller"
	"github.com/dreamware/torua/internal/transport"
)

func main() {
	var addr, metricsAddr string

	root := &cobra.Command{
		Use:   "shardcontroller",
		Short: "run the sharded KV store's placement controller",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(addr, metricsAddr)
		},
	}
	root.Flags().StringVar(&addr, "addr", appconfig.String("SHARDCONTROLLER_ADDR", ":9090"), "control-port listen address")
	root.Flags().StringVar(&metricsAddr, "metrics-addr", appconfig.String("SHARDCONTROLLER_METRICS_ADDR", ":9091"), "Prometheus /metrics listen address")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(addr, metricsAddr string) error {
	log, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer log.Sync()

	pool := transport.NewPool(0, 0)
	defer pool.Close()

	ctrl := shardcontroller.New(pool, log)
	reg := prometheus.NewRegistry()
	ctrl.MustRegisterMetrics(reg)

	srv, err := shardcontroller.Listen(addr, ctrl, log)
	if err != nil {
		log.Fatal("listen", zap.Error(err))
	}
	go func() {
		log.Info("shardcontroller listening", zap.String("addr", srv.Addr()))
		if err := srv.Serve(); err != nil {
			log.Info("control-port accept loop stopped", zap.Error(err))
		}
	}()

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
	srv.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(ctx); err != nil {
		log.Error("metrics server shutdown", zap.Error(err))
	}
	return nil
}
