// Command netstackd runs the protocol engine against a TAP device and
// serves its Prometheus metrics over HTTP, per §4.10 of the
// specification.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/hitsz-netlab/gonet/driver"
	"github.com/hitsz-netlab/gonet/netconf"
	"github.com/hitsz-netlab/gonet/netmetrics"
	"github.com/hitsz-netlab/gonet/netstack"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "netstackd",
	Short: "User-space Ethernet/ARP/IPv4/ICMP/UDP protocol engine",
	RunE:  run,
}

func main() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (optional)")
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := netconf.Load(configPath)
	if err != nil {
		return err
	}
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: netconf.ParseLogLevel(cfg.Log.Level)}))

	ourIP, err := cfg.Interface.Addr()
	if err != nil {
		return err
	}
	ourMAC, err := cfg.Interface.HardwareAddr()
	if err != nil {
		return err
	}

	collector := netmetrics.New()
	tap := driver.NewTAP(cfg.Interface.Device)
	stack := netstack.New(ourIP, ourMAC, tap, &netstack.Metrics{
		ARP:  collector.ARP(),
		IPv4: collector.IPv4(),
		ICMP: collector.ICMP(),
		UDP:  collector.UDP(),
	})

	if err := stack.Init(); err != nil {
		return err
	}
	defer stack.Close()
	log.Info("netstackd started", "interface", cfg.Interface.IP, "mac", cfg.Interface.MAC)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	httpSrv := &http.Server{Addr: cfg.Metrics.Addr}
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, promhttp.Handler())
	httpSrv.Handler = mux

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return httpSrv.Shutdown(shutdownCtx)
		case err := <-errCh:
			return err
		case <-ticker.C:
			if err := stack.Poll(); err != nil {
				log.Warn("poll error", "error", err)
			}
		}
	}
}
