package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/TitouanDH/BLab/pkg/util"
	"github.com/TitouanDH/BLab/pkg/version"
)

var (
	sweepInterval time.Duration
	sweepOnce     bool
	sweepListen   string

	sweepStartTime = time.Now()
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Release expired reservations, once or as a daemon",
	Long: `Sweep releases every reservation whose end date has passed, tearing
down its links and cleaning up the freed switches. Without --once it
keeps running and serves Prometheus metrics over HTTP.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if sweepOnce {
			released, err := eng.ExpireSweep(ctx)
			if err != nil {
				return err
			}
			util.Infof("sweep released %d reservations", released)
			return nil
		}

		ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv := startSweepHTTP(sweepListen)
		defer srv.Shutdown(context.Background())

		util.Infof("sweeping every %s, metrics on %s", sweepInterval, sweepListen)
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			released, err := eng.ExpireSweep(ctx)
			if err != nil {
				util.Errorf("sweep: %v", err)
			} else if released > 0 {
				util.Infof("sweep released %d reservations", released)
			}
			select {
			case <-ctx.Done():
				util.Info("sweep daemon stopping")
				return nil
			case <-ticker.C:
			}
		}
	},
}

func init() {
	flags := sweepCmd.Flags()
	flags.DurationVar(&sweepInterval, "interval", 10*time.Minute, "Time between sweeps")
	flags.BoolVar(&sweepOnce, "once", false, "Run a single sweep and exit")
	flags.StringVar(&sweepListen, "listen", ":9310", "Metrics listen address")
}

func startSweepHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"version":    version.Version,
			"git_commit": version.GitCommit,
			"build_date": version.BuildDate,
		})
	})
	mux.HandleFunc("/healthcheck", healthCheckHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			util.Errorf("metrics listener: %v", err)
		}
	}()
	return srv
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	res := struct {
		GitCommit  string        `json:"git_commit"`
		Uptime     time.Duration `json:"uptime"`
		Goroutines int           `json:"goroutines"`
	}{
		GitCommit:  version.GitCommit,
		Uptime:     time.Since(sweepStartTime),
		Goroutines: runtime.NumGoroutine(),
	}

	b, err := json.Marshal(&res)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(b)
}
