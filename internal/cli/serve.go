package cli

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"icalfilter/internal/config"
	"icalfilter/internal/ics"
	appLog "icalfilter/internal/log"
	"icalfilter/internal/scheduler"
	"icalfilter/internal/web"
)

var serveFlags struct {
	configPath string
	listen     string
	noWatch    bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the filter form and API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(parent context.Context) error {
	appLog.Info("icalfilter starting", "version", version)

	conf, err := config.Load(serveFlags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", serveFlags.configPath)
		return err
	}
	// CLI --listen overrides config file listen if provided.
	if serveFlags.listen != "" {
		conf.Listen = serveFlags.listen
	}
	applyLogLevel(conf)

	appLog.Info("effective config",
		"listen", conf.Listen,
		"host", conf.Host,
		"timezone", conf.Preview.Timezone,
		"horizon_days", conf.Preview.HorizonDays,
		"cache_dir", conf.Preview.CacheDir,
		"cache_prune", conf.CachePruneCron,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	fetcher := ics.NewFetcher(ics.FetcherOptions{
		CacheDir:          conf.Preview.CacheDir,
		Timeout:           time.Duration(conf.Preview.FetchTimeoutSeconds) * time.Second,
		RequestsPerSecond: conf.Preview.RequestsPerSecond,
		Burst:             conf.Preview.Burst,

		AllowPrivateNetworks: conf.Preview.AllowPrivateNetworks,
	})
	srv := web.NewServer(conf, ics.NewPreviewer(fetcher))

	sched := scheduler.New()
	maxAge := time.Duration(conf.Preview.CacheMaxAgeHours) * time.Hour
	if err := sched.AddCachePrune(conf.CachePruneCron, fetcher, maxAge); err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.Run(ctx)
	}()

	if !serveFlags.noWatch {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := config.Watch(ctx, serveFlags.configPath, func(c *config.Config) {
				if serveFlags.listen != "" {
					c.Listen = serveFlags.listen
				}
				applyLogLevel(c)
				srv.SetConfig(c)
			})
			if err != nil {
				appLog.Error("config watch stopped", err)
			}
		}()
	}

	err = srv.ListenAndServe(ctx)
	cancel()
	wg.Wait()
	appLog.Info("icalfilter exiting")
	return err
}

// applyLogLevel uses the config's level unless --log-level was given.
func applyLogLevel(c *config.Config) {
	if rootCmd.PersistentFlags().Changed("log-level") {
		return
	}
	appLog.SetLevel(appLog.ParseLevel(c.LogLevel))
}

func init() {
	fl := serveCmd.Flags()
	fl.StringVar(&serveFlags.configPath, "config", "/etc/icalfilter/config.yaml", "Path to config file")
	fl.StringVar(&serveFlags.listen, "listen", "", "HTTP listen address (overrides config if set)")
	fl.BoolVar(&serveFlags.noWatch, "no-watch", false, "Do not reload the config file on change")

	rootCmd.AddCommand(serveCmd)
}
