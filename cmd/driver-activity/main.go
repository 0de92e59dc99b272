// cmd/driver-activity/main.go
//
// Entry point for the driver activity form.
//
// Flow:
// 1. Load .driver-activity/config.yaml from the project directory
// 2. Connect the MyGeotab host unless running offline
// 3. Start the local bridge when enabled
// 4. Run the form until the driver quits

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/driver-activity/internal/config"
	"github.com/kingrea/driver-activity/internal/geotab"
	"github.com/kingrea/driver-activity/internal/hostapi"
	"github.com/kingrea/driver-activity/internal/hostbridge"
	"github.com/kingrea/driver-activity/internal/logbook"
	"github.com/kingrea/driver-activity/internal/metrics"
	"github.com/kingrea/driver-activity/internal/tui"
)

func main() {
	projectDir := flag.String("project", "", "path to the project directory (defaults to cwd)")
	offline := flag.Bool("offline", false, "run without a host; selections work but submissions fail")
	flag.Parse()

	if err := run(*projectDir, *offline); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(projectDir string, offline bool) error {
	if projectDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
		projectDir = cwd
	}
	if err := config.InitDir(projectDir); err != nil {
		return err
	}
	cfg, err := config.NewConfig(projectDir)
	if err != nil {
		return err
	}
	lb, err := logbook.New(cfg.LogPath())
	if err != nil {
		return err
	}
	catalog := cfg.Catalog()
	lb.Info("form opened · %d activities", catalog.Len())
	for _, dup := range catalog.Duplicates() {
		lb.Warn("activity %q is listed more than once", dup)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	opts := []tui.AppOption{tui.WithLogbook(lb), tui.WithMetrics(m), tui.WithContext(ctx)}

	var gHost *geotab.Host
	switch {
	case offline:
		lb.Warn("offline mode: host api disabled")
	case !cfg.HasGeotab():
		lb.Warn("no geotab server configured in %s", cfg.ProjectConfigPath())
	default:
		client, err := geotab.New(geotab.Config{
			Server:   cfg.Project.Geotab.Server,
			Database: cfg.Project.Geotab.Database,
			UserName: cfg.Project.Geotab.UserName,
			Password: cfg.GeotabPassword(),
			Timeout:  cfg.Project.Geotab.Timeout,
		}, geotab.WithLogger(lb.Scoped("geotab")))
		if err != nil {
			return err
		}
		gHost = geotab.NewHost(client, cfg.DeviceSentinel())
		var host hostapi.Host = gHost
		opts = append(opts,
			tui.WithHost(host),
			tui.WithConnector(func(ctx context.Context) error {
				_, err := client.Authenticate(ctx)
				return err
			}),
		)
	}

	bridgeOpts := []hostbridge.Option{
		hostbridge.WithLogger(lb.Scoped("bridge")),
		hostbridge.WithMetricsHandler(m.Handler()),
	}
	if gHost != nil {
		bridgeOpts = append(bridgeOpts, hostbridge.WithReadiness(gHost))
	}
	settings := hostbridge.SettingsFromConfig(cfg)
	bridge := hostbridge.NewServer(settings, bridgeOpts...)
	if settings.Enabled {
		if err := bridge.Start(ctx); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = bridge.Shutdown(shutdownCtx)
		}()
	}

	p := tea.NewProgram(
		tui.NewApp(catalog, opts...),
		tea.WithAltScreen(),
	)
	if gHost != nil {
		tui.NotifyReady(gHost, p.Send)
	}
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run form: %w", err)
	}
	lb.Info("form closed")
	return nil
}
