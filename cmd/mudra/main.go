package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/classifier"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/confirm"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/tray"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(2)
	}

	logger := cfg.Logger(os.Stderr)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("mudra exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	st, err := store.New(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	// The class table drives the confirmer; it is read once at startup.
	classes, reserved, err := loadClasses(st)
	if err != nil {
		return err
	}
	if err := cfg.ApplySettings(st.Settings()); err != nil {
		return fmt.Errorf("invalid stored setting: %w", err)
	}
	confirmCfg, err := cfg.Confirm(classes, reserved)
	if err != nil {
		return err
	}

	a, err := app.New(app.Config{
		Store:           st,
		PluginDir:       cfg.PluginDir,
		PluginTimeout:   cfg.PluginTimeout,
		Camera:          cfg.Camera(),
		MotionThreshold: cfg.MotionThreshold,
		Detector:        detector.DefaultConfig(),
		Classifier:      classifier.DefaultOptions(),
		Confirm:         confirmCfg,
		Logger:          logger,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.LoadTemplates(); err != nil {
		return err
	}
	if err := a.DiscoverPlugins(); err != nil {
		logger.Warn("plugin discovery failed", "dir", cfg.PluginDir, "error", err)
	}

	events := server.NewEventHub(logger.With("component", "events"))
	events.Attach(a.Confirmer())

	staticDir := cfg.StaticDir
	if staticDir == "" {
		staticDir = findWebDir(cfg.DataDir)
	}
	if staticDir != "" {
		logger.Info("serving static files", "dir", staticDir)
	}

	srv := server.New(server.Config{
		StaticDir: staticDir,
		Store:     st,
		Pipeline:  a,
		Preview:   a.Preview(),
		Events:    events,
		Plugins:   a.PluginManager(),
		Logger:    logger.With("component", "server"),
	})

	a.SetEnabled(!cfg.Disabled)
	if err := a.Start(); err != nil {
		// The API and class editor stay usable without a camera.
		logger.Warn("detection pipeline not started", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.NoTray {
		return srv.Run(ctx, cfg.Addr)
	}
	return runWithTray(ctx, cfg, a, srv, logger)
}

// runWithTray serves in the background while the tray owns the main
// goroutine, which systray requires on macOS.
func runWithTray(ctx context.Context, cfg config.Config, a *app.App, srv *server.Server, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	t := tray.New(a.IsEnabled(), logger.With("component", "tray"))
	t.Attach(a.Confirmer())
	t.OnToggle(a.SetEnabled)
	t.OnSettings(func() {
		url := "http://" + cfg.Addr
		if err := openBrowser(url); err != nil {
			logger.Warn("failed to open browser", "url", url, "error", err)
		}
	})
	t.OnQuit(cancel)

	errCh := make(chan error, 1)
	go func() {
		err := srv.Run(ctx, cfg.Addr)
		t.Quit()
		errCh <- err
	}()

	t.Run()
	cancel()
	return <-errCh
}

// loadClasses seeds the default classes into a new database and returns the
// class table.
func loadClasses(st *store.Store) ([]confirm.ClassSpec, string, error) {
	if err := st.Classes().SeedDefaults(confirm.DefaultClasses(), confirm.DefaultReservedClass); err != nil {
		return nil, "", fmt.Errorf("failed to seed classes: %w", err)
	}
	specs, reserved, err := st.Classes().ClassSpecs()
	if err != nil {
		return nil, "", fmt.Errorf("failed to load classes: %w", err)
	}
	return specs, reserved, nil
}

// findWebDir returns the first web UI directory found next to the working
// directory or under the data directory, or "" when there is none.
func findWebDir(dataDir string) string {
	candidates := []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
