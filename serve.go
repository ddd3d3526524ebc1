package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/peterje/ptyhost/internal/config"
	"github.com/peterje/ptyhost/internal/db"
	"github.com/peterje/ptyhost/internal/events"
	"github.com/peterje/ptyhost/internal/host"
	"github.com/peterje/ptyhost/internal/logging"
	"github.com/peterje/ptyhost/internal/monitoring"
	"github.com/peterje/ptyhost/internal/preflight"
	"github.com/peterje/ptyhost/internal/pty"
	"github.com/peterje/ptyhost/internal/server"
	"github.com/peterje/ptyhost/internal/sidecar"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const (
	addrFlag     = "addr"
	logLevelFlag = "log-level"
	devFlag      = "dev"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the terminal host",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			applyFlags(cfg, cmd)
			return serve(ctx, cfg)
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  addrFlag,
				Usage: "Listen address, overrides PTYHOST_ADDR",
			},
			&cli.StringFlag{
				Name:  logLevelFlag,
				Usage: "debug, info, warn or error, overrides PTYHOST_LOG_LEVEL",
			},
			&cli.BoolFlag{
				Name:  devFlag,
				Usage: "Human-readable development logging",
			},
		},
	}
}

// applyFlags lets explicit flags win over the environment.
func applyFlags(cfg *config.Config, cmd *cli.Command) {
	if addr := cmd.String(addrFlag); addr != "" {
		cfg.Server.Addr = addr
	}
	if level := cmd.String(logLevelFlag); level != "" {
		cfg.Logging.Level = level
	}
	if cmd.Bool(devFlag) {
		cfg.Logging.Development = true
	}
}

func runPreflight(w io.Writer) error {
	fmt.Fprintln(w, "Running preflight checks...")
	status := preflight.CheckAll(w)
	if !preflight.OK(status) {
		return errors.New("preflight checks failed")
	}
	return nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		Output:      cfg.Logging.Output,
	})
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	shell := preflight.CheckAll(os.Stdout)
	if !shell.PTY {
		return errors.New("pseudo-terminals are not available")
	}
	if !shell.Found {
		logger.Warn("default shell not found on PATH, spawns will fail", zap.String("shell", shell.Shell))
	}

	metrics := monitoring.NewMetrics()
	hub := events.NewHub(metrics)
	defer hub.Close()

	mgr := pty.NewManager(hub,
		pty.WithLogger(logger.Named("pty")),
		pty.WithMetrics(metrics),
		pty.WithNamespace(cfg.Terminal.EventNamespace),
	)

	opts := []host.Option{
		host.WithMetrics(metrics),
		host.WithLogger(logger.Named("host")),
		host.WithSidecar(sidecar.New(cfg.Sidecar.Command, cfg.Sidecar.Args, logger.Named("sidecar"), metrics)),
	}
	if cfg.History.Enabled {
		history, closeDB, err := openHistory(cfg.History.Path)
		if err != nil {
			return err
		}
		defer closeDB()
		opts = append(opts, host.WithHistory(history))
	}

	h := host.New(mgr, opts...)
	h.Start(ctx)

	srv := server.New(h, hub, shell, cfg.Terminal.EventNamespace, metrics, logger.Named("http"))
	return listenAndServe(ctx, cfg, srv, h, logger)
}

func openHistory(path string) (*db.History, func(), error) {
	if path == "" {
		p, err := db.DefaultPath()
		if err != nil {
			return nil, nil, fmt.Errorf("resolve history path: %w", err)
		}
		path = p
	}

	database, err := db.Open(path)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(database); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("migrate history: %w", err)
	}
	return db.NewHistory(database), func() { database.Close() }, nil
}

// listenAndServe runs the HTTP server until a signal arrives or it fails,
// then kills every terminal before draining HTTP.
func listenAndServe(ctx context.Context, cfg *config.Config, srv *server.Server, h *host.Host, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpSrv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server running", zap.String("addr", "http://"+cfg.Server.Addr))
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case serveErr = <-errCh:
		logger.Error("server failed", zap.Error(serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	h.Shutdown(shutdownCtx)
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
	return serveErr
}
