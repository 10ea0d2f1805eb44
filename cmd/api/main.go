package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/auth"
	"github.com/spec-kit/complaint-service/internal/config"
	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/observability"
	"github.com/spec-kit/complaint-service/internal/persistence"
	"github.com/spec-kit/complaint-service/internal/worker"
)

func main() {
	app := &cli.App{
		Name:  "complaint-service",
		Usage: "Complaint ticket lifecycle service",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP server and the SLA sweeper",
				Action: runServe,
			},
			{
				Name:   "sweep-sla",
				Usage:  "Run one SLA breach sweep and exit",
				Action: runSweep,
			},
			{
				Name:   "migrate",
				Usage:  "Apply database migrations",
				Action: runMigrate,
			},
			{
				Name:  "issue-token",
				Usage: "Mint a bearer token for local testing",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "sub", Usage: "Actor id", Required: true},
					&cli.StringFlag{Name: "role", Value: string(domain.RoleUser), Usage: "USER, HANDLER or SUPERVISOR"},
				},
				Action: runIssueToken,
			},
		},
		Action: runServe,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("application error: %v", err)
	}
}

func loadRuntime() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	logger = logger.With(zap.String("service", cfg.App.Name), zap.String("env", cfg.App.Env))
	return cfg, logger, nil
}

func runServe(c *cli.Context) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	app, err := buildApplication(ctx, cfg, logger, cfg.Postgres.RunMigrations)
	if err != nil {
		return err
	}
	defer app.Close()

	sweeper := worker.NewSLASweeper(app.complaints, cfg.SLA.SweepInterval(), logger)
	stopSweeper := sweeper.Start(ctx)
	defer stopSweeper()

	server := app.httpServer()
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", cfg.App.Addr()))
		if err := server.Listen(cfg.App.Addr()); err != nil {
			serverErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	stopSweeper()
	if err := server.ShutdownWithTimeout(10 * time.Second); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func runSweep(c *cli.Context) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	app, err := buildApplication(c.Context, cfg, logger, false)
	if err != nil {
		return err
	}
	defer app.Close()

	count, err := app.complaints.SweepSLABreaches(c.Context, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("sweep sla: %w", err)
	}
	logger.Info("sla sweep finished", zap.Int("breaches", count))
	return nil
}

func runMigrate(c *cli.Context) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	pg, err := persistence.NewPostgres(c.Context, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	return persistence.RunMigrations(c.Context, pg.PoolHandle(), logger)
}

func runIssueToken(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	actor := domain.Actor{ID: c.String("sub"), Role: domain.Role(strings.ToUpper(c.String("role")))}
	token, expiresAt, err := tokens.GenerateToken(actor)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s\n# expires %s\n", token, expiresAt.Format(time.RFC3339))
	return nil
}
