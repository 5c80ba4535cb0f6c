package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/nixpig/botpanel/internal/commands"
	"github.com/nixpig/botpanel/internal/jobrunner"
	"github.com/nixpig/botpanel/internal/project"
	"github.com/nixpig/botpanel/internal/server"
	"github.com/nixpig/botpanel/internal/tlsconfig"
)

const shutdownTimeout = 15 * time.Second

func runServer(cfg *config) error {
	logger := newLogger(cfg.debug)

	store := project.NewStore(cfg.projectDir, cfg.modelsDir)

	jobs := jobrunner.NewSet(
		commands.ForCategories(commands.Config{
			RasaBin:    cfg.rasaBin,
			DockerBin:  cfg.dockerBin,
			BaseImage:  cfg.baseImage,
			ServerPort: cfg.runtimePort,
		}, store),
		cfg.logRetention,
		cfg.stopGrace,
		logger,
	)

	serverCfg := server.Config{
		Addr:        cfg.addr(),
		FrontendDir: cfg.frontendDir,
		RuntimePort: cfg.runtimePort,
	}

	if cfg.certPath != "" {
		tlsConf, err := tlsconfig.Server(&tlsconfig.Config{
			CertPath: cfg.certPath,
			KeyPath:  cfg.keyPath,
		})
		if err != nil {
			return err
		}

		serverCfg.TLS = tlsConf
	}

	srv := server.New(serverCfg, jobs, store, logger)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(srv.ListenAndServe)

	g.Go(func() error {
		<-ctx.Done()

		logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			shutdownTimeout,
		)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newLogger(debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	return zerolog.New(os.Stderr).
		Level(level).
		With().
		Timestamp().
		Logger()
}
