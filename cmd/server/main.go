package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/arenasim/internal/config"
	"github.com/zeusync/arenasim/internal/core/observability/log"
	"github.com/zeusync/arenasim/internal/injector"
)

func main() {
	scenarioPath := flag.String("scenario", "", "scenario file (.yaml, .yml or .toml)")
	flag.Parse()

	scenario, err := loadScenario(*scenarioPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error loading scenario:", err)
		os.Exit(1)
	}

	app, err := injector.InitializeApp(scenario)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error building simulator:", err)
		os.Exit(1)
	}
	defer func() { _ = app.Logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = run(ctx, app); err != nil {
		app.Logger.Error("Simulator stopped with error", log.Error(err))
		os.Exit(1)
	}
}

func loadScenario(path string) (config.Scenario, error) {
	if path == "" {
		sc := config.Default()
		if err := sc.ApplyEnv(os.LookupEnv); err != nil {
			return sc, err
		}
		return sc, sc.Validate()
	}
	return config.Load(path)
}

// run starts the world loop, both bridges and the control API, then spawns
// the scenario robots. It returns when ctx is done or any part fails.
func run(ctx context.Context, app *injector.App) error {
	sc := app.Scenario
	logger := app.Logger.Named("main")
	app.World.Schedule(sc.Contacts...)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.World.Run(ctx, sc.FrameRate) })
	g.Go(func() error { return app.WebSocket.Start(ctx) })
	g.Go(func() error { return app.QUIC.Start(ctx) })
	g.Go(func() error { return app.API.Start(ctx) })
	g.Go(func() error {
		for _, spec := range sc.Robots {
			req, err := sc.SpawnRequest(spec)
			if err != nil {
				logger.Error("Skipping robot", log.String("robot", spec.Namespace), log.Error(err))
				continue
			}
			if _, err = app.World.Spawn(ctx, req); err != nil {
				logger.Error("Failed to spawn robot", log.String("robot", spec.Namespace), log.Error(err))
				continue
			}
			for _, sd := range spec.SafeDistRequests() {
				if _, err = app.World.AttachSafeDist(ctx, sd); err != nil {
					logger.Error("Failed to attach safe distance sensor",
						log.String("robot", spec.Namespace),
						log.String("topic", sd.Topic),
						log.Error(err))
				}
			}
		}
		logger.Info("Scenario loaded",
			log.Int("robots", len(sc.Robots)),
			log.Int("scripted_contacts", len(sc.Contacts)),
			log.String("run_id", app.Conn.RunID()))
		return nil
	})

	return g.Wait()
}
