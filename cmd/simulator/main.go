package main

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"transit-sim/internal/config"
	"transit-sim/internal/db"
	"transit-sim/internal/domain"
	"transit-sim/internal/fares"
	"transit-sim/internal/metrics"
	"transit-sim/internal/ports"
	"transit-sim/internal/publisher"
	"transit-sim/internal/seed"
	"transit-sim/internal/sim"
	"transit-sim/internal/store"
)

func main() {
	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config error")
	}
	setupLogging(cfg)

	app := &cli.App{
		Name:  "transit-sim",
		Usage: "Multimodal transit network simulator",
		Commands: []*cli.Command{
			runCommand(cfg),
			migrateCommand(cfg),
			seedCommand(cfg),
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Send()
	}
}

func setupLogging(cfg *config.Config) {
	if !cfg.LogJSON {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log.Logger = log.Logger.Level(level)
}

func runCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "run the simulation until interrupted",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "seed", Usage: "YAML network to load before starting", Value: cfg.SeedPath},
		},
		Action: func(c *cli.Context) error {
			// Root context with cancellation on SIGINT/SIGTERM
			ctx, cancel := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			st, closeStore, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			if path := c.String("seed"); path != "" {
				if err := applySeed(ctx, st, cfg, path); err != nil {
					return err
				}
			} else if cfg.Store == config.StoreMemory {
				log.Warn().Msg("in-memory store without a seed file: the network is empty")
			}

			// Metrics setup
			var mcol *metrics.Collector
			if cfg.MetricsAddr != "" {
				mcol = metrics.NewCollector(cfg.SpeedMultiplier, cfg.TickInterval)
				srv := mcol.Serve(cfg.MetricsAddr)
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
			}

			var pub sim.Publisher
			if cfg.NATSURL != "" {
				np, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix, cfg.LogNATSSubjects, wrapPublisherMetrics(mcol))
				if err != nil {
					return err
				}
				defer np.Close()
				pub = np
			} else {
				log.Info().Msg("NATS_URL not set, state events are not published")
			}

			clock := domain.NewFixedClock(time.Now().In(cfg.Location))

			tickets := fares.NewService(st, clock, mcol)
			go tickets.ExpireEvery(ctx, cfg.TicketSweep)

			mgr := sim.NewManager(st, pub, clock, mcol, sim.Options{
				TickInterval:         cfg.TickInterval,
				SpeedMultiplier:      cfg.SpeedMultiplier,
				Seed:                 cfg.SimSeed,
				StationPolicy:        &cfg.StationPolicy,
				VehiclePolicy:        &cfg.VehiclePolicy,
				PassengerArrivalRate: cfg.PassengerArrivalRate,
				StationWearPerTick:   cfg.StationWearPerTick,
				Fares:                tickets,
				Riders:               cfg.Riders,
			})
			if err := mgr.Load(ctx); err != nil {
				return err
			}
			if err := mgr.Run(ctx); err != nil {
				return err
			}
			log.Info().Msg("shutdown complete")
			return nil
		},
	}
}

func migrateCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "create the PostgreSQL schema",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "database", Usage: "database name overriding the one in DATABASE_URL"},
		},
		Action: func(c *cli.Context) error {
			if cfg.DatabaseURL == "" {
				return errors.New("migrate needs DATABASE_URL or PGDATABASE")
			}
			dsn := cfg.DatabaseURL
			if name := c.String("database"); name != "" {
				var err error
				if dsn, err = db.WithDBName(dsn, name); err != nil {
					return err
				}
			}
			sqlDB, err := openDB(c.Context, dsn)
			if err != nil {
				return err
			}
			defer sqlDB.Close()
			if err := db.InitSchema(c.Context, sqlDB); err != nil {
				return err
			}
			log.Info().Msg("schema up to date")
			return nil
		},
	}
}

func seedCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "seed",
		Usage:     "load a YAML network into the configured store",
		ArgsUsage: "<file>",
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				path = cfg.SeedPath
			}
			if path == "" {
				return errors.New("seed: no file given and SEED_PATH is not set")
			}
			if cfg.Store == config.StoreMemory {
				log.Warn().Msg("seeding the in-memory store only validates the file")
			}
			st, closeStore, err := openStore(c.Context, cfg)
			if err != nil {
				return err
			}
			defer closeStore()
			return applySeed(c.Context, st, cfg, path)
		},
	}
}

func applySeed(ctx context.Context, st ports.Store, cfg *config.Config, path string) error {
	f, err := seed.Load(path)
	if err != nil {
		return err
	}
	network, err := f.Build(seed.Policies{
		Station:         &cfg.StationPolicy,
		Vehicle:         &cfg.VehiclePolicy,
		VehicleWearRate: cfg.VehicleWearRate,
	})
	if err != nil {
		return err
	}
	return seed.Apply(ctx, st, network)
}

// openStore returns the configured repositories and a close func.
func openStore(ctx context.Context, cfg *config.Config) (ports.Store, func(), error) {
	if cfg.Store == config.StoreMemory {
		return store.NewMemory(), func() {}, nil
	}
	sqlDB, err := openDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := db.InitSchema(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, nil, err
	}
	return db.NewStore(sqlDB), func() { sqlDB.Close() }, nil
}

func openDB(ctx context.Context, dsn string) (*sql.DB, error) {
	sqlDB, err := db.Open(dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return sqlDB, nil
}

// wrapPublisherMetrics adapts our Collector to the PublisherMetrics interface.
func wrapPublisherMetrics(c *metrics.Collector) publisher.PublisherMetrics {
	if c == nil {
		return nil
	}
	return &pubMetrics{c: c}
}

type pubMetrics struct{ c *metrics.Collector }

func (p *pubMetrics) NATSPublishedInc()              { p.c.NATSPublished.Inc() }
func (p *pubMetrics) NATSPublishErrInc()             { p.c.NATSPublishErrs.Inc() }
func (p *pubMetrics) PublishObserve(d time.Duration) { p.c.PublishDuration.Observe(d.Seconds()) }
func (p *pubMetrics) NATSSetConnected(b bool) {
	if b {
		p.c.NATSConnected.Set(1)
	} else {
		p.c.NATSConnected.Set(0)
	}
}
