package cmd

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"example.com/backstage/services/livestock/config"
	"example.com/backstage/services/livestock/internal/cache"
	"example.com/backstage/services/livestock/internal/database"
	"example.com/backstage/services/livestock/internal/eventstore"
	"example.com/backstage/services/livestock/internal/metrics"
	"example.com/backstage/services/livestock/internal/projector"
	"example.com/backstage/services/livestock/internal/repositories"
	"example.com/backstage/services/livestock/internal/search"
	"example.com/backstage/services/livestock/internal/services"
	"example.com/backstage/services/livestock/internal/tracing"
)

var rootCmd = &cobra.Command{
	Use:   "livestock",
	Short: "Livestock lifecycle record service",
	Long:  `Event-sourced livestock registration, snapshot projection and father assignment`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// app bundles the wired service graph shared by the api, worker and
// assignment commands
type app struct {
	cfg           config.Config
	db            *gorm.DB
	store         eventstore.EventStore
	redisCache    *cache.RedisCache
	elastic       *search.ElasticClient
	tracer        tracing.Tracer
	collector     *metrics.Metrics
	proj          *projector.Projector
	regProj       *projector.RegistrationProjector
	snapshots     *repositories.SnapshotRepository
	registrations *repositories.RegistrationRepository
	inseminations *repositories.InseminationRepository
	fathers       *services.FatherService
	dispatcher    *services.AssignmentDispatcher
	regService    *services.RegistrationService
	insService    *services.InseminationService
}

// initApp loads configuration and wires the full dependency graph
func initApp() (*app, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, err
	}

	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	db, err := database.Connect(cfg.DB)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}

	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
	}

	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
	}

	elasticClient, err := search.NewElasticClient(cfg.Elastic)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without search functionality")
	}

	collector := metrics.NewMetrics()

	store := eventstore.NewGormEventStore(db)
	snapshots := repositories.NewSnapshotRepository(db)
	registrations := repositories.NewRegistrationRepository(db)
	inseminations := repositories.NewInseminationRepository(db)

	proj := projector.NewProjector(store, snapshots, redisCache)
	regProj := projector.NewRegistrationProjector(registrations, elasticClient)

	window := services.GestationWindow{
		MinDays: cfg.Gestation.MinDays,
		MaxDays: cfg.Gestation.MaxDays,
	}
	fathers := services.NewFatherService(inseminations, registrations, store, proj, regProj, collector, tracer, window)
	dispatcher := services.NewAssignmentDispatcher(fathers, collector, cfg.Worker.AssignmentWorkers)

	regService := services.NewRegistrationService(store, proj, regProj, registrations, collector, tracer)
	insService := services.NewInseminationService(inseminations, store, proj, dispatcher, collector, tracer)

	return &app{
		cfg:           cfg,
		db:            db,
		store:         store,
		redisCache:    redisCache,
		elastic:       elasticClient,
		tracer:        tracer,
		collector:     collector,
		proj:          proj,
		regProj:       regProj,
		snapshots:     snapshots,
		registrations: registrations,
		inseminations: inseminations,
		fathers:       fathers,
		dispatcher:    dispatcher,
		regService:    regService,
		insService:    insService,
	}, nil
}

// close releases the app's external connections
func (a *app) close() {
	if a.redisCache.Enabled() {
		if err := a.redisCache.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Redis connection")
		}
	}
	a.tracer.Close()
	if err := database.Close(a.db); err != nil {
		log.Warn().Err(err).Msg("Failed to close database connection")
	}
}
