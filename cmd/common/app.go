// Package common wires the dependency graph shared by the harvester
// subcommands.
package common

import (
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/chefstream/harvester/internal/config"
	"github.com/chefstream/harvester/internal/database"
	"github.com/chefstream/harvester/internal/discovery"
	"github.com/chefstream/harvester/internal/domain"
	"github.com/chefstream/harvester/internal/events"
	"github.com/chefstream/harvester/internal/extract"
	"github.com/chefstream/harvester/internal/fetcher"
	"github.com/chefstream/harvester/internal/fingerprint"
	"github.com/chefstream/harvester/internal/logger"
	"github.com/chefstream/harvester/internal/metrics"
	"github.com/chefstream/harvester/internal/normalizer"
	"github.com/chefstream/harvester/internal/providers"
	"github.com/chefstream/harvester/internal/ratelimit"
	"github.com/chefstream/harvester/internal/saga"
)

// providerAPITimeout bounds calls to the provider-configuration service.
const providerAPITimeout = 10 * time.Second

// App holds the wired application components.
type App struct {
	Config       *config.Config
	Logger       logger.Interface
	DB           *sqlx.DB
	Providers    providers.Client
	Batches      *database.BatchRepository
	Sagas        *database.SagaRepository
	Orchestrator *saga.Orchestrator
	Recovery     *saga.Recovery
	Metrics      *metrics.Metrics
}

// Setup loads configuration and builds the full dependency graph.
// Callers are responsible for calling Close.
func Setup() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.New(&cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	batches := database.NewBatchRepository(db)
	sagas := database.NewSagaRepository(db)
	recipes := database.NewRecipeRepository(db)
	fingerprints := database.NewFingerprintRepository(db)
	mappings := database.NewIngredientMappingRepository(db)

	bus := events.NewBus(log)
	bus.Subscribe(events.NewLoggingHandler(log))

	providerClient := providers.NewCachedClient(
		providers.NewHTTPClient(cfg.Providers.APIURL, &http.Client{Timeout: providerAPITimeout}),
		cfg.Providers.CacheTTL,
	)

	fetchClient := fetcher.NewClient(&http.Client{})
	var renderer discovery.Renderer
	if cfg.Harvest.RendererURL != "" {
		renderer = fetcher.NewServiceRenderer(cfg.Harvest.RendererURL, nil)
	}

	norm := normalizer.New(mappings, bus, log, normalizer.Options{
		CacheSize: cfg.Harvest.NormalizerCacheSize,
		CacheTTL:  cfg.Harvest.NormalizerCacheTTL,
	})

	m := metrics.New()
	orch := saga.NewOrchestrator(saga.Deps{
		Batches:      batches,
		Sagas:        sagas,
		Recipes:      recipes,
		Fingerprints: fingerprint.NewStore(fingerprints),
		Normalizer:   norm,
		Fetcher:      fetchClient,
		Extractor:    extract.NewJSONLD(log),
		Limiter:      ratelimit.NewLimiter(cfg.Harvest.BucketCapacity),
		Providers:    providerClient,
		Strategies: func(pcfg *domain.ProviderConfig) (discovery.Strategy, error) {
			return discovery.NewStrategy(pcfg, discovery.Deps{
				Fetcher:  fetchClient,
				Renderer: renderer,
				Logger:   log,
			})
		},
		Bus:     bus,
		Metrics: m,
		Logger:  log,
	})

	return &App{
		Config:       cfg,
		Logger:       log,
		DB:           db,
		Providers:    providerClient,
		Batches:      batches,
		Sagas:        sagas,
		Orchestrator: orch,
		Recovery:     saga.NewRecovery(sagas, orch, log),
		Metrics:      m,
	}, nil
}

// Close releases held resources.
func (a *App) Close() error {
	return a.DB.Close()
}
