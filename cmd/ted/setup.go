package main

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/sandevgo/tedbot/internal/config"
	"github.com/sandevgo/tedbot/internal/core"
	"github.com/sandevgo/tedbot/internal/providers/llm"
	memprovider "github.com/sandevgo/tedbot/internal/providers/memory"
	"github.com/sandevgo/tedbot/internal/service/agent"
	"github.com/sandevgo/tedbot/internal/service/assembler"
	"github.com/sandevgo/tedbot/internal/service/history"
	memservice "github.com/sandevgo/tedbot/internal/service/memory"
	"github.com/sandevgo/tedbot/internal/service/timectx"
	"github.com/sandevgo/tedbot/internal/storage/sqlite"
	"github.com/sandevgo/tedbot/internal/transport/cli"
	"github.com/sandevgo/tedbot/internal/transport/httpapi"
	"github.com/sandevgo/tedbot/pkg/log"
	"github.com/sandevgo/tedbot/pkg/srv"
)

func NewServices(ctx context.Context) []srv.Service {
	logger := log.FromCtx(ctx)
	services := make([]srv.Service, 0)

	// init env
	if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
		logger.Fatal().Err(err).Msg("failed to init env")
	}

	// 1. Configuration
	appCfg := config.NewAppConfig(ctx)
	memCfg := config.NewMemoryConfig(ctx)

	// 2. Storage
	db, turnsRepo, threadsRepo, err := initStorage(ctx, appCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}
	services = append(services, srv.NewCleanup(db.Close))

	// 3. Semantic memory provider
	memProvider := initMemoryProvider(ctx, memCfg)

	// 4. Context assembly
	retriever := memservice.NewRetriever(memProvider, memservice.Config{
		MinSimilarity:       appCfg.MinSimilarity,
		RecencyHalfLifeDays: appCfg.RecencyHalfLifeDays,
	})
	asm, err := assembler.New(turnsRepo, retriever, assembler.Config{
		Filter: history.Config{
			FreshnessHours:      appCfg.FreshnessHours,
			BreakThresholdHours: appCfg.BreakThresholdHours,
			MaxStaleMessages:    appCfg.MaxStaleMessages,
			ActiveWindow:        appCfg.ContextWindow,
		},
		Location:      appCfg.Location(),
		Hemisphere:    timectx.ParseHemisphere(appCfg.Hemisphere),
		MemoriesCount: appCfg.MemoriesCount,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize context assembler")
	}

	// 5. AI Provider
	aiProvider, err := llm.NewProvider(ctx, appCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize LLM provider")
	}

	// 6. Companion Service
	companion := agent.NewCompanion(appCfg, aiProvider, asm, turnsRepo, memProvider)
	services = append(services, srv.NewCleanup(func() error {
		companion.Wait()
		return nil
	}))

	// 7. Transports
	transports, err := initTransports(appCfg, companion, turnsRepo, threadsRepo)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize transports")
	}
	services = append(services, transports...)

	return services
}

func initStorage(ctx context.Context, cfg *config.AppConfig) (*sql.DB, *sqlite.TurnsRepo, *sqlite.ThreadsRepo, error) {
	db, err := sqlite.NewDB(ctx, cfg.GetDatabasePath())
	if err != nil {
		return nil, nil, nil, err
	}
	return db, sqlite.NewTurnsRepo(db), sqlite.NewThreadsRepo(db), nil
}

func initMemoryProvider(ctx context.Context, cfg *config.MemoryConfig) core.MemoryProvider {
	if !cfg.Enabled() {
		log.FromCtx(ctx).Warn().Msg("MEMORY_API_URL not set, long-term memory disabled")
		return memprovider.NewNoop()
	}
	return memprovider.NewClient(cfg)
}

func initTransports(
	cfg *config.AppConfig,
	companion *agent.Companion,
	turns *sqlite.TurnsRepo,
	threads *sqlite.ThreadsRepo,
) ([]srv.Service, error) {
	var services []srv.Service

	if cfg.EnableHTTP {
		services = append(services, httpapi.NewServer(cfg, companion, turns, threads))
	}

	if cfg.EnableCLI {
		repl, err := cli.NewReadLine(companion, cfg)
		if err != nil {
			return nil, err
		}
		services = append(services, repl)
	}

	return services, nil
}

func initEnv(ctx context.Context, runtimePath string) error {
	logger := log.FromCtx(ctx)
	envFile := filepath.Join(runtimePath, ".env")

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
		return err
	}

	logger.Debug().Str("path", envFile).Msg("loaded .env file")
	return nil
}
