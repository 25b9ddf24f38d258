package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"collectible-admin-system/config"
	"collectible-admin-system/handlers"
	"collectible-admin-system/middleware"
	"collectible-admin-system/models"
	"collectible-admin-system/services"
	"collectible-admin-system/utils"
	"collectible-admin-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := utils.SetupLogger(cfg.LogLevel, cfg.LogPretty)

	table, err := config.LoadTierTable(cfg.TierTablePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load tier table")
	}
	tiers, err := services.NewTierClassifier(table)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid tier table")
	}
	calc, err := services.NewPriceCalculator(tiers, cfg.CurrencyCode, cfg.DisplayPlaces)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid currency settings")
	}

	db, err := utils.OpenDatabase(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	repo := services.NewGormLifecycleRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate lifecycle tables")
	}
	if err := db.AutoMigrate(&models.Item{}); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate items table")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sinks, closers := buildTelemetrySinks(ctx, cfg)
	sinks = append([]services.TelemetrySink{services.LogSink{Logger: logger}}, sinks...)
	telemetry := services.NewFanout(cfg.TelemetryTimeout, sinks...)

	ctrl := services.NewLifecycleController(repo, services.LifecycleDefaults{
		PhaseDuration:     time.Duration(cfg.PhaseDurationDays) * 24 * time.Hour,
		BasePricePerPoint: cfg.BasePricePerPoint,
	}, services.WithTelemetry(telemetry))

	if cfg.AutoInitialize {
		pos, err := ctrl.Initialize(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize lifecycle")
		}
		log.Info().Int("series", pos.SeriesNumber).Int("phase", pos.PhaseNumber).
			Int64("version", pos.Version).Bool("exhausted", pos.Exhausted).Msg("✅ lifecycle ready")
	}

	pricing := services.NewPricingService(db, repo, calc, cfg.BasePricePerPoint)

	app := fiber.New(fiber.Config{
		AppName:   "collectible-admin",
		BodyLimit: 1 * 1024 * 1024,
	})
	app.Use(middleware.RequestLogger())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,PUT,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))
	// 🔐❗ Gateway token on everything except health, metrics and the token-in-query stream
	app.Use(middleware.GatewayAuthMiddleware(cfg.AdminToken, handlers.PublicPaths...))

	handlers.SetupSystemRoutes(app)
	handlers.SetupLifecycleRoutes(app, ctrl, handlers.StreamConfig{
		Token:      cfg.AdminToken,
		PollPeriod: cfg.StreamPollPeriod,
	})
	handlers.SetupPricingRoutes(app, pricing)

	var advancer *services.AutoAdvancer
	if cfg.AutoAdvance {
		advancer = services.NewAutoAdvancer(ctrl, cfg.AutoAdvanceInterval)
		if err := advancer.Start(); err != nil {
			log.Fatal().Err(err).Msg("failed to start auto-advance scheduler")
		}
	}

	if cfg.InventorySyncURL != "" {
		worker := workers.NewInventorySyncWorker(db, cfg.InventorySyncURL, cfg.InventorySyncPath,
			cfg.InventorySyncToken, cfg.InventorySyncInterval).
			OnNewItems(func(ctx context.Context, n int64) error {
				_, err := ctrl.RegisterInventory(services.WithActor(ctx, "inventory-sync"), n)
				return err
			})
		worker.Start(ctx)
	} else {
		log.Warn().Msg("⚠️  INVENTORY_SYNC_URL not set, item mirror disabled")
	}

	go func() {
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			log.Error().Err(err).Msg("server error")
		}
	}()
	log.Info().Str("addr", cfg.HTTPAddr).Strs("origins", cfg.AllowedOrigins).Msg("✅ server running")

	<-ctx.Done()
	log.Info().Msg("shutting down server...")

	if advancer != nil {
		if err := advancer.Stop(); err != nil {
			log.Warn().Err(err).Msg("scheduler shutdown failed")
		}
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Warn().Err(err).Msg("http shutdown failed")
	}
	telemetry.Wait()
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Warn().Err(err).Msg("telemetry sink close failed")
		}
	}
}

// buildTelemetrySinks wires every optional sink that is configured.
func buildTelemetrySinks(ctx context.Context, cfg config.AppConfig) ([]services.TelemetrySink, []func() error) {
	var sinks []services.TelemetrySink
	var closers []func() error

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("⚠️  redis unreachable, events will be retried per emit")
		}
		cancel()
		sinks = append(sinks, services.NewRedisStreamSink(rdb, cfg.RedisStream))
		closers = append(closers, rdb.Close)
	}

	if len(cfg.KafkaBrokers) > 0 {
		w := services.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
		sinks = append(sinks, services.NewKafkaSink(w))
		closers = append(closers, w.Close)
	}

	if cfg.R2.Enabled() {
		store, err := utils.NewR2Store(ctx, cfg.R2)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize R2 client")
		}
		sinks = append(sinks, services.NewArchiveSink(store, "lifecycle/series-reports"))
	}

	names := make([]string, 0, len(sinks))
	for _, s := range sinks {
		names = append(names, s.Name())
	}
	log.Info().Strs("sinks", names).Msg("telemetry sinks configured")
	return sinks, closers
}
