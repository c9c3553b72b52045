package appcontext

import (
	"context"
	"errors"
	"fmt"

	"github.com/RoyceAzure/lab/storefront/internal/api/handler"
	"github.com/RoyceAzure/lab/storefront/internal/api/router"
	"github.com/RoyceAzure/lab/storefront/internal/config"
	"github.com/RoyceAzure/lab/storefront/internal/logger"
	"github.com/RoyceAzure/lab/storefront/internal/infra/producer"
	"github.com/RoyceAzure/lab/storefront/internal/infra/ratelimit"
	"github.com/RoyceAzure/lab/storefront/internal/infra/redis_client"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/db"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/redis_repo"
	"github.com/RoyceAzure/lab/storefront/internal/metrics"
	"github.com/RoyceAzure/lab/storefront/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type ApplicationContext struct {
	Cf     *config.Config
	Logger zerolog.Logger

	DbConn      *gorm.DB
	DbDao       *db.DbDao
	Store       *db.PgStore
	RedisClient *redis.Client
	Producer    producer.Producer
	Metrics     *metrics.ServerMetrics
	Limiter     ratelimit.Limiter

	CheckoutService   service.ICheckoutService
	OrderQueryService service.IOrderQueryService
	OutboxRelay       *service.OutboxRelay

	Router *chi.Mux
}

func NewApplicationContext(ctx context.Context, cf *config.Config, logger zerolog.Logger) (*ApplicationContext, error) {
	app := ApplicationContext{
		Cf:     cf,
		Logger: logger,
	}
	if err := app.Init(ctx); err != nil {
		// 已建立的連線要收掉
		_ = app.Shutdown(context.Background())
		return nil, err
	}
	return &app, nil
}

func (app *ApplicationContext) Init(ctx context.Context) error {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"database connection", app.setUpDbConn},
		{"database migration", app.setUpMigration},
		{"store", app.setUpStore},
		{"seed data", app.setUpSeed},
		{"redis", app.setUpRedis},
		{"kafka producer", app.setUpProducer},
		{"metrics", app.setUpMetrics},
		{"rate limiter", app.setUpLimiter},
		{"services", app.setUpServices},
		{"router", app.setUpRouter},
		{"config watcher", app.setUpConfigWatcher},
	}

	for _, step := range steps {
		app.Logger.Info().Str("step", step.name).Msg("start setup")
		if err := step.fn(ctx); err != nil {
			return fmt.Errorf("setup %s: %w", step.name, err)
		}
		app.Logger.Info().Str("step", step.name).Msg("finish setup")
	}
	return nil
}

func (app *ApplicationContext) setUpDbConn(ctx context.Context) error {
	opts := []db.ConnOption{
		db.WithMaxOpenConns(app.Cf.DbMaxOpenConns),
		db.WithMaxIdleConns(app.Cf.DbMaxIdleConns),
	}
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		opts = append(opts, db.WithSQLLogging())
	}

	conn, err := db.GetDbConn(app.Cf.DbName, app.Cf.DbHost, app.Cf.DbPort, app.Cf.DbUser, app.Cf.DbPas, opts...)
	if err != nil {
		return err
	}
	app.DbConn = conn
	app.DbDao = db.NewDbDao(conn)
	return nil
}

func (app *ApplicationContext) setUpMigration(ctx context.Context) error {
	return app.DbDao.InitMigrate(db.MigrationURL(app.Cf.DbName, app.Cf.DbHost, app.Cf.DbPort, app.Cf.DbUser, app.Cf.DbPas))
}

func (app *ApplicationContext) setUpStore(ctx context.Context) error {
	store := db.NewPgStore(app.DbDao, db.TxTimeouts{
		LockTimeout:      app.Cf.LockTimeout(),
		StatementTimeout: app.Cf.StatementTimeout(),
	})
	if err := store.Ping(ctx); err != nil {
		return err
	}
	app.Store = store
	return nil
}

// SEED_FILE 未設定時略過
func (app *ApplicationContext) setUpSeed(ctx context.Context) error {
	if app.Cf.SeedFile == "" {
		return nil
	}

	seedCf, err := config.LoadSeedConfig(app.Cf.SeedFile)
	if err != nil {
		return err
	}
	products, err := seedCf.ProductModels()
	if err != nil {
		return err
	}
	discounts, err := seedCf.DiscountModels()
	if err != nil {
		return err
	}

	res, err := app.Store.Seed(ctx, products, discounts)
	if err != nil {
		return err
	}
	app.Logger.Info().Int("products", res.Products).Int("discounts", res.Discounts).Msg("seed data applied")
	return nil
}

// redis 為選配，未設定時 idempotency 只靠資料庫唯一索引
func (app *ApplicationContext) setUpRedis(ctx context.Context) error {
	if app.Cf.RedisAddr == "" {
		app.Logger.Warn().Msg("REDIS_ADDR not set, idempotency cache and shared rate limiting disabled")
		return nil
	}

	client := redis_client.GetRedisClient(app.Cf.RedisAddr,
		redis_client.WithPassword(app.Cf.RedisPassword),
		redis_client.WithDB(app.Cf.RedisDB),
	)
	if err := redis_client.Ping(ctx, client); err != nil {
		return err
	}
	app.RedisClient = client
	return nil
}

// kafka 未設定時不啟動 outbox relay，事件留在 outbox 表
func (app *ApplicationContext) setUpProducer(ctx context.Context) error {
	brokers := app.Cf.Brokers()
	if len(brokers) == 0 {
		app.Logger.Warn().Msg("KAFKA_BROKERS not set, outbox relay disabled")
		return nil
	}

	p, err := producer.New(producer.DefaultConfig(brokers...), app.Logger.With().Str("component", "producer").Logger())
	if err != nil {
		return err
	}
	app.Producer = p
	return nil
}

func (app *ApplicationContext) setUpMetrics(ctx context.Context) error {
	app.Metrics = metrics.NewServerMetrics()
	return nil
}

func (app *ApplicationContext) setUpLimiter(ctx context.Context) error {
	if !app.Cf.RateLimitEnabled() {
		return nil
	}

	cfg := ratelimit.LimiterConfig{
		Capacity: app.Cf.RateLimitCapacity,
		RatePS:   app.Cf.RateLimitRatePS,
	}
	if app.RedisClient != nil {
		app.Limiter = ratelimit.NewRedisTokenBucket(app.RedisClient, "storefront:ratelimit:checkout", cfg)
	} else {
		app.Limiter = ratelimit.NewLocalLimiter(cfg)
	}
	return nil
}

func (app *ApplicationContext) setUpServices(ctx context.Context) error {
	topic := app.Cf.KafkaOrderTopic

	opts := []service.CheckoutOption{service.WithCheckoutRecorder(app.Metrics)}
	if app.RedisClient != nil {
		opts = append(opts, service.WithIdempotencyCache(redis_repo.NewIdempotencyRepo(app.RedisClient, app.Cf.IdempotencyTTL())))
	}

	app.CheckoutService = service.NewCheckoutService(app.Store, topic,
		app.Logger.With().Str("component", "checkout").Logger(), opts...)
	app.OrderQueryService = service.NewOrderQueryService(app.Store, service.OwnerOrAdmin{}, topic,
		app.Logger.With().Str("component", "orders").Logger())

	if app.Producer != nil {
		app.OutboxRelay = service.NewOutboxRelay(app.Store, app.Producer, app.Cf.OutboxPollInterval(), app.Cf.OutboxBatchSize,
			app.Logger.With().Str("component", "outbox_relay").Logger())
	}
	return nil
}

func (app *ApplicationContext) setUpRouter(ctx context.Context) error {
	handlers := router.Handlers{
		OrderHandler:    handler.NewOrderHandler(app.CheckoutService, app.OrderQueryService, app.Logger),
		DiscountHandler: handler.NewDiscountHandler(app.CheckoutService, app.Logger),
		HealthHandler:   handler.NewHealthHandler(app.Store),
	}
	app.Router = router.SetupRouter(handlers, app.Limiter, app.Metrics, app.Logger)
	router.PrintRoutes(app.Router, app.Logger)
	return nil
}

func (app *ApplicationContext) setUpConfigWatcher(ctx context.Context) error {
	config.OnChange(app.ApplyConfig)
	return nil
}

// ApplyConfig 套用可在執行期間調整的設定：log 等級與限流參數
// 連線、topic 等其餘設定需重新啟動
func (app *ApplicationContext) ApplyConfig(cf *config.Config) {
	logger.SetLevel(cf.LogLevel)

	reconfigurable, ok := app.Limiter.(ratelimit.Reconfigurable)
	switch {
	case !ok:
		if cf.RateLimitEnabled() {
			app.Logger.Warn().Msg("rate limiting was disabled at startup, restart to enable it")
		}
	case !cf.RateLimitEnabled():
		app.Logger.Warn().Msg("rate limiting cannot be disabled at runtime, keeping current settings")
	default:
		reconfigurable.Reconfigure(ratelimit.LimiterConfig{
			Capacity: cf.RateLimitCapacity,
			RatePS:   cf.RateLimitRatePS,
		})
	}
	app.Logger.Info().
		Str("log_level", cf.LogLevel).
		Int("rate_limit_capacity", cf.RateLimitCapacity).
		Int("rate_limit_rate_ps", cf.RateLimitRatePS).
		Msg("config reloaded")
}

// Shutdown 依建立的相反順序關閉外部連線
func (app *ApplicationContext) Shutdown(ctx context.Context) error {
	app.Logger.Info().Msg("start application shutdown")

	done := make(chan error, 1)
	go func() {
		var errs []error
		if app.Producer != nil {
			if err := app.Producer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close producer: %w", err))
			}
		}
		if app.RedisClient != nil {
			if err := redis_client.CloseAll(); err != nil {
				errs = append(errs, fmt.Errorf("close redis: %w", err))
			}
		}
		if app.DbConn != nil {
			if sqlDB, err := app.DbConn.DB(); err == nil {
				if err := sqlDB.Close(); err != nil {
					errs = append(errs, fmt.Errorf("close database: %w", err))
				}
			}
		}
		done <- errors.Join(errs...)
	}()

	select {
	case err := <-done:
		if err != nil {
			app.Logger.Error().Err(err).Msg("application shutdown with errors")
			return err
		}
		app.Logger.Info().Msg("application shutdown completed")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
