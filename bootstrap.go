package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirphl/viewiq/app/handlers"
	"github.com/amirphl/viewiq/app/middleware"
	"github.com/amirphl/viewiq/app/router"
	"github.com/amirphl/viewiq/app/services"
	businessflow "github.com/amirphl/viewiq/business_flow"
	"github.com/amirphl/viewiq/business_flow/taxonomy"
	"github.com/amirphl/viewiq/config"
	"github.com/amirphl/viewiq/repository"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// core holds the dependencies shared by the API and the worker
type core struct {
	cfg     *config.ProductionConfig
	db      *gorm.DB
	sqlDB   *sql.DB
	redis   *redis.Client
	index   services.SearchIndex
	storage services.ObjectStorage
	queue   *services.AMQPQueue

	notifier   services.NotificationService
	userRepo   repository.UserRepository
	exportFlow businessflow.ExportFlow
}

// Application is the fully wired HTTP API
type Application struct {
	*core
	router    *router.FiberRouter
	stopFuncs []func()
}

// Close releases the broker, redis and database connections
func (c *core) Close() {
	if c.queue != nil {
		if err := c.queue.Close(); err != nil {
			slog.Warn("failed to close queue", "error", err)
		}
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			slog.Warn("failed to close redis", "error", err)
		}
	}
	if c.sqlDB != nil {
		if err := c.sqlDB.Close(); err != nil {
			slog.Warn("failed to close database", "error", err)
		}
	}
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, *sql.DB, error) {
	level := gormlogger.Warn
	if !cfg.SlowQueryLog {
		level = gormlogger.Silent
	}
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.NewSlogLogger(slog.Default(), gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("database connection established",
		"max_open_conns", cfg.MaxOpenConns, "max_idle_conns", cfg.MaxIdleConns)

	return db, sqlDB, nil
}

// openMigrationDB opens a plain database/sql handle for goose
func openMigrationDB(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// startCacheHealthMonitor periodically pings redis; the returned function stops it
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(monitorCtx, 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					slog.Warn("redis healthcheck failed", "error", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeCore connects to every backing service used by both processes
func initializeCore(ctx context.Context, cfg *config.ProductionConfig) (*core, error) {
	c := &core{cfg: cfg}

	var err error
	c.db, c.sqlDB, err = initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	if cfg.Cache.Enabled {
		c.redis, err = services.NewRedisClient(ctx, cfg.Cache)
		if err != nil {
			c.Close()
			return nil, err
		}
		slog.Info("redis connection established", "db", cfg.Cache.RedisDB)
	}

	c.index, err = services.NewElasticSearchIndex(cfg.Search)
	if err != nil {
		c.Close()
		return nil, err
	}

	storage, err := services.NewS3Storage(ctx, cfg.Storage)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.storage = storage

	c.queue, err = services.NewAMQPQueue(cfg.Queue)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.notifier = services.NewNotificationService(services.NewEmailProvider(cfg.Email), cfg.Email)
	c.userRepo = repository.NewUserRepository(c.db)

	c.exportFlow = businessflow.NewExportFlow(
		repository.NewCustomSegmentRepository(c.db),
		repository.NewCustomSegmentFileUploadRepository(c.db),
		repository.NewOpportunityTargetingReportRepository(c.db),
		repository.NewTargetingStatisticRepository(c.db),
		c.userRepo,
		c.index,
		c.storage,
		c.notifier,
		businessflow.ExportOptions{
			VideoIndex:   cfg.Search.VideoIndex,
			ChannelIndex: cfg.Search.ChannelIndex,
			ScanSize:     cfg.Search.PageSize,
		},
	)

	return c, nil
}

// initializeApplication wires repositories, flows and handlers into the router
func initializeApplication(ctx context.Context, cfg *config.ProductionConfig) (*Application, error) {
	c, err := initializeCore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// Redis backed stores fall back to process-local ones when the cache is disabled
	var (
		cache       services.Cache
		revocations services.RevocationStore
		challenges  services.ChallengeStore
	)
	if c.redis != nil {
		cache = services.NewRedisCache(c.redis, cfg.Cache.RedisPrefix)
		revocations = services.NewRedisRevocationStore(c.redis, cfg.Cache.RedisPrefix)
		challenges = services.NewRedisChallengeStore(c.redis, cfg.Cache.RedisPrefix)
	} else {
		revocations = services.NewMemoryRevocationStore()
	}

	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.RefreshTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.UseRSAKeys,
		cfg.JWT.PrivateKey,
		cfg.JWT.PublicKey,
		cfg.JWT.SecretKey,
		revocations,
	)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	slog.Info("token service initialized", "issuer", cfg.JWT.Issuer, "audience", cfg.JWT.Audience)

	captchaSvc, err := services.NewCaptchaServiceRotate(challenges, cfg.Captcha.TTL, cfg.Captcha.Padding, cfg.Captcha.ImageSize)
	if err != nil {
		c.Close()
		return nil, err
	}

	tax, err := taxonomy.Default()
	if err != nil {
		c.Close()
		return nil, err
	}

	// Repositories
	tx := repository.NewTxRunner(c.db)
	roleRepo := repository.NewRoleRepository(c.db)
	deviceRepo := repository.NewDeviceTokenRepository(c.db)
	categoryRepo := repository.NewBadWordCategoryRepository(c.db)
	wordRepo := repository.NewBadWordRepository(c.db)
	channelRepo := repository.NewBadChannelRepository(c.db)
	videoRepo := repository.NewBadVideoRepository(c.db)
	segmentRepo := repository.NewCustomSegmentRepository(c.db)
	uploadRepo := repository.NewCustomSegmentFileUploadRepository(c.db)
	opportunityRepo := repository.NewOpportunityRepository(c.db)
	reportRepo := repository.NewOpportunityTargetingReportRepository(c.db)
	planRepo := repository.NewPlanRepository(c.db)
	subRepo := repository.NewSubscriptionRepository(c.db)
	customerRepo := repository.NewCustomerRepository(c.db)
	eventRepo := repository.NewWebhookEventRepository(c.db)
	domainRepo := repository.NewDomainConfigRepository(c.db)
	otpRepo := repository.NewOTPVerificationRepository(c.db)
	userActionRepo := repository.NewUserActionRepository(c.db)

	// Flows
	authFlow := businessflow.NewAuthFlow(c.userRepo, roleRepo, otpRepo, tokenService, captchaSvc, c.notifier, tx, businessflow.AuthOptions{
		CaptchaEnabled: cfg.Captcha.Enabled,
		AccessTokenTTL: cfg.JWT.AccessTokenTTL,
		BcryptCost:     cfg.Security.BcryptCost,
		MFAEnabled:     cfg.Security.MFAEnabled,
		OTPTTL:         cfg.Security.OTPTTL,
		OTPMaxAttempts: cfg.Security.OTPMaxAttempts,
	})
	profileFlow := businessflow.NewProfileFlow(c.userRepo, deviceRepo)
	adminUserFlow := businessflow.NewAdminUserFlow(c.userRepo, roleRepo, planRepo, authFlow, tx)
	roleFlow := businessflow.NewRoleFlow(roleRepo)
	userActionFlow := businessflow.NewUserActionFlow(userActionRepo)
	dashboardFlow := businessflow.NewDashboardFlow(c.userRepo, segmentRepo, uploadRepo, reportRepo, subRepo)
	badWordFlow := businessflow.NewBadWordFlow(categoryRepo, wordRepo)
	blocklistFlow := businessflow.NewBlocklistFlow(channelRepo, videoRepo, categoryRepo)
	brandSafetyFlow := businessflow.NewBrandSafetyFlow(c.index, categoryRepo, wordRepo, cfg.Search.VideoIndex, cfg.Search.ChannelIndex, cfg.Search.PageSize)
	segmentFlow := businessflow.NewSegmentFlow(segmentRepo, uploadRepo, c.storage, c.queue, tax, tx, cfg.Scheduler.StaleAfter)
	adsAnalyzerFlow := businessflow.NewAdsAnalyzerFlow(opportunityRepo, reportRepo, c.storage, c.queue, cfg.Scheduler.StaleAfter)
	paymentFlow := businessflow.NewPaymentFlow(services.NewStripeGateway(cfg.Stripe), c.userRepo, customerRepo, planRepo, subRepo, eventRepo, c.notifier)
	domainConfigFlow := businessflow.NewDomainConfigFlow(domainRepo, cache, cfg.Cache.DomainConfigTTL)

	checks := map[string]handlers.HealthCheck{
		"database": c.sqlDB.PingContext,
	}
	if c.redis != nil {
		checks["redis"] = func(ctx context.Context) error { return c.redis.Ping(ctx).Err() }
	}

	h := router.Handlers{
		Auth:         handlers.NewAuthHandler(authFlow),
		Profile:      handlers.NewProfileHandler(profileFlow),
		Admin:        handlers.NewAdminHandler(adminUserFlow, roleFlow, dashboardFlow),
		UserAction:   handlers.NewUserActionHandler(userActionFlow),
		BrandSafety:  handlers.NewBrandSafetyHandler(badWordFlow, blocklistFlow, brandSafetyFlow),
		Segment:      handlers.NewSegmentHandler(segmentFlow),
		AdsAnalyzer:  handlers.NewAdsAnalyzerHandler(adsAnalyzerFlow),
		Payment:      handlers.NewPaymentHandler(paymentFlow),
		DomainConfig: handlers.NewDomainConfigHandler(domainConfigFlow),
		Health:       handlers.NewHealthHandler(cfg.Deployment.Version, checks),
	}

	authMiddleware := middleware.NewAuthMiddleware(tokenService, c.userRepo)

	return &Application{
		core:   c,
		router: router.NewFiberRouter(cfg, h, authMiddleware),
	}, nil
}

// ensureSuperuser promotes the configured admin account once it has signed up
func ensureSuperuser(ctx context.Context, userRepo repository.UserRepository, email string) error {
	if email == "" {
		return nil
	}
	user, err := userRepo.ByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to look up admin %s: %w", email, err)
	}
	if user == nil {
		slog.Warn("admin account has not signed up yet", "email", email)
		return nil
	}
	if user.IsSuperuser && user.IsActive {
		return nil
	}
	user.IsSuperuser = true
	user.IsActive = true
	if err := userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to promote admin %s: %w", email, err)
	}
	slog.Info("promoted admin account to superuser", "email", email)
	return nil
}
