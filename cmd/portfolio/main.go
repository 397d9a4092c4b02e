package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	assetdomain "github.com/dhet13/finnote/internal/asset/domain"
	assetmysql "github.com/dhet13/finnote/internal/asset/infrastructure/persistence/mysql"
	journalapp "github.com/dhet13/finnote/internal/journal/application"
	journaldomain "github.com/dhet13/finnote/internal/journal/domain"
	"github.com/dhet13/finnote/internal/journal/infrastructure/messaging"
	journalmysql "github.com/dhet13/finnote/internal/journal/infrastructure/persistence/mysql"
	journalhttp "github.com/dhet13/finnote/internal/journal/interfaces/http"
	mdapp "github.com/dhet13/finnote/internal/marketdata/application"
	mddomain "github.com/dhet13/finnote/internal/marketdata/domain"
	mdredis "github.com/dhet13/finnote/internal/marketdata/infrastructure/persistence/redis"
	"github.com/dhet13/finnote/internal/marketdata/infrastructure/yahoo"
	portfolioapp "github.com/dhet13/finnote/internal/portfolio/application"
	portfoliohttp "github.com/dhet13/finnote/internal/portfolio/interfaces/http"
	"github.com/dhet13/finnote/pkg/cache"
	"github.com/dhet13/finnote/pkg/config"
	"github.com/dhet13/finnote/pkg/db"
	"github.com/dhet13/finnote/pkg/logger"
	"github.com/dhet13/finnote/pkg/metrics"
	"github.com/dhet13/finnote/pkg/middleware"
	"github.com/dhet13/finnote/pkg/mq"
)

var configPath = flag.String("config", "configs/portfolio/config.toml", "config file path")

func main() {
	flag.Parse()
	ctx := context.Background()

	// 1. 配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 2. 日志
	if err := logger.Init(cfg.Logger); err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}
	logger.Info(ctx, "Service starting",
		"service", cfg.ServiceName, "environment", cfg.Environment)

	// 3. 指标
	m := metrics.New(cfg.ServiceName)
	if cfg.Metrics.Enabled {
		go m.ExposeHTTP(cfg.Metrics.Port, cfg.Metrics.Path)
	}

	// 4. 基础设施
	database, err := db.Init(db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to connect database", "error", err)
	}
	defer database.Close()

	// 自动建表仅用于开发环境
	if cfg.Environment == "dev" {
		if err := database.AutoMigrate(
			&journaldomain.Instrument{},
			&journaldomain.Journal{},
			&journaldomain.Trade{},
			&journaldomain.Property{},
			&journaldomain.Deal{},
			&assetdomain.Holding{},
			&assetdomain.Snapshot{},
		); err != nil {
			logger.Error(ctx, "Failed to migrate database", "error", err)
		}
	}

	redisCache, err := cache.New(cache.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxPoolSize:  cfg.Redis.MaxPoolSize,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		// 缓存不可用只降级不退出，行情直接打外部源
		logger.Warn(ctx, "Redis unavailable, quote caching disabled", "error", err)
		redisCache = nil
	}

	var publisher journaldomain.EventPublisher = messaging.NoopEventPublisher{}
	if cfg.Kafka.Enabled {
		producer, err := mq.NewProducer(mq.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			MaxRetries:   cfg.Kafka.MaxRetries,
			RetryBackoff: cfg.Kafka.RetryBackoff,
		})
		if err != nil {
			logger.Warn(ctx, "Kafka unavailable, event publishing disabled", "error", err)
		} else {
			defer producer.Close()
			publisher = messaging.NewKafkaEventPublisher(producer, cfg.Kafka.JournalTopic)
		}
	}

	// 5. 仓储
	txManager := journalmysql.NewTxManager(database)
	instrumentRepo := journalmysql.NewInstrumentRepository(database)
	journalRepo := journalmysql.NewJournalRepository(database)
	tradeRepo := journalmysql.NewTradeRepository(database)
	propertyRepo := journalmysql.NewPropertyRepository(database)
	dealRepo := journalmysql.NewDealRepository(database)
	holdingRepo := assetmysql.NewHoldingRepository(database)
	snapshotRepo := assetmysql.NewSnapshotRepository(database)

	// 6. 行情
	yahooClient := yahoo.New(time.Duration(cfg.MarketData.Timeout) * time.Second)
	var quoteCache mddomain.QuoteCache
	if redisCache != nil {
		quoteCache = mdredis.NewQuoteCache(redisCache,
			time.Duration(cfg.MarketData.QuoteTTL)*time.Second,
			time.Duration(cfg.MarketData.FxTTL)*time.Second)
	}
	priceService := mdapp.NewPriceService(quoteCache, yahooClient, instrumentRepo, m)

	fallbackRates := map[string]decimal.Decimal{}
	for code, rate := range cfg.Portfolio.FallbackFxRates {
		fallbackRates[code] = decimal.NewFromFloat(rate)
	}
	converter := mdapp.NewConverter(cfg.Portfolio.ReportingCurrency,
		quoteCache, yahooClient, fallbackRates, m)

	// 7. 应用服务
	journalService := journalapp.NewJournalService(
		txManager,
		instrumentRepo, journalRepo, tradeRepo,
		propertyRepo, dealRepo,
		holdingRepo, snapshotRepo,
		publisher, priceService, m,
	)
	calculator := portfolioapp.NewCalculator(holdingRepo, snapshotRepo, priceService, converter, m)

	// 8. 接口层
	gin.SetMode(gin.ReleaseMode)
	if cfg.Environment == "dev" {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(middleware.Recovery(), middleware.Logging(), middleware.Metrics(m))

	journalhttp.NewJournalHandler(journalService).RegisterRoutes(router)
	portfoliohttp.NewPortfolioHandler(calculator, journalService).RegisterRoutes(router)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	// 9. 启动与优雅关闭
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info(gctx, "HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
			logger.Info(gctx, "Shutdown signal received")
		case <-gctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error(ctx, "Server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info(ctx, "Server stopped")
}
