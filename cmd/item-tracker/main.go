package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Application
	"github.com/dreschagin/item-tracker/internal/application/port"
	"github.com/dreschagin/item-tracker/internal/application/usecase"

	// Domain
	"github.com/dreschagin/item-tracker/internal/domain/repository"

	// Infrastructure
	rediscache "github.com/dreschagin/item-tracker/internal/infrastructure/cache/redis"
	"github.com/dreschagin/item-tracker/internal/infrastructure/collector"
	natsInfra "github.com/dreschagin/item-tracker/internal/infrastructure/messaging/nats"
	wsInfra "github.com/dreschagin/item-tracker/internal/infrastructure/notification/websocket"
	"github.com/dreschagin/item-tracker/internal/infrastructure/observability/cloudwatch"
	"github.com/dreschagin/item-tracker/internal/infrastructure/observability/logstash"
	"github.com/dreschagin/item-tracker/internal/infrastructure/persistence/mongodb"
	"github.com/dreschagin/item-tracker/internal/infrastructure/persistence/postgres"

	// Interfaces
	httpInterface "github.com/dreschagin/item-tracker/internal/interfaces/http"
	"github.com/dreschagin/item-tracker/internal/interfaces/http/handler"
	"github.com/dreschagin/item-tracker/internal/interfaces/http/middleware"

	// Shared
	"github.com/dreschagin/item-tracker/pkg/config"
	"github.com/dreschagin/item-tracker/pkg/logging"

	_ "github.com/lib/pq"
)

func main() {
	// 1. Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Собираем sinks для logging pipeline

	// WebSocket hub работает как sink: каждая запись уходит live-tail клиентам
	hub := wsInfra.NewHub()
	go hub.Run()

	sinks := make([]logging.Sink, 0, 3)

	if cfg.Logstash.Enabled {
		logstashSink, initErr := logstash.NewSink(logstash.Config{
			URL:     cfg.Logstash.URL,
			Timeout: cfg.Logstash.Timeout,
		})
		if initErr != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize collector sink: %v\n", initErr)
			os.Exit(1)
		}
		sinks = append(sinks, logstashSink)
	}

	var cloudwatchSink *cloudwatch.LogsSink
	if cfg.CloudWatch.LogsEnabled {
		cloudwatchSink, err = cloudwatch.NewLogsSink(context.Background(), cloudwatch.LogsSinkConfig{
			LogGroupName:    cfg.CloudWatch.LogGroupName,
			LogStreamName:   cfg.CloudWatch.LogStreamName,
			Region:          cfg.CloudWatch.Region,
			Endpoint:        cfg.CloudWatch.Endpoint,
			AccessKeyID:     cfg.CloudWatch.AccessKeyID,
			SecretAccessKey: cfg.CloudWatch.SecretAccessKey,
			BufferSize:      cfg.CloudWatch.BufferSize,
			FlushInterval:   cfg.CloudWatch.FlushInterval,
			AutoCreate:      true,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize CloudWatch logs sink: %v\n", err)
			os.Exit(1)
		}
		sinks = append(sinks, cloudwatchSink)
	}

	sinks = append(sinks, hub)

	// 3. Инициализируем Emitter — единственный вход logging pipeline
	emitter := logging.NewEmitter(cfg.Service.Name, os.Stdout, sinks...)
	emitter.Emit("server_starting", map[string]any{"storage": string(cfg.Storage.Driver)})

	// 4. Подключаемся к хранилищу
	var itemRepository repository.ItemRepository

	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		db, openErr := sql.Open("postgres", cfg.Postgres.DSN())
		if openErr != nil {
			emitter.Emit("postgres_connection_error", map[string]any{
				"level": logging.LevelError,
				"error": openErr.Error(),
			})
			os.Exit(1)
		}
		defer db.Close()

		db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)

		if pingErr := db.Ping(); pingErr != nil {
			emitter.Emit("postgres_connection_error", map[string]any{
				"level": logging.LevelError,
				"error": pingErr.Error(),
			})
			os.Exit(1)
		}

		emitter.Emit("postgres_connected", nil)
		itemRepository = postgres.NewPostgresItemRepository(db)

	default:
		client, connErr := mongodb.Connect(context.Background(), cfg.Mongo.URI, cfg.Mongo.ConnectTimeout)
		if connErr != nil {
			emitter.Emit("mongodb_connection_error", map[string]any{
				"level": logging.LevelError,
				"error": connErr.Error(),
			})
			os.Exit(1)
		}
		defer func() {
			_ = client.Disconnect(context.Background())
		}()

		emitter.Emit("mongodb_connected", map[string]any{"uri": cfg.Mongo.MaskedURI()})
		itemRepository = mongodb.NewMongoItemRepository(
			client.Database(cfg.Mongo.Database),
			cfg.Mongo.Collection,
		)
	}

	// 5. Опциональная инфраструктура

	var cache port.Cache
	if cfg.Redis.Enabled {
		redisCache, initErr := rediscache.NewRedisCache(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.TTL,
		)
		if initErr != nil {
			emitter.Emit("redis_connection_error", map[string]any{
				"level": logging.LevelWarn,
				"error": initErr.Error(),
			})
		} else {
			cache = redisCache
			defer cache.Close()
			emitter.Emit("redis_connected", nil)
		}
	}

	var eventPublisher port.EventPublisher
	if cfg.NATS.Enabled {
		publisher, initErr := natsInfra.NewNATSPublisher(cfg.NATS.URL, emitter)
		if initErr != nil {
			emitter.Emit("nats_connection_error", map[string]any{
				"level": logging.LevelWarn,
				"error": initErr.Error(),
			})
		} else {
			eventPublisher = publisher
			defer eventPublisher.Close()
			emitter.Emit("nats_connected", map[string]any{"url": cfg.NATS.URL})
		}
	}

	var rateLimiter *middleware.IPRateLimiter
	if cfg.RateLimit.Enabled {
		rateLimiter = middleware.NewIPRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}

	// 6. Use cases и handlers

	listItemsUC := usecase.NewListItemsUseCase(itemRepository, cache, emitter)
	createItemUC := usecase.NewCreateItemUseCase(itemRepository, cache, eventPublisher, emitter)

	itemsHandler := handler.NewItemsAPIHandler(listItemsUC, createItemUC, rateLimiter)
	clientLogHandler := handler.NewClientLogHandler(emitter)
	diagnosticsHandler := handler.NewDiagnosticsHandler(emitter)
	logStreamHandler := handler.NewLogStreamHandler(hub, cfg.Security.AllowedOrigins)

	router := httpInterface.NewRouter(
		itemsHandler,
		clientLogHandler,
		diagnosticsHandler,
		logStreamHandler,
		emitter,
	)

	// 7. Фоновые процессы

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Stats.Enabled {
		statsCollector := collector.NewSystemStatsCollector()

		go func() {
			ticker := time.NewTicker(cfg.Stats.Interval)
			defer ticker.Stop()

			for {
				select {
				case <-ticker.C:
					fields, collectErr := statsCollector.Collect(ctx)
					if collectErr != nil {
						continue
					}
					emitter.Emit("system_stats", fields)
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	// 8. Настраиваем HTTP сервер

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		emitter.Emit("server_started", map[string]any{"port": cfg.Server.Port})

		if serveErr := server.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			emitter.Emit("server_error", map[string]any{
				"level": logging.LevelError,
				"error": serveErr.Error(),
			})
			os.Exit(1)
		}
	}()

	// 9. Graceful shutdown

	<-sigChan
	emitter.Emit("server_stopping", nil)

	// Останавливаем фоновые процессы
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		emitter.Emit("server_shutdown_error", map[string]any{
			"level": logging.LevelError,
			"error": err.Error(),
		})
	}

	// Буфер CloudWatch доезжает до конца: локальный stdout уже все видел,
	// а записи в буфере иначе потеряются
	if cloudwatchSink != nil {
		if err := cloudwatchSink.Close(shutdownCtx); err != nil {
			emitter.Emit("cloudwatch_flush_error", map[string]any{
				"level": logging.LevelWarn,
				"error": err.Error(),
			})
		}
	}

	emitter.Emit("server_stopped", nil)
}
