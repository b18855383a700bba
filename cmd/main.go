package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/YelzhanWeb/coffeequeue/internal/adapter/kafka"
	"github.com/YelzhanWeb/coffeequeue/internal/adapter/logger"
	"github.com/YelzhanWeb/coffeequeue/internal/adapter/memory"
	"github.com/YelzhanWeb/coffeequeue/internal/adapter/postgres"
	"github.com/YelzhanWeb/coffeequeue/internal/adapter/rabbitmq"
	"github.com/YelzhanWeb/coffeequeue/internal/adapter/redis"
	"github.com/YelzhanWeb/coffeequeue/internal/app/barista"
	"github.com/YelzhanWeb/coffeequeue/internal/app/queue"
	"github.com/YelzhanWeb/coffeequeue/internal/app/tracking"
	"github.com/YelzhanWeb/coffeequeue/internal/config"
	"github.com/YelzhanWeb/coffeequeue/internal/interfaces"

	amqpAdapter "github.com/YelzhanWeb/coffeequeue/internal/adapter/amqp"
	httpAdapter "github.com/YelzhanWeb/coffeequeue/internal/adapter/http"
)

const modes = "queue-service, payment-consumer, reconciler, notification-subscriber, barista, retention, migrate, publish-payment"

type options struct {
	mode              string
	configPath        string
	port              int
	baristaName       string
	heartbeatInterval time.Duration
	orderID           int64
	once              bool
}

func main() {
	var opts options
	flag.StringVar(&opts.mode, "mode", "", "Service mode: "+modes)
	flag.StringVar(&opts.configPath, "config", "config.yaml", "Path to the config file")
	flag.IntVar(&opts.port, "port", 0, "HTTP port, overrides http.port")
	flag.StringVar(&opts.baristaName, "barista", "", "Barista name (for barista mode)")
	flag.DurationVar(&opts.heartbeatInterval, "heartbeat-interval", 30*time.Second, "Heartbeat interval (for barista mode)")
	flag.Int64Var(&opts.orderID, "order-id", 0, "Order id (for publish-payment mode)")
	flag.BoolVar(&opts.once, "once", false, "Run a single reconciliation pass and exit")
	flag.Parse()

	if opts.mode == "" {
		log.Fatal("--mode flag is required")
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if opts.port > 0 {
		cfg.HTTP.Port = opts.port
	}

	lgr := logger.New(opts.mode, cfg.Service.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch opts.mode {
	case "migrate":
		runMigrate(ctx, cfg, lgr)
	case "publish-payment":
		runPublishPayment(ctx, cfg, lgr, opts.orderID)
	case "notification-subscriber":
		runNotificationSubscriber(ctx, cfg, lgr)
	case "queue-service", "payment-consumer", "reconciler", "barista", "retention":
		d, err := connect(ctx, cfg, lgr)
		if err != nil {
			log.Fatalf("Failed to start: %v", err)
		}
		defer d.close()

		switch opts.mode {
		case "queue-service":
			runQueueService(ctx, cfg, d, lgr)
		case "payment-consumer":
			runPaymentConsumer(ctx, cfg, d, lgr)
		case "reconciler":
			runReconciler(ctx, cfg, d, lgr, opts.once)
		case "barista":
			runBarista(ctx, cfg, d, lgr, opts.baristaName, opts.heartbeatInterval)
		case "retention":
			runRetention(ctx, cfg, d, lgr)
		}
	default:
		log.Fatalf("Invalid mode: %s (expected one of: %s)", opts.mode, modes)
	}
}

// deps holds the adapters shared by the queue-facing modes.
type deps struct {
	store     interfaces.QueueStore
	preparers interfaces.PreparerRepository
	cache     interfaces.SummaryCache
	publisher interfaces.MessagePublisher
	mqConn    rabbitmq.Connection
	queue     *queue.Service
	closers   []func()
}

func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func connect(ctx context.Context, cfg *config.Config, lgr logger.Logger) (*deps, error) {
	d := &deps{}

	switch cfg.Database.Driver {
	case "memory":
		store := memory.NewStore()
		d.store = store
		d.preparers = memory.NewPreparerRepository()
		lgr.Warn("memory_store", "Using the in-memory store, state is lost on exit", "startup", nil)

		if cfg.Database.SeedFile == "" {
			lgr.Warn("memory_store_empty", "No database.seed_file: the memory store has no orders and every enqueue will fail", "startup", nil)
			break
		}
		n, err := memory.SeedFromFile(store, cfg.Database.SeedFile, time.Now())
		if err != nil {
			return nil, err
		}
		lgr.Info("memory_store_seeded", fmt.Sprintf("Loaded %d orders", n), "startup", map[string]interface{}{
			"file": cfg.Database.SeedFile,
		})
	default:
		db, err := postgres.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		d.closers = append(d.closers, db.Close)
		d.store = postgres.NewQueueStore(db)
		d.preparers = postgres.NewPreparerRepository(db)

		lgr.Info("db_connected", "Connected to PostgreSQL database", "startup", map[string]interface{}{
			"host": cfg.Database.Host,
			"db":   cfg.Database.Database,
		})
	}

	if cfg.Redis.Enabled {
		rdb, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			d.close()
			return nil, err
		}
		d.closers = append(d.closers, func() { rdb.Close() })
		d.cache = redis.NewSummaryCache(rdb, cfg.Redis.SummaryTTL)
		lgr.Info("redis_connected", "Connected to Redis", "startup", map[string]interface{}{"addr": cfg.Redis.Addr})
	}

	switch cfg.Events.Driver {
	case "rabbitmq":
		conn, err := connectRabbit(cfg, lgr)
		if err != nil {
			d.close()
			return nil, err
		}
		d.mqConn = conn
		d.closers = append(d.closers, func() { conn.Close() })
		d.publisher = rabbitmq.NewPublisher(conn)
	case "kafka":
		pub, err := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, lgr)
		if err != nil {
			d.close()
			return nil, err
		}
		d.closers = append(d.closers, func() { pub.Close() })
		d.publisher = pub
		lgr.Info("kafka_connected", "Kafka producer ready", "startup", map[string]interface{}{"topic": cfg.Kafka.Topic})
	}

	svc, err := queue.NewService(d.store, d.preparers, d.publisher, d.cache, lgr, queue.Options{
		Policy:             cfg.Queue.Policy(),
		MaxAttempts:        cfg.Queue.MaxAttempts,
		RetryBackoff:       cfg.Queue.RetryBackoff,
		ReorderAfterRepair: *cfg.Reconciler.ReorderAfterRepair,
	})
	if err != nil {
		d.close()
		return nil, fmt.Errorf("invalid preparation policy: %w", err)
	}
	d.queue = svc

	return d, nil
}

func connectRabbit(cfg *config.Config, lgr logger.Logger) (rabbitmq.Connection, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQ)
	if err != nil {
		return nil, err
	}
	lgr.Info("rabbitmq_connected", "Connected to RabbitMQ", "startup", map[string]interface{}{
		"host": cfg.RabbitMQ.Host,
	})
	return conn, nil
}

func runQueueService(ctx context.Context, cfg *config.Config, d *deps, lgr logger.Logger) {
	trackingService := tracking.NewService(d.queue, d.store, d.preparers, d.cache, lgr, tracking.Options{
		ReadyWindow:     cfg.Queue.ReadyWindow,
		PreparerTimeout: cfg.Queue.PreparerTimeout,
	})

	handler := httpAdapter.NewRouter(
		httpAdapter.NewQueueHandler(d.queue, lgr),
		httpAdapter.NewTrackingHandler(trackingService, lgr),
		lgr,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	lgr.Info("service_started", fmt.Sprintf("Queue Service started on port %d", cfg.HTTP.Port), "startup", map[string]interface{}{
		"port":   cfg.HTTP.Port,
		"policy": cfg.Queue.Policy(),
	})

	go func() {
		<-ctx.Done()
		lgr.Info("shutdown_initiated", "Shutting down Queue Service", "shutdown", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			lgr.Error("shutdown_error", "Error during shutdown", "shutdown", nil, err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		lgr.Error("server_error", "Server error", "runtime", nil, err)
	}
}

func runPaymentConsumer(ctx context.Context, cfg *config.Config, d *deps, lgr logger.Logger) {
	conn := d.mqConn
	if conn == nil {
		var err error
		if conn, err = connectRabbit(cfg, lgr); err != nil {
			log.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		defer conn.Close()
	}

	consumer := rabbitmq.NewConsumer(conn, cfg.RabbitMQ.Prefetch, lgr)
	handler := amqpAdapter.NewPaymentHandler(d.queue, lgr)

	lgr.Info("service_started", "Payment Consumer started", "startup", map[string]interface{}{
		"prefetch": cfg.RabbitMQ.Prefetch,
	})

	if err := consumer.ConsumePayments(ctx, handler.HandlePayment); err != nil && ctx.Err() == nil {
		lgr.Error("consumer_error", "Error consuming payments", "runtime", nil, err)
	}
	lgr.Info("shutdown_initiated", "Shutting down Payment Consumer", "shutdown", nil)
}

func runReconciler(ctx context.Context, cfg *config.Config, d *deps, lgr logger.Logger, once bool) {
	if once {
		report, err := d.queue.Reconcile(ctx)
		if err != nil {
			log.Fatalf("Reconciliation failed: %v", err)
		}
		lgr.Info("reconcile_finished", fmt.Sprintf("Applied %d corrections", report.Corrections()), "", map[string]interface{}{
			"positions_fixed": report.PositionsFixed,
			"has_issues":      report.Integrity.HasIssues,
		})
		return
	}

	lgr.Info("service_started", "Reconciler started", "startup", map[string]interface{}{
		"interval": cfg.Reconciler.Interval.String(),
	})
	d.queue.RunReconciler(ctx, cfg.Reconciler.Interval)
	lgr.Info("shutdown_initiated", "Shutting down Reconciler", "shutdown", nil)
}

func runBarista(ctx context.Context, cfg *config.Config, d *deps, lgr logger.Logger, name string, interval time.Duration) {
	station := barista.NewStation(d.preparers, lgr, name, interval)
	if err := station.Start(ctx, cfg.Queue.PreparerTimeout); err != nil {
		log.Fatalf("Failed to start barista station: %v", err)
	}

	<-ctx.Done()
	lgr.Info("graceful_shutdown", fmt.Sprintf("Barista %s signing off", name), "shutdown", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := station.Shutdown(shutdownCtx); err != nil {
		lgr.Error("shutdown_error", "Error during shutdown", "shutdown", nil, err)
	}
}

func runRetention(ctx context.Context, cfg *config.Config, d *deps, lgr logger.Logger) {
	if _, err := d.queue.PurgeTerminal(ctx, cfg.Queue.Retention); err != nil {
		log.Fatalf("Retention failed: %v", err)
	}
}

func runMigrate(ctx context.Context, cfg *config.Config, lgr logger.Logger) {
	if err := postgres.Migrate(ctx, cfg.Database.DSN()); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	lgr.Info("migrations_applied", "Database schema is up to date", "startup", map[string]interface{}{
		"db": cfg.Database.Database,
	})
}

func runPublishPayment(ctx context.Context, cfg *config.Config, lgr logger.Logger, orderID int64) {
	if orderID <= 0 {
		log.Fatal("--order-id is required for publish-payment mode")
	}

	conn, err := connectRabbit(cfg, lgr)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer conn.Close()

	msg := interfaces.PaymentSucceededMessage{
		OrderID:   orderID,
		PaymentID: uuid.NewString(),
		PaidAt:    time.Now(),
	}
	if err := rabbitmq.PublishPayment(ctx, conn, msg); err != nil {
		log.Fatalf("Failed to publish payment: %v", err)
	}
	lgr.Info("payment_published", fmt.Sprintf("Published payment for order %d", orderID), msg.PaymentID, nil)
}

func runNotificationSubscriber(ctx context.Context, cfg *config.Config, lgr logger.Logger) {
	var subscriber interfaces.NotificationSubscriber
	switch cfg.Events.Driver {
	case "kafka":
		subscriber = kafka.NewSubscriber(cfg.Kafka.Brokers, "coffeequeue-notifications", cfg.Kafka.Topic, lgr)
	default:
		conn, err := connectRabbit(cfg, lgr)
		if err != nil {
			log.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		defer conn.Close()
		subscriber = rabbitmq.NewConsumer(conn, 1, lgr)
	}

	handler := amqpAdapter.NewNotificationHandler(lgr)
	lgr.Info("service_started", "Notification Subscriber started", "startup", map[string]interface{}{
		"driver": cfg.Events.Driver,
	})

	if err := subscriber.ConsumeNotifications(ctx, handler.HandleNotification); err != nil && ctx.Err() == nil {
		lgr.Error("consumer_error", "Error consuming notifications", "runtime", nil, err)
	}
	lgr.Info("shutdown_initiated", "Shutting down Notification Subscriber", "shutdown", nil)
}
