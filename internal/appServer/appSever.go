package appServer

import (
	"context"
	"crypto/tls"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ds124wfegd/task-reminder/config"
	repository "github.com/ds124wfegd/task-reminder/internal/database/postgres"
	ledgerRedis "github.com/ds124wfegd/task-reminder/internal/database/redis"
	"github.com/ds124wfegd/task-reminder/internal/ledger"
	"github.com/ds124wfegd/task-reminder/internal/pkg/kafka"
	"github.com/ds124wfegd/task-reminder/internal/pkg/rabbitMQ"
	"github.com/ds124wfegd/task-reminder/internal/service"
	"github.com/ds124wfegd/task-reminder/internal/transport"
	"github.com/ds124wfegd/task-reminder/internal/worker"
	"github.com/ds124wfegd/task-reminder/pkg/postgres"
	"github.com/ds124wfegd/task-reminder/pkg/redis"
	"github.com/ds124wfegd/task-reminder/pkg/whatsapp"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Server struct {
	httpServer *http.Server
}

func (s *Server) Run(cfg *config.Config, handler http.Handler) error {
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		MaxHeaderBytes:    1 << 20,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       cfg.Server.Idle_timeout,
		ReadHeaderTimeout: 3 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12}, // ban on outdate TLS certificate
		ErrorLog:          log.New(os.Stderr, "SERVER ERROR: ", log.LstdFlags),
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func NewServer(cfg *config.Config) {

	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)
	level, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := postgres.NewPostgresDB(&cfg.Database)
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Run database migrations
	if err := postgres.RunMigrations(db); err != nil {
		logrus.Fatalf("Failed to run migrations: %v", err)
	}

	checks := transport.HealthChecks{"postgres": db.Ping}

	// Initialize repositories
	taskRepo := repository.NewTaskRepository(db)
	userRepo := repository.NewUserRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	// Dedup ledger: redis when enabled, in-process otherwise
	var reminderLedger service.Ledger = ledger.NewMemory()
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			logrus.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		checks["redis"] = func() error { return redisClient.Ping(ctx).Err() }

		reminderLedger = ledgerRedis.NewLedgerRepository(redisClient, cfg.Redis.Prefix, cfg.Reminder.LedgerRetention)
		logrus.Info("Redis reminder ledger initialized")
	} else {
		logrus.Warn("Redis disabled, reminder ledger is kept in memory and lost on restart")
	}

	// Task change feed
	var feed service.ChangeFeed
	switch cfg.Reminder.FeedSource {
	case "kafka":
		feed = kafka.NewTaskFeed(kafka.TaskFeedConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		})
		logrus.WithField("topic", cfg.Kafka.Topic).Info("Kafka task feed initialized")
	default:
		feed = repository.NewTaskListener(postgres.ConnString(&cfg.Database), postgres.TaskChangesChannel, taskRepo)
		logrus.WithField("channel", postgres.TaskChangesChannel).Info("Postgres task listener initialized")
	}

	// Reminder event publisher is optional
	var events service.EventPublisher
	if cfg.Rabbit.Enabled {
		publisher, err := rabbitMQ.NewEventPublisher(rabbitMQ.RabbitMQConfig{
			URL:       cfg.RabbitURL(),
			QueueName: cfg.Rabbit.QueueName,
		})
		if err != nil {
			logrus.Errorf("Failed to initialize RabbitMQ publisher: %v. Continuing without events...", err)
		} else {
			defer publisher.Close()
			events = publisher
			checks["rabbitmq"] = publisher.HealthCheck
			logrus.Info("RabbitMQ event publisher initialized")
		}
	}

	gateway := whatsapp.NewClient(whatsapp.Config{
		BaseURL: cfg.WhatsApp.BaseURL,
		APIKey:  cfg.WhatsApp.APIKey,
		Sender:  cfg.WhatsApp.Sender,
		Header:  cfg.WhatsApp.TemplateHeader,
		Timeout: cfg.WhatsApp.Timeout,
	})
	if cfg.WhatsApp.APIKey == "" {
		logrus.Warn("WhatsApp API key not provided, deliveries will be rejected by the gateway")
	}

	location, err := time.LoadLocation(cfg.Reminder.Timezone)
	if err != nil {
		logrus.Fatalf("Failed to load reminder timezone: %v", err)
	}

	// Initialize services
	reminderScheduler := service.NewReminderScheduler(taskRepo, userRepo, reminderLedger, gateway, feed, events, service.SchedulerConfig{
		TemplateName:    cfg.WhatsApp.TemplateName,
		Language:        cfg.WhatsApp.Language,
		QueueSize:       cfg.Reminder.QueueSize,
		LedgerRetention: cfg.Reminder.LedgerRetention,
		CountryCode:     cfg.Reminder.DefaultCountryCode,
		Location:        location,
		ScheduledLayout: cfg.Reminder.ScheduledLayout,
		DueLayout:       cfg.Reminder.DueLayout,
	})
	settingsService := service.NewSettingsService(settingsRepo)

	if cfg.Reminder.AutoStart {
		if err := reminderScheduler.Start(ctx); err != nil {
			logrus.Errorf("Failed to start reminder scheduler: %v", err)
		}
	} else {
		logrus.Info("Reminder scheduler auto start disabled, use POST /api/v1/scheduler/start")
	}

	// Initialize workers
	sweepWorker := worker.NewOverdueSweepWorker(reminderScheduler, cfg.Reminder.SweepInterval)
	go sweepWorker.Start(ctx)

	pruneWorker := worker.NewLedgerPruneWorker(reminderScheduler, cfg.Reminder.PruneInterval)
	go pruneWorker.Start(ctx)

	// Initialize handlers
	reminderHandler := transport.NewReminderHandler(reminderScheduler)
	settingsHandler := transport.NewSettingsHandler(settingsService)

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := new(Server)
	go func() {
		if err := srv.Run(cfg, transport.InitRoutes(reminderHandler, settingsHandler, cfg.Server.Timeout, checks)); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("error occured while running http server: %s", err.Error())
		}
	}()

	logrus.WithField("port", cfg.Server.Port).Print("App Started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logrus.Print("App Shutting Down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("error occured on server shutting down: %s", err.Error())
	}

	cancel()
	reminderScheduler.Stop()
}
