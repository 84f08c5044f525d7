package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"

	"github.com/agendaviva/reminders/internal/config"
	"github.com/agendaviva/reminders/internal/reminder"
	"github.com/agendaviva/reminders/pkg/database"
	"github.com/agendaviva/reminders/pkg/jsonutil"
	"github.com/agendaviva/reminders/pkg/messaging"
	"github.com/agendaviva/reminders/pkg/observability"
	"github.com/agendaviva/reminders/pkg/secrets"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	ctx := context.Background()
	logger := observability.NewLogger("reminders")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Secrets.ID != "" {
		values, err := secrets.Load(ctx, cfg.Secrets.ID)
		if err != nil {
			log.Fatalf("Failed to load secrets: %v", err)
		}
		cfg.ApplySecrets(values)
	}

	db, err := database.Connect(ctx, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("database connection established")

	// Optional collaborators: the service degrades gracefully when the
	// side infrastructure is absent.
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, delivery guard disabled", slog.String("error", err.Error()))
			rdb = nil
		}
	}

	var events reminder.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer := messaging.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		events = producer
	}

	var failed reminder.QueuePublisher
	if cfg.RabbitMQ.URL != "" {
		rabbit, err := messaging.NewRabbitMQClient(cfg.RabbitMQ.URL)
		if err != nil {
			logger.Warn("rabbitmq unavailable, failed-delivery queue disabled", slog.String("error", err.Error()))
		} else {
			defer rabbit.Close()
			if _, err := rabbit.DeclareQueue(cfg.RabbitMQ.FailedQueue); err != nil {
				logger.Warn("failed to declare queue", slog.String("error", err.Error()))
			}
			failed = rabbit
		}
	}

	var alerts reminder.Alerter
	if cfg.Alerts.ResendAPIKey != "" && len(cfg.Alerts.ToEmails) > 0 {
		alerts = reminder.NewAlertMailer(cfg.Alerts.ResendAPIKey, cfg.Alerts.FromEmail, cfg.Alerts.ToEmails)
	}

	shutdown, err := observability.InitTracer(ctx, observability.TracerConfig{
		ServiceName:    "reminders",
		ServiceVersion: "0.1.0",
		Endpoint:       cfg.Telemetry.OTLPEndpoint,
		Environment:    cfg.Telemetry.Environment,
	})
	if err != nil {
		logger.Warn("failed to init tracer", slog.String("error", err.Error()))
	} else {
		defer shutdown(context.Background())
	}

	registry := reminder.NewDriverRegistry()
	registry.Register(reminder.NewWhatsAppDriver(cfg.Channels.WhatsAppURL, cfg.Channels.ServiceToken))
	registry.Register(reminder.NewPushDriver(cfg.Channels.PushURL, cfg.Channels.ServiceToken))

	repo := reminder.NewRepository(db)
	generator := reminder.NewGenerator(repo, events, logger.Logger)
	processor := reminder.NewProcessor(repo, repo, registry, reminder.ProcessorDeps{
		Events:      events,
		Redis:       rdb,
		Failed:      failed,
		FailedQueue: cfg.RabbitMQ.FailedQueue,
		Alerts:      alerts,
	}, logger.Logger)
	handler := reminder.NewHandler(generator, processor, logger.Logger)

	if cfg.Worker.Interval > 0 {
		worker := reminder.NewWorker(processor, cfg.Worker.Interval, logger.Logger)
		go worker.Run(ctx)
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		jsonutil.WriteJSON(w, http.StatusOK, map[string]string{
			"status":  "active",
			"service": "reminders",
		})
	}).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	functions := router.PathPrefix("/functions").Subrouter()
	functions.HandleFunc("/generate-reminders", handler.GenerateReminders).Methods(http.MethodPost, http.MethodOptions)
	functions.HandleFunc("/process-reminders", handler.ProcessReminders).Methods(http.MethodPost, http.MethodOptions)
	functions.HandleFunc("/send-instant-reminder", handler.SendInstantReminder).Methods(http.MethodPost, http.MethodOptions)

	otelHandler := otelhttp.NewHandler(jsonutil.CORS(router), "reminders-request")

	logger.Info("reminders service starting", slog.String("port", cfg.Server.Port))
	if err := http.ListenAndServe(":"+cfg.Server.Port, otelHandler); err != nil {
		log.Fatalf("HTTP server failed: %v", err)
	}
}
