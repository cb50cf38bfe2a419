package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/courierly/dispatch-service/internal/app"
	"github.com/courierly/dispatch-service/internal/broadcast"
	"github.com/courierly/dispatch-service/internal/config"
	"github.com/courierly/dispatch-service/internal/entities"
	"github.com/courierly/dispatch-service/internal/events"
	"github.com/courierly/dispatch-service/internal/handler"
	"github.com/courierly/dispatch-service/internal/middleware"
	"github.com/courierly/dispatch-service/internal/postgres"
	"github.com/courierly/dispatch-service/internal/repo"
	"github.com/courierly/dispatch-service/internal/service"
	"github.com/courierly/dispatch-service/pkg/cache"
	"github.com/courierly/dispatch-service/pkg/trm"
	"github.com/courierly/dispatch-service/pkg/utils"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
)

func init() {
	godotenv.Load()
}

type store interface {
	service.DeliveryRepo
	service.DriverRepo
	service.UserRepo
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	conf, err := config.New()
	panicIfErr(err)

	logger := newLogger(conf.Env)
	slog.SetDefault(logger)

	var (
		repository store
		txManager  trm.Manager
		db         *sqlx.DB
	)
	switch conf.Storage.Driver {
	case "postgres":
		err = utils.Retry(utils.RetryConfig{MaxAttempts: 5, InitialDelay: time.Second}, func() error {
			db, err = postgres.New(ctx, conf.Postgres.DSN())
			return err
		})
		panicIfErr(err)
		repository = repo.NewPostgresRepo(db)
		txManager = trm.NewManager(db)
	default:
		repository = repo.NewMemoryRepo()
		txManager = trm.NewNopManager()
		if conf.Storage.SeedDrivers {
			seedDrivers(ctx, logger, repository)
		}
	}

	hub := broadcast.NewHub(logger, conf.WS.SendBuffer)

	var publisher service.EventPublisher = events.NopPublisher{}
	var kafkaPublisher *events.KafkaPublisher
	if conf.Kafka.Enabled {
		kafkaPublisher = events.NewKafkaPublisher(logger, conf.Kafka.Brokers, conf.Kafka.Topic, conf.Kafka.BatchTimeout)
		publisher = kafkaPublisher
	}

	deliveryCache := cache.New[entities.Delivery](conf.Cache.Capacity, conf.Cache.TTL)

	dispatchService := service.NewDispatchService(logger, txManager, repository, repository, deliveryCache, publisher, service.RandomDriverSelector)
	driverService := service.NewDriverService(logger, repository, hub)
	userService := service.NewUserService(logger, repository)

	handler.RegisterMetrics()
	middleware.RegisterMetrics()

	application := app.New(logger, conf)
	application.SetHTTPHandlers(
		handler.NewHTTPHandler(logger, dispatchService, driverService, userService),
		handler.NewWSHandler(logger, driverService, hub),
	)
	application.SetStarters(deliveryCache)
	application.SetClosers(hub)
	if db != nil {
		application.SetClosers(db)
	}
	if kafkaPublisher != nil {
		application.SetClosers(kafkaPublisher)
	}

	application.Start(ctx)
	logger.Info("dispatch service started", slog.String("env", conf.Env), slog.String("storage", conf.Storage.Driver))

	<-ctx.Done()
	application.Stop()
}

func newLogger(env string) *slog.Logger {
	if env == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// seedDrivers puts a few couriers into the pool so the in-memory setup is
// usable right after boot.
func seedDrivers(ctx context.Context, logger *slog.Logger, drivers service.DriverRepo) {
	seeds := []entities.Driver{
		{Name: "Marcus Johnson", Phone: "+1234567890", Rating: 5, IsActive: true},
		{Name: "Sarah Kim", Phone: "+1234567891", Rating: 5, IsActive: true},
		{Name: "David Lee", Phone: "+1234567892", Rating: 5, IsActive: true},
	}
	for _, d := range seeds {
		if _, err := drivers.CreateDriver(ctx, d); err != nil {
			logger.Warn("failed to seed driver", slog.String("name", d.Name), slog.String("error", err.Error()))
		}
	}
	logger.Info("seeded drivers", slog.Int("count", len(seeds)))
}

func panicIfErr(err error) {
	if err != nil {
		panic(err)
	}
}
