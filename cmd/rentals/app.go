package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"rentals/internal/app/commands"
	bookingapp "rentals/internal/app/handlers/booking"
	listingapp "rentals/internal/app/handlers/listings"
	paymentapp "rentals/internal/app/handlers/payments"
	reviewapp "rentals/internal/app/handlers/reviews"
	"rentals/internal/app/dto"
	"rentals/internal/app/middleware"
	appoutbox "rentals/internal/app/outbox"
	"rentals/internal/app/policies"
	"rentals/internal/app/queries"
	"rentals/internal/app/uow"
	"rentals/internal/infra/broker/kafka"
	"rentals/internal/infra/config"
	mongostore "rentals/internal/infra/db/mongo"
	ginserver "rentals/internal/infra/http/gin"
	"rentals/internal/infra/inbox"
	redislock "rentals/internal/infra/lock/redis"
	"rentals/internal/infra/obs"
	infraoutbox "rentals/internal/infra/outbox"
	"rentals/internal/infra/payments/sandbox"
	"rentals/internal/infra/payments/stripe"
	"rentals/internal/infra/storage/memory"
	"rentals/internal/infra/storage/s3"
	"rentals/internal/infra/validation"
)

type application struct {
	cfg      config.Config
	handlers ginserver.Handlers
	health   obs.HealthHandlers
	factory  uow.UoWFactory

	worker         *infraoutbox.Worker
	reviewConsumer *kafka.Consumer
	closers        []func(context.Context) error
}

// backends are the storage-mode dependent pieces every handler is built from.
type backends struct {
	factory     uow.UoWFactory
	box         appoutbox.Outbox
	flusher     appoutbox.Outbox
	idempotency middleware.IdempotencyStore
	inbox       policies.InboxStore
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		cfg:    cfg,
		health: obs.HealthHandlers{Checks: map[string]obs.Check{}, Timeout: 2 * time.Second},
	}

	publisher, err := app.buildPublisher(cfg, logger)
	if err != nil {
		app.close(logger)
		return nil, err
	}

	var be backends
	switch cfg.StorageMode {
	case config.ModeMongo:
		be, err = app.mongoBackends(ctx, cfg, publisher, logger)
	default:
		be = memoryBackends(cfg, publisher, logger)
	}
	if err != nil {
		app.close(logger)
		return nil, err
	}
	app.factory = be.factory

	locker, err := app.buildLocker(ctx, cfg, logger)
	if err != nil {
		app.close(logger)
		return nil, err
	}
	gateway, err := buildGateway(cfg, logger)
	if err != nil {
		app.close(logger)
		return nil, err
	}

	encoder := appoutbox.JSONEventEncoder{}
	rollup := &reviewapp.Rollup{UoWFactory: be.factory, Outbox: be.box, Encoder: encoder, Logger: logger}

	commandBus := commands.NewInMemoryBus()
	bookingDeps := bookingapp.Deps{UoWFactory: be.factory, Outbox: be.box, Encoder: encoder, Logger: logger}
	commands.Register(commandBus, bookingapp.CreateBookingKey, commands.Handler[bookingapp.CreateBookingCommand, dto.Booking](&bookingapp.CreateBookingHandler{Deps: bookingDeps}))
	commands.Register(commandBus, bookingapp.UpdateBookingKey, commands.Handler[bookingapp.UpdateBookingCommand, dto.Booking](&bookingapp.UpdateBookingHandler{Deps: bookingDeps}))
	commands.Register(commandBus, bookingapp.ConfirmBookingKey, commands.Handler[bookingapp.ConfirmBookingCommand, dto.Booking](&bookingapp.ConfirmBookingHandler{Deps: bookingDeps}))
	commands.Register(commandBus, bookingapp.CancelBookingKey, commands.Handler[bookingapp.CancelBookingCommand, dto.Booking](&bookingapp.CancelBookingHandler{Deps: bookingDeps}))
	commands.Register(commandBus, bookingapp.CompleteBookingKey, commands.Handler[bookingapp.CompleteBookingCommand, dto.Booking](&bookingapp.CompleteBookingHandler{Deps: bookingDeps}))

	commands.Register(commandBus, listingapp.DeleteListingKey, commands.Handler[listingapp.DeleteListingCommand, dto.ListingDeletion](&listingapp.DeleteListingHandler{
		UoWFactory: be.factory,
		Outbox:     be.box,
		Encoder:    encoder,
		Logger:     logger,
	}))

	paymentDeps := paymentapp.Deps{UoWFactory: be.factory, Outbox: be.box, Encoder: encoder, Gateway: gateway, Logger: logger, Timeout: cfg.GatewayTimeout}
	commands.Register(commandBus, paymentapp.CreateIntentKey, commands.Handler[paymentapp.CreateIntentCommand, dto.PaymentIntent](&paymentapp.CreateIntentHandler{Deps: paymentDeps}))
	commands.Register(commandBus, paymentapp.SyncStatusKey, commands.Handler[paymentapp.SyncStatusCommand, dto.Booking](&paymentapp.SyncStatusHandler{Deps: paymentDeps}))
	commands.Register(commandBus, paymentapp.RefundKey, commands.Handler[paymentapp.RefundCommand, dto.Refund](&paymentapp.RefundHandler{Deps: paymentDeps}))
	commands.Register(commandBus, paymentapp.GatewayEventKey, commands.Handler[paymentapp.GatewayEventCommand, dto.WebhookAck](&paymentapp.GatewayEventHandler{Deps: paymentDeps, Inbox: be.inbox}))

	reviewDeps := reviewapp.Deps{UoWFactory: be.factory, Outbox: be.box, Encoder: encoder, Ratings: rollup, Logger: logger}
	commands.Register(commandBus, reviewapp.SubmitReviewKey, commands.Handler[reviewapp.SubmitReviewCommand, dto.Review](&reviewapp.SubmitReviewHandler{Deps: reviewDeps}))
	commands.Register(commandBus, reviewapp.UpdateReviewKey, commands.Handler[reviewapp.UpdateReviewCommand, dto.Review](&reviewapp.UpdateReviewHandler{Deps: reviewDeps}))
	commands.Register(commandBus, reviewapp.DeleteReviewKey, commands.Handler[reviewapp.DeleteReviewCommand, dto.ListingRating](&reviewapp.DeleteReviewHandler{Deps: reviewDeps}))

	queryBus := queries.NewInMemoryBus()
	lists := &bookingapp.ListBookingsHandler{UoWFactory: be.factory}
	queries.Register(queryBus, bookingapp.GetBookingKey, queries.Handler[bookingapp.GetBookingQuery, dto.Booking](&bookingapp.GetBookingHandler{UoWFactory: be.factory}))
	queries.Register(queryBus, bookingapp.ListGuestBookingsKey, queries.HandlerFunc[bookingapp.ListGuestBookingsQuery, dto.BookingCollection](lists.HandleGuest))
	queries.Register(queryBus, bookingapp.ListHostBookingsKey, queries.HandlerFunc[bookingapp.ListHostBookingsQuery, dto.BookingCollection](lists.HandleHost))
	queries.Register(queryBus, bookingapp.CheckAvailabilityKey, queries.Handler[bookingapp.CheckAvailabilityQuery, dto.Availability](&bookingapp.CheckAvailabilityHandler{UoWFactory: be.factory}))
	queries.Register(queryBus, bookingapp.QuotePriceKey, queries.Handler[bookingapp.QuotePriceQuery, dto.Quote](&bookingapp.QuotePriceHandler{UoWFactory: be.factory}))
	queries.Register(queryBus, bookingapp.GetCalendarKey, queries.Handler[bookingapp.GetCalendarQuery, dto.Calendar](&bookingapp.GetCalendarHandler{UoWFactory: be.factory}))

	validator := validation.New()
	commandPipeline := middleware.ChainCommands(
		commandBus,
		middleware.Idempotency(be.idempotency, nil),
		middleware.Validation(validator),
		middleware.Authorization(),
		middleware.Locking(locker, logger),
		middleware.Transaction(be.factory),
		middleware.OutboxFlush(be.flusher),
	)
	queryPipeline := middleware.ChainQueries(
		queryBus,
		middleware.QueryValidation(validator),
		middleware.QueryAuthorization(),
	)

	if cfg.KafkaConsumerGroup != "" && len(cfg.KafkaBrokers) > 0 {
		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaConsumerGroup, nil, kafka.ReviewEventsHandler{Ratings: rollup, Logger: logger}, logger)
		if err != nil {
			app.close(logger)
			return nil, fmt.Errorf("kafka consumer: %w", err)
		}
		app.reviewConsumer = consumer
		app.closers = append(app.closers, func(context.Context) error { return consumer.Close() })
	}

	app.handlers = ginserver.Handlers{
		Bookings:       ginserver.BookingHandler{Commands: commandPipeline, Queries: queryPipeline, Logger: logger},
		Listings:       ginserver.ListingHandler{Commands: commandPipeline, Queries: queryPipeline, Logger: logger},
		Payments:       ginserver.PaymentHandler{Commands: commandPipeline, Logger: logger},
		Reviews:        ginserver.ReviewHandler{Commands: commandPipeline, Logger: logger},
		AuthMiddleware: ginserver.AuthMiddleware{Secret: []byte(cfg.JWTSecret), Logger: logger}.Handle,
	}
	return app, nil
}

func memoryBackends(cfg config.Config, publisher appoutbox.Publisher, logger *slog.Logger) backends {
	store := memory.NewStore()
	box := memory.NewOutbox(store, publisher, logger)
	return backends{
		factory:     memory.Factory{Store: store},
		box:         box,
		flusher:     box,
		idempotency: memory.NewIdempotencyStore(cfg.IdempotencyTTL),
		inbox:       memory.NewInboxStore(),
	}
}

// mongoBackends persists aggregates, outbox rows, idempotency records and the webhook
// inbox in MongoDB. Events leave through the outbox worker, never on the request path.
func (a *application) mongoBackends(ctx context.Context, cfg config.Config, publisher appoutbox.Publisher, logger *slog.Logger) (backends, error) {
	client, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return backends{}, fmt.Errorf("mongo connect: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	a.health.Checks["mongo"] = client.Ping

	if err := mongostore.EnsureIndexes(ctx, client.DB); err != nil {
		return backends{}, fmt.Errorf("mongo indexes: %w", err)
	}
	outboxStore, err := infraoutbox.NewStore(ctx, client.DB)
	if err != nil {
		return backends{}, fmt.Errorf("outbox store: %w", err)
	}
	idem, err := mongostore.NewIdempotencyStore(ctx, client.DB, cfg.IdempotencyTTL)
	if err != nil {
		return backends{}, fmt.Errorf("idempotency store: %w", err)
	}
	inboxStore, err := inbox.NewStore(ctx, client.DB)
	if err != nil {
		return backends{}, fmt.Errorf("inbox store: %w", err)
	}

	a.worker = &infraoutbox.Worker{
		Queue:     outboxStore,
		Publisher: publisher,
		Interval:  cfg.OutboxPollInterval,
		Backoff:   cfg.RetryBackoff,
		Logger:    logger,
	}
	return backends{
		factory:     mongostore.NewFactory(client.DB),
		box:         outboxStore,
		flusher:     outboxStore,
		idempotency: idem,
		inbox:       inboxStore,
	}, nil
}

// buildPublisher returns where committed events go: Kafka when brokers are configured
// and the S3 archive when enabled. Memory mode without either keeps events in-process.
func (a *application) buildPublisher(cfg config.Config, logger *slog.Logger) (appoutbox.Publisher, error) {
	var out appoutbox.MultiPublisher
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, sarama.NewConfig())
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		producer.TopicPrefix = cfg.KafkaTopicPrefix
		a.closers = append(a.closers, func(context.Context) error { return producer.Close() })
		out = append(out, producer)
	}
	if cfg.ArchiveEnabled {
		archive, err := s3.NewArchive(cfg.S3Endpoint, cfg.S3UseSSL, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, logger)
		if err != nil {
			return nil, fmt.Errorf("event archive: %w", err)
		}
		out = append(out, archive)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func (a *application) buildLocker(ctx context.Context, cfg config.Config, logger *slog.Logger) (policies.Locker, error) {
	if cfg.LockMode != config.ModeRedis {
		return memory.NewLocker(cfg.LockWait), nil
	}
	client, err := redislock.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error { return client.Close() })
	a.health.Checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	return redislock.NewLocker(client, cfg.LockTTL, cfg.LockWait, logger), nil
}

func buildGateway(cfg config.Config, logger *slog.Logger) (policies.PaymentGateway, error) {
	if cfg.PaymentsMode == config.ModeStripe {
		return stripe.New(stripe.Config{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
			Logger:        logger,
		})
	}
	logger.Warn("payments running against the in-process sandbox gateway")
	return sandbox.New(), nil
}

func (a *application) close(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			logger.Warn("shutdown step failed", "error", err)
		}
	}
	a.closers = nil
}
