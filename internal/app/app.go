package app

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/niksmo/keyshop/config"
	"github.com/niksmo/keyshop/internal/adapter"
	"github.com/niksmo/keyshop/internal/adapter/auth"
	"github.com/niksmo/keyshop/internal/adapter/httphandler"
	"github.com/niksmo/keyshop/internal/adapter/kafka"
	"github.com/niksmo/keyshop/internal/adapter/mailer"
	"github.com/niksmo/keyshop/internal/adapter/media"
	"github.com/niksmo/keyshop/internal/adapter/session"
	"github.com/niksmo/keyshop/internal/adapter/storage"
	"github.com/niksmo/keyshop/internal/core/port"
	"github.com/niksmo/keyshop/internal/core/service"
	"github.com/niksmo/keyshop/pkg/schema"
	"github.com/redis/go-redis/v9"
	"github.com/twmb/franz-go/pkg/sr"
)

type outbound struct {
	db       storage.SQLDB
	redis    *redis.Client
	sessions session.RedisStore
	images   media.ImageStore
	notifier port.Notifier
	producer *kafka.PurchasesProducer
}

type coreService struct {
	catalog  service.CatalogService
	cart     service.CartService
	checkout service.CheckoutService
	users    service.UserService
	reviews  service.ReviewService
	sessions service.SessionService
	worker   service.DeliveryWorker
}

type App struct {
	ctx        context.Context
	cfg        config.Config
	out        outbound
	service    coreService
	httpServer httphandler.HTTPServer

	stopWorker context.CancelFunc
	workerWG   sync.WaitGroup
}

func New(ctx context.Context, cfg config.Config) *App {
	app := &App{ctx: ctx, cfg: cfg}

	app.initLogger()
	app.initStorage()
	app.initSessions()
	app.initMedia()
	app.initNotifier()
	app.initEvents()
	app.initCoreService()
	app.initInboundAdapters()

	return app
}

func (app *App) initLogger() {
	opts := &slog.HandlerOptions{Level: app.cfg.LogLevel}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, opts))
	slog.SetDefault(logger)
}

func (app *App) initStorage() {
	const op = "App.initStorage"

	db, err := storage.Open(
		app.ctx, storage.Driver(app.cfg.Storage.Driver), app.cfg.Storage.DSN,
	)
	if err != nil {
		app.fallDown(op, err)
	}

	if app.cfg.Storage.MigrateOnStart {
		if err := storage.Migrate(db, false); err != nil {
			db.Close()
			app.fallDown(op, err)
		}
	}
	app.out.db = db
}

func (app *App) initSessions() {
	const op = "App.initSessions"
	cfg := app.cfg.Session

	client, err := session.NewRedisClient(
		app.ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
	)
	if err != nil {
		app.fallDown(op, err)
	}

	app.out.redis = client
	app.out.sessions = session.NewRedisStore(client, cfg.TTL)
}

func (app *App) initMedia() {
	const op = "App.initMedia"

	images, err := media.NewImageStore(app.cfg.Media.Root)
	if err != nil {
		app.fallDown(op, err)
	}
	app.out.images = images
}

func (app *App) initNotifier() {
	const op = "App.initNotifier"
	cfg := app.cfg.Mail

	if cfg.Host == "" {
		slog.Warn("mail host is not set, notifications are logged only",
			"op", op,
		)
		app.out.notifier = mailer.LogNotifier{}
		return
	}

	m, err := mailer.New(mailer.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		Username:        cfg.Username,
		Password:        cfg.Password,
		From:            cfg.From,
		TLSPolicy:       cfg.TLSPolicy,
		Timeout:         cfg.Timeout,
		BreakerFailures: cfg.BreakerFailures,
		BreakerCooldown: cfg.BreakerCooldown,
	})
	if err != nil {
		app.fallDown(op, err)
	}
	app.out.notifier = m
}

func (app *App) initEvents() {
	const op = "App.initEvents"
	cfg := app.cfg.Broker

	if !cfg.Enabled {
		return
	}

	srClient, err := sr.NewClient(sr.URLs(cfg.SchemaRegistryURLs...))
	if err != nil {
		app.fallDown(op, err)
	}

	serde, err := schema.NewSerdePurchaseCompletedV1(
		app.ctx,
		schema.SubjectOpt(cfg.Topics.Purchases+"-value"),
		schema.SchemaIdentifierOpt(schema.NewSchemaRegistry(srClient)),
	)
	if err != nil {
		app.fallDown(op, err)
	}

	tlsConfig, err := app.brokerTLS()
	if err != nil {
		app.fallDown(op, err)
	}

	producer, err := kafka.NewPurchasesProducer(
		kafka.ProducerClientOpt(
			app.ctx, cfg.SeedBrokers, cfg.Topics.Purchases, tlsConfig,
		),
		kafka.ProducerEncoderOpt(serde),
	)
	if err != nil {
		app.fallDown(op, err)
	}
	app.out.producer = &producer
}

func (app *App) initCoreService() {
	out := app.out

	// A nil producer must reach the checkout as a nil interface.
	var events port.PurchaseEventsProducer
	if out.producer != nil {
		events = out.producer
	}

	products := storage.NewProductsRepository(out.db)
	purchases := storage.NewPurchasesRepository(out.db)

	tokens := auth.NewJWTIssuer(
		app.cfg.Auth.JWTSecret, app.cfg.Auth.Issuer, app.cfg.Auth.TokenTTL,
	)

	app.service = coreService{
		catalog: service.NewCatalogService(
			products,
			storage.NewKeysRepository(out.db),
			out.images,
			app.cfg.Checkout.FeaturedLimit,
		),
		cart: service.NewCartService(out.sessions, products),
		checkout: service.NewCheckoutService(
			out.sessions, purchases, purchases, out.notifier, events,
			service.CheckoutConfig{
				Subject:     app.cfg.Checkout.Subject,
				SendTimeout: app.cfg.Checkout.SendTimeout,
			},
		),
		users: service.NewUserService(
			storage.NewUsersRepository(out.db),
			auth.NewBcryptHasher(app.cfg.Auth.BcryptCost),
			tokens,
		),
		reviews:  service.NewReviewService(storage.NewReviewsRepository(out.db)),
		sessions: service.NewSessionService(out.sessions),
		worker: service.NewDeliveryWorker(
			purchases, out.notifier,
			service.DeliveryWorkerConfig{
				PollInterval:  app.cfg.Delivery.PollInterval,
				BatchSize:     app.cfg.Delivery.BatchSize,
				RetryAttempts: app.cfg.Delivery.RetryAttempts,
				RetryDelay:    app.cfg.Delivery.RetryDelay,
				MaxAttempts:   app.cfg.Delivery.MaxAttempts,
				ClaimTimeout:  app.cfg.Delivery.ClaimTimeout,
			},
		),
	}
}

func (app *App) initInboundAdapters() {
	s := app.service

	router := httphandler.NewRouter(
		httphandler.Services{
			Catalog:  s.catalog,
			Cart:     s.cart,
			Checkout: s.checkout,
			Users:    s.users,
			Reviews:  s.reviews,
			Sessions: s.sessions,
		},
		httphandler.RouterConfig{
			Session: httphandler.SessionCookie{
				Name:   app.cfg.Session.CookieName,
				TTL:    app.cfg.Session.TTL,
				Secure: app.cfg.Session.SecureCookie,
			},
			MediaPrefix:   app.cfg.Media.URLPrefix,
			Media:         app.out.images.FileSystem(),
			CORSOrigins:   app.cfg.HTTP.CORSOrigins,
			MaxUploadSize: app.cfg.HTTP.MaxUploadSize,
			Health:        app.health,
		},
	)

	app.httpServer = httphandler.NewHTTPServer(
		app.cfg.HTTP.Addr, router, app.cfg.HTTP.RequestTimeout,
	)
}

func (app *App) health(ctx context.Context) error {
	if err := app.out.db.PingContext(ctx); err != nil {
		return err
	}
	return app.out.redis.Ping(ctx).Err()
}

func (app *App) brokerTLS() (*tls.Config, error) {
	t := app.cfg.Broker.TLS
	if !t.Enabled {
		return nil, nil
	}
	return adapter.MakeTLSConfig(t.CA, t.Cert, t.Key)
}

func (app *App) Run(stopFn context.CancelFunc) {
	workerCtx, cancel := context.WithCancel(app.ctx)
	app.stopWorker = cancel

	app.workerWG.Add(1)
	go app.service.worker.Run(workerCtx, &app.workerWG)

	go app.httpServer.Run(stopFn)

	slog.Info("application is running")
}

func (app *App) Close(ctx context.Context) {
	slog.Info("application is closing...")

	app.httpServer.Close(ctx)

	if app.stopWorker != nil {
		app.stopWorker()
		app.workerWG.Wait()
	}

	if app.out.producer != nil {
		app.out.producer.Close()
	}

	if err := app.out.redis.Close(); err != nil {
		slog.Error("failed to close redis client", "err", err)
	}
	app.out.db.Close()

	slog.Info("application is closed")
}

func (app *App) fallDown(op string, err error) {
	panic(fmt.Errorf("%s: %w", op, err))
}
