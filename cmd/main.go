package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"storefront/internal/cart"
	"storefront/internal/config"
	httpapi "storefront/internal/http"
	"storefront/internal/notify"
	"storefront/internal/repository"
	"storefront/internal/service"

	_ "storefront/docs"
)

// @title Storefront API
// @version 1.0
// @description Catalog, carts and orders of the storefront back office.
// @BasePath /api/v1
func main() {
	app := &cli.App{
		Name:  "storefront",
		Usage: "catalog, cart and order service",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "env-file", Usage: "dotenv files loaded before the environment", Value: cli.NewStringSlice(".env")},
		},
		Action: serve,
		Commands: []*cli.Command{
			{Name: "serve", Usage: "run the HTTP API", Action: serve},
			{Name: "migrate", Usage: "apply MySQL migrations and exit", Action: migrate},
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("storefront stopped")
	}
}

func setup(c *cli.Context) (*config.Config, *log.Logger, error) {
	cfg, err := config.Load(c.StringSlice("env-file")...)
	if err != nil {
		return nil, nil, err
	}
	logger := log.New()
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, errors.Wrap(err, "log level")
	}
	logger.SetLevel(level)
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&log.JSONFormatter{})
	} else {
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return cfg, logger, nil
}

func migrate(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	if cfg.MySQLDSN == "" {
		return errors.New("STOREFRONT_MYSQL_DSN is required")
	}
	return repository.Migrate(cfg.MySQLDSN, logger)
}

type storage struct {
	products  repository.ProductRepository
	variants  repository.VariantRepository
	movements repository.MovementRepository
	orders    repository.OrderRepository
	clients   repository.ClientRepository
	tx        repository.TxManager
	close     func() error
}

func openStorage(ctx context.Context, cfg *config.Config, logger log.FieldLogger) (*storage, error) {
	if cfg.Storage == config.StorageMemory {
		store := repository.NewMemoryStore()
		orders := repository.NewMemoryOrders(store)
		logger.Warn("using in-memory storage, data is lost on restart")
		return &storage{products: store, variants: store, movements: store, orders: orders, clients: orders,
			tx: repository.NewMemoryTx(store), close: func() error { return nil }}, nil
	}

	if err := repository.Migrate(cfg.MySQLDSN, logger); err != nil {
		return nil, err
	}
	db, err := repository.OpenMySQL(ctx, cfg.MySQLDSN)
	if err != nil {
		return nil, err
	}
	store := repository.NewMySQLStore(db)
	orders := repository.NewMySQLOrders(db)
	return &storage{products: store, variants: store, movements: store, orders: orders, clients: orders,
		tx: repository.NewMySQLTx(db), close: db.Close}, nil
}

// cartStore prefers Redis and falls back to process memory when it is unreachable.
func cartStore(ctx context.Context, cfg *config.Config, logger log.FieldLogger) (cart.Store, func() error) {
	if cfg.RedisAddress == "" {
		return cart.NewMemoryStore(), func() error { return nil }
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddress, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).WithField("addr", cfg.RedisAddress).Warn("redis unavailable, carts kept in memory")
		_ = client.Close()
		return cart.NewMemoryStore(), func() error { return nil }
	}
	return cart.NewRedisStore(client, cfg.CartTTL), client.Close
}

func serve(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	carts, closeCarts := cartStore(ctx, cfg, logger)
	defer closeCarts()

	var sender notify.Sender = notify.LogSender{Log: logger}
	if cfg.NotifyWebhook != "" {
		sender = notify.NewWebhookSender(cfg.NotifyWebhook)
	}

	productsSvc := service.NewProductService(st.products, st.variants, st.movements, st.tx, logger)
	ordersSvc := service.NewOrderService(service.OrderDeps{
		Products:  st.products,
		Variants:  st.variants,
		Movements: st.movements,
		Orders:    st.orders,
		Clients:   st.clients,
		Tx:        st.tx,
		Notifier:  notify.NewDispatcher(sender, cfg.NotifyTimeout, logger),
		Log:       logger,
	}, service.WithNumberAttempts(cfg.OrderNumberAttempts))

	srv := httpapi.NewServer(productsSvc, ordersSvc, cart.NewRegistry(carts, logger), logger,
		httpapi.WithJWTSecret(cfg.JWTSecret))

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddress,
		Handler: srv.Engine(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithFields(log.Fields{"addr": httpServer.Addr, "storage": cfg.Storage}).Info("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server error")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
