package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-flowershop-orders/internal/assign"
	"github.com/ariefcatur/go-flowershop-orders/internal/catalog"
	"github.com/ariefcatur/go-flowershop-orders/internal/config"
	"github.com/ariefcatur/go-flowershop-orders/internal/httpx"
	kafkax "github.com/ariefcatur/go-flowershop-orders/internal/kafka"
	"github.com/ariefcatur/go-flowershop-orders/internal/logger"
	"github.com/ariefcatur/go-flowershop-orders/internal/orders"
	"github.com/ariefcatur/go-flowershop-orders/internal/payment"
	"github.com/ariefcatur/go-flowershop-orders/internal/postgres"
	"github.com/ariefcatur/go-flowershop-orders/internal/redisx"
	"github.com/ariefcatur/go-flowershop-orders/internal/stock"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logger.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Fatal("db migrate", zap.Error(err))
		}
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	if err := redisx.Ping(ctx, rdb); err != nil {
		log.Warn("redis unavailable, cache disabled until it recovers", zap.Error(err))
	}

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log.Named("producer"))
	prod.Start(ctx)

	deliveryPrice, err := decimal.NewFromString(cfg.Checkout.DeliveryPricePerMeter)
	if err != nil {
		log.Fatal("delivery price", zap.String("value", cfg.Checkout.DeliveryPricePerMeter), zap.Error(err))
	}

	// Repos & services
	tx := &postgres.TxManager{Pool: db}
	cat := &catalog.Repo{DB: db}
	ledger := &stock.Ledger{
		Repo:   &stock.Repo{DB: db},
		Tx:     tx,
		Policy: stock.Policy{Epsilon: cfg.Stock.DepletionEpsilon},
		Log:    log.Named("stock"),
	}
	svc := &orders.Service{
		Orders:                &orders.Repo{DB: db},
		Catalog:               cat,
		Ledger:                ledger,
		Tx:                    tx,
		Payments:              payment.NewSimulator(cfg.Checkout.PaymentSuccessWeight, uint64(time.Now().UnixNano())),
		Publisher:             prod,
		Log:                   log.Named("orders"),
		DeliveryPricePerMeter: deliveryPrice,
		Name:                  cfg.ServiceName,
	}

	// manual assignment runs; the scheduler process owns the ticks
	sched := &assign.Scheduler{
		Repo:        &assign.Repo{DB: db},
		Publisher:   prod,
		Log:         log.Named("assign"),
		Name:        cfg.ServiceName,
		FloristFrom: cfg.Scheduler.FloristFrom,
		FloristTo:   cfg.Scheduler.FloristTo,
	}
	runner := assign.NewRunner(cfg.Scheduler.Interval, cfg.Scheduler.Grace, log.Named("runner"))
	runner.Locker = &redisx.Locker{RDB: rdb}
	runner.LockTTL = cfg.Scheduler.LockTTL
	runner.Register(assign.JobFlorists, sched.AssignFlorists)
	runner.Register(assign.JobCouriers, sched.AssignCouriers)

	api := &httpx.API{
		Orders: &httpx.OrdersHandler{Service: svc, Catalog: cat, Cache: &redisx.Cache{RDB: rdb}, Log: log.Named("http")},
		Stock:  &httpx.StockHandler{Ledger: ledger, Catalog: cat, Log: log.Named("http")},
		Admin:  &httpx.AdminHandler{Runner: runner, Log: log.Named("http")},
	}

	// HTTP server
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Router(log.Named("http")),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	cancel()          // stop producer loop, buffered events are flushed
	prod.WaitClosed() // drain
}
