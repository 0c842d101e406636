package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-flowershop-orders/internal/assign"
	"github.com/ariefcatur/go-flowershop-orders/internal/config"
	kafkax "github.com/ariefcatur/go-flowershop-orders/internal/kafka"
	"github.com/ariefcatur/go-flowershop-orders/internal/logger"
	"github.com/ariefcatur/go-flowershop-orders/internal/postgres"
	"github.com/ariefcatur/go-flowershop-orders/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log, err := logger.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	log = log.With(zap.String("service", cfg.ServiceName+"-scheduler"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// producer for order.assigned
	prodCtx, cancelProd := context.WithCancel(context.Background())
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log.Named("producer"))
	prod.Start(prodCtx)

	sched := &assign.Scheduler{
		Repo:        &assign.Repo{DB: db},
		Publisher:   prod,
		Log:         log.Named("assign"),
		Name:        cfg.ServiceName + "-scheduler",
		FloristFrom: cfg.Scheduler.FloristFrom,
		FloristTo:   cfg.Scheduler.FloristTo,
	}
	runner := assign.NewRunner(cfg.Scheduler.Interval, cfg.Scheduler.Grace, log.Named("runner"))
	runner.Locker = &redisx.Locker{RDB: rdb}
	runner.LockTTL = cfg.Scheduler.LockTTL
	runner.Register(assign.JobFlorists, sched.AssignFlorists)
	runner.Register(assign.JobCouriers, sched.AssignCouriers)

	// paid and ready events pull the next tick forward
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.Scheduler.ConsumerGroup, assign.TriggerTopics,
		cfg.Scheduler.TriggerWorkers, log.Named("consumer"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return runner.Run(gctx) })
	g.Go(func() error {
		log.Info("trigger consumer started",
			zap.String("group", cfg.Scheduler.ConsumerGroup),
			zap.Strings("topics", assign.TriggerTopics),
		)
		return cons.Start(gctx, assign.TriggerHandler(runner, log.Named("trigger")))
	})

	if err := g.Wait(); err != nil {
		log.Error("scheduler exit", zap.Error(err))
	}
	cancelProd()
	prod.WaitClosed()
	log.Info("scheduler stopped")
}
