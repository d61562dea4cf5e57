package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/DRSN-tech/fashion-search/internal/cfg"
	v1Grpc "github.com/DRSN-tech/fashion-search/internal/delivery/v1/grpc"
	v1Http "github.com/DRSN-tech/fashion-search/internal/delivery/v1/http"
	"github.com/DRSN-tech/fashion-search/internal/infrastructure/kafka"
	"github.com/DRSN-tech/fashion-search/internal/metrics"
	"github.com/DRSN-tech/fashion-search/internal/repository/pgdb"
	"github.com/DRSN-tech/fashion-search/internal/usecase"
	"github.com/DRSN-tech/fashion-search/pkg/closer"
	"github.com/DRSN-tech/fashion-search/pkg/e"
	"github.com/DRSN-tech/fashion-search/pkg/logger"
	"github.com/DRSN-tech/fashion-search/pkg/tr"
	"github.com/go-chi/chi/v5"
	"github.com/jimlawless/whereami"
)

const (
	shutdownTimeout  = 15 * time.Second
	topicInitTimeout = 10 * time.Second
)

type App struct {
	cfg    *config.Config
	logger logger.Logger
	closer *closer.Closer

	// ctx живёт до завершения приложения; фоновые задачи и очистка MinIO останавливаются по нему
	ctx    context.Context
	cancel context.CancelFunc

	httpSrv      *v1Http.Server
	grpcSrv      *v1Grpc.GRPCServer
	outboxWorker *kafka.OutboxWorker
	healConsumer *kafka.HealConsumer
}

func NewApp(cfg *config.Config, log logger.Logger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		cfg:    cfg,
		logger: log,
		closer: closer.NewCloser(0),
		ctx:    ctx,
		cancel: cancel,
	}
	a.closer.AddSimple("app context", cancel)

	if err := a.init(); err != nil {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer closeCancel()
		if cerr := a.closer.Close(closeCtx); cerr != nil {
			log.Warnf("release resources after failed init: %v", cerr)
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return a, nil
}

func (a *App) init() error {
	metrics.Register()

	d, err := buildDeps(a.ctx, a.cfg, a.logger, a.closer)
	if err != nil {
		return err
	}

	classifier, err := buildClassifier(a.cfg)
	if err != nil {
		return err
	}

	gatherer, err := buildEvidence(a.ctx, a.cfg, d, a.logger)
	if err != nil {
		return err
	}

	outboxRepo := pgdb.NewOutboxEventRepo(d.db.Pool)
	combiner := usecase.NewSignalCombiner(
		d.store,
		usecase.Weights{Text: a.cfg.Search.TextWeight, Visual: a.cfg.Search.VisualWeight},
		a.cfg.Search.TextDim,
		a.cfg.Search.VisualDim,
		a.logger,
	)

	searchUC := usecase.NewSearchUC(classifier, d.engine, gatherer, combiner, d.cache, outboxRepo, a.cfg.Search, a.logger)
	productUC := usecase.NewProductUC(
		d.productRepo,
		d.store,
		d.visualIndex,
		outboxRepo,
		tr.NewManager(d.db.Pool),
		d.imagesInfra,
		d.engine,
		d.cache,
		d.cache,
		a.logger,
	)
	healUC := d.healUC(a.logger)

	producer := kafka.NewProducer(a.logger, a.cfg.Kafka)
	a.closer.Add("kafka producer", func(context.Context) error { return producer.Close() })
	if err := producer.EnsureTopic(topicInitTimeout); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	a.outboxWorker = kafka.NewOutboxWorker(outboxRepo, a.logger, producer, d.db.Dsn, pgdb.OutboxChannel)
	a.healConsumer = kafka.NewHealConsumer(a.cfg.Kafka, healUC, a.logger)

	checks := []v1Http.HealthCheck{
		{Name: "postgres", Check: d.db.Ping},
		{Name: "redis", Check: d.redis.Ping},
	}
	if d.qdrant != nil {
		qc := d.qdrant.Client
		checks = append(checks, v1Http.HealthCheck{Name: "qdrant", Check: func(ctx context.Context) error {
			_, err := qc.HealthCheck(ctx)
			return err
		}})
	}

	r := chi.NewRouter()
	v1Http.NewRouter(r, a.logger).Init(v1Http.Handlers{
		Search:  searchUC,
		Product: productUC,
		Heal:    healUC,
		Engine:  d.engine,
		Checks:  checks,
	})
	a.httpSrv = v1Http.NewServer(r, a.cfg.Http)

	a.grpcSrv = v1Grpc.NewGRPCServer(a.cfg.Grpc, a.logger)
	a.grpcSrv.RegisterServices(searchUC)

	return nil
}

// Run запускает серверы и фоновые обработчики и блокируется до сигнала или фатальной ошибки.
func (a *App) Run() error {
	workersCtx, stopWorkers := context.WithCancel(a.ctx)
	a.outboxWorker.Start(workersCtx)
	a.healConsumer.Start(workersCtx)

	// LIFO: сначала серверы, затем обработчики
	a.closer.Add("heal consumer", func(context.Context) error {
		stopWorkers()
		return a.healConsumer.Close()
	})
	a.closer.AddSimple("outbox worker", a.outboxWorker.Stop)
	a.closer.Add("grpc server", a.grpcSrv.Stop)
	a.closer.Add("http server", a.httpSrv.Stop)

	errCh := make(chan error, 2)
	go func() {
		a.logger.Infof("gRPC server starting on %s:%s", a.cfg.Grpc.NetworkMode, a.cfg.Grpc.Port)
		if err := a.grpcSrv.Start(); err != nil {
			errCh <- e.Wrap("grpc server", err)
		}
	}()
	go func() {
		a.logger.Infof("HTTP server started on port %s", a.cfg.Http.Port)
		if err := a.httpSrv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- e.Wrap("http server", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	var appErr error
	select {
	case appErr = <-errCh:
		a.logger.Errorf(appErr, "server fatal error")
	case sig := <-shutdown:
		a.logger.Infof("received %s, stopping gracefully", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.closer.Close(ctx); err != nil {
		a.logger.Errorf(err, "shutdown finished with errors")
		if appErr == nil {
			appErr = err
		}
	} else {
		a.logger.Infof("application shutdown complete")
	}

	return appErr
}
