package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DRSN-tech/image-fingerprint/internal/cfg"
	v1Grpc "github.com/DRSN-tech/image-fingerprint/internal/delivery/v1/grpc"
	v1Http "github.com/DRSN-tech/image-fingerprint/internal/delivery/v1/http"
	"github.com/DRSN-tech/image-fingerprint/internal/domain"
	"github.com/DRSN-tech/image-fingerprint/internal/infrastructure/decoder"
	"github.com/DRSN-tech/image-fingerprint/internal/infrastructure/fetcher"
	"github.com/DRSN-tech/image-fingerprint/internal/infrastructure/handcrafted"
	"github.com/DRSN-tech/image-fingerprint/internal/infrastructure/hasher"
	"github.com/DRSN-tech/image-fingerprint/internal/infrastructure/kafka"
	minioInfra "github.com/DRSN-tech/image-fingerprint/internal/infrastructure/minio"
	"github.com/DRSN-tech/image-fingerprint/internal/infrastructure/onnx"
	"github.com/DRSN-tech/image-fingerprint/internal/infrastructure/preprocess"
	"github.com/DRSN-tech/image-fingerprint/internal/infrastructure/session"
	s3Repo "github.com/DRSN-tech/image-fingerprint/internal/repository/minio"
	"github.com/DRSN-tech/image-fingerprint/internal/repository/pgdb"
	pgdbConv "github.com/DRSN-tech/image-fingerprint/internal/repository/pgdb/converter"
	qdrantRepo "github.com/DRSN-tech/image-fingerprint/internal/repository/qdrant"
	"github.com/DRSN-tech/image-fingerprint/internal/repository/redis"
	redisConv "github.com/DRSN-tech/image-fingerprint/internal/repository/redis/converter"
	"github.com/DRSN-tech/image-fingerprint/internal/usecase"
	"github.com/DRSN-tech/image-fingerprint/pkg/closer"
	"github.com/DRSN-tech/image-fingerprint/pkg/clients"
	"github.com/DRSN-tech/image-fingerprint/pkg/e"
	"github.com/DRSN-tech/image-fingerprint/pkg/logger"
	"github.com/DRSN-tech/image-fingerprint/pkg/postgres"
	"github.com/DRSN-tech/image-fingerprint/pkg/tr"
	"github.com/go-chi/chi/v5"
	"github.com/jimlawless/whereami"
)

const (
	migrationsSource   = "file://db/migrations"
	initTimeout        = 10 * time.Second
	topicTimeout       = 10 * time.Second
	healthSyncInterval = 5 * time.Second
	cleanupWaitTimeout = 5 * time.Second
)

// App держит собранные зависимости сервиса и порядок их закрытия.
type App struct {
	cfg    *cfg.Config
	logger logger.Logger

	fingerprintUC *usecase.FingerprintUseCase
	httpSrv       *v1Http.Server
	grpcSrv       *v1Grpc.GRPCServer
	reporter      *v1Grpc.HealthReporter

	closer *closer.Closer
	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp поднимает клиенты хранилищ, брокера и модели и собирает сценарии.
// При ошибке уже открытые ресурсы закрываются.
func NewApp(config *cfg.Config, log logger.Logger) (_ *App, err error) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		cfg:    config,
		logger: log,
		closer: closer.NewCloser(0),
		ctx:    ctx,
		cancel: cancel,
	}
	defer func() {
		if err != nil {
			a.shutdown()
		}
	}()

	db, err := a.initPGDB()
	if err != nil {
		return nil, err
	}
	txManager := tr.NewManager(db.Pool)
	fingerprintRepo := pgdb.NewFingerprintRepo(db.Pool, pgdbConv.NewFingerprintConverter())
	productImageRepo := pgdb.NewProductImageRepo(db.Pool, pgdbConv.NewProductImageConverter())

	minioClient, err := clients.NewMinIOClient(config.Minio)
	if err != nil {
		log.Errorf(err, "failed to initialize minio client")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	minioCtx, minioCancel := context.WithTimeout(ctx, initTimeout)
	err = clients.EnsureBucket(minioCtx, minioClient, config.Minio.BucketName)
	minioCancel()
	if err != nil {
		log.Errorf(err, "failed to initialize MinIO bucket")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	imageRepo := s3Repo.NewImageRepo(minioClient, config.Minio.BucketName)
	imagesInfra := minioInfra.NewMinioInfrastructure(imageRepo, minioInfra.Config{
		Bucket:          config.Minio.BucketName,
		Prefix:          config.Minio.OriginalsPrefix,
		CleanupAttempts: config.Extract.CleanupAttempts,
	}, log, ctx)
	// фоновые удаления дожидаются до отмены общего контекста
	a.closer.Add("minio cleanup", func(ctx context.Context) error {
		waitCtx, waitCancel := context.WithTimeout(ctx, cleanupWaitTimeout)
		defer waitCancel()
		defer a.cancel()
		return imagesInfra.WaitForCleanup(waitCtx)
	})

	qdrantClient, err := clients.NewQdrantClient(config.Qdrant)
	if err != nil {
		log.Errorf(err, "failed to initialize qdrant")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	a.closer.Add("qdrant", func(context.Context) error { return qdrantClient.Close() })
	qdrantCtx, qdrantCancel := context.WithTimeout(ctx, initTimeout)
	err = clients.EnsureCollection(qdrantCtx, qdrantClient)
	qdrantCancel()
	if err != nil {
		log.Errorf(err, "failed to initialize qdrant collection")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	indexRepo := qdrantRepo.NewIndexRepo(qdrantClient.Client, config.Qdrant)

	redisClient := clients.NewRedisClient(config.Redis)
	a.closer.Add("redis", func(context.Context) error { return redisClient.Close() })
	redisCtx, redisCancel := context.WithTimeout(ctx, initTimeout)
	err = redisClient.Ping(redisCtx)
	redisCancel()
	if err != nil {
		log.Errorf(err, "failed to connect to redis")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	cacheRepo := redis.NewCacheRepo(redisClient, redisConv.NewFingerprintConverter(), config.Redis, log)

	producer := kafka.NewProducer(log, config.Kafka)
	a.closer.Add("kafka producer", func(context.Context) error { return producer.Close() })
	if err := producer.EnsureTopic(topicTimeout); err != nil {
		// топик мог быть создан администратором, запись всё равно попробуем
		log.Warnf("failed to ensure kafka topic %s: %v", config.Kafka.Topic, err)
	}

	loader := onnx.NewLoader(onnx.Config{
		SharedLibraryPath: config.Model.SharedLibraryPath,
		IntraOpThreads:    config.Model.IntraOpThreads,
	}, log)
	sessions := session.NewManager(config.Model.Path, loader, log)
	a.closer.Add("model session", func(context.Context) error { return sessions.Close() })

	imageFetcher := fetcher.NewFetcher(&http.Client{}, fetcher.Config{
		Timeout:    config.Fetch.Timeout,
		MaxBytes:   config.Fetch.MaxBytes,
		RatePerSec: config.Fetch.RatePerSec,
		Burst:      config.Fetch.Burst,
		UserAgent:  config.Fetch.UserAgent,
	})
	codec := decoder.NewCodec()
	contentHasher := hasher.NewHasher()

	a.fingerprintUC = usecase.NewFingerprintUC(
		sessions,
		codec,
		preprocess.NewPreprocessor(config.Model.InputSize),
		handcrafted.NewExtractor(log),
		contentHasher,
		imageFetcher,
		config.Model.Version,
		config.Extract.MaxConcurrent,
		log,
	)

	ingestUC := usecase.NewIngestUC(
		a.fingerprintUC,
		codec,
		contentHasher,
		txManager,
		fingerprintRepo,
		productImageRepo,
		indexRepo,
		cacheRepo,
		imagesInfra,
		producer,
		usecase.RetryPolicy{
			MaxAttempts: config.Extract.InferenceRetry,
			Base:        config.Extract.RetryBaseDelay,
			Max:         config.Extract.RetryMaxDelay,
		},
		log,
	)

	r := chi.NewRouter()
	router := v1Http.NewRouter(r, log)
	router.Init(a.fingerprintUC, ingestUC, v1Http.Limits{
		ExtractTimeout: config.Extract.Timeout,
		MaxFileSize:    config.Extract.MaxUploadBytes,
		MaxBatchImages: config.Extract.MaxBatchImages,
	})
	a.httpSrv = v1Http.NewServer(r, config.Http)

	a.grpcSrv = v1Grpc.NewGRPCServer(config.Grpc, log)
	a.reporter = a.grpcSrv.RegisterServices(a.fingerprintUC)

	a.closer.Add("grpc server", a.grpcSrv.Stop)
	a.closer.Add("http server", a.httpSrv.Stop)

	return a, nil
}

// Run запускает серверы и блокируется до сигнала остановки или падения сервера.
func (a *App) Run() error {
	// модель грузится в фоне, до загрузки /health отвечает degraded
	go func() {
		state := a.fingerprintUC.WarmUp()
		a.reporter.Sync()
		if state != domain.ModelLoaded {
			a.logger.Warnf("model is not available (%s), only handcrafted extraction will work", state)
			return
		}
		a.logger.Infof("model %s loaded", a.cfg.Model.Version)
	}()
	go a.reporter.Run(a.ctx, healthSyncInterval)

	grpcErrCh := make(chan error, 1)
	go func() {
		a.logger.Infof("gRPC server starting on %s:%s", a.cfg.Grpc.NetworkMode, a.cfg.Grpc.Port)
		if err := a.grpcSrv.Start(); err != nil {
			grpcErrCh <- err
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Infof("HTTP server started on %s", a.httpSrv.Addr())
		if err := a.httpSrv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	var appErr error
	select {
	case appErr = <-errCh:
		a.logger.Errorf(appErr, "HTTP server fatal error")
	case appErr = <-grpcErrCh:
		a.logger.Errorf(appErr, "gRPC server fatal error")
	case <-shutdown:
		a.logger.Infof("Received shutdown signal, stopping gracefully...")
	}

	a.shutdown()
	a.logger.Infof("Application shutdown complete")
	return appErr
}

func (a *App) shutdown() {
	defer a.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown)
	defer cancel()

	if err := a.closer.Close(ctx); err != nil {
		a.logger.Errorf(err, "shutdown finished with errors")
	}
}

func (a *App) initPGDB() (*postgres.PgDatabase, error) {
	ctx, cancel := context.WithTimeout(a.ctx, initTimeout)
	defer cancel()

	db, err := postgres.Connect(ctx, a.cfg.Db)
	if err != nil {
		a.logger.Errorf(err, "failed to connect to database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	a.closer.AddFunc("postgres", db.Close)

	if err := db.RunMigrations(migrationsSource, a.logger); err != nil {
		a.logger.Errorf(err, "failed to run migrations")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.Ping(ctx); err != nil {
		a.logger.Errorf(err, "failed to ping database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return db, nil
}
