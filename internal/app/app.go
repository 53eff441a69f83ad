package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jimlawless/whereami"
	config "github.com/modaics/fitsearch/internal/cfg"
	v1Http "github.com/modaics/fitsearch/internal/delivery/v1/http"
	encoderInfra "github.com/modaics/fitsearch/internal/infrastructure/encoder"
	"github.com/modaics/fitsearch/internal/infrastructure/kafka"
	minioInfra "github.com/modaics/fitsearch/internal/infrastructure/minio"
	s3Repo "github.com/modaics/fitsearch/internal/repository/minio"
	"github.com/modaics/fitsearch/internal/repository/pgdb"
	pgdbConv "github.com/modaics/fitsearch/internal/repository/pgdb/converter"
	qdrantRepo "github.com/modaics/fitsearch/internal/repository/qdrant"
	"github.com/modaics/fitsearch/internal/repository/redis"
	redisConv "github.com/modaics/fitsearch/internal/repository/redis/converter"
	"github.com/modaics/fitsearch/internal/usecase"
	"github.com/modaics/fitsearch/pkg/clients"
	"github.com/modaics/fitsearch/pkg/closer"
	"github.com/modaics/fitsearch/pkg/e"
	"github.com/modaics/fitsearch/pkg/logger"
	"github.com/modaics/fitsearch/pkg/postgres"
)

// App собирает зависимости сервиса и управляет их жизненным циклом.
type App struct {
	cfg    *config.Config
	logger logger.Logger

	httpSrv     *v1Http.Server
	imagesInfra *minioInfra.MinioInfrastructure
	relay       *kafka.OutboxRelay
	closer      *closer.Closer

	// bgCancel останавливает фоновые задачи (relay, cleanup) при завершении
	bgCtx    context.Context
	bgCancel context.CancelFunc
}

func NewApp(cfg *config.Config, log logger.Logger) (*App, error) {
	bgCtx, bgCancel := context.WithCancel(context.Background())
	cl := closer.NewCloser(2 * time.Second)

	db, err := initPGDB(log, cfg)
	if err != nil {
		bgCancel()
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	cl.Add(func(ctx context.Context) error {
		db.Close()
		log.Infof("postgres pool closed")
		return nil
	})

	itemConv := pgdbConv.NewItemConverterImpl()
	eventConv := pgdbConv.NewItemEventConverterImpl()
	infoConv := redisConv.NewItemInfoConverterImpl()

	itemRepo := pgdb.NewItemRepo(db.Pool, itemConv)
	outboxRepo := pgdb.NewOutboxEventRepo(db.Pool, eventConv)

	minioClient, err := clients.NewMinIOClient(cfg)
	if err != nil {
		bgCancel()
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	minioCtx, minioCancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = clients.EnsureBucket(minioCtx, minioClient, cfg.Minio.BucketName)
	minioCancel()
	if err != nil {
		bgCancel()
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	imageRepo := s3Repo.NewImageRepo(minioClient, cfg.Minio)
	imagesInfra := minioInfra.NewMinioInfrastructure(imageRepo, cfg.Minio, log, bgCtx)

	qdrantClient, err := clients.NewQdrantClient(cfg.Qdrant)
	if err != nil {
		bgCancel()
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	qdrantCtx, qdrantCancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = clients.EnsureCollection(qdrantCtx, qdrantClient)
	qdrantCancel()
	if err != nil {
		bgCancel()
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	cl.Add(func(ctx context.Context) error {
		return qdrantClient.Client.Close()
	})

	store := qdrantRepo.NewVectorStore(qdrantClient.Client, cfg.Qdrant)

	redisClient := clients.NewRedisClient(cfg.Redis)
	redisCtx, redisCancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = redisClient.Ping(redisCtx)
	redisCancel()
	if err != nil {
		bgCancel()
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	cl.Add(func(ctx context.Context) error {
		return redisClient.Client.Close()
	})

	cacheRepo := redis.NewCacheRepo(redisClient, infoConv, cfg.Redis, log)

	encoder := encoderInfra.NewEncoderService(cfg.Encoder, log)

	producer, err := kafka.NewProducer(log, cfg.Kafka)
	if err != nil {
		bgCancel()
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	if err := producer.EnsureTopic(10 * time.Second); err != nil {
		log.Warnf("failed to ensure kafka topic, relay will retry: %v", err)
	}
	cl.Add(func(ctx context.Context) error {
		return producer.Close()
	})

	relay := kafka.NewOutboxRelay(outboxRepo, producer, log, cfg.Kafka, db.Dsn)

	searchUC := usecase.NewSearchUC(encoder, store, itemRepo, cacheRepo, cfg.Search, log)
	catalogUC := usecase.NewCatalogUC(itemRepo, outboxRepo, db.Pool, encoder, imagesInfra, store, cacheRepo, log)

	r := chi.NewRouter()
	router := v1Http.NewRouter(r, log)
	router.Init(searchUC, catalogUC)

	httpSrv := v1Http.NewServer(r, cfg.Http)

	return &App{
		cfg:         cfg,
		logger:      log,
		httpSrv:     httpSrv,
		imagesInfra: imagesInfra,
		relay:       relay,
		closer:      cl,
		bgCtx:       bgCtx,
		bgCancel:    bgCancel,
	}, nil
}

// Run запускает HTTP-сервер и outbox-релей и блокируется до сигнала
// завершения или фатальной ошибки сервера.
func (a *App) Run() error {
	a.relay.Start(a.bgCtx)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Infof("HTTP server started on port %s", a.cfg.Http.Port)
		if err := a.httpSrv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	var appErr error
	select {
	case appErr = <-errCh:
		a.logger.Errorf(appErr, "HTTP server fatal error")
	case <-shutdown:
		a.logger.Infof("Received shutdown signal, stopping gracefully...")
	}

	a.stop()
	return appErr
}

// stop выполняет graceful shutdown: сервер, фоновые задачи, ресурсы (LIFO).
func (a *App) stop() {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := a.httpSrv.Stop(shutdownCtx); err != nil {
		a.logger.Errorf(err, "HTTP server shutdown error")
	} else {
		a.logger.Infof("HTTP server stopped")
	}

	a.bgCancel()
	a.relay.Stop()
	a.logger.Infof("outbox relay stopped")

	if err := a.imagesInfra.WaitForCleanup(shutdownCtx); err != nil {
		a.logger.Warnf("MinIO cleanup error: %v", err)
	} else {
		a.logger.Infof("MinIO cleanup completed")
	}

	if err := a.closer.Close(shutdownCtx); err != nil {
		a.logger.Warnf("resource shutdown: %v", err)
	}

	a.logger.Infof("Application shutdown complete")
}

func initPGDB(log logger.Logger, cfg *config.Config) (*postgres.PgDatabase, error) {
	db, err := postgres.Connect(cfg.Db)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.RunMigrations(log); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.Ping(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return db, nil
}
