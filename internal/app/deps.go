package app

import (
	"context"
	"net/http"
	"time"

	config "github.com/DRSN-tech/fashion-search/internal/cfg"
	"github.com/DRSN-tech/fashion-search/internal/infrastructure"
	"github.com/DRSN-tech/fashion-search/internal/infrastructure/engine"
	"github.com/DRSN-tech/fashion-search/internal/infrastructure/evidence"
	minioInfra "github.com/DRSN-tech/fashion-search/internal/infrastructure/minio"
	"github.com/DRSN-tech/fashion-search/internal/intent"
	s3Repo "github.com/DRSN-tech/fashion-search/internal/repository/minio"
	"github.com/DRSN-tech/fashion-search/internal/repository/pgdb"
	qdrantRepo "github.com/DRSN-tech/fashion-search/internal/repository/qdrant"
	"github.com/DRSN-tech/fashion-search/internal/repository/redis"
	"github.com/DRSN-tech/fashion-search/internal/usecase"
	"github.com/DRSN-tech/fashion-search/pkg/clients"
	"github.com/DRSN-tech/fashion-search/pkg/closer"
	"github.com/DRSN-tech/fashion-search/pkg/e"
	"github.com/DRSN-tech/fashion-search/pkg/logger"
	"github.com/DRSN-tech/fashion-search/pkg/postgres"
	"github.com/jimlawless/whereami"
)

const initTimeout = 10 * time.Second

// deps — общие зависимости сервера и утилиты backfill.
type deps struct {
	db          *postgres.PgDatabase
	redis       *clients.RedisClient
	qdrant      *clients.QdrantClient // nil, если Qdrant выключен
	engine      *engine.Engine
	imagesInfra *minioInfra.MinioInfrastructure

	productRepo *pgdb.ProductRepo
	store       usecase.VectorStore
	visualIndex usecase.VisualIndex
	cache       *redis.CacheRepo
}

// buildDeps поднимает хранилища и клиентов моделей. Всё открытое регистрируется в closer,
// поэтому при ошибке достаточно закрыть его.
func buildDeps(ctx context.Context, cfg *config.Config, log logger.Logger, cl *closer.Closer) (*deps, error) {
	d := &deps{}

	if err := postgres.RunMigrations(cfg.Db.DSN(), postgres.DefaultMigrationsURL, log); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	db, err := postgres.Connect(cfg.Db)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	cl.AddSimple("postgres", db.Close)
	d.db = db

	pingCtx, cancel := context.WithTimeout(ctx, initTimeout)
	defer cancel()

	if err := db.Ping(pingCtx); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	d.redis = clients.NewRedisClient(cfg.Redis)
	cl.Add("redis", func(context.Context) error { return d.redis.Close() })
	if err := d.redis.Ping(pingCtx); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	minioClient, err := clients.NewMinIOClient(cfg.Minio)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	if err := clients.EnsureBucket(pingCtx, minioClient, cfg.Minio.BucketName); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	d.productRepo = pgdb.NewProductRepo(db.Pool)
	d.store = pgdb.NewVectorStore(db.Pool)
	d.cache = redis.NewCacheRepo(d.redis, cfg.Redis, log)

	if cfg.Qdrant.Enabled {
		qc, err := clients.NewQdrantClient(cfg.Qdrant)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		cl.Add("qdrant", func(context.Context) error { return qc.Close() })
		if err := clients.EnsureCollection(pingCtx, qc); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		d.qdrant = qc

		visualRepo := qdrantRepo.NewVisualRepo(qc.Client, cfg.Qdrant)
		d.visualIndex = visualRepo
		if cfg.Search.VisualBackend == config.VisualBackendQdrant {
			d.store = usecase.NewIndexedVisualStore(d.store, visualRepo, d.productRepo)
			log.Infof("visual search served by qdrant collection %s", cfg.Qdrant.QdrantCollectionName)
		}
	}

	eng, err := engine.New(pingCtx,
		engine.NewDialer(cfg.Llm, cfg.Ml, cfg.Search.TextDim, log),
		infrastructure.NewRetryPolicy(cfg.Llm.MaxRetries, cfg.Llm.CallTimeout),
		infrastructure.NewRetryPolicy(cfg.Ml.MaxRetries, cfg.Ml.CallTimeout),
		log,
	)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	cl.Add("model engine", func(context.Context) error { return eng.Close() })
	d.engine = eng

	d.imagesInfra = minioInfra.NewMinioInfrastructure(s3Repo.NewImageRepo(minioClient, cfg.Minio), cfg.Minio, log, ctx)
	cl.Add("minio cleanup", d.imagesInfra.WaitForCleanup)

	return d, nil
}

func (d *deps) healUC(log logger.Logger) *usecase.HealUseCase {
	return usecase.NewHealUC(d.productRepo, d.visualIndex, d.imagesInfra, d.engine, d.cache, d.cache, log)
}

// buildEvidence возвращает nil, если внешний поиск выключен.
func buildEvidence(ctx context.Context, cfg *config.Config, d *deps, log logger.Logger) (usecase.EvidenceGatherer, error) {
	if !cfg.External.Enabled {
		log.Infof("external image evidence disabled")
		return nil, nil
	}

	searcher, err := evidence.NewGoogleImageSearch(ctx, cfg.External.GoogleAPIKey, cfg.External.GoogleCX)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	client := &http.Client{Timeout: cfg.External.DownloadTimeout}
	return evidence.NewGatherer(searcher, redis.NewQuotaRepo(d.redis), d.engine, client, cfg.External, log), nil
}

func buildClassifier(cfg *config.Config) (*intent.Classifier, error) {
	var (
		lex *intent.Lexicon
		err error
	)
	if cfg.Intent.LexiconPath != "" {
		lex, err = intent.LoadLexicon(cfg.Intent.LexiconPath)
	} else {
		lex, err = intent.DefaultLexicon()
	}
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return intent.NewClassifier(lex), nil
}
