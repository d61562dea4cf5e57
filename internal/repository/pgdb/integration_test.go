//go:build integration

package pgdb

import (
	"context"
	"testing"
	"time"

	"github.com/DRSN-tech/fashion-search/internal/domain"
	"github.com/DRSN-tech/fashion-search/internal/usecase"
	"github.com/DRSN-tech/fashion-search/pkg/logger"
	pg "github.com/DRSN-tech/fashion-search/pkg/postgres"
	"github.com/DRSN-tech/fashion-search/pkg/tr"
	transaction "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupDB(t *testing.T) *pg.PgDatabase {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"pgvector/pgvector:pg17",
		postgres.WithDatabase("fashion_test"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, pg.RunMigrations(dsn, "file://../../../db/migrations", logger.NewNop()))

	db, err := pg.ConnectDSN(nil, dsn)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	return db
}

func unit(dim, hot int) domain.Vector {
	v := make(domain.Vector, dim)
	v[hot] = 1
	return v
}

func insert(t *testing.T, db *pg.PgDatabase, p *domain.Product) *domain.Product {
	t.Helper()
	ctx := context.Background()

	ctx, tx, err := transaction.NewTransaction(ctx, pgx.TxOptions{}, db.Pool)
	require.NoError(t, err)
	ctx = tr.WithTx(ctx, tx.Transaction())

	created, err := NewProductRepo(db.Pool).Create(ctx, p)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	return created
}

func TestVectorStoreQueryShapes(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	store := NewVectorStore(db.Pool)

	jacket := domain.NewProduct("블랙 자켓", "오버핏 울 자켓", 89000, 3, domain.CategoryOuterwear, domain.GenderMale)
	jacket.Vectors = domain.ProductVectors{Text: unit(768, 0), Full: unit(512, 0), Upper: unit(512, 0), Lower: unit(512, 0)}
	jacket = insert(t, db, jacket)

	dress := domain.NewProduct("플라워 원피스", "AI 분석 실패", 59000, 1, domain.CategoryDresses, domain.GenderFemale)
	dress.Vectors = domain.ProductVectors{Text: unit(768, 1), Full: unit(512, 1)}
	dress = insert(t, db, dress)

	hoodie := domain.NewProduct("그레이 후드", "기본 후드", 39000, 5, domain.CategoryTops, domain.GenderUnisex)
	hoodie.Vectors = domain.ProductVectors{Text: unit(768, 2), Full: unit(512, 2)}
	hoodie = insert(t, db, hoodie)

	t.Run("keyword with gender filter admits unisex", func(t *testing.T) {
		got, err := store.SearchKeyword(ctx, "후드", nil, domain.SearchFilters{Gender: domain.GenderMale}, 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, hoodie.ID, got[0].Product.ID)
		assert.Nil(t, got[0].Score)
	})

	t.Run("text vector", func(t *testing.T) {
		got, err := store.SearchText(ctx, unit(768, 1), domain.SearchFilters{}, 10)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, dress.ID, got[0].Product.ID)
		assert.InDelta(t, 1.0, *got[0].Score, 1e-6)
		assert.True(t, got[0].Product.Health.BadDescription)
		assert.True(t, got[0].Product.Health.MissingUpper)
	})

	t.Run("visual region skips null columns", func(t *testing.T) {
		got, err := store.SearchVisual(ctx, unit(512, 0), domain.RegionUpper, domain.SearchFilters{}, 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, jacket.ID, got[0].Product.ID)
	})

	t.Run("combined", func(t *testing.T) {
		got, err := store.SearchCombined(ctx, unit(768, 2), unit(512, 2), domain.RegionFull,
			usecase.Weights{Text: 0.1, Visual: 0.9}, domain.SearchFilters{}, 10)
		require.NoError(t, err)
		require.NotEmpty(t, got)
		assert.Equal(t, hoodie.ID, got[0].Product.ID)
	})

	t.Run("recent excludes soft deleted", func(t *testing.T) {
		repo := NewProductRepo(db.Pool)
		require.NoError(t, repo.SoftDelete(ctx, jacket.ID))

		got, err := store.ListRecent(ctx, domain.SearchFilters{}, 10)
		require.NoError(t, err)
		for _, c := range got {
			assert.NotEqual(t, jacket.ID, c.Product.ID)
		}
	})

	t.Run("heal listing and derived update", func(t *testing.T) {
		repo := NewProductRepo(db.Pool)
		ids, err := repo.ListNeedingHeal(ctx, 0, 10)
		require.NoError(t, err)
		assert.Contains(t, ids, dress.ID)

		desc := "꽃무늬 롱 원피스"
		require.NoError(t, repo.UpdateDerived(ctx, dress.ID, &usecase.DerivedUpdate{
			Description: &desc,
			Visual: map[domain.Region]domain.Vector{
				domain.RegionUpper: unit(512, 1),
				domain.RegionLower: unit(512, 1),
			},
		}))

		p, err := repo.GetWithVectors(ctx, dress.ID)
		require.NoError(t, err)
		assert.False(t, p.Health.Broken())
		assert.Len(t, p.Vectors.Upper, 512)
	})
}

func TestVectorStoreSkipsZeroVectors(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	store := NewVectorStore(db.Pool)

	coat := domain.NewProduct("네이비 코트", "울 코트", 159000, 2, domain.CategoryOuterwear, domain.GenderFemale)
	coat.Vectors = domain.ProductVectors{
		Text:  make(domain.Vector, 768),
		Full:  unit(512, 3),
		Upper: make(domain.Vector, 512),
	}
	coat = insert(t, db, coat)

	t.Run("visual", func(t *testing.T) {
		got, err := store.SearchVisual(ctx, unit(512, 3), domain.RegionUpper, domain.SearchFilters{}, 10)
		require.NoError(t, err)
		assert.Empty(t, got)

		got, err = store.SearchVisual(ctx, unit(512, 3), domain.RegionFull, domain.SearchFilters{}, 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, coat.ID, got[0].Product.ID)
	})

	t.Run("text with gender filter", func(t *testing.T) {
		got, err := store.SearchText(ctx, unit(768, 0), domain.SearchFilters{Gender: domain.GenderFemale}, 10)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("combined", func(t *testing.T) {
		got, err := store.SearchCombined(ctx, unit(768, 0), unit(512, 3), domain.RegionFull,
			usecase.Weights{Text: 0.1, Visual: 0.9}, domain.SearchFilters{}, 10)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("keyword keeps row without score", func(t *testing.T) {
		got, err := store.SearchKeyword(ctx, "코트", unit(768, 0), domain.SearchFilters{}, 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Nil(t, got[0].Score)
	})
}

func TestOutboxEnqueueDeduplicatesPending(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	repo := NewOutboxEventRepo(db.Pool)

	first, err := usecase.NewHealEvent(42, "test")
	require.NoError(t, err)
	second, err := usecase.NewHealEvent(42, "test")
	require.NoError(t, err)

	require.NoError(t, repo.EnqueueHeal(ctx, []usecase.OutboxEvent{*first, *second}))

	events, err := repo.GetAndMarkAsProcessing(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, usecase.Processing, events[0].Status)

	require.NoError(t, repo.MarkAsProcessed(ctx, []int64{events[0].ID}))
}
