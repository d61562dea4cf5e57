package usecase

import (
	"context"

	"github.com/DRSN-tech/fashion-search/internal/domain"
)

type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) (*domain.Product, error)
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	GetByIDs(ctx context.Context, ids []int64) ([]domain.Product, error)
	GetWithVectors(ctx context.Context, id int64) (*domain.Product, error)
	UpdateDerived(ctx context.Context, id int64, upd *DerivedUpdate) error
	SoftDelete(ctx context.Context, id int64) error
	HardDelete(ctx context.Context, id int64) error
	ListNeedingHeal(ctx context.Context, afterID int64, limit int) ([]int64, error)
}

// VectorStore — хранилище товаров с векторным поиском. Все методы применяют
// базовое условие (активен, не удалён) и скалярные фильтры.
type VectorStore interface {
	SearchKeyword(ctx context.Context, keyword string, textVector domain.Vector, filters domain.SearchFilters, limit int) ([]domain.Candidate, error)
	SearchText(ctx context.Context, vector domain.Vector, filters domain.SearchFilters, limit int) ([]domain.Candidate, error)
	SearchVisual(ctx context.Context, vector domain.Vector, region domain.Region, filters domain.SearchFilters, limit int) ([]domain.Candidate, error)
	SearchCombined(ctx context.Context, text, visual domain.Vector, region domain.Region, weights Weights, filters domain.SearchFilters, limit int) ([]domain.Candidate, error)
	ListRecent(ctx context.Context, filters domain.SearchFilters, limit int) ([]domain.Candidate, error)
}

// VisualIndex — внешний индекс визуальных векторов (Qdrant).
type VisualIndex interface {
	Upsert(ctx context.Context, point *domain.VisualPoint) error
	Delete(ctx context.Context, productID int64) error
	Search(ctx context.Context, vector domain.Vector, region domain.Region, filters domain.SearchFilters, limit int) ([]ScoredID, error)
}

// ScoredID — идентификатор товара и сходство из внешнего индекса.
type ScoredID struct {
	ID    int64
	Score float64
}

type ImageRepository interface {
	Upload(ctx context.Context, image *domain.Image) (string, error)
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

type OutboxRepository interface {
	Create(ctx context.Context, event *OutboxEvent) error
	GetAndMarkAsProcessing(ctx context.Context, limit int) ([]OutboxEvent, error)
	MarkAsProcessed(ctx context.Context, ids []int64) error
	EnqueueHeal(ctx context.Context, events []OutboxEvent) error
}

type SearchCacheRepository interface {
	Generation(ctx context.Context) (int64, error)
	BumpGeneration(ctx context.Context) error
	GetSearch(ctx context.Context, key string) (*SearchRes, bool, error)
	SetSearch(ctx context.Context, key string, res *SearchRes) error
}

type ProductCacheRepository interface {
	GetProducts(ctx context.Context, ids []int64) (map[int64]domain.Product, error)
	SetProducts(ctx context.Context, products []domain.Product) error
	DeleteProducts(ctx context.Context, ids []int64) error
}
