package usecase

import (
	"context"

	"github.com/DRSN-tech/fashion-search/internal/domain"
)

type SearchUC interface {
	Search(ctx context.Context, req *SearchReq) (*SearchRes, error)
}

type ProductUC interface {
	RegisterProduct(ctx context.Context, req *RegisterProductReq) (*domain.Product, error)
	AnalyzeAndRegister(ctx context.Context, req *AnalyzeProductReq) (*domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int64, hard bool) error
	Recommend(ctx context.Context, id int64, mode RecommendMode) (*RecommendRes, error)
	Ask(ctx context.Context, id int64, question string) (string, error)
}

type HealUC interface {
	HealProduct(ctx context.Context, id int64) (*HealReport, error)
	Backfill(ctx context.Context, batchSize, maxProducts int) (*BackfillRes, error)
}
