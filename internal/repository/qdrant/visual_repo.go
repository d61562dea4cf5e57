package qdrant

import (
	"context"

	"github.com/DRSN-tech/fashion-search/internal/cfg"
	"github.com/DRSN-tech/fashion-search/internal/domain"
	"github.com/DRSN-tech/fashion-search/internal/usecase"
	"github.com/DRSN-tech/fashion-search/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/qdrant/go-client/qdrant"
)

// VisualRepo — зеркало визуальных векторов товаров в Qdrant.
// Точка = товар, именованные векторы full/upper/lower, payload для фильтров.
type VisualRepo struct {
	client *qdrant.Client
	cfg    *cfg.QdrantCfg
}

func NewVisualRepo(client *qdrant.Client, cfg *cfg.QdrantCfg) *VisualRepo {
	return &VisualRepo{
		client: client,
		cfg:    cfg,
	}
}

// Upsert сохраняет или заменяет точку товара. Точка без векторов удаляется.
func (q *VisualRepo) Upsert(ctx context.Context, point *domain.VisualPoint) error {
	if len(point.Vectors) == 0 {
		return q.Delete(ctx, point.ProductID)
	}

	vectors := make(map[string]*qdrant.Vector, len(point.Vectors))
	for region, v := range point.Vectors {
		vectors[string(region)] = qdrant.NewVector(v...)
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.cfg.QdrantCollectionName,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDNum(uint64(point.ProductID)),
			Vectors: qdrant.NewVectorsMap(vectors),
			Payload: qdrant.NewValueMap(payloadOf(point)),
		}},
	})
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

func (q *VisualRepo) Delete(ctx context.Context, productID int64) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.cfg.QdrantCollectionName,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(qdrant.NewIDNum(uint64(productID))),
	})
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// Search ищет ближайшие точки по вектору региона. Score — косинусное сходство.
func (q *VisualRepo) Search(
	ctx context.Context,
	vector domain.Vector,
	region domain.Region,
	filters domain.SearchFilters,
	limit int,
) ([]usecase.ScoredID, error) {
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.cfg.QdrantCollectionName,
		Query:          qdrant.NewQuery(vector...),
		Using:          qdrant.PtrOf(string(region)),
		Filter:         buildFilter(filters),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(false),
	})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	out := make([]usecase.ScoredID, 0, len(points))
	for _, p := range points {
		out = append(out, usecase.ScoredID{
			ID:    int64(p.GetId().GetNum()),
			Score: float64(p.GetScore()),
		})
	}

	return out, nil
}

func payloadOf(point *domain.VisualPoint) map[string]any {
	return map[string]any{
		"product_id": point.ProductID,
		"gender":     string(point.Gender),
		"category":   string(point.Category),
		"price":      point.Price,
	}
}

// buildFilter переводит скалярные фильтры в фильтр Qdrant.
// Фильтр по полу пропускает unisex и товары без пола.
func buildFilter(f domain.SearchFilters) *qdrant.Filter {
	filter := &qdrant.Filter{}

	if f.Gender.IsSet() {
		filter.Must = append(filter.Must, qdrant.NewFilterAsCondition(&qdrant.Filter{
			Should: []*qdrant.Condition{
				qdrant.NewMatch("gender", string(f.Gender)),
				qdrant.NewMatch("gender", string(domain.GenderUnisex)),
				qdrant.NewMatch("gender", ""),
			},
		}))
	}

	if f.MinPrice != nil || f.MaxPrice != nil {
		r := &qdrant.Range{}
		if f.MinPrice != nil {
			r.Gte = qdrant.PtrOf(float64(*f.MinPrice))
		}
		if f.MaxPrice != nil {
			r.Lte = qdrant.PtrOf(float64(*f.MaxPrice))
		}
		filter.Must = append(filter.Must, qdrant.NewRange("price", r))
	}

	if len(f.Categories) > 0 {
		filter.Must = append(filter.Must, qdrant.NewMatchKeywords("category", categoryStrings(f.Categories)...))
	}

	if len(f.ExcludeCategories) > 0 {
		filter.MustNot = append(filter.MustNot, qdrant.NewMatchKeywords("category", categoryStrings(f.ExcludeCategories)...))
	}

	if len(f.ExcludeIDs) > 0 {
		ids := make([]*qdrant.PointId, 0, len(f.ExcludeIDs))
		for _, id := range f.ExcludeIDs {
			ids = append(ids, qdrant.NewIDNum(uint64(id)))
		}
		filter.MustNot = append(filter.MustNot, qdrant.NewHasID(ids...))
	}

	if len(filter.Must) == 0 && len(filter.MustNot) == 0 {
		return nil
	}

	return filter
}

func categoryStrings(list []domain.Category) []string {
	out := make([]string, 0, len(list))
	for _, c := range list {
		out = append(out, string(c))
	}
	return out
}
