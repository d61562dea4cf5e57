package usecase

import (
	"context"

	"github.com/DRSN-tech/fashion-search/internal/domain"
	"github.com/DRSN-tech/fashion-search/pkg/e"
)

// IndexedVisualStore отдаёт чисто визуальный уровень внешнему индексу и
// гидрирует найденные id из основного хранилища. Остальные уровни идут в store.
type IndexedVisualStore struct {
	VectorStore
	index    VisualIndex
	products ProductRepository
}

func NewIndexedVisualStore(store VectorStore, index VisualIndex, products ProductRepository) *IndexedVisualStore {
	return &IndexedVisualStore{
		VectorStore: store,
		index:       index,
		products:    products,
	}
}

func (s *IndexedVisualStore) SearchVisual(
	ctx context.Context,
	vector domain.Vector,
	region domain.Region,
	filters domain.SearchFilters,
	limit int,
) ([]domain.Candidate, error) {
	const op = "IndexedVisualStore.SearchVisual"

	// Индекс не знает о soft-delete, поэтому берём с запасом.
	scored, err := s.index.Search(ctx, vector, region, filters, limit*2)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	if len(scored) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(scored))
	for _, sc := range scored {
		ids = append(ids, sc.ID)
	}

	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	byID := make(map[int64]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	out := make([]domain.Candidate, 0, limit)
	for _, sc := range scored {
		p, ok := byID[sc.ID]
		if !ok || !p.IsActive || p.DeletedAt != nil || !filters.Admits(&p) {
			continue
		}
		score := domain.SimilarityFromDistance(1 - sc.Score)
		out = append(out, domain.NewCandidate(p, &score))
		if len(out) == limit {
			break
		}
	}

	return out, nil
}
