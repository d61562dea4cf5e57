package pgdb

import (
	"context"
	"fmt"

	"github.com/DRSN-tech/fashion-search/internal/domain"
	"github.com/DRSN-tech/fashion-search/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/fashion-search/internal/usecase"
	"github.com/DRSN-tech/fashion-search/pkg/e"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

// VectorStore выполняет поисковые запросы над таблицей products (pgvector).
type VectorStore struct {
	pool *pgxpool.Pool
	conv converter.ProductConverter
}

func NewVectorStore(pool *pgxpool.Pool) *VectorStore {
	return &VectorStore{pool: pool}
}

func (s *VectorStore) SearchKeyword(ctx context.Context, keyword string, textVector domain.Vector, filters domain.SearchFilters, limit int) ([]domain.Candidate, error) {
	query, args := buildKeywordQuery(keyword, textVector, filters, limit)
	return s.query(ctx, query, args)
}

func (s *VectorStore) SearchText(ctx context.Context, vector domain.Vector, filters domain.SearchFilters, limit int) ([]domain.Candidate, error) {
	query, args := buildTextQuery(vector, filters, limit)
	return s.query(ctx, query, args)
}

func (s *VectorStore) SearchVisual(ctx context.Context, vector domain.Vector, region domain.Region, filters domain.SearchFilters, limit int) ([]domain.Candidate, error) {
	query, args := buildVisualQuery(vector, region, filters, limit)
	return s.query(ctx, query, args)
}

func (s *VectorStore) SearchCombined(ctx context.Context, text, visual domain.Vector, region domain.Region, weights usecase.Weights, filters domain.SearchFilters, limit int) ([]domain.Candidate, error) {
	query, args := buildCombinedQuery(text, visual, region, weights, filters, limit)
	return s.query(ctx, query, args)
}

func (s *VectorStore) ListRecent(ctx context.Context, filters domain.SearchFilters, limit int) ([]domain.Candidate, error) {
	query, args := buildRecentQuery(filters, limit)
	return s.query(ctx, query, args)
}

func (s *VectorStore) query(ctx context.Context, query string, args []any) ([]domain.Candidate, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", whereami.WhereAmI(), e.ErrStorage, err)
	}
	defer rows.Close()

	result := make([]domain.Candidate, 0)
	for rows.Next() {
		c, err := s.scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %v", whereami.WhereAmI(), e.ErrStorage, err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", whereami.WhereAmI(), e.ErrStorage, err)
	}

	return result, nil
}

func (s *VectorStore) scanCandidate(rows pgx.Rows) (domain.Candidate, error) {
	var (
		model    converter.ProductModel
		distance *float64
	)
	dest := append(productDest(&model), &distance)
	if err := rows.Scan(dest...); err != nil {
		return domain.Candidate{}, err
	}

	var score *float64
	if distance != nil {
		score = domain.ScoreFromDistance(*distance)
	}

	return domain.NewCandidate(*s.conv.ToEntity(&model), score), nil
}

// productDest — приёмники Scan в порядке productColumns.
func productDest(m *converter.ProductModel) []any {
	return []any{
		&m.ID, &m.Name, &m.Description, &m.Price, &m.StockQuantity, &m.Category,
		&m.Gender, &m.ImageURL, &m.ImageKey,
		&m.IsActive, &m.CreatedAt, &m.UpdatedAt, &m.DeletedAt,
		&m.MissingText, &m.MissingFull, &m.MissingUpper, &m.MissingLower,
	}
}
