package pgdb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/DRSN-tech/fashion-search/internal/domain"
	"github.com/DRSN-tech/fashion-search/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/fashion-search/internal/usecase"
	"github.com/DRSN-tech/fashion-search/pkg/e"
	"github.com/DRSN-tech/fashion-search/pkg/tr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
	"github.com/pgvector/pgvector-go"
)

// ProductRepo реализует репозиторий товаров поверх PostgreSQL.
type ProductRepo struct {
	pool *pgxpool.Pool
	conv converter.ProductConverter
}

func NewProductRepo(pool *pgxpool.Pool) *ProductRepo {
	return &ProductRepo{pool: pool}
}

// Create вставляет товар с векторами. Работает внутри транзакции из контекста.
func (p *ProductRepo) Create(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	query := `
		INSERT INTO products (
			name, description, price, stock_quantity, category, gender,
			image_url, image_key, text_vector, visual_full, visual_upper, visual_lower, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at
	`

	created := *product
	err = tx.QueryRow(ctx, query,
		product.Name,
		nullIfEmpty(product.Description),
		product.Price,
		product.StockQuantity,
		string(product.Category),
		nullIfEmpty(string(product.Gender)),
		nullIfEmpty(product.ImageURL),
		nullIfEmpty(product.ImageKey),
		vectorOrNil(product.Vectors.Text),
		vectorOrNil(product.Vectors.Full),
		vectorOrNil(product.Vectors.Upper),
		vectorOrNil(product.Vectors.Lower),
		product.IsActive,
	).Scan(&created.ID, &created.CreatedAt)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	created.Health = healthOf(&created)
	return &created, nil
}

// GetByID возвращает неудалённый товар.
func (p *ProductRepo) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products
		WHERE id = $1 AND deleted_at IS NULL
	`

	var model converter.ProductModel
	if err := p.pool.QueryRow(ctx, query, id).Scan(productDest(&model)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, e.Wrap(whereami.WhereAmI(), e.ErrProductNotFound)
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return p.conv.ToEntity(&model), nil
}

// GetByIDs возвращает товары по id, включая неактивные и удалённые. Порядок не гарантирован.
func (p *ProductRepo) GetByIDs(ctx context.Context, ids []int64) ([]domain.Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products
		WHERE id = ANY($1)
	`

	rows, err := p.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	result := make([]domain.Product, 0, len(ids))
	for rows.Next() {
		var model converter.ProductModel
		if err := rows.Scan(productDest(&model)...); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		result = append(result, *p.conv.ToEntity(&model))
	}
	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return result, nil
}

// GetWithVectors возвращает неудалённый товар вместе с векторами. Отсутствующие векторы — nil.
func (p *ProductRepo) GetWithVectors(ctx context.Context, id int64) (*domain.Product, error) {
	query := `SELECT ` + productColumns + `,
			text_vector, visual_full, visual_upper, visual_lower
		FROM products
		WHERE id = $1 AND deleted_at IS NULL
	`

	var (
		model                    converter.ProductModel
		text, full, upper, lower *pgvector.Vector
	)
	dest := append(productDest(&model), &text, &full, &upper, &lower)
	if err := p.pool.QueryRow(ctx, query, id).Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, e.Wrap(whereami.WhereAmI(), e.ErrProductNotFound)
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	product := p.conv.ToEntity(&model)
	product.Vectors = domain.ProductVectors{
		Text:  sliceOf(text),
		Full:  sliceOf(full),
		Upper: sliceOf(upper),
		Lower: sliceOf(lower),
	}

	return product, nil
}

// UpdateDerived обновляет только переданные производные поля одним UPDATE.
func (p *ProductRepo) UpdateDerived(ctx context.Context, id int64, upd *usecase.DerivedUpdate) error {
	if upd.Empty() {
		return nil
	}

	var (
		sets []string
		args []any
	)
	add := func(expr string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}

	if upd.Description != nil {
		add("description = $%d", *upd.Description)
	}
	if upd.TextVector != nil {
		add("text_vector = $%d::vector", pgvector.NewVector(upd.TextVector))
	}
	for _, r := range domain.Regions() {
		if v, ok := upd.Visual[r]; ok && v != nil {
			add(visualColumn(r)+" = $%d::vector", pgvector.NewVector(v))
		}
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE products SET %s WHERE id = $%d AND deleted_at IS NULL`,
		strings.Join(sets, ", "), len(args))

	tag, err := tr.QuerierFromCtx(ctx, p.pool).Exec(ctx, query, args...)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	if tag.RowsAffected() == 0 {
		return e.Wrap(whereami.WhereAmI(), e.ErrProductNotFound)
	}

	return nil
}

func (p *ProductRepo) SoftDelete(ctx context.Context, id int64) error {
	query := `
		UPDATE products
		SET deleted_at = NOW(), is_active = FALSE, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`

	tag, err := p.pool.Exec(ctx, query, id)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	if tag.RowsAffected() == 0 {
		return e.Wrap(whereami.WhereAmI(), e.ErrProductNotFound)
	}

	return nil
}

func (p *ProductRepo) HardDelete(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	if tag.RowsAffected() == 0 {
		return e.Wrap(whereami.WhereAmI(), e.ErrProductNotFound)
	}

	return nil
}

// ListNeedingHeal возвращает id товаров с повреждёнными производными полями после afterID.
func (p *ProductRepo) ListNeedingHeal(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	query := `
		SELECT id
		FROM products
		WHERE deleted_at IS NULL
		  AND id > $1
		  AND (
			text_vector IS NULL OR vector_norm(text_vector) = 0
			OR visual_full IS NULL OR vector_norm(visual_full) = 0
			OR visual_upper IS NULL OR vector_norm(visual_upper) = 0
			OR visual_lower IS NULL OR vector_norm(visual_lower) = 0
			OR description IS NULL
			OR lower(btrim(description)) = ANY($2)
		  )
		ORDER BY id
		LIMIT $3
	`

	rows, err := p.pool.Query(ctx, query, afterID, badDescriptionsLower(), limit)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	ids := make([]int64, 0, limit)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return ids, nil
}

func badDescriptionsLower() []string {
	out := []string{""}
	for _, d := range domain.KnownBadDescriptions() {
		out = append(out, strings.ToLower(d))
	}
	return out
}

func healthOf(p *domain.Product) domain.ProductHealth {
	return domain.ProductHealth{
		MissingText:    !p.Vectors.Text.Usable(domain.TextVectorDim),
		MissingFull:    !p.Vectors.Full.Usable(domain.VisualVectorDim),
		MissingUpper:   !p.Vectors.Upper.Usable(domain.VisualVectorDim),
		MissingLower:   !p.Vectors.Lower.Usable(domain.VisualVectorDim),
		BadDescription: domain.IsBadDescription(p.Description),
	}
}

func vectorOrNil(v domain.Vector) any {
	if v == nil {
		return nil
	}
	return pgvector.NewVector(v)
}

func sliceOf(v *pgvector.Vector) domain.Vector {
	if v == nil {
		return nil
	}
	return v.Slice()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
