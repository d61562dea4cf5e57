package pgdb

import (
	"fmt"
	"strings"

	"github.com/DRSN-tech/fashion-search/internal/domain"
	"github.com/DRSN-tech/fashion-search/internal/usecase"
	"github.com/pgvector/pgvector-go"
)

// productColumns — колонки товара без векторов. Признаки отсутствующих векторов
// вычисляются при чтении: NULL или нулевая норма.
const productColumns = `
	id, name, COALESCE(description, ''), price, stock_quantity, category,
	COALESCE(gender, ''), COALESCE(image_url, ''), COALESCE(image_key, ''),
	is_active, created_at, updated_at, deleted_at,
	(text_vector IS NULL OR vector_norm(text_vector) = 0),
	(visual_full IS NULL OR vector_norm(visual_full) = 0),
	(visual_upper IS NULL OR vector_norm(visual_upper) = 0),
	(visual_lower IS NULL OR vector_norm(visual_lower) = 0)`

// baseCondition применяется ко всем поисковым запросам.
const baseCondition = "is_active AND deleted_at IS NULL"

// visualColumns — белый список колонок визуальных векторов по регионам.
var visualColumns = map[domain.Region]string{
	domain.RegionFull:  "visual_full",
	domain.RegionUpper: "visual_upper",
	domain.RegionLower: "visual_lower",
}

// usable — вектор заполнен и не нулевой. Нулевой вектор — заглушка на месте
// испорченного, косинусное расстояние до него не определено.
func usable(col string) string {
	return fmt.Sprintf("(%[1]s IS NOT NULL AND vector_norm(%[1]s) > 0)", col)
}

func visualColumn(r domain.Region) string {
	if col, ok := visualColumns[r]; ok {
		return col
	}
	return visualColumns[domain.RegionFull]
}

// queryBuilder накапливает позиционные аргументы и условия WHERE.
type queryBuilder struct {
	args  []any
	where []string
}

func newQueryBuilder() *queryBuilder {
	return &queryBuilder{where: []string{baseCondition}}
}

func (b *queryBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *queryBuilder) vectorArg(v domain.Vector) string {
	return b.arg(pgvector.NewVector(v)) + "::vector"
}

func (b *queryBuilder) cond(c string) {
	b.where = append(b.where, c)
}

// applyFilters добавляет скалярные фильтры. Фильтр по полу пропускает unisex и товары без пола.
func (b *queryBuilder) applyFilters(f domain.SearchFilters) {
	if f.Gender.IsSet() {
		b.cond(fmt.Sprintf("(gender = %s OR gender = 'Unisex' OR gender IS NULL)", b.arg(string(f.Gender))))
	}
	if f.MinPrice != nil {
		b.cond("price >= " + b.arg(*f.MinPrice))
	}
	if f.MaxPrice != nil {
		b.cond("price <= " + b.arg(*f.MaxPrice))
	}
	if len(f.Categories) > 0 {
		b.cond("category = ANY(" + b.arg(categoryStrings(f.Categories)) + ")")
	}
	if len(f.ExcludeCategories) > 0 {
		b.cond("category <> ALL(" + b.arg(categoryStrings(f.ExcludeCategories)) + ")")
	}
	if len(f.ExcludeIDs) > 0 {
		b.cond("id <> ALL(" + b.arg(f.ExcludeIDs) + ")")
	}
}

func (b *queryBuilder) whereClause() string {
	return strings.Join(b.where, "\n\t\tAND ")
}

// build собирает SELECT. distance — SQL-выражение расстояния или NULL.
func (b *queryBuilder) build(distance, orderBy string, limit int) (string, []any) {
	query := fmt.Sprintf(`
		SELECT %s,
			%s AS distance
		FROM products
		WHERE %s
		ORDER BY %s
		LIMIT %s`,
		productColumns, distance, b.whereClause(), orderBy, b.arg(limit),
	)

	return query, b.args
}

// buildKeywordQuery — подстрочное совпадение без учёта регистра по названию,
// описанию и категории. Совпадения в названии идут первыми, затем по текстовому
// вектору (если задан), затем по свежести.
func buildKeywordQuery(keyword string, textVector domain.Vector, f domain.SearchFilters, limit int) (string, []any) {
	b := newQueryBuilder()
	pattern := b.arg("%" + escapeLike(keyword) + "%")
	b.cond(fmt.Sprintf("(name ILIKE %[1]s OR description ILIKE %[1]s OR category ILIKE %[1]s)", pattern))
	b.applyFilters(f)

	distance := "NULL::float8"
	orderBy := fmt.Sprintf("(name ILIKE %s) DESC, created_at DESC, id DESC", pattern)
	if textVector != nil {
		distance = fmt.Sprintf("CASE WHEN %s THEN text_vector <=> %s END", usable("text_vector"), b.vectorArg(textVector))
		orderBy = fmt.Sprintf("(name ILIKE %s) DESC, distance ASC NULLS LAST, created_at DESC, id DESC", pattern)
	}

	return b.build(distance, orderBy, limit)
}

// buildTextQuery — ближайшие по текстовому вектору.
func buildTextQuery(vector domain.Vector, f domain.SearchFilters, limit int) (string, []any) {
	b := newQueryBuilder()
	b.cond(usable("text_vector"))
	b.applyFilters(f)

	distance := "text_vector <=> " + b.vectorArg(vector)
	return b.build(distance, "distance ASC, id DESC", limit)
}

// buildVisualQuery — ближайшие по визуальному вектору региона.
func buildVisualQuery(vector domain.Vector, region domain.Region, f domain.SearchFilters, limit int) (string, []any) {
	col := visualColumn(region)

	b := newQueryBuilder()
	b.cond(usable(col))
	b.applyFilters(f)

	distance := col + " <=> " + b.vectorArg(vector)
	return b.build(distance, "distance ASC, id DESC", limit)
}

// buildCombinedQuery — взвешенная сумма текстового и визуального расстояний,
// нормированная на сумму весов. Обе колонки обязаны быть заполнены.
func buildCombinedQuery(
	text, visual domain.Vector,
	region domain.Region,
	w usecase.Weights,
	f domain.SearchFilters,
	limit int,
) (string, []any) {
	col := visualColumn(region)
	wt, wv := normalizeWeights(w)

	b := newQueryBuilder()
	b.cond(usable("text_vector"))
	b.cond(usable(col))
	b.applyFilters(f)

	distance := fmt.Sprintf("(%s::float8 * (text_vector <=> %s) + %s::float8 * (%s <=> %s))",
		b.arg(wt), b.vectorArg(text), b.arg(wv), col, b.vectorArg(visual))
	return b.build(distance, "distance ASC, id DESC", limit)
}

// buildRecentQuery — свежие активные товары.
func buildRecentQuery(f domain.SearchFilters, limit int) (string, []any) {
	b := newQueryBuilder()
	b.applyFilters(f)
	return b.build("NULL::float8", "created_at DESC, id DESC", limit)
}

func normalizeWeights(w usecase.Weights) (float64, float64) {
	sum := w.Text + w.Visual
	if sum <= 0 {
		return 0, 1
	}
	return w.Text / sum, w.Visual / sum
}

// escapeLike экранирует метасимволы LIKE, чтобы ключевое слово искалось буквально.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func categoryStrings(list []domain.Category) []string {
	out := make([]string, 0, len(list))
	for _, c := range list {
		out = append(out, string(c))
	}
	return out
}
