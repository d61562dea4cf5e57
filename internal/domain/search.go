package domain

// SearchPath — маршрут обработки запроса.
type SearchPath string

const (
	SearchPathInternal SearchPath = "internal"
	SearchPathExternal SearchPath = "external"
)

// SearchStrategy — уровень ранжирования, который дал результат.
type SearchStrategy string

const (
	StrategyKeyword           SearchStrategy = "keyword"
	StrategyHybridVisual      SearchStrategy = "hybrid_visual"
	StrategyVisual            SearchStrategy = "visual"
	StrategyTextVector        SearchStrategy = "text_vector"
	StrategyRelaxedKeyword    SearchStrategy = "relaxed_keyword"
	StrategyRelaxedTextVector SearchStrategy = "relaxed_text_vector"
	StrategyFallback          SearchStrategy = "fallback"
	StrategyNone              SearchStrategy = "none"
)

// SearchIntent — результат разбора сырого запроса.
type SearchIntent struct {
	Query             string
	Gender            Gender
	CoreKeyword       string
	KeywordCandidates []string // сжатый запрос первым, затем ядро
	Region            Region
	External          bool
	ExternalQuery     string // запрос, оптимизированный для внешнего поиска изображений
}

func (i SearchIntent) Path() SearchPath {
	if i.External {
		return SearchPathExternal
	}

	return SearchPathInternal
}

// SearchFilters — скалярные фильтры, общие для всех уровней поиска.
// Активность и отсутствие soft-delete применяются всегда и здесь не задаются.
type SearchFilters struct {
	Gender            Gender
	MinPrice          *int64
	MaxPrice          *int64
	Categories        []Category
	ExcludeCategories []Category
	ExcludeIDs        []int64
}

// WithoutGender возвращает копию фильтров без ограничения по полу.
func (f SearchFilters) WithoutGender() SearchFilters {
	f.Gender = GenderUnset
	return f
}

// WithExcludedIDs возвращает копию фильтров с дополнительными исключёнными id.
func (f SearchFilters) WithExcludedIDs(ids ...int64) SearchFilters {
	merged := make([]int64, 0, len(f.ExcludeIDs)+len(ids))
	merged = append(merged, f.ExcludeIDs...)
	merged = append(merged, ids...)
	f.ExcludeIDs = merged
	return f
}

// Admits проверяет товар против фильтров (используется вне SQL: кэш, зеркала индексов).
func (f SearchFilters) Admits(p *Product) bool {
	if !f.Gender.Admits(p.Gender) {
		return false
	}
	if f.MinPrice != nil && p.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && p.Price > *f.MaxPrice {
		return false
	}
	if len(f.Categories) > 0 && !containsCategory(f.Categories, p.Category) {
		return false
	}
	if containsCategory(f.ExcludeCategories, p.Category) {
		return false
	}
	for _, id := range f.ExcludeIDs {
		if id == p.ID {
			return false
		}
	}

	return true
}

func containsCategory(list []Category, c Category) bool {
	for _, x := range list {
		if x == c {
			return true
		}
	}

	return false
}

// Candidate — товар в выдаче. Score равен nil для ключевых и резервных уровней.
type Candidate struct {
	Product Product
	Score   *float64
}

func NewCandidate(p Product, score *float64) Candidate {
	return Candidate{Product: p, Score: score}
}

// ScoreFromDistance строит оценку кандидата из косинусного расстояния.
func ScoreFromDistance(d float64) *float64 {
	s := SimilarityFromDistance(d)
	return &s
}
