package usecase

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/DRSN-tech/fashion-search/internal/domain"
	"github.com/DRSN-tech/fashion-search/pkg/e"
)

// minKeywordRunes — кандидаты короче пропускаются, если есть хотя бы один длиннее.
const minKeywordRunes = 2

// KeywordMatcher перебирает ключевые кандидаты по порядку и возвращает
// результат первого, давшего хотя бы одно совпадение.
type KeywordMatcher struct {
	store VectorStore
}

func NewKeywordMatcher(store VectorStore) *KeywordMatcher {
	return &KeywordMatcher{store: store}
}

// Match возвращает совпадения и ключевое слово, которое их дало.
// textVector может быть nil, тогда порядок — по свежести.
func (m *KeywordMatcher) Match(
	ctx context.Context,
	candidates []string,
	textVector domain.Vector,
	filters domain.SearchFilters,
	limit int,
) ([]domain.Candidate, string, error) {
	const op = "KeywordMatcher.Match"

	for _, kw := range eligibleKeywords(candidates) {
		found, err := m.store.SearchKeyword(ctx, kw, textVector, filters, limit)
		if err != nil {
			return nil, "", e.Wrap(op, err)
		}
		if len(found) > 0 {
			return found, kw, nil
		}
	}

	return nil, "", nil
}

// eligibleKeywords убирает пустые и повторяющиеся кандидаты. Однобуквенные
// кандидаты остаются только если других нет.
func eligibleKeywords(candidates []string) []string {
	seen := make(map[string]struct{}, len(candidates))
	var long, short []string
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}

		if utf8.RuneCountInString(c) >= minKeywordRunes {
			long = append(long, c)
		} else {
			short = append(short, c)
		}
	}

	if len(long) > 0 {
		return long
	}
	return short
}
