// Package intent разбирает сырой поисковый запрос: пол, ядро ключевых слов,
// регион изображения и маршрут (внутренний или внешний поиск).
package intent

import (
	"strings"
	"unicode"

	"github.com/DRSN-tech/fashion-search/internal/domain"
)

const (
	minNameRunes = 2
	maxNameRunes = 4
	// после снятия частицы или служебного суффикса должно остаться хотя бы столько символов
	minStemRunes = 2
)

// Options — данные запроса помимо текста.
type Options struct {
	HasImage bool
	// Region задаётся явно только при переходе из карточки кандидата; иначе full.
	Region domain.Region
}

// Classifier — чистая функция над словарём, без сетевых вызовов.
type Classifier struct {
	lex *Lexicon
}

func NewClassifier(lex *Lexicon) *Classifier {
	return &Classifier{lex: lex}
}

// Version возвращает версию словаря (входит в ключ кэша поиска).
func (c *Classifier) Version() int {
	return c.lex.Version
}

// Classify строит намерение запроса.
func (c *Classifier) Classify(query string, opts Options) domain.SearchIntent {
	query = strings.TrimSpace(query)

	region := opts.Region
	if region == "" {
		region = domain.RegionFull
	}

	core := c.CoreKeyword(query)

	return domain.SearchIntent{
		Query:             query,
		Gender:            c.Gender(query),
		CoreKeyword:       core,
		KeywordCandidates: keywordCandidates(query, core),
		Region:            region,
		External:          c.IsExternal(query),
		ExternalQuery:     c.externalQuery(core),
	}
}

// Gender определяет пол по подстроке без учёта регистра: побеждает первое правило
// с совпадением. Female стоит раньше Male, потому что "women" содержит "men".
func (c *Classifier) Gender(query string) domain.Gender {
	lower := strings.ToLower(query)

	for _, rule := range c.lex.GenderRules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return rule.Gender
			}
		}
	}

	return domain.GenderUnset
}

// CoreKeyword вырезает служебные слова и частицы. Если ничего не осталось, возвращает исходный запрос.
func (c *Classifier) CoreKeyword(query string) string {
	fields := strings.Fields(query)
	kept := make([]string, 0, len(fields))

	for _, f := range fields {
		token := c.stripToken(f)
		if token != "" {
			kept = append(kept, token)
		}
	}

	if len(kept) == 0 {
		return strings.TrimSpace(query)
	}

	return strings.Join(kept, " ")
}

func (c *Classifier) stripToken(token string) string {
	token = strings.TrimFunc(token, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
	lower := strings.ToLower(token)

	for _, sw := range c.lex.Stopwords {
		if lower == sw {
			return ""
		}
	}

	// склеенные служебные хвосты: "후드집업추천해줘"
	for _, sw := range c.lex.Stopwords {
		if isASCII(sw) {
			continue
		}
		if stem, ok := trimSuffixKeep(token, sw); ok {
			token = stem
			break
		}
	}

	for _, p := range c.lex.Particles {
		if stem, ok := trimSuffixKeep(token, p); ok {
			return stem
		}
	}

	return token
}

// IsExternal решает маршрут. Эвристика намеренно грубая: триггерная лексика,
// известные имена или короткий хангыль-токен рядом с модным словом.
// Для запросов не на корейском эвристика имени не срабатывает.
func (c *Classifier) IsExternal(query string) bool {
	if query == "" {
		return false
	}

	lower := strings.ToLower(query)
	for _, t := range c.lex.ExternalTriggers {
		if strings.Contains(lower, t) {
			return true
		}
	}

	for _, name := range c.lex.Celebrities {
		if strings.Contains(query, name) {
			return true
		}
	}

	return c.hasNameNearFashionWord(query)
}

// hasNameNearFashionWord ищет токен из 2-4 слогов хангыля, за которым следует модное слово
// (отдельным токеном или склеенным суффиксом: "제니룩").
func (c *Classifier) hasNameNearFashionWord(query string) bool {
	fields := strings.Fields(query)
	for i, f := range fields {
		for _, kw := range c.lex.FashionKeywords {
			if stem, ok := strings.CutSuffix(f, kw); ok && stem != "" && c.isNameLike(stem) {
				return true
			}
		}

		if i+1 < len(fields) && c.isNameLike(c.stripParticle(f)) && c.isFashionWord(fields[i+1]) {
			return true
		}
	}

	return false
}

func (c *Classifier) isNameLike(token string) bool {
	runes := []rune(token)
	if len(runes) < minNameRunes || len(runes) > maxNameRunes {
		return false
	}

	for _, r := range runes {
		if !isHangulSyllable(r) {
			return false
		}
	}

	return !c.isFashionWord(token) && !c.isStopword(token)
}

func (c *Classifier) isFashionWord(token string) bool {
	token = c.stripParticle(token)
	for _, kw := range c.lex.FashionKeywords {
		if token == kw {
			return true
		}
	}

	return false
}

func (c *Classifier) isStopword(token string) bool {
	lower := strings.ToLower(token)
	for _, sw := range c.lex.Stopwords {
		if lower == sw {
			return true
		}
	}

	return false
}

func (c *Classifier) stripParticle(token string) string {
	for _, p := range c.lex.Particles {
		if stem, ok := trimSuffixKeep(token, p); ok {
			return stem
		}
	}

	return token
}

func (c *Classifier) externalQuery(core string) string {
	if core == "" {
		return ""
	}
	if c.lex.ExternalQuerySuffix == "" {
		return core
	}

	return core + " " + c.lex.ExternalQuerySuffix
}

// keywordCandidates: запрос без пробелов идёт первым (составные слова), затем ядро.
func keywordCandidates(query, core string) []string {
	compact := strings.Join(strings.Fields(query), "")

	out := make([]string, 0, 2)
	for _, k := range []string{compact, core} {
		if k == "" {
			continue
		}
		dup := false
		for _, existing := range out {
			if existing == k {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, k)
		}
	}

	return out
}

// trimSuffixKeep снимает суффикс, только если остаётся основа из minStemRunes символов.
func trimSuffixKeep(token, suffix string) (string, bool) {
	stem, ok := strings.CutSuffix(token, suffix)
	if !ok || len([]rune(stem)) < minStemRunes {
		return token, false
	}

	return stem, true
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}

	return true
}

func isHangulSyllable(r rune) bool {
	return r >= 0xAC00 && r <= 0xD7A3
}
