package intent

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/DRSN-tech/fashion-search/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed lexicon.yaml
var defaultLexicon []byte

// GenderRule — набор ключевых слов, определяющих пол.
type GenderRule struct {
	Gender   domain.Gender `yaml:"gender"`
	Keywords []string      `yaml:"keywords"`
}

// Lexicon — версионируемые данные классификатора.
type Lexicon struct {
	Version             int          `yaml:"version"`
	GenderRules         []GenderRule `yaml:"gender_rules"`
	Stopwords           []string     `yaml:"stopwords"`
	Particles           []string     `yaml:"particles"`
	ExternalTriggers    []string     `yaml:"external_triggers"`
	FashionKeywords     []string     `yaml:"fashion_keywords"`
	Celebrities         []string     `yaml:"celebrities"`
	ExternalQuerySuffix string       `yaml:"external_query_suffix"`
}

// DefaultLexicon возвращает встроенный словарь.
func DefaultLexicon() (*Lexicon, error) {
	return ParseLexicon(defaultLexicon)
}

// LoadLexicon читает словарь из файла. Пустой путь — встроенный словарь.
func LoadLexicon(path string) (*Lexicon, error) {
	if path == "" {
		return DefaultLexicon()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon %s: %w", path, err)
	}

	return ParseLexicon(data)
}

// ParseLexicon разбирает и проверяет словарь.
func ParseLexicon(data []byte) (*Lexicon, error) {
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return nil, fmt.Errorf("parse lexicon: %w", err)
	}

	if err := lex.validate(); err != nil {
		return nil, err
	}

	lex.normalize()
	return &lex, nil
}

func (l *Lexicon) validate() error {
	if l.Version <= 0 {
		return fmt.Errorf("lexicon: version must be positive")
	}

	for i, rule := range l.GenderRules {
		if rule.Gender != domain.GenderMale && rule.Gender != domain.GenderFemale && rule.Gender != domain.GenderUnisex {
			return fmt.Errorf("lexicon: gender rule %d: unknown gender %q", i, rule.Gender)
		}
		if len(rule.Keywords) == 0 {
			return fmt.Errorf("lexicon: gender rule %d: no keywords", i)
		}
	}

	return nil
}

// normalize приводит слова к нижнему регистру и сортирует частицы по убыванию длины,
// чтобы "으로" снималась раньше "로".
func (l *Lexicon) normalize() {
	for i := range l.GenderRules {
		l.GenderRules[i].Keywords = lowerAll(l.GenderRules[i].Keywords)
	}
	l.Stopwords = lowerAll(l.Stopwords)
	l.ExternalTriggers = lowerAll(l.ExternalTriggers)

	sort.SliceStable(l.Stopwords, func(i, j int) bool {
		return len([]rune(l.Stopwords[i])) > len([]rune(l.Stopwords[j]))
	})
	sort.SliceStable(l.Particles, func(i, j int) bool {
		return len([]rune(l.Particles[i])) > len([]rune(l.Particles[j]))
	})
}

func lowerAll(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			out = append(out, w)
		}
	}

	return out
}
