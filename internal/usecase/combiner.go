package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DRSN-tech/fashion-search/internal/domain"
	"github.com/DRSN-tech/fashion-search/internal/metrics"
	"github.com/DRSN-tech/fashion-search/pkg/e"
	"github.com/DRSN-tech/fashion-search/pkg/logger"
)

// SignalCombiner — детерминированная политика ранжирования. Уровни опрашиваются
// строго по порядку, ответом становится первый непустой.
//
//  1. ключевое совпадение (с сортировкой по текстовому вектору, если он есть)
//  2. визуальный вектор (комбинированный с текстом, затем чистый)
//  3. текстовый вектор
//  4. повтор 1 и 3 без фильтра по полу
//  5. свежие активные товары без фильтра по полу
type SignalCombiner struct {
	store     VectorStore
	keyword   *KeywordMatcher
	weights   Weights
	textDim   int
	visualDim int
	logger    logger.Logger
}

func NewSignalCombiner(store VectorStore, weights Weights, textDim, visualDim int, logger logger.Logger) *SignalCombiner {
	return &SignalCombiner{
		store:     store,
		keyword:   NewKeywordMatcher(store),
		weights:   weights,
		textDim:   textDim,
		visualDim: visualDim,
		logger:    logger,
	}
}

// Combine возвращает результат первого непустого уровня. Ошибка возвращается
// только при отказе хранилища.
func (c *SignalCombiner) Combine(ctx context.Context, s Signals) (*CombineResult, error) {
	const op = "SignalCombiner.Combine"

	textVec := s.TextVector
	if !textVec.Usable(c.textDim) {
		textVec = nil
	}
	visualVec := s.VisualVector
	if !visualVec.Usable(c.visualDim) {
		visualVec = nil
	}
	genderSet := s.Filters.Gender.IsSet()
	seen := make(map[int64]struct{}, s.Limit)

	finish := func(found []domain.Candidate, strategy domain.SearchStrategy, genderApplied bool) *CombineResult {
		return &CombineResult{
			Candidates:          dedupe(found, seen, s.Limit),
			Strategy:            strategy,
			GenderFilterApplied: genderApplied && genderSet,
		}
	}

	// 1. Ключевое совпадение
	start := time.Now()
	found, kw, err := c.keyword.Match(ctx, s.Intent.KeywordCandidates, textVec, s.Filters, s.Limit)
	metrics.ObserveTier(string(domain.StrategyKeyword), start)
	if err != nil {
		return nil, e.Wrap(op, storageErr(err))
	}
	if len(found) > 0 {
		c.logger.Debugf("keyword tier matched %q with %d candidates", kw, len(found))
		return finish(found, domain.StrategyKeyword, true), nil
	}

	// 2. Визуальный вектор
	if visualVec != nil {
		if textVec != nil && c.weights.Text > 0 {
			start = time.Now()
			found, err = c.store.SearchCombined(ctx, textVec, visualVec, s.Intent.Region, c.weights, s.Filters, s.Limit)
			metrics.ObserveTier(string(domain.StrategyHybridVisual), start)
			if err != nil {
				return nil, e.Wrap(op, storageErr(err))
			}
			if len(found) > 0 {
				return finish(found, domain.StrategyHybridVisual, true), nil
			}
		}

		start = time.Now()
		found, err = c.store.SearchVisual(ctx, visualVec, s.Intent.Region, s.Filters, s.Limit)
		metrics.ObserveTier(string(domain.StrategyVisual), start)
		if err != nil {
			return nil, e.Wrap(op, storageErr(err))
		}
		if len(found) > 0 {
			return finish(found, domain.StrategyVisual, true), nil
		}
	}

	// 3. Текстовый вектор
	if textVec != nil {
		start = time.Now()
		found, err = c.store.SearchText(ctx, textVec, s.Filters, s.Limit)
		metrics.ObserveTier(string(domain.StrategyTextVector), start)
		if err != nil {
			return nil, e.Wrap(op, storageErr(err))
		}
		if len(found) > 0 {
			return finish(found, domain.StrategyTextVector, true), nil
		}
	}

	relaxed := s.Filters.WithoutGender()

	// 4. Повтор без фильтра по полу. Без заданного пола он ничего не меняет.
	if genderSet {
		candidates := append([]string{s.Intent.Query}, s.Intent.KeywordCandidates...)
		start = time.Now()
		found, _, err = c.keyword.Match(ctx, candidates, textVec, relaxed, s.Limit)
		metrics.ObserveTier(string(domain.StrategyRelaxedKeyword), start)
		if err != nil {
			return nil, e.Wrap(op, storageErr(err))
		}
		if len(found) > 0 {
			return finish(found, domain.StrategyRelaxedKeyword, false), nil
		}

		if textVec != nil {
			start = time.Now()
			found, err = c.store.SearchText(ctx, textVec, relaxed, s.Limit)
			metrics.ObserveTier(string(domain.StrategyRelaxedTextVector), start)
			if err != nil {
				return nil, e.Wrap(op, storageErr(err))
			}
			if len(found) > 0 {
				return finish(found, domain.StrategyRelaxedTextVector, false), nil
			}
		}
	}

	// 5. Свежие товары
	start = time.Now()
	found, err = c.store.ListRecent(ctx, relaxed, s.Limit)
	metrics.ObserveTier(string(domain.StrategyFallback), start)
	if err != nil {
		return nil, e.Wrap(op, storageErr(err))
	}
	if len(found) > 0 {
		return finish(found, domain.StrategyFallback, false), nil
	}

	return finish(nil, domain.StrategyNone, false), nil
}

// dedupe оставляет первое вхождение каждого товара и обрезает до limit.
func dedupe(found []domain.Candidate, seen map[int64]struct{}, limit int) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(found))
	for _, c := range found {
		if _, ok := seen[c.Product.ID]; ok {
			continue
		}
		seen[c.Product.ID] = struct{}{}
		out = append(out, c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func storageErr(err error) error {
	if errors.Is(err, e.ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %v", e.ErrStorage, err)
}
