package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/DRSN-tech/fashion-search/internal/cfg"
	"github.com/DRSN-tech/fashion-search/internal/domain"
	"github.com/DRSN-tech/fashion-search/internal/intent"
	"github.com/DRSN-tech/fashion-search/internal/metrics"
	"github.com/DRSN-tech/fashion-search/pkg/e"
	"github.com/DRSN-tech/fashion-search/pkg/logger"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	signalText     = "text"
	signalImage    = "image"
	signalExternal = "external"
)

// SearchUseCase связывает разбор запроса, сбор сигналов и политику ранжирования.
type SearchUseCase struct {
	classifier IntentClassifier
	engine     ModelEngine
	evidence   EvidenceGatherer // nil, если внешний поиск не настроен
	combiner   *SignalCombiner
	cache      SearchCacheRepository
	outbox     OutboxRepository
	cfg        *cfg.SearchCfg
	logger     logger.Logger
}

func NewSearchUC(
	classifier IntentClassifier,
	engine ModelEngine,
	evidence EvidenceGatherer,
	combiner *SignalCombiner,
	cache SearchCacheRepository,
	outbox OutboxRepository,
	cfg *cfg.SearchCfg,
	logger logger.Logger,
) *SearchUseCase {
	return &SearchUseCase{
		classifier: classifier,
		engine:     engine,
		evidence:   evidence,
		combiner:   combiner,
		cache:      cache,
		outbox:     outbox,
		cfg:        cfg,
		logger:     logger,
	}
}

// gathered — сигналы, собранные для одного запроса.
type gathered struct {
	mu          sync.Mutex
	text        domain.Vector
	visual      domain.Vector
	evidence    *domain.ExternalEvidence
	unavailable []string
}

func (g *gathered) fail(signal string) {
	g.mu.Lock()
	g.unavailable = append(g.unavailable, signal)
	g.mu.Unlock()
	metrics.SignalFailuresTotal.WithLabelValues(signal).Inc()
}

// Search выполняет гибридный поиск. Ошибку возвращает только при неверном
// запросе или отказе хранилища; сбои моделей понижают уровень ранжирования.
func (s *SearchUseCase) Search(ctx context.Context, req *SearchReq) (*SearchRes, error) {
	const op = "SearchUseCase.Search"
	started := time.Now()

	query := strings.TrimSpace(req.Query)
	if query == "" && len(req.Image) == 0 {
		return nil, e.Wrap(op, e.ErrEmptySearchRequest)
	}
	limit, err := s.resolveLimit(req.Limit)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	si := s.classifier.Classify(query, intent.Options{HasImage: len(req.Image) > 0, Region: req.Region})
	filters := req.Filters
	filters.Gender = si.Gender

	// Кэшируются только текстовые запросы
	cacheKey := ""
	if len(req.Image) == 0 && s.cache != nil {
		cacheKey = s.cacheKey(ctx, si, filters, limit)
		if cacheKey != "" {
			if res, ok := s.lookupCache(ctx, cacheKey); ok {
				return res, nil
			}
		}
	}

	sig := s.gatherSignals(ctx, query, req, si)

	combined, err := s.combiner.Combine(ctx, Signals{
		Intent:       si,
		TextVector:   sig.text,
		VisualVector: sig.visual,
		Filters:      filters,
		Limit:        limit,
	})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	res := &SearchRes{
		Products:            combined.Candidates,
		Strategy:            combined.Strategy,
		GenderFilterApplied: combined.GenderFilterApplied,
		Path:                si.Path(),
		Intent:              si,
		Evidence:            sig.evidence,
		UnavailableSignals:  sig.unavailable,
	}
	res.Answer = buildAnswer(res, len(req.Image) > 0)

	metrics.SearchRequestsTotal.WithLabelValues(string(res.Path), string(res.Strategy)).Inc()
	metrics.SearchDuration.WithLabelValues(string(res.Path)).Observe(time.Since(started).Seconds())

	if s.cfg.HealOnRead {
		s.enqueueBroken(res.Products)
	}

	// Деградированные ответы не кэшируются, чтобы не закрепить сбой модели на TTL
	if cacheKey != "" && len(sig.unavailable) == 0 && res.Strategy != domain.StrategyNone {
		go func() {
			bgCtx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
			defer cancel()

			if err := s.cache.SetSearch(bgCtx, cacheKey, res); err != nil {
				s.logger.Warnf("Failed to cache search result in background: %v", e.Wrap(op, err))
			}
		}()
	}

	return res, nil
}

func (s *SearchUseCase) resolveLimit(limit int) (int, error) {
	switch {
	case limit < 0:
		return 0, e.ErrInvalidLimit
	case limit == 0:
		return s.cfg.DefaultLimit, nil
	case limit > s.cfg.MaxLimit:
		return s.cfg.MaxLimit, nil
	default:
		return limit, nil
	}
}

// gatherSignals параллельно получает текстовый вектор, визуальный вектор
// загруженного изображения и внешние доказательства. Каждый вызов ограничен
// своим таймаутом, ошибки превращаются в отсутствие сигнала.
func (s *SearchUseCase) gatherSignals(ctx context.Context, query string, req *SearchReq, si domain.SearchIntent) *gathered {
	sig := &gathered{}
	var g errgroup.Group

	if query != "" {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, s.cfg.SignalTimeout)
			defer cancel()

			vec, err := s.engine.EmbedText(callCtx, query)
			if err != nil {
				s.logger.Warnf("text signal unavailable: %v", err)
				sig.fail(signalText)
				return nil
			}
			sig.text = s.repair(vec, s.cfg.TextDim, signalText)
			return nil
		})
	}

	if len(req.Image) > 0 {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, s.cfg.SignalTimeout)
			defer cancel()

			vec, err := s.engine.EmbedImage(callCtx, req.Image, si.Region)
			if err != nil {
				s.logger.Warnf("image signal unavailable: %v", err)
				sig.fail(signalImage)
				return nil
			}
			sig.visual = s.repair(vec, s.cfg.VisualDim, signalImage)
			return nil
		})
	} else if si.External && s.evidence != nil {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, s.cfg.EvidenceTimeout)
			defer cancel()

			ev, err := s.evidence.Gather(callCtx, si)
			if err != nil {
				if errors.Is(err, e.ErrQuotaExceeded) {
					metrics.ExternalQuotaRejectedTotal.Inc()
				}
				s.logger.Warnf("external evidence unavailable: %v", err)
				sig.fail(signalExternal)
				return nil
			}
			sig.evidence = ev
			if ev.VisualVector != nil {
				sig.visual = s.repair(ev.VisualVector, s.cfg.VisualDim, signalExternal)
			}
			return nil
		})
	}

	_ = g.Wait()

	return sig
}

// repair приводит вектор к нужной размерности и считает исправления.
func (s *SearchUseCase) repair(v domain.Vector, dim int, kind string) domain.Vector {
	out, repaired := domain.NormalizeVector(v, dim)
	if repaired {
		metrics.VectorRepairsTotal.WithLabelValues(kind).Inc()
		s.logger.Warnf("repaired %s vector: got %d dims, want %d", kind, len(v), dim)
	}
	return out
}

// cacheKey строит ключ из поколения кэша, версии лексикона и нормализованного запроса.
// Пустая строка означает, что кэш недоступен.
func (s *SearchUseCase) cacheKey(ctx context.Context, si domain.SearchIntent, f domain.SearchFilters, limit int) string {
	gen, err := s.cache.Generation(ctx)
	if err != nil {
		metrics.CacheTotal.WithLabelValues("error").Inc()
		s.logger.Warnf("search cache generation unavailable: %v", err)
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "g=%d|lex=%d|q=%s|l=%d|r=%s|gen=%s", gen, s.classifier.Version(), strings.ToLower(si.Query), limit, si.Region, f.Gender)
	if f.MinPrice != nil {
		fmt.Fprintf(&b, "|min=%d", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		fmt.Fprintf(&b, "|max=%d", *f.MaxPrice)
	}
	fmt.Fprintf(&b, "|cat=%s|xcat=%s|xid=%s", joinCategories(f.Categories), joinCategories(f.ExcludeCategories), joinIDs(f.ExcludeIDs))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func (s *SearchUseCase) lookupCache(ctx context.Context, key string) (*SearchRes, bool) {
	res, ok, err := s.cache.GetSearch(ctx, key)
	switch {
	case err != nil:
		metrics.CacheTotal.WithLabelValues("error").Inc()
		s.logger.Warnf("search cache lookup failed: %v", err)
		return nil, false
	case !ok:
		metrics.CacheTotal.WithLabelValues("miss").Inc()
		return nil, false
	default:
		metrics.CacheTotal.WithLabelValues("hit").Inc()
		res.Cached = true
		return res, true
	}
}

// enqueueBroken ставит в очередь восстановления товары из выдачи с повреждёнными полями.
func (s *SearchUseCase) enqueueBroken(products []domain.Candidate) {
	const op = "SearchUseCase.enqueueBroken"

	var events []OutboxEvent
	for _, c := range products {
		if !c.Product.Health.Broken() {
			continue
		}
		ev, err := NewHealEvent(c.Product.ID, "search_read")
		if err != nil {
			s.logger.Warnf("Failed to build heal event: %v", e.Wrap(op, err))
			continue
		}
		events = append(events, *ev)
	}
	if len(events) == 0 || s.outbox == nil {
		return
	}

	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()

		if err := s.outbox.EnqueueHeal(bgCtx, events); err != nil {
			s.logger.Warnf("Failed to enqueue heal events in background: %v", e.Wrap(op, err))
		}
	}()
}

// NewHealEvent создаёт событие outbox на восстановление товара.
func NewHealEvent(productID int64, reason string) (*OutboxEvent, error) {
	payload, err := EncodeHealRequest(NewHealRequest(productID, reason))
	if err != nil {
		return nil, err
	}

	return &OutboxEvent{
		EventID:   uuid.NewString(),
		EventType: ProductHealRequested,
		ProductID: productID,
		Payload:   payload,
		Status:    Pending,
	}, nil
}

func buildAnswer(res *SearchRes, hasImage bool) string {
	subject := res.Intent.CoreKeyword
	if subject == "" {
		subject = res.Intent.Query
	}

	switch res.Strategy {
	case domain.StrategyNone:
		return "조건에 맞는 상품을 찾지 못했습니다."
	case domain.StrategyFallback:
		if subject == "" {
			return "정확히 일치하는 상품이 없어 최신 상품을 보여드립니다."
		}
		return fmt.Sprintf("'%s'와 정확히 일치하는 상품이 없어 최신 상품을 보여드립니다.", subject)
	case domain.StrategyRelaxedKeyword, domain.StrategyRelaxedTextVector:
		return fmt.Sprintf("성별 조건을 완화한 '%s' 검색 결과입니다.", subject)
	}

	if res.Evidence != nil && res.Evidence.Summary != "" {
		return res.Evidence.Summary
	}
	if hasImage && subject == "" {
		return "업로드한 이미지와 비슷한 상품입니다."
	}
	return fmt.Sprintf("'%s' 검색 결과입니다.", subject)
}

func joinCategories(list []domain.Category) string {
	parts := make([]string, 0, len(list))
	for _, c := range list {
		parts = append(parts, string(c))
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func joinIDs(ids []int64) string {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	parts := make([]string, 0, len(sorted))
	for _, id := range sorted {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, ",")
}
