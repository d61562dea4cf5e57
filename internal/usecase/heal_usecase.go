package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/DRSN-tech/fashion-search/internal/domain"
	"github.com/DRSN-tech/fashion-search/internal/metrics"
	"github.com/DRSN-tech/fashion-search/pkg/e"
	"github.com/DRSN-tech/fashion-search/pkg/logger"
)

const descriptionPrompt = `이 패션 상품 이미지를 보고 소재, 핏, 스타일링 포인트를 한국어 3~4문장으로 설명해 주세요. 설명 문장만 출력하세요.`

// HealUseCase восстанавливает повреждённые производные поля товаров: текстовый
// вектор, описание и визуальные векторы регионов. Исправные поля не трогаются.
type HealUseCase struct {
	productRepo  ProductRepository
	visualIndex  VisualIndex
	imagesInfra  ImagesInfra
	engine       ModelEngine
	searchCache  SearchCacheRepository
	productCache ProductCacheRepository
	logger       logger.Logger
}

func NewHealUC(
	productRepo ProductRepository,
	visualIndex VisualIndex,
	imagesInfra ImagesInfra,
	engine ModelEngine,
	searchCache SearchCacheRepository,
	productCache ProductCacheRepository,
	logger logger.Logger,
) *HealUseCase {
	return &HealUseCase{
		productRepo:  productRepo,
		visualIndex:  visualIndex,
		imagesInfra:  imagesInfra,
		engine:       engine,
		searchCache:  searchCache,
		productCache: productCache,
		logger:       logger,
	}
}

// HealProduct идемпотентен: повторный вызов для исправного товара ничего не меняет.
// Блокировки на время вызовов моделей не берутся; запись — один UPDATE.
func (h *HealUseCase) HealProduct(ctx context.Context, id int64) (*HealReport, error) {
	const op = "HealUseCase.HealProduct"

	product, err := h.productRepo.GetWithVectors(ctx, id)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	report := &HealReport{ProductID: id}
	missing := missingRegions(product)
	badDescription := domain.IsBadDescription(product.Description)
	missingText := !product.Vectors.Text.Usable(domain.TextVectorDim)

	if !badDescription && !missingText && len(missing) == 0 {
		report.Skipped = true
		metrics.HealTotal.WithLabelValues("clean").Inc()
		return report, nil
	}

	var (
		upd  DerivedUpdate
		errs []error
	)

	var image []byte
	var mimeType string
	if badDescription || len(missing) > 0 {
		image, mimeType, err = h.imagesInfra.FetchImage(ctx, product.ImageKey, product.ImageURL)
		if err != nil {
			errs = append(errs, fmt.Errorf("fetch image: %w", err))
			image = nil
		}
	}

	description := product.Description
	if badDescription && image != nil {
		text, err := h.engine.DescribeImage(ctx, image, mimeType, descriptionPrompt)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("describe image: %w", err))
		case domain.IsBadDescription(text):
			errs = append(errs, fmt.Errorf("describe image: %w", e.ErrEmptyModelOutput))
		default:
			description = text
			upd.Description = &description
			report.Description = true
		}
	}

	if missingText {
		raw, err := h.engine.EmbedText(ctx, ProductText(product.Name, product.Category, description))
		if err != nil {
			errs = append(errs, fmt.Errorf("embed text: %w", err))
		} else {
			vec, repaired := domain.NormalizeVector(raw, domain.TextVectorDim)
			if repaired {
				metrics.VectorRepairsTotal.WithLabelValues("heal").Inc()
			}
			if !vec.IsZero() {
				upd.TextVector = vec
				report.Text = true
			}
		}
	}

	if len(missing) > 0 && image != nil {
		vectors, err := h.engine.EmbedImageRegions(ctx, image, missing)
		if err != nil {
			errs = append(errs, fmt.Errorf("embed image: %w", err))
		}
		for _, r := range missing {
			vec, ok := vectors[r]
			if !ok {
				continue
			}
			vec, repaired := domain.NormalizeVector(vec, domain.VisualVectorDim)
			if vec.IsZero() {
				continue
			}
			if repaired {
				metrics.VectorRepairsTotal.WithLabelValues("heal").Inc()
			}
			if upd.Visual == nil {
				upd.Visual = make(map[domain.Region]domain.Vector, len(missing))
			}
			upd.Visual[r] = vec
			report.Regions = append(report.Regions, r)
		}
	}

	if upd.Empty() {
		metrics.HealTotal.WithLabelValues("failed").Inc()
		return report, e.Wrap(op, errors.Join(errs...))
	}

	if err := h.productRepo.UpdateDerived(ctx, id, &upd); err != nil {
		metrics.HealTotal.WithLabelValues("failed").Inc()
		return nil, e.Wrap(op, err)
	}

	if len(upd.Visual) > 0 {
		h.mirrorVisuals(ctx, product, &upd)
	}
	h.invalidate(ctx, id)

	result := "healed"
	if len(errs) > 0 {
		result = "partial"
		h.logger.Warnf("product %d healed partially: %v", id, errors.Join(errs...))
	}
	metrics.HealTotal.WithLabelValues(result).Inc()

	return report, nil
}

// Backfill проходит по товарам с повреждёнными полями пачками по batchSize.
// maxProducts <= 0 снимает ограничение.
func (h *HealUseCase) Backfill(ctx context.Context, batchSize, maxProducts int) (*BackfillRes, error) {
	const op = "HealUseCase.Backfill"

	if batchSize <= 0 {
		return nil, e.Wrap(op, e.ErrInvalidLimit)
	}

	res := &BackfillRes{}
	var afterID int64

	for maxProducts <= 0 || res.Scanned < maxProducts {
		if err := ctx.Err(); err != nil {
			return res, e.Wrap(op, err)
		}

		limit := batchSize
		if maxProducts > 0 {
			limit = min(limit, maxProducts-res.Scanned)
		}

		ids, err := h.productRepo.ListNeedingHeal(ctx, afterID, limit)
		if err != nil {
			return res, e.Wrap(op, err)
		}
		if len(ids) == 0 {
			break
		}

		for _, id := range ids {
			res.Scanned++
			report, err := h.HealProduct(ctx, id)
			switch {
			case err != nil:
				res.Failed++
				h.logger.Warnf("backfill: product %d: %v", id, err)
			case report.Changed():
				res.Healed++
			}
		}

		afterID = ids[len(ids)-1]
	}

	h.logger.Infof("backfill done: scanned=%d healed=%d failed=%d", res.Scanned, res.Healed, res.Failed)
	return res, nil
}

// mirrorVisuals обновляет точку во внешнем индексе с учётом новых регионов.
func (h *HealUseCase) mirrorVisuals(ctx context.Context, product *domain.Product, upd *DerivedUpdate) {
	if h.visualIndex == nil {
		return
	}

	for r, vec := range upd.Visual {
		product.Vectors.SetVisual(r, vec)
	}

	if err := h.visualIndex.Upsert(ctx, domain.NewVisualPoint(product)); err != nil {
		h.logger.Warnf("Failed to mirror healed vectors of product %d: %v", product.ID, err)
	}
}

func (h *HealUseCase) invalidate(ctx context.Context, id int64) {
	if err := h.productCache.DeleteProducts(ctx, []int64{id}); err != nil {
		h.logger.Warnf("Failed to delete products from cache: %v", err)
	}
	if err := h.searchCache.BumpGeneration(ctx); err != nil {
		h.logger.Warnf("Failed to bump search cache generation: %v", err)
	}
}

func missingRegions(p *domain.Product) []domain.Region {
	var out []domain.Region
	for _, r := range domain.Regions() {
		if !p.Vectors.Visual(r).Usable(domain.VisualVectorDim) {
			out = append(out, r)
		}
	}
	return out
}
