package converter

import (
	"github.com/DRSN-tech/fashion-search/internal/domain"
	"github.com/DRSN-tech/fashion-search/internal/usecase"
)

// ProductConverter преобразует товар между domain и моделью кэша.
type ProductConverter struct{}

func (ProductConverter) ToRedisModel(p *domain.Product) *ProductRedisModel {
	return &ProductRedisModel{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		Price:          p.Price,
		StockQuantity:  p.StockQuantity,
		Category:       string(p.Category),
		Gender:         string(p.Gender),
		ImageURL:       p.ImageURL,
		ImageKey:       p.ImageKey,
		IsActive:       p.IsActive,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
		MissingText:    p.Health.MissingText,
		MissingFull:    p.Health.MissingFull,
		MissingUpper:   p.Health.MissingUpper,
		MissingLower:   p.Health.MissingLower,
		BadDescription: p.Health.BadDescription,
	}
}

func (ProductConverter) ToEntity(m *ProductRedisModel) *domain.Product {
	return &domain.Product{
		ID:            m.ID,
		Name:          m.Name,
		Description:   m.Description,
		Price:         m.Price,
		StockQuantity: m.StockQuantity,
		Category:      domain.Category(m.Category),
		Gender:        domain.Gender(m.Gender),
		ImageURL:      m.ImageURL,
		ImageKey:      m.ImageKey,
		IsActive:      m.IsActive,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
		Health: domain.ProductHealth{
			MissingText:    m.MissingText,
			MissingFull:    m.MissingFull,
			MissingUpper:   m.MissingUpper,
			MissingLower:   m.MissingLower,
			BadDescription: m.BadDescription,
		},
	}
}

// SearchResultConverter преобразует результат поиска между usecase и моделью кэша.
type SearchResultConverter struct {
	products ProductConverter
}

func (c SearchResultConverter) ToRedisModel(res *usecase.SearchRes) *SearchResultRedisModel {
	products := make([]CandidateRedisModel, 0, len(res.Products))
	for i := range res.Products {
		products = append(products, CandidateRedisModel{
			Product: *c.products.ToRedisModel(&res.Products[i].Product),
			Score:   res.Products[i].Score,
		})
	}

	model := &SearchResultRedisModel{
		Products:            products,
		Strategy:            string(res.Strategy),
		GenderFilterApplied: res.GenderFilterApplied,
		Path:                string(res.Path),
		Answer:              res.Answer,
		Intent: IntentRedisModel{
			Query:             res.Intent.Query,
			Gender:            string(res.Intent.Gender),
			CoreKeyword:       res.Intent.CoreKeyword,
			KeywordCandidates: res.Intent.KeywordCandidates,
			Region:            string(res.Intent.Region),
			External:          res.Intent.External,
			ExternalQuery:     res.Intent.ExternalQuery,
		},
	}

	if ev := res.Evidence; ev != nil {
		images := make([]EvidenceImageRedisModel, 0, len(ev.Candidates))
		for _, img := range ev.Candidates {
			images = append(images, EvidenceImageRedisModel{URL: img.URL, Score: img.Score, DisplayScore: img.DisplayScore})
		}
		model.Evidence = &EvidenceRedisModel{
			Query:             ev.Query,
			Summary:           ev.Summary,
			ReferenceImageURL: ev.ReferenceImageURL,
			Candidates:        images,
		}
	}

	return model
}

func (c SearchResultConverter) ToUseCase(m *SearchResultRedisModel) *usecase.SearchRes {
	products := make([]domain.Candidate, 0, len(m.Products))
	for i := range m.Products {
		products = append(products, domain.NewCandidate(*c.products.ToEntity(&m.Products[i].Product), m.Products[i].Score))
	}

	res := &usecase.SearchRes{
		Products:            products,
		Strategy:            domain.SearchStrategy(m.Strategy),
		GenderFilterApplied: m.GenderFilterApplied,
		Path:                domain.SearchPath(m.Path),
		Answer:              m.Answer,
		Intent: domain.SearchIntent{
			Query:             m.Intent.Query,
			Gender:            domain.Gender(m.Intent.Gender),
			CoreKeyword:       m.Intent.CoreKeyword,
			KeywordCandidates: m.Intent.KeywordCandidates,
			Region:            domain.Region(m.Intent.Region),
			External:          m.Intent.External,
			ExternalQuery:     m.Intent.ExternalQuery,
		},
	}

	if ev := m.Evidence; ev != nil {
		images := make([]domain.EvidenceImage, 0, len(ev.Candidates))
		for _, img := range ev.Candidates {
			images = append(images, domain.EvidenceImage{URL: img.URL, Score: img.Score, DisplayScore: img.DisplayScore})
		}
		res.Evidence = &domain.ExternalEvidence{
			Query:             ev.Query,
			Summary:           ev.Summary,
			ReferenceImageURL: ev.ReferenceImageURL,
			Candidates:        images,
		}
	}

	return res
}
