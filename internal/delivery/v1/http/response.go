package http

import (
	"time"

	"github.com/DRSN-tech/fashion-search/internal/domain"
	"github.com/DRSN-tech/fashion-search/internal/usecase"
)

const statusSuccess = "success"

type ProductResponse struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Price         int64      `json:"price"`
	StockQuantity int64      `json:"stock_quantity"`
	Category      string     `json:"category"`
	Gender        string     `json:"gender,omitempty"`
	ImageURL      string     `json:"image_url,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

// CandidateResponse — товар в выдаче. similarity равен null для ключевых и резервных уровней.
type CandidateResponse struct {
	ProductResponse
	Similarity *float64 `json:"similarity"`
}

type IntentResponse struct {
	Query             string   `json:"query"`
	Gender            string   `json:"gender,omitempty"`
	CoreKeyword       string   `json:"core_keyword"`
	KeywordCandidates []string `json:"keyword_candidates"`
	Region            string   `json:"region"`
	External          bool     `json:"external"`
	ExternalQuery     string   `json:"external_query,omitempty"`
}

type EvidenceImageResponse struct {
	URL          string  `json:"url"`
	Score        float64 `json:"score"`
	DisplayScore int     `json:"display_score"`
}

type EvidenceResponse struct {
	Query             string                  `json:"query"`
	Summary           string                  `json:"summary,omitempty"`
	ReferenceImageURL string                  `json:"reference_image_url,omitempty"`
	Candidates        []EvidenceImageResponse `json:"candidates"`
}

type SearchResponse struct {
	Status              string              `json:"status"`
	SearchPath          string              `json:"search_path"`
	SearchStrategy      string              `json:"search_strategy"`
	GenderFilterApplied bool                `json:"gender_filter_applied"`
	Answer              string              `json:"answer"`
	Intent              IntentResponse      `json:"intent"`
	Products            []CandidateResponse `json:"products"`
	Evidence            *EvidenceResponse   `json:"evidence"`
	UnavailableSignals  []string            `json:"unavailable_signals,omitempty"`
	Cached              bool                `json:"cached"`
}

type RecommendResponse struct {
	Status   string              `json:"status"`
	Answer   string              `json:"answer"`
	Products []CandidateResponse `json:"products"`
}

type HealResponse struct {
	Status      string   `json:"status"`
	ProductID   int64    `json:"product_id"`
	Skipped     bool     `json:"skipped"`
	Text        bool     `json:"text"`
	Description bool     `json:"description"`
	Regions     []string `json:"regions"`
}

func toProductResponse(p *domain.Product) ProductResponse {
	return ProductResponse{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Price:         p.Price,
		StockQuantity: p.StockQuantity,
		Category:      string(p.Category),
		Gender:        string(p.Gender),
		ImageURL:      p.ImageURL,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func toCandidates(list []domain.Candidate) []CandidateResponse {
	res := make([]CandidateResponse, len(list))
	for i, c := range list {
		res[i] = CandidateResponse{
			ProductResponse: toProductResponse(&c.Product),
			Similarity:      c.Score,
		}
	}
	return res
}

func toSearchResponse(res *usecase.SearchRes) *SearchResponse {
	out := &SearchResponse{
		Status:              statusSuccess,
		SearchPath:          string(res.Path),
		SearchStrategy:      string(res.Strategy),
		GenderFilterApplied: res.GenderFilterApplied,
		Answer:              res.Answer,
		Intent: IntentResponse{
			Query:             res.Intent.Query,
			Gender:            string(res.Intent.Gender),
			CoreKeyword:       res.Intent.CoreKeyword,
			KeywordCandidates: res.Intent.KeywordCandidates,
			Region:            string(res.Intent.Region),
			External:          res.Intent.External,
			ExternalQuery:     res.Intent.ExternalQuery,
		},
		Products:           toCandidates(res.Products),
		UnavailableSignals: res.UnavailableSignals,
		Cached:             res.Cached,
	}

	if ev := res.Evidence; ev != nil {
		out.Evidence = &EvidenceResponse{
			Query:             ev.Query,
			Summary:           ev.Summary,
			ReferenceImageURL: ev.ReferenceImageURL,
			Candidates:        make([]EvidenceImageResponse, len(ev.Candidates)),
		}
		for i, img := range ev.Candidates {
			out.Evidence.Candidates[i] = EvidenceImageResponse{URL: img.URL, Score: img.Score, DisplayScore: img.DisplayScore}
		}
	}

	return out
}

func toHealResponse(r *usecase.HealReport) *HealResponse {
	regions := make([]string, len(r.Regions))
	for i, reg := range r.Regions {
		regions[i] = string(reg)
	}

	return &HealResponse{
		Status:      statusSuccess,
		ProductID:   r.ProductID,
		Skipped:     r.Skipped,
		Text:        r.Text,
		Description: r.Description,
		Regions:     regions,
	}
}
