package converter

import (
	"testing"
	"time"

	"github.com/DRSN-tech/fashion-search/internal/domain"
	"github.com/DRSN-tech/fashion-search/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchResultKeepsNullScoresAndDropsEvidenceVector(t *testing.T) {
	score := 0.87
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	res := &usecase.SearchRes{
		Products: []domain.Candidate{
			{Product: domain.Product{ID: 1, Name: "블랙 자켓", Category: domain.CategoryOuterwear, CreatedAt: created}, Score: &score},
			{Product: domain.Product{ID: 2, Name: "화이트 셔츠", Category: domain.CategoryTops, CreatedAt: created}},
		},
		Strategy:            domain.StrategyKeyword,
		GenderFilterApplied: true,
		Path:                domain.SearchPathExternal,
		Answer:              "ok",
		Intent:              domain.SearchIntent{Query: "제니 자켓", Gender: domain.GenderFemale, Region: domain.RegionFull, External: true},
		Evidence: &domain.ExternalEvidence{
			Query:        "제니 자켓 패션 스타일",
			VisualVector: domain.Vector{1, 2, 3},
			Summary:      "블랙 레더 자켓",
			Candidates:   []domain.EvidenceImage{{URL: "https://img/1.jpg", Score: 0.3, DisplayScore: 67}},
		},
	}

	c := SearchResultConverter{}
	got := c.ToUseCase(c.ToRedisModel(res))

	require.Len(t, got.Products, 2)
	assert.InDelta(t, 0.87, *got.Products[0].Score, 1e-9)
	assert.Nil(t, got.Products[1].Score)
	assert.Equal(t, domain.StrategyKeyword, got.Strategy)
	assert.Equal(t, domain.GenderFemale, got.Intent.Gender)
	require.NotNil(t, got.Evidence)
	assert.Nil(t, got.Evidence.VisualVector)
	assert.Equal(t, 67, got.Evidence.Candidates[0].DisplayScore)
}
