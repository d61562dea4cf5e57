package qdrant

import (
	"testing"

	"github.com/DRSN-tech/fashion-search/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFilterEmpty(t *testing.T) {
	assert.Nil(t, buildFilter(domain.SearchFilters{}))
}

func TestBuildFilterGenderAdmitsUnisexAndUnset(t *testing.T) {
	f := buildFilter(domain.SearchFilters{Gender: domain.GenderMale})
	require.NotNil(t, f)
	require.Len(t, f.Must, 1)

	nested := f.Must[0].GetFilter()
	require.NotNil(t, nested)
	require.Len(t, nested.Should, 3)

	var values []string
	for _, c := range nested.Should {
		values = append(values, c.GetField().GetMatch().GetKeyword())
	}
	assert.ElementsMatch(t, []string{"Male", "Unisex", ""}, values)
}

func TestBuildFilterPriceAndExclusions(t *testing.T) {
	minPrice, maxPrice := int64(1000), int64(5000)
	f := buildFilter(domain.SearchFilters{
		MinPrice:          &minPrice,
		MaxPrice:          &maxPrice,
		Categories:        []domain.Category{domain.CategoryTops},
		ExcludeCategories: []domain.Category{domain.CategoryShoes},
		ExcludeIDs:        []int64{7, 9},
	})
	require.NotNil(t, f)
	require.Len(t, f.Must, 2)
	require.Len(t, f.MustNot, 2)

	rng := f.Must[0].GetField().GetRange()
	require.NotNil(t, rng)
	assert.Equal(t, 1000.0, rng.GetGte())
	assert.Equal(t, 5000.0, rng.GetLte())

	ids := f.MustNot[1].GetHasId().GetHasId()
	require.Len(t, ids, 2)
	assert.Equal(t, uint64(7), ids[0].GetNum())
}

func TestPayloadOf(t *testing.T) {
	p := payloadOf(&domain.VisualPoint{ProductID: 3, Gender: domain.GenderFemale, Category: domain.CategoryDresses, Price: 49000})
	assert.Equal(t, "Female", p["gender"])
	assert.Equal(t, "Dresses", p["category"])
	assert.Equal(t, int64(49000), p["price"])
}
