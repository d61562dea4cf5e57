package e

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsChain(t *testing.T) {
	err := Wrap("ProductRepo.Get", Wrap("query", ErrProductNotFound))

	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.Equal(t, "ProductRepo.Get: query: product not found", err.Error())
}

func TestIsSoft(t *testing.T) {
	assert.True(t, IsSoft(Wrap("Engine.EmbedText", ErrModelUnavailable)))
	assert.True(t, IsSoft(ErrMalformedVector))
	assert.True(t, IsSoft(Wrap("evidence", ErrQuotaExceeded)))
	assert.False(t, IsSoft(Wrap("VectorStore.SearchText", ErrStorage)))
	assert.False(t, IsSoft(context.Canceled))
	assert.False(t, IsSoft(errors.New("random")))
}
