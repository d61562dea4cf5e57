package kafka

import (
	"testing"

	"github.com/DRSN-tech/fashion-search/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealMessage(t *testing.T) {
	msg := healMessage(usecase.NewWriteRawMessageReq(42, []byte{0x0a, 0x01}))

	assert.Equal(t, []byte("42"), msg.Key)
	assert.Equal(t, []byte{0x0a, 0x01}, msg.Value)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, headerContentType, msg.Headers[0].Key)
	assert.Equal(t, healContentType, string(msg.Headers[0].Value))
}
