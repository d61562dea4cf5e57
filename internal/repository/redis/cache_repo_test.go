package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "product:42", productKey(42))
	assert.Equal(t, "search:result:abc", searchKey("abc"))
}

func TestRedisValueToBytes(t *testing.T) {
	data, err := redisValueToBytes("x", "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)

	data, err = redisValueToBytes(nil, "k")
	require.NoError(t, err)
	assert.Nil(t, data)

	_, err = redisValueToBytes(42, "k")
	assert.Error(t, err)
}
