package hash

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSumIsStableAndContentSensitive(t *testing.T) {
	a := Sum([]byte("hello world"))
	b := Sum([]byte("hello world"))
	c := Sum([]byte("hello world!"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestSumReaderMatchesSum(t *testing.T) {
	data := bytes.Repeat([]byte("chunk-payload-"), 1000)

	viaBytes := Sum(data)
	viaReader, err := SumReader(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, viaBytes, viaReader)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal("abc", "abc"))
	assert.False(t, Equal("abc", "abd"))
	assert.False(t, Equal("", ""))
}
