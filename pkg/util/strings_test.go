package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseIntDefault(t *testing.T) {
	assert.Equal(t, 5, ParseIntDefault("5", 1))
	assert.Equal(t, 1, ParseIntDefault("", 1))
	assert.Equal(t, 1, ParseIntDefault("abc", 1))
}

func TestIsUpperAlpha(t *testing.T) {
	assert.True(t, IsUpperAlpha("AAPL"))
	assert.True(t, IsUpperAlpha("A"))
	assert.False(t, IsUpperAlpha(""))
	assert.False(t, IsUpperAlpha("BRK.B"))
	assert.False(t, IsUpperAlpha("aapl"))
	assert.False(t, IsUpperAlpha("AAPL1"))
}
