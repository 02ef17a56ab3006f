package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePrompt(t *testing.T) {
	assert.Equal(t, "top campaigns", NormalizePrompt("  Top Campaigns \n"))
	assert.Equal(t, "", NormalizePrompt("   "))
}

func TestHashPrompt_StableAcrossFormatting(t *testing.T) {
	// Case and surrounding whitespace must not change the cache key.
	a := HashPrompt("Top Campaigns")
	b := HashPrompt("  top campaigns  ")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	c := HashPrompt("worst campaigns")
	assert.NotEqual(t, a, c)
}
