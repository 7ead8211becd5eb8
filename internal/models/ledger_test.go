package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryRoundTripKeepsKind(t *testing.T) {
	for _, c := range []Category{
		TextCategory("Cleaning"),
		TextCategory("refund"),
		RefCategory("cat-7"),
	} {
		assert.False(t, c.Ambiguous(), c.String())
		assert.Equal(t, c, ParseCategory(c.String()))
	}

	text := TextCategory("ref:cat-7")
	assert.True(t, text.Ambiguous())
	assert.NotEqual(t, text, ParseCategory(text.String()))
}
