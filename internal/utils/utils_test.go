package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeaderKey(t *testing.T) {
	assert.Equal(t, "monthly_due", HeaderKey(" Monthly  Due "))
	assert.Equal(t, "document_number", HeaderKey("\ufeffDocument-Number"))
	assert.Equal(t, "e_mail", HeaderKey("E-mail:"))
}

func TestNormalizeAmount(t *testing.T) {
	cases := map[string]string{
		"":          "0",
		"100":       "100",
		"1234.5":    "1234.5",
		"1,234.50":  "1234.50",
		"1.234,50":  "1234.50",
		"$ 80,5":    "80.5",
		"1,234,567": "1234567",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeAmount(in), in)
	}
}

func TestParseBoolLoose(t *testing.T) {
	v, ok := ParseBoolLoose("Sí")
	assert.True(t, v)
	assert.True(t, ok)

	v, ok = ParseBoolLoose("0")
	assert.False(t, v)
	assert.True(t, ok)

	_, ok = ParseBoolLoose("maybe")
	assert.False(t, ok)
}

func TestNullIfEmpty(t *testing.T) {
	assert.Nil(t, NullIfEmpty("  "))
	assert.Equal(t, "x", *NullIfEmpty(" x "))
	assert.Equal(t, "Ana María", CollapseSpaces("  Ana   María "))
}
