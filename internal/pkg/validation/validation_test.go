package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidEmail(t *testing.T) {
	assert.True(t, IsValidEmail("crew@example.org"))
	assert.False(t, IsValidEmail("crew@example"))
	assert.False(t, IsValidEmail("crew example@x.org"))
	assert.False(t, IsValidEmail(""))
}

func TestNormalizeCurrency(t *testing.T) {
	assert.Equal(t, "usd", NormalizeCurrency("USD", "eur"))
	assert.Equal(t, "gbp", NormalizeCurrency(" gbp ", "usd"))
	assert.Equal(t, "usd", NormalizeCurrency("dollars", "usd"))
	assert.Equal(t, "usd", NormalizeCurrency("", "usd"))
	assert.False(t, IsCurrencyCode("US"))
}
