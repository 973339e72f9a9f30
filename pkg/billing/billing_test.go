package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePaymentMethod(t *testing.T) {
	m, err := ParsePaymentMethod(" PIX ")
	require.NoError(t, err)
	assert.Equal(t, PaymentMethodPix, m)

	_, err = ParsePaymentMethod("wire")
	assert.ErrorIs(t, err, ErrInvalidPaymentMethod)
}

func TestFeeTermsNormalize(t *testing.T) {
	terms := FeeTerms{FineCents: -1, InterestBps: 100, DiscountCents: -5, DiscountDaysBefore: -2}.Normalize()
	assert.Equal(t, FeeTerms{InterestBps: 100}, terms)
	assert.True(t, FeeTerms{}.IsZero())
}
