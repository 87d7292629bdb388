package finance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProviderLightReach(t *testing.T) {
	p, err := NewProvider(LenderLightReach, nil)
	require.NoError(t, err)
	require.NotNil(t, p)

	_, ok := p.(QuoteProvider)
	assert.True(t, ok, "lightreach supports quote operations")
}

func TestNewProviderUnknownLender(t *testing.T) {
	_, err := NewProvider("acme-finance", nil)

	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, CodeUnsupportedLender, fe.Code)
	assert.Equal(t, 400, fe.StatusCode)
}

func TestAvailableLenders(t *testing.T) {
	assert.Contains(t, AvailableLenders(), LenderLightReach)
}
