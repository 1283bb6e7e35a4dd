package fees

import (
	"errors"
	"testing"

	"cleanup-backend/internal/payments"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate_FiftyDollarHold(t *testing.T) {
	s := Calculate(5000)
	assert.Equal(t, int64(350), s.PlatformFee)
	assert.Equal(t, int64(578), s.ProcessorFee)
	assert.Equal(t, int64(4072), s.Net)
	require.NoError(t, s.Validate())
}

func TestCalculate_CombinedDonations(t *testing.T) {
	s := Calculate(3000)
	assert.Equal(t, int64(210), s.PlatformFee)
	assert.Equal(t, int64(327+33), s.ProcessorFee)
	assert.Equal(t, int64(3000-210-360), s.Net)
}

func TestCalculate_RoundsHalfUp(t *testing.T) {
	// 50 * 0.07 = 3.5 -> 4 ; 50 * 0.109 = 5.45 -> 5
	s := Calculate(50)
	assert.Equal(t, int64(4), s.PlatformFee)
	assert.Equal(t, int64(5+33), s.ProcessorFee)
	assert.Equal(t, int64(8), s.Net)

	// 1000 * 0.109 = 109 exactly
	assert.Equal(t, int64(109+33), Calculate(1000).ProcessorFee)
	// 5 * 0.109 = 0.545 -> 1
	assert.Equal(t, int64(1+33), Calculate(5).ProcessorFee)
}

func TestCalculate_SmallTotalIsInsufficient(t *testing.T) {
	s := Calculate(30)
	assert.Less(t, s.Net, int64(0))
	err := s.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, payments.ErrInsufficientSettlementAmount))

	zero := Calculate(0)
	assert.Equal(t, int64(0), zero.PlatformFee)
	assert.Equal(t, int64(33), zero.ProcessorFee)
	assert.Equal(t, int64(-33), zero.Net)
}

func TestCalculate_PartsAlwaysSumToTotal(t *testing.T) {
	for total := int64(0); total <= 20000; total += 7 {
		s := Calculate(total)
		assert.Equal(t, total, s.PlatformFee+s.ProcessorFee+s.Net, "total %d", total)
	}
	for _, total := range []int64{1, 99, 12345, 999999, 123456789} {
		s := Calculate(total)
		assert.Equal(t, total, s.PlatformFee+s.ProcessorFee+s.Net, "total %d", total)
	}
}
