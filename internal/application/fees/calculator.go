package fees

import (
	"cleanup-backend/internal/payments"

	"github.com/shopspring/decimal"
)

var (
	platformRate  = decimal.RequireFromString("0.07")
	processorRate = decimal.RequireFromString("0.109")
)

// ProcessorFixedFee is the per-transaction processor charge in minor units.
// Applied regardless of currency.
const ProcessorFixedFee int64 = 33

// Split is how a captured total is divided. The three parts always sum to the total.
type Split struct {
	Total        int64 `json:"total_minor_units"`
	PlatformFee  int64 `json:"platform_fee_minor_units"`
	ProcessorFee int64 `json:"processor_fee_minor_units"`
	Net          int64 `json:"net_amount_minor_units"`
}

// Calculate splits totalCaptured (minor units, >= 0). Percentages round half-up;
// Net absorbs the remainder and is negative when fees exceed a small total.
func Calculate(totalCaptured int64) Split {
	total := decimal.NewFromInt(totalCaptured)
	platform := roundHalfUp(total.Mul(platformRate))
	processor := roundHalfUp(total.Mul(processorRate)) + ProcessorFixedFee
	return Split{
		Total:        totalCaptured,
		PlatformFee:  platform,
		ProcessorFee: processor,
		Net:          totalCaptured - platform - processor,
	}
}

// Validate rejects a split that cannot be paid out.
func (s Split) Validate() error {
	if s.Net < 0 {
		return payments.ErrInsufficientSettlementAmount
	}
	return nil
}

func roundHalfUp(d decimal.Decimal) int64 {
	// Totals are never negative, so half-away-from-zero is half-up.
	return d.Round(0).IntPart()
}
