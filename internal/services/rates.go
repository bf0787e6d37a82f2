package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/nachochiappe/fairsplit-sub000/internal/core"
)

// RateResolver decides which FX rate applies to a (month, currency) pair.
// ARS converts at exactly 1; other currencies prefer the month's pinned rate
// over a caller-supplied default, and the first use of a default pins it for
// the rest of the month.
type RateResolver struct {
	repo Repository
}

func NewRateResolver(repo Repository) *RateResolver {
	return &RateResolver{repo: repo}
}

// Resolve returns the rate to use for the month. fallback is the stored
// default of the template or request, ignored when a monthly rate row exists.
func (r *RateResolver) Resolve(ctx context.Context, month core.Month, currency string, fallback decimal.Decimal) (decimal.Decimal, error) {
	if !core.ValidCurrency(currency) {
		return decimal.Decimal{}, core.ErrInvalidCurrency
	}
	if currency == core.CurrencyARS {
		return core.RateARS, nil
	}

	pinned, err := r.repo.GetMonthlyRate(ctx, month, currency)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("get monthly rate: %w", err)
	}
	if pinned != nil {
		return pinned.RateToARS, nil
	}

	if !fallback.IsPositive() {
		return decimal.Decimal{}, core.ErrInvalidRate
	}

	rate := core.RoundRate(fallback)
	// Pin the rate for the month so every later record converts the same way.
	if err := r.repo.CreateMonthlyRate(ctx, core.MonthlyRate{
		Month:     month,
		Currency:  currency,
		RateToARS: rate,
	}); err != nil {
		return decimal.Decimal{}, fmt.Errorf("pin monthly rate: %w", err)
	}
	slog.DebugContext(ctx, "Pinned monthly exchange rate",
		"month", month.String(),
		"currency", currency,
		"rate", core.RateString(rate))
	return rate, nil
}
