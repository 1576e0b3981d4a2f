package venue

import (
	"github.com/shopspring/decimal"
)

// DefaultMaxRoundingError is 0.1%.
var DefaultMaxRoundingError = decimal.RequireFromString("0.001")

// Validator rounds prices and quantities to a symbol's step sizes and rejects values
// that are out of bounds or that rounding would distort beyond MaxRoundingError.
type Validator struct {
	maxRoundingError decimal.Decimal
}

// NewValidator creates a validator. A non-positive threshold falls back to the default.
func NewValidator(maxRoundingError decimal.Decimal) *Validator {
	if !maxRoundingError.IsPositive() {
		maxRoundingError = DefaultMaxRoundingError
	}
	return &Validator{maxRoundingError: maxRoundingError}
}

// MaxRoundingError returns the configured threshold.
func (v *Validator) MaxRoundingError() decimal.Decimal {
	return v.maxRoundingError
}

// CheckTradeable rejects symbols the venue has halted.
func (v *Validator) CheckTradeable(meta *SymbolMetadata) error {
	if !meta.Tradeable {
		return NewError(KindAPI, "symbol %s is not available for trading", meta.Symbol)
	}
	return nil
}

// CheckPrice validates price against the symbol's price filter and returns it rounded.
func (v *Validator) CheckPrice(meta *SymbolMetadata, price decimal.Decimal) (decimal.Decimal, error) {
	return v.check(meta.Symbol, "price", KindOrderPriceInvalid, price, meta.MinPrice, meta.MaxPrice, meta.PriceStep)
}

// CheckQuantity validates qty against the symbol's lot size filter and returns it rounded.
func (v *Validator) CheckQuantity(meta *SymbolMetadata, qty decimal.Decimal) (decimal.Decimal, error) {
	return v.check(meta.Symbol, "quantity", KindLotSizeInvalid, qty, meta.MinQty, meta.MaxQty, meta.QtyStep)
}

// CheckNotional rejects orders whose value is below the venue minimum.
func (v *Validator) CheckNotional(meta *SymbolMetadata, price, qty decimal.Decimal) error {
	notional := price.Mul(qty)
	if meta.MinNotional.IsPositive() && notional.LessThan(meta.MinNotional) {
		return NewError(KindOrderValueTooLow,
			"order value %s for symbol %s is less than allowed minimum of %s",
			notional, meta.Symbol, meta.MinNotional)
	}
	return nil
}

func (v *Validator) check(symbol, field string, kind Kind, value, lo, hi, step decimal.Decimal) (decimal.Decimal, error) {
	if !value.IsPositive() {
		return decimal.Zero, NewError(kind, "%s %s for symbol %s must be positive", field, value, symbol)
	}
	if err := checkBounds(symbol, field, kind, value, lo, hi); err != nil {
		return decimal.Zero, err
	}

	rounded := RoundToStep(value, step)
	roundingError := rounded.Sub(value).Abs().Div(value)
	if roundingError.GreaterThanOrEqual(v.maxRoundingError) {
		return decimal.Zero, NewError(KindExcessiveRounding,
			"rounding %s %s to step %s for symbol %s would cause rounding error of %s%%, "+
				"which is not below the allowed rounding error of %s%%",
			field, value, step, symbol,
			roundingError.Mul(decimal.NewFromInt(100)).StringFixed(2),
			v.maxRoundingError.Mul(decimal.NewFromInt(100)).StringFixed(2))
	}

	if err := checkBounds(symbol, field, kind, rounded, lo, hi); err != nil {
		return decimal.Zero, err
	}
	return rounded, nil
}

func checkBounds(symbol, field string, kind Kind, value, lo, hi decimal.Decimal) error {
	if lo.IsPositive() && value.LessThan(lo) {
		return NewError(kind, "%s %s for symbol %s is less than allowed minimum of %s", field, value, symbol, lo)
	}
	if hi.IsPositive() && value.GreaterThan(hi) {
		return NewError(kind, "%s %s for symbol %s is greater than allowed maximum of %s", field, value, symbol, hi)
	}
	return nil
}

// RoundToStep rounds value to the nearest multiple of step using banker's rounding.
// A non-positive step leaves the value unchanged.
func RoundToStep(value, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return value
	}
	return value.Div(step).RoundBank(0).Mul(step)
}
