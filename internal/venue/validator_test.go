package venue

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testMetadata() *SymbolMetadata {
	return &SymbolMetadata{
		Symbol:      "BNBBTC",
		BaseAsset:   "BNB",
		QuoteAsset:  "BTC",
		MinPrice:    d("0.0001"),
		MaxPrice:    d("1000"),
		PriceStep:   d("0.0001"),
		MinQty:      d("1"),
		MaxQty:      d("1000000000"),
		QtyStep:     d("1"),
		MinNotional: d("0.001"),
		Tradeable:   true,
	}
}

func TestRoundToStep(t *testing.T) {
	tests := []struct {
		value string
		step  string
		want  string
	}{
		{"0.00011", "0.0001", "0.0001"},
		{"0.00019", "0.0001", "0.0002"},
		{"0.00015", "0.0001", "0.0002"}, // half to even
		{"0.00025", "0.0001", "0.0002"}, // half to even
		{"10.4", "1", "10"},
		{"7.3", "0.5", "7.5"},
		{"123.456", "0", "123.456"},
	}

	for _, tt := range tests {
		got := RoundToStep(d(tt.value), d(tt.step))
		if !got.Equal(d(tt.want)) {
			t.Errorf("RoundToStep(%s, %s) = %s, want %s", tt.value, tt.step, got, tt.want)
		}
	}
}

func TestRoundToStep_Idempotent(t *testing.T) {
	steps := []string{"0.0001", "0.01", "0.5", "1", "0.00000001", "25"}
	values := []string{"0.00011", "3.14159", "1000.5", "0.123456789", "77", "12345.6789"}

	for _, s := range steps {
		for _, v := range values {
			once := RoundToStep(d(v), d(s))
			twice := RoundToStep(once, d(s))
			if !once.Equal(twice) {
				t.Errorf("step %s value %s: round once %s, twice %s", s, v, once, twice)
			}
		}
	}
}

func TestValidator_CheckPrice_Scenario(t *testing.T) {
	meta := testMetadata()

	loose := NewValidator(d("0.1"))
	price, err := loose.CheckPrice(meta, d("0.00011"))
	if err != nil {
		t.Fatalf("CheckPrice() with 10%% threshold error = %v", err)
	}
	if !price.Equal(d("0.0001")) {
		t.Errorf("price = %s, want 0.0001", price)
	}
	qty, err := loose.CheckQuantity(meta, d("10"))
	if err != nil {
		t.Fatalf("CheckQuantity() error = %v", err)
	}
	if !qty.Equal(d("10")) {
		t.Errorf("qty = %s, want 10", qty)
	}

	strict := NewValidator(d("0.01"))
	_, err = strict.CheckPrice(meta, d("0.00011"))
	if !errors.Is(err, ErrExcessiveRounding) {
		t.Fatalf("CheckPrice() with 1%% threshold error = %v, want ExcessiveRoundingError", err)
	}
	if errors.Is(err, ErrAPI) {
		t.Error("ExcessiveRoundingError must not be an API rejection")
	}
}

func TestValidator_RoundingErrorBound(t *testing.T) {
	meta := testMetadata()
	threshold := d("0.05")
	v := NewValidator(threshold)

	for _, s := range []string{"0.00011", "0.00012", "0.00101", "0.0123", "1.00004", "999.99994", "0.00016"} {
		original := d(s)
		rounded, err := v.CheckPrice(meta, original)
		if err != nil {
			if !errors.Is(err, ErrExcessiveRounding) {
				t.Errorf("CheckPrice(%s) unexpected error = %v", s, err)
			}
			continue
		}
		roundingError := rounded.Sub(original).Abs().Div(original)
		if !roundingError.LessThan(threshold) {
			t.Errorf("CheckPrice(%s) = %s with rounding error %s >= %s", s, rounded, roundingError, threshold)
		}
	}
}

func TestValidator_Bounds(t *testing.T) {
	meta := testMetadata()
	v := NewValidator(d("0.001"))

	tests := []struct {
		name    string
		check   func() error
		wantErr *Error
	}{
		{
			name:    "price below min",
			check:   func() error { _, err := v.CheckPrice(meta, d("0.00001")); return err },
			wantErr: ErrOrderPriceInvalid,
		},
		{
			name:    "price above max",
			check:   func() error { _, err := v.CheckPrice(meta, d("1000.1")); return err },
			wantErr: ErrOrderPriceInvalid,
		},
		{
			name:    "zero price",
			check:   func() error { _, err := v.CheckPrice(meta, decimal.Zero); return err },
			wantErr: ErrOrderPriceInvalid,
		},
		{
			name:    "quantity below min",
			check:   func() error { _, err := v.CheckQuantity(meta, d("0.5")); return err },
			wantErr: ErrLotSizeInvalid,
		},
		{
			name:    "quantity above max",
			check:   func() error { _, err := v.CheckQuantity(meta, d("2000000000")); return err },
			wantErr: ErrLotSizeInvalid,
		},
		{
			name:    "notional too low",
			check:   func() error { return v.CheckNotional(meta, d("0.0001"), d("5")) },
			wantErr: ErrOrderValueTooLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.check()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr.Kind)
			}
			if !errors.Is(err, ErrAPI) {
				t.Errorf("%v should be an API rejection subkind", err)
			}
		})
	}
}

func TestValidator_CheckNotional_OK(t *testing.T) {
	v := NewValidator(decimal.Zero)
	if err := v.CheckNotional(testMetadata(), d("0.0001"), d("10")); err != nil {
		t.Errorf("CheckNotional() error = %v", err)
	}
	if !v.MaxRoundingError().Equal(DefaultMaxRoundingError) {
		t.Errorf("MaxRoundingError() = %s, want default", v.MaxRoundingError())
	}
}

func TestValidator_CheckTradeable(t *testing.T) {
	v := NewValidator(d("0.001"))
	meta := testMetadata()
	if err := v.CheckTradeable(meta); err != nil {
		t.Errorf("CheckTradeable() error = %v", err)
	}
	meta.Tradeable = false
	if err := v.CheckTradeable(meta); !errors.Is(err, ErrAPI) {
		t.Errorf("CheckTradeable() error = %v, want APIError", err)
	}
}
