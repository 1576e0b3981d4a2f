package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/pair-trader/internal/trading"
	"github.com/tathienbao/pair-trader/internal/types"
)

func TestFixedPlanner_Validate(t *testing.T) {
	tests := []struct {
		name    string
		planner FixedPlanner
		wantErr error
	}{
		{
			name:    "limit",
			planner: FixedPlanner{Side: types.SideBuy, Type: types.OrderTypeLimit, Quantity: d("10"), OpenPrice: d("0.01"), ClosePrice: d("0.011")},
		},
		{
			name:    "market without prices",
			planner: FixedPlanner{Side: types.SideSell, Type: types.OrderTypeMarket, Quantity: d("1")},
		},
		{
			name:    "missing side",
			planner: FixedPlanner{Type: types.OrderTypeMarket, Quantity: d("1")},
			wantErr: types.ErrInvalidOrder,
		},
		{
			name:    "zero quantity",
			planner: FixedPlanner{Side: types.SideBuy, Type: types.OrderTypeMarket},
			wantErr: types.ErrInvalidQuantity,
		},
		{
			name:    "limit without close price",
			planner: FixedPlanner{Side: types.SideBuy, Type: types.OrderTypeLimit, Quantity: d("10"), OpenPrice: d("0.01")},
			wantErr: types.ErrMissingPrice,
		},
		{
			name:    "missing type",
			planner: FixedPlanner{Side: types.SideBuy, Quantity: d("10")},
			wantErr: types.ErrInvalidOrder,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.planner.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, types.ErrValidation) {
				t.Errorf("Validate() error = %v, want a validation error", err)
			}
		})
	}
}

func TestFixedPlanner_Closing(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		planner   FixedPlanner
		side      types.Side
		filled    string
		wantSide  types.Side
		wantPrice decimal.NullDecimal
	}{
		{
			name:      "limit buy closes with limit sell",
			planner:   FixedPlanner{Side: types.SideBuy, Type: types.OrderTypeLimit, Quantity: d("10"), OpenPrice: d("0.01"), ClosePrice: d("0.011")},
			side:      types.SideBuy,
			filled:    "10",
			wantSide:  types.SideSell,
			wantPrice: decimal.NewNullDecimal(d("0.011")),
		},
		{
			name:     "market sell closes partial fill with market buy",
			planner:  FixedPlanner{Side: types.SideSell, Type: types.OrderTypeMarket, Quantity: d("10")},
			side:     types.SideSell,
			filled:   "4",
			wantSide: types.SideBuy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opener := &trading.Order{
				ID:             "opener",
				Symbol:         "BNBBTC",
				Side:           tt.side,
				Type:           tt.planner.Type,
				Quantity:       d("10"),
				QuantityFilled: decimal.NewNullDecimal(d(tt.filled)),
			}
			req, err := tt.planner.Closing(ctx, nil, opener)
			if err != nil {
				t.Fatalf("Closing() error = %v", err)
			}
			if req.Side != tt.wantSide {
				t.Errorf("Side = %s, want %s", req.Side, tt.wantSide)
			}
			if !req.Quantity.Equal(d(tt.filled)) {
				t.Errorf("Quantity = %s, want %s", req.Quantity, tt.filled)
			}
			if req.Price.Valid != tt.wantPrice.Valid || !req.Price.Decimal.Equal(tt.wantPrice.Decimal) {
				t.Errorf("Price = %v, want %v", req.Price, tt.wantPrice)
			}
		})
	}
}

func TestFixedPlanner_ClosingUnfilled(t *testing.T) {
	p := FixedPlanner{Side: types.SideBuy, Type: types.OrderTypeMarket, Quantity: d("10")}
	opener := &trading.Order{ID: "opener", Side: types.SideBuy, Quantity: d("10")}

	if _, err := p.Closing(context.Background(), nil, opener); !errors.Is(err, types.ErrInvalidQuantity) {
		t.Errorf("Closing() error = %v, want ErrInvalidQuantity", err)
	}
}
