package token

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/notmarket/launch-engine/internal/curve"
)

func TestMetadataValidate(t *testing.T) {
	tests := []struct {
		name    string
		meta    Metadata
		wantErr error
	}{
		{"valid", Metadata{Name: "Not A Market", Symbol: "NOTMKT", MetadataURI: "https://example.com/m.json"}, nil},
		{"valid no uri", Metadata{Name: "Bare", Symbol: "BARE"}, nil},
		{"empty name", Metadata{Symbol: "OK"}, ErrInvalidName},
		{"name too long", Metadata{Name: strings.Repeat("x", 33), Symbol: "OK"}, ErrInvalidName},
		{"empty symbol", Metadata{Name: "ok"}, ErrInvalidSymbol},
		{"lowercase symbol", Metadata{Name: "ok", Symbol: "bad"}, ErrInvalidSymbol},
		{"symbol too long", Metadata{Name: "ok", Symbol: "ELEVENCHARS"}, ErrInvalidSymbol},
		{"uri too long", Metadata{Name: "ok", Symbol: "OK", MetadataURI: strings.Repeat("u", 201)}, ErrInvalidURI},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.meta.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateFeeBps(t *testing.T) {
	if err := ValidateFeeBps(1000); err != nil {
		t.Errorf("1000 bps should be allowed: %v", err)
	}
	if err := ValidateFeeBps(1001); !errors.Is(err, ErrInvalidFee) {
		t.Errorf("1001 bps: got %v, want ErrInvalidFee", err)
	}
}

func TestDefaultParams(t *testing.T) {
	p, err := DefaultParams()
	if err != nil {
		t.Fatalf("DefaultParams failed: %v", err)
	}
	if p.StartPriceUSD != DefaultStartPriceUSD || p.EndPriceUSD != DefaultEndPriceUSD {
		t.Errorf("unexpected endpoints: %d..%d", p.StartPriceUSD, p.EndPriceUSD)
	}
	if p.TotalSupply() != TotalSupply {
		t.Errorf("total supply = %d, want %d", p.TotalSupply(), TotalSupply)
	}
}

func TestParamsFromUSD(t *testing.T) {
	p, err := ParamsFromUSD(decimal.RequireFromString("0.00000420"), decimal.RequireFromString("0.00006900"))
	if err != nil {
		t.Fatalf("ParamsFromUSD failed: %v", err)
	}
	def, _ := DefaultParams()
	if p != def {
		t.Errorf("decimal-derived params %+v != defaults %+v", p, def)
	}
}

func TestParamsFromUSD_Rejections(t *testing.T) {
	tooFine := decimal.RequireFromString("0.000000001") // below 1e-8 resolution
	if _, err := ParamsFromUSD(tooFine, decimal.NewFromInt(1)); !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("sub-resolution price: got %v, want ErrInvalidPrice", err)
	}
	if _, err := ParamsFromUSD(decimal.Zero, decimal.NewFromInt(1)); !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("zero price: got %v, want ErrInvalidPrice", err)
	}
	if _, err := ParamsFromUSD(decimal.NewFromInt(1), decimal.RequireFromString("0.5")); !errors.Is(err, curve.ErrInvalidParams) {
		t.Errorf("inverted prices: got %v, want ErrInvalidParams", err)
	}
}
