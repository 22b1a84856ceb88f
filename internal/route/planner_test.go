package route

import (
	"errors"
	"testing"

	"github.com/omnivault/settle/internal/chains"
)

var (
	testHub = chains.Hub{
		Location: chains.Location{Name: "arbitrum", EndpointID: 30110},
	}
	spokeA = chains.Location{Name: "base", EndpointID: 30184}
	spokeB = chains.Location{Name: "optimism", EndpointID: 30111}
)

func TestPlanShapes(t *testing.T) {
	tests := []struct {
		name         string
		src          chains.Location
		dst          chains.Location
		conversion   Conversion
		wantLegs     int
		wantLocal    bool
		wantComposer []bool
		wantTokens   []Token
		wantErr      bool
	}{
		{
			name:       "hub to hub without conversion is empty",
			src:        testHub.Location,
			dst:        testHub.Location,
			conversion: ConversionNone,
			wantLegs:   0,
		},
		{
			name:       "hub to hub with conversion rejected",
			src:        testHub.Location,
			dst:        testHub.Location,
			conversion: ConversionDeposit,
			wantErr:    true,
		},
		{
			name:         "spoke to hub deposit terminates at composer",
			src:          spokeA,
			dst:          testHub.Location,
			conversion:   ConversionDeposit,
			wantLegs:     1,
			wantComposer: []bool{true},
			wantTokens:   []Token{TokenAsset},
		},
		{
			name:         "spoke to hub without conversion goes to wallet",
			src:          spokeA,
			dst:          testHub.Location,
			conversion:   ConversionNone,
			wantLegs:     1,
			wantComposer: []bool{false},
			wantTokens:   []Token{TokenAsset},
		},
		{
			name:         "hub to spoke deposit converts locally first",
			src:          testHub.Location,
			dst:          spokeA,
			conversion:   ConversionDeposit,
			wantLegs:     1,
			wantLocal:    true,
			wantComposer: []bool{false},
			wantTokens:   []Token{TokenShare},
		},
		{
			name:         "hub to spoke without conversion",
			src:          testHub.Location,
			dst:          spokeB,
			conversion:   ConversionNone,
			wantLegs:     1,
			wantComposer: []bool{false},
			wantTokens:   []Token{TokenAsset},
		},
		{
			name:         "spoke to spoke deposit is two legs through composer",
			src:          spokeA,
			dst:          spokeB,
			conversion:   ConversionDeposit,
			wantLegs:     2,
			wantComposer: []bool{true, false},
			wantTokens:   []Token{TokenAsset, TokenShare},
		},
		{
			name:         "spoke to spoke redeem flips the tokens",
			src:          spokeA,
			dst:          spokeB,
			conversion:   ConversionRedeem,
			wantLegs:     2,
			wantComposer: []bool{true, false},
			wantTokens:   []Token{TokenShare, TokenAsset},
		},
		{
			name:         "round trip through the hub is legal",
			src:          spokeA,
			dst:          spokeA,
			conversion:   ConversionRedeem,
			wantLegs:     2,
			wantComposer: []bool{true, false},
			wantTokens:   []Token{TokenShare, TokenAsset},
		},
		{
			name:       "unknown conversion kind rejected",
			src:        spokeA,
			dst:        spokeB,
			conversion: Conversion("swap"),
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Plan(tt.src, testHub, tt.dst, tt.conversion)
			if tt.wantErr {
				if !errors.Is(err, ErrBadRoute) {
					t.Fatalf("Plan() error = %v, want ErrBadRoute", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Plan() error = %v", err)
			}

			if len(got.Legs) != tt.wantLegs {
				t.Fatalf("Plan() = %d legs, want %d", len(got.Legs), tt.wantLegs)
			}
			if got.LocalConversion != tt.wantLocal {
				t.Errorf("LocalConversion = %v, want %v", got.LocalConversion, tt.wantLocal)
			}
			for i, leg := range got.Legs {
				if leg.ToComposer != tt.wantComposer[i] {
					t.Errorf("leg %d ToComposer = %v, want %v", i, leg.ToComposer, tt.wantComposer[i])
				}
				if leg.Token != tt.wantTokens[i] {
					t.Errorf("leg %d Token = %s, want %s", i, leg.Token, tt.wantTokens[i])
				}
			}

			if tt.wantLegs == 2 {
				if got.Legs[0].To.EndpointID != testHub.EndpointID {
					t.Errorf("leg 1 lands on %d, want hub %d", got.Legs[0].To.EndpointID, testHub.EndpointID)
				}
				if got.Legs[1].From.EndpointID != testHub.EndpointID {
					t.Errorf("leg 2 departs %d, want hub %d", got.Legs[1].From.EndpointID, testHub.EndpointID)
				}
				if got.Legs[1].To.EndpointID != tt.dst.EndpointID {
					t.Errorf("leg 2 lands on %d, want %d", got.Legs[1].To.EndpointID, tt.dst.EndpointID)
				}
			}
		})
	}
}

func TestPlanDeterministic(t *testing.T) {
	first, err := Plan(spokeA, testHub, spokeB, ConversionDeposit)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	second, err := Plan(spokeA, testHub, spokeB, ConversionDeposit)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if len(first.Legs) != len(second.Legs) || first.Conversion != second.Conversion {
		t.Errorf("identical inputs planned differently: %+v vs %+v", first, second)
	}
	for i := range first.Legs {
		if first.Legs[i] != second.Legs[i] {
			t.Errorf("leg %d differs: %+v vs %+v", i, first.Legs[i], second.Legs[i])
		}
	}
}
