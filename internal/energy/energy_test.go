package energy

import (
	"math"
	"testing"
)

// The expected values below are exact constant expressions, while the
// cost functions compute in float64, so results are compared within a
// tolerance far below the costs' magnitude.

func TestModel_TXCost(t *testing.T) {
	m := Model{Eelec: 50e-9, Eamp: 100e-12}
	got := m.TXCost(2000, 10)
	want := 50e-9*2000 + 100e-12*2000*100
	if math.Abs(got-want) > 1e-18 {
		t.Errorf("TXCost() = %v, want %v", got, want)
	}
}

func TestModel_RXCost(t *testing.T) {
	m := Model{Eelec: 50e-9}
	if got, want := m.RXCost(2000), 50e-9*2000; math.Abs(got-want) > 1e-18 {
		t.Errorf("RXCost() = %v, want %v", got, want)
	}
}

func TestModel_CompressCost(t *testing.T) {
	m := Model{Ecomp: 5e-9}
	if got, want := m.CompressCost(2000), 5e-9*2000; got != want {
		t.Errorf("CompressCost() = %v, want %v", got, want)
	}
}

func TestOp_String(t *testing.T) {
	tests := []struct {
		op   Op
		want string
	}{
		{OpTX, "TX"},
		{OpRX, "RX"},
		{OpCompress, "COMPRESS"},
		{Op(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("String() = %v, want %v", got, tt.want)
		}
	}
}
