package engine

import (
	"math"
	"testing"
)

func TestClassifyScenario(t *testing.T) {
	// Three sensors calibrated dry=1.5 wet=2.5 reading 1.0, 2.0, 3.0 V.
	tests := []struct {
		voltage     float64
		wantState   MoistureState
		wantDisplay float64
		wantAlert   bool
	}{
		{1.0, StateDry, 13.3, true},
		{2.0, StatePerfect, 50.0, false},
		{3.0, StateWet, 92.5, false}, // 80 + (3.0-2.5)/(3.3-2.5)*20
	}

	for _, tt := range tests {
		c := Classify(tt.voltage, 1.5, 2.5)
		if c.State != tt.wantState {
			t.Errorf("Classify(%.1f): state = %s, want %s", tt.voltage, c.State, tt.wantState)
		}
		if math.Abs(c.DisplayValue-tt.wantDisplay) > 0.1 {
			t.Errorf("Classify(%.1f): display = %.2f, want %.1f", tt.voltage, c.DisplayValue, tt.wantDisplay)
		}
		if c.IsAlert != tt.wantAlert {
			t.Errorf("Classify(%.1f): alert = %v, want %v", tt.voltage, c.IsAlert, tt.wantAlert)
		}
	}

	// The wet band tops out at the reference voltage, not before.
	if c := Classify(3.3, 1.5, 2.5); math.Abs(c.DisplayValue-100) > 0.001 {
		t.Errorf("full-scale voltage: display = %.2f, want 100", c.DisplayValue)
	}
}

func TestClassifyBands(t *testing.T) {
	tests := []struct {
		name      string
		voltage   float64
		dry, wet  float64
		wantState MoistureState
	}{
		{"below dry", 0.5, 1.5, 2.5, StateDry},
		{"at dry boundary", 1.5, 1.5, 2.5, StatePerfect},
		{"at wet boundary", 2.5, 1.5, 2.5, StatePerfect},
		{"above wet", 2.6, 1.5, 2.5, StateWet},
		{"zero everything", 0, 0, 0, StatePerfect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(tt.voltage, tt.dry, tt.wet)
			if c.State != tt.wantState {
				t.Errorf("state = %s, want %s", c.State, tt.wantState)
			}
			if c.IsAlert != (tt.wantState == StateDry) {
				t.Errorf("alert = %v for state %s", c.IsAlert, c.State)
			}
		})
	}
}

func TestClassifyPerfectBandRange(t *testing.T) {
	// Inside the calibrated band the display value stays in [20, 80].
	for _, dry := range []float64{0, 0.5, 1.5} {
		for _, wet := range []float64{2.0, 3.0, 3.3} {
			for v := dry; v <= wet; v += 0.05 {
				c := Classify(v, dry, wet)
				if c.State != StatePerfect {
					t.Fatalf("Classify(%.2f, %.2f, %.2f): state = %s, want PERFECT", v, dry, wet, c.State)
				}
				if c.DisplayValue < 20 || c.DisplayValue > 80 {
					t.Fatalf("Classify(%.2f, %.2f, %.2f): display %.2f outside [20,80]", v, dry, wet, c.DisplayValue)
				}
			}
		}
	}
}

func TestClassifyDegenerateThresholds(t *testing.T) {
	// No input may panic or escape [0,100], including the divide-by-zero
	// guard cases.
	cases := []struct{ v, dry, wet float64 }{
		{0.5, 0, 0},     // dry == 0
		{1.0, 2.0, 2.0}, // dry == wet
		{3.3, 1.5, 3.3}, // wet == max
		{3.4, 1.5, 3.3}, // above max
		{-0.1, 1.5, 2.5},
		{0, 0, 3.3},
	}
	for _, tt := range cases {
		c := Classify(tt.v, tt.dry, tt.wet)
		if c.DisplayValue < 0 || c.DisplayValue > 100 {
			t.Errorf("Classify(%.2f, %.2f, %.2f): display %.2f outside [0,100]", tt.v, tt.dry, tt.wet, c.DisplayValue)
		}
	}

	if c := Classify(0.5, 0, 0); c.State != StateWet {
		t.Errorf("dry==wet==0 with positive voltage: state = %s, want WET", c.State)
	}

	if c := Classify(-1, 0, 2); c.State != StateDry || c.DisplayValue != 0 {
		t.Errorf("voltage below dry==0 boundary: got %+v", c)
	}
}
