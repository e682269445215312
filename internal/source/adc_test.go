package source

import (
	"errors"
	"testing"
)

type fakeADC struct {
	voltages []float64
	err      error
}

func (f *fakeADC) ReadChannel(ch int) (int, float64, error) {
	if f.err != nil {
		return 0, 0, f.err
	}
	v := f.voltages[ch]
	return voltageToRaw(v), v, nil
}

func TestLocalADCRead(t *testing.T) {
	dev := &fakeADC{voltages: []float64{1.1, 2.2}}
	l := NewLocalADC(func() (ADC, error) { return dev, nil }, 2)

	if !l.Ready() {
		t.Fatal("source should be ready after a successful open")
	}
	r, err := l.Read(1)
	if err != nil {
		t.Fatalf("Read(1): %v", err)
	}
	if r.Voltage != 2.2 || r.SensorID != 1 {
		t.Errorf("Read(1): got %+v", r)
	}

	if _, err := l.Read(7); err == nil {
		t.Error("Read past the configured count should fail")
	}
}

func TestLocalADCOpenFailure(t *testing.T) {
	l := NewLocalADC(func() (ADC, error) { return nil, errors.New("SPI bus missing") }, 2)

	if l.Ready() {
		t.Fatal("failed open must leave the source not ready")
	}
	if _, err := l.Read(0); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Read after failed open: got %v, want ErrUnavailable", err)
	}
}

func TestLocalADCClampsVoltage(t *testing.T) {
	dev := &fakeADC{voltages: []float64{4.7}}
	l := NewLocalADC(func() (ADC, error) { return dev, nil }, 1)

	r, err := l.Read(0)
	if err != nil {
		t.Fatal(err)
	}
	if r.Voltage != MaxVoltage {
		t.Errorf("voltage not clamped: got %.2f", r.Voltage)
	}
}

func TestSimulatedStaysInBounds(t *testing.T) {
	s := NewSimulated(42)
	for i := 0; i < 500; i++ {
		r, err := s.Read(i % 3)
		if err != nil {
			t.Fatal(err)
		}
		if r.Voltage < 0 || r.Voltage > MaxVoltage {
			t.Fatalf("simulated voltage %.3f outside bounds at step %d", r.Voltage, i)
		}
	}
}
