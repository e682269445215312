package source

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"
)

func newTestIngest(t *testing.T, count int, filler FillerPolicy) *NetworkIngest {
	t.Helper()
	n := NewNetworkIngest(0, count, filler, NewSimulated(1))
	if !n.Ready() {
		t.Fatal("listener failed to bind on an ephemeral port")
	}
	return n
}

func TestApplyValidReport(t *testing.T) {
	n := newTestIngest(t, 3, FillerUnavailable)

	n.apply("test", map[string]interface{}{
		"plant_0": 1.2,
		"plant_2": 3.0,
	})

	r, err := n.Read(0)
	if err != nil {
		t.Fatalf("Read(0): %v", err)
	}
	if r.Voltage != 1.2 {
		t.Errorf("Read(0) voltage: got %.2f, want 1.2", r.Voltage)
	}
	if r.RawCode <= 0 {
		t.Errorf("derived raw code should be positive, got %d", r.RawCode)
	}

	if _, err := n.Read(1); !errors.Is(err, ErrNoData) {
		t.Errorf("Read(1) never reported: got %v, want ErrNoData", err)
	}
}

func TestApplyRejectsOutOfRangeAndKeepsPrevious(t *testing.T) {
	n := newTestIngest(t, 1, FillerUnavailable)

	n.apply("test", map[string]interface{}{"plant_0": 2.0})
	n.apply("test", map[string]interface{}{"plant_0": 5.0}) // out of range, dropped

	r, err := n.Read(0)
	if err != nil {
		t.Fatalf("Read(0): %v", err)
	}
	if r.Voltage != 2.0 {
		t.Errorf("out-of-range value applied: got %.2f, want previous 2.0", r.Voltage)
	}
}

func TestApplyRejectsBadKeysAndTypes(t *testing.T) {
	n := newTestIngest(t, 2, FillerUnavailable)

	n.apply("test", map[string]interface{}{
		"plant_5":  1.0,   // id beyond configured count
		"plant_x":  1.0,   // non-numeric suffix
		"humidity": 1.0,   // unknown key shape
		"plant_1":  "wet", // non-numeric value
		"plant_-1": 1.0,   // negative id
		"plant_0":  -0.5,  // below range
	})

	for id := 0; id < 2; id++ {
		if _, err := n.Read(id); !errors.Is(err, ErrNoData) {
			t.Errorf("Read(%d): got %v, want ErrNoData (nothing should apply)", id, err)
		}
	}
}

func TestLastWriteWins(t *testing.T) {
	n := newTestIngest(t, 1, FillerUnavailable)

	n.apply("a", map[string]interface{}{"plant_0": 1.0})
	n.apply("b", map[string]interface{}{"plant_0": 2.5})

	r, _ := n.Read(0)
	if r.Voltage != 2.5 {
		t.Errorf("last write should win: got %.2f", r.Voltage)
	}
}

func TestFillerSimulated(t *testing.T) {
	n := newTestIngest(t, 1, FillerSimulated)

	r, err := n.Read(0)
	if err != nil {
		t.Fatalf("simulated filler should produce a reading: %v", err)
	}
	if r.Voltage < 0 || r.Voltage > MaxVoltage {
		t.Errorf("filler voltage %.2f outside [0, %.1f]", r.Voltage, MaxVoltage)
	}
}

func TestIngestOverTCP(t *testing.T) {
	n := newTestIngest(t, 3, FillerUnavailable)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	send := func(payload string) {
		conn, err := net.Dial("tcp", n.Addr().String())
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		fmt.Fprint(conn, payload)
		conn.Close()
	}

	send(`{"plant_0": 1.8, "plant_1": 0.4}`)
	send(`{malformed`)

	deadline := time.Now().Add(5 * time.Second)
	for {
		r, err := n.Read(0)
		if err == nil && r.Voltage == 1.8 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("report never applied: last err %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	r, err := n.Read(1)
	if err != nil {
		t.Fatalf("Read(1): %v", err)
	}
	if r.Voltage != 0.4 {
		t.Errorf("Read(1) voltage: got %.2f, want 0.4", r.Voltage)
	}
	if _, err := n.Read(2); !errors.Is(err, ErrNoData) {
		t.Errorf("Read(2): got %v, want ErrNoData", err)
	}
}

func TestBindFailureDegradesToUnavailable(t *testing.T) {
	occupied := newTestIngest(t, 1, FillerUnavailable)
	port := occupied.Addr().(*net.TCPAddr).Port

	n := NewNetworkIngest(port, 1, FillerUnavailable, nil)
	if n.Ready() {
		t.Fatal("second bind on the same port should fail")
	}
	if _, err := n.Read(0); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Read on unbound variant: got %v, want ErrUnavailable", err)
	}
	// Run must be a no-op, not a panic.
	n.Run(context.Background())
}
