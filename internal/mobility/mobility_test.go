package mobility

import (
	"math"
	"testing"
	"time"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestStaticMobility(t *testing.T) {
	m := Static{X: 3, Y: 4}
	s, ok := m.Sample(t0.Add(time.Hour))
	if !ok || s.PositionX != 3 || s.PositionY != 4 || s.Speed() != 0 {
		t.Fatalf("Static sample = %+v, %v", s, ok)
	}
}

func TestConstantVelocity_Integrates(t *testing.T) {
	m := NewConstantVelocity(100, 0, 10, -2, t0)

	s, ok := m.Sample(t0.Add(2500 * time.Millisecond))
	if !ok {
		t.Fatalf("sample unavailable")
	}
	if math.Abs(s.PositionX-125) > 1e-9 || math.Abs(s.PositionY+5) > 1e-9 {
		t.Fatalf("position = (%v, %v), want (125, -5)", s.PositionX, s.PositionY)
	}
	if s.VelocityX != 10 || s.VelocityY != -2 {
		t.Fatalf("velocity = (%v, %v)", s.VelocityX, s.VelocityY)
	}

	// Before t0 the start position holds.
	if x, y := m.Position(t0.Add(-time.Second)); x != 100 || y != 0 {
		t.Fatalf("position before t0 = (%v, %v)", x, y)
	}
}

func TestConstantVelocity_SetVelocity(t *testing.T) {
	m := NewConstantVelocity(0, 0, 10, 0, t0)
	m.SetVelocity(t0.Add(time.Second), 0, 5)

	x, y := m.Position(t0.Add(3 * time.Second))
	if math.Abs(x-10) > 1e-9 || math.Abs(y-10) > 1e-9 {
		t.Fatalf("position = (%v, %v), want (10, 10)", x, y)
	}
}

func TestUnavailable(t *testing.T) {
	if _, ok := (Unavailable{}).Sample(t0); ok {
		t.Fatalf("Unavailable returned a sample")
	}
}
