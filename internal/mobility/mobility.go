// Package mobility provides the kinematic-state providers vehicles beacon from.
package mobility

import (
	"sync"
	"time"

	"github.com/signalsfoundry/cam-beaconing/internal/cam"
)

// Static reports a fixed position and zero velocity.
type Static struct {
	X, Y float64
}

// Sample returns the fixed position.
func (m Static) Sample(time.Time) (cam.KinematicSample, bool) {
	return cam.KinematicSample{PositionX: m.X, PositionY: m.Y}, true
}

// ConstantVelocity moves in a straight line from a start position at t0.
// Before t0 it reports the start position. The velocity can be changed while
// running; the position integrates from the time of the change.
type ConstantVelocity struct {
	mu     sync.Mutex
	x, y   float64
	vx, vy float64
	t0     time.Time
}

// NewConstantVelocity starts at (x, y) at time t0 with velocity (vx, vy) m/s.
func NewConstantVelocity(x, y, vx, vy float64, t0 time.Time) *ConstantVelocity {
	return &ConstantVelocity{x: x, y: y, vx: vx, vy: vy, t0: t0}
}

// Sample returns the position reached at now.
func (m *ConstantVelocity) Sample(now time.Time) (cam.KinematicSample, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	x, y := m.positionLocked(now)
	return cam.KinematicSample{PositionX: x, PositionY: y, VelocityX: m.vx, VelocityY: m.vy}, true
}

// Position returns only the coordinates at now. It is the shape link.Locator
// wants.
func (m *ConstantVelocity) Position(now time.Time) (x, y float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.positionLocked(now)
}

// SetVelocity changes the velocity from now on.
func (m *ConstantVelocity) SetVelocity(now time.Time, vx, vy float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.x, m.y = m.positionLocked(now)
	if now.After(m.t0) {
		m.t0 = now
	}
	m.vx, m.vy = vx, vy
}

func (m *ConstantVelocity) positionLocked(now time.Time) (float64, float64) {
	dt := now.Sub(m.t0).Seconds()
	if dt <= 0 {
		return m.x, m.y
	}
	return m.x + m.vx*dt, m.y + m.vy*dt
}

// Unavailable never has a sample. Stations using it skip every cycle.
type Unavailable struct{}

// Sample reports no sample.
func (Unavailable) Sample(time.Time) (cam.KinematicSample, bool) {
	return cam.KinematicSample{}, false
}

var (
	_ cam.KinematicProvider = Static{}
	_ cam.KinematicProvider = (*ConstantVelocity)(nil)
	_ cam.KinematicProvider = Unavailable{}
)
