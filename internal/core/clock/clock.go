// Package clock provides the simulation time sources sensors are driven by.
package clock

import (
	"sync"
	"time"
)

// Clock reports monotonic simulation time in seconds.
type Clock interface {
	Now() float64
}

// Wall is a Clock backed by the process monotonic clock. Time starts at zero
// when the clock is created.
type Wall struct {
	start time.Time
}

func NewWall() *Wall {
	return &Wall{start: time.Now()}
}

func (w *Wall) Now() float64 {
	return time.Since(w.start).Seconds()
}

// Manual is a Clock that only moves when told to. Used by scripted runs and
// tests.
type Manual struct {
	mu  sync.Mutex
	now float64
}

func NewManual(start float64) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set jumps to t. Going backwards is ignored.
func (m *Manual) Set(t float64) {
	m.mu.Lock()
	if t > m.now {
		m.now = t
	}
	m.mu.Unlock()
}

// Advance moves the clock forward by dt seconds and returns the new time.
func (m *Manual) Advance(dt float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if dt > 0 {
		m.now += dt
	}
	return m.now
}
