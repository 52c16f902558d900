package sensor

import (
	"context"
	"math"
	"sync"
	"time"
)

// Sim is a software probe for the sim hardware mode and for tests.
type Sim struct {
	mu       sync.Mutex
	celsius  float64
	failNext int
	hint     time.Duration
}

func NewSim(celsius float64) *Sim {
	return &Sim{celsius: celsius}
}

// Set changes the value returned by later conversions.
func (s *Sim) Set(c float64) {
	s.mu.Lock()
	s.celsius = c
	s.mu.Unlock()
}

// FailNext makes the next n conversions read as NaN.
func (s *Sim) FailNext(n int) {
	s.mu.Lock()
	s.failNext = n
	s.mu.Unlock()
}

// SetHint sets the conversion time reported by Trigger.
func (s *Sim) SetHint(d time.Duration) {
	s.mu.Lock()
	s.hint = d
	s.mu.Unlock()
}

func (s *Sim) Trigger(context.Context) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hint, nil
}

func (s *Sim) Collect(context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext > 0 {
		s.failNext--
		return math.NaN(), nil
	}
	return s.celsius, nil
}

// Unavailable stands in for a probe that could not be bound at boot, so
// every cycle reports a sensor failure instead of the device halting.
type Unavailable struct {
	Err error
}

func (u Unavailable) Trigger(context.Context) (time.Duration, error) { return 0, u.Err }
func (u Unavailable) Collect(context.Context) (float64, error)       { return math.NaN(), u.Err }
