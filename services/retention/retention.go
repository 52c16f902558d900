// Package retention holds the state that must survive deep sleep: the
// reading sequence counter. Implementations map to always-on memory that is
// kept across a wake reboot and lost on full power loss.
package retention

import (
	"math"
	"sync"

	"envlogger/errcode"
)

// Store persists one counter value.
type Store interface {
	Load() (uint32, error)
	Save(v uint32) error
}

// Memory is a process-local Store for tests and the sim target.
type Memory struct {
	mu sync.Mutex
	v  uint32
}

func (m *Memory) Load() (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.v, nil
}

func (m *Memory) Save(v uint32) error {
	m.mu.Lock()
	m.v = v
	m.mu.Unlock()
	return nil
}

// Counter is the sequence id cache in front of a Store. Only Reserve moves it
// forward, and only once the Store accepted the new value.
type Counter struct {
	mu  sync.Mutex
	st  Store
	cur uint32
}

// NewCounter loads the retained value.
func NewCounter(st Store) (*Counter, error) {
	v, err := st.Load()
	if err != nil {
		return nil, errcode.Wrap(errcode.IOFailure, "retention_load", err)
	}
	return &Counter{st: st, cur: v}, nil
}

// Current is the last committed sequence id (0 before the first reading).
func (c *Counter) Current() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

// Next is the id the next reading will carry, or 0 once the counter is
// exhausted.
func (c *Counter) Next() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == math.MaxUint32 {
		return 0
	}
	return c.cur + 1
}

// Reserve commits and returns the next id. Once math.MaxUint32 has been
// handed out every call fails with IOFailure; ids never wrap back to 0.
func (c *Counter) Reserve() (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == math.MaxUint32 {
		return 0, &errcode.E{C: errcode.IOFailure, Op: "retention_reserve", Msg: "sequence ids exhausted"}
	}
	v := c.cur + 1
	if err := c.st.Save(v); err != nil {
		return 0, errcode.Wrap(errcode.IOFailure, "retention_reserve", err)
	}
	c.cur = v
	return v, nil
}

// Flush writes the current value again before deep sleep.
func (c *Counter) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.st.Save(c.cur); err != nil {
		return errcode.Wrap(errcode.IOFailure, "retention_flush", err)
	}
	return nil
}
