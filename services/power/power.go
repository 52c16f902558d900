// Package power bounds the Active period and hands the device to deep sleep.
//
// Sleeping is terminal for the process image: once entered no further
// sampling happens, and the next Active period starts from a fresh boot.
package power

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"envlogger/bus"
	"envlogger/services/retention"
	"envlogger/services/sampler"
	"envlogger/types"
)

// Button reads the wake button level.
type Button interface {
	Low() (bool, error)
}

// Sleeper owns the wake sources and the deep-sleep entry.
// Sleep does not return on real hardware; a returned error is a device fault.
type Sleeper interface {
	Arm(w types.WakeSources) error
	Sleep(ctx context.Context) error
}

type Sampler interface {
	MaybeSample(ctx context.Context, dc *sampler.DutyCycle, now time.Time) (types.Reading, bool)
}

type ActiveObserver interface {
	Active(d time.Duration)
}

type Options struct {
	ActiveFor time.Duration
	SleepFor  time.Duration
	ButtonPin int
	Tick      time.Duration

	Sampler  Sampler
	Button   Button
	Sleeper  Sleeper
	Counter  *retention.Counter
	Conn     *bus.Connection
	Observer ActiveObserver
	Logger   *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

type Controller struct {
	opts Options
	log  *zap.Logger

	mu    sync.Mutex
	state types.PowerState
	cause types.SleepCause
	dc    sampler.DutyCycle
}

func New(o Options) *Controller {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Tick <= 0 {
		o.Tick = 100 * time.Millisecond
	}
	return &Controller{opts: o, log: o.Logger}
}

// Boot arms both wake sources and enters Active.
func (c *Controller) Boot(now time.Time) error {
	w := types.WakeSources{
		TimerAfterS: uint32(c.opts.SleepFor / time.Second),
		ButtonPin:   c.opts.ButtonPin,
		ButtonLow:   true,
	}
	if err := c.opts.Sleeper.Arm(w); err != nil {
		return err
	}

	c.mu.Lock()
	c.state = types.PowerActive
	c.cause = ""
	c.dc = sampler.DutyCycle{ActiveSince: now}
	c.mu.Unlock()

	c.log.Info("active",
		zap.Duration("active_for", c.opts.ActiveFor),
		zap.Uint32("timer_wake_s", w.TimerAfterS),
		zap.Int("button_pin", w.ButtonPin),
	)
	c.publishState(now)
	return nil
}

func (c *Controller) State() types.PowerState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// DutyCycle returns a copy of the current Active period state.
func (c *Controller) DutyCycle() sampler.DutyCycle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dc
}

// Tick runs one scheduling step. It returns false once the controller is
// Sleeping.
func (c *Controller) Tick(ctx context.Context, now time.Time) bool {
	c.mu.Lock()
	if c.state != types.PowerActive {
		c.mu.Unlock()
		return false
	}
	elapsed := now.Sub(c.dc.ActiveSince)
	c.mu.Unlock()

	if c.opts.Observer != nil {
		c.opts.Observer.Active(elapsed)
	}

	if elapsed >= c.opts.ActiveFor {
		c.enterSleep(ctx, now, types.CauseActiveElapsed)
		return false
	}
	if c.buttonLow() {
		c.enterSleep(ctx, now, types.CauseButton)
		return false
	}

	c.mu.Lock()
	dc := c.dc
	c.mu.Unlock()
	c.opts.Sampler.MaybeSample(ctx, &dc, now)
	c.mu.Lock()
	c.dc = dc
	c.mu.Unlock()
	return true
}

// Run ticks until Sleeping or ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	t := time.NewTicker(c.opts.Tick)
	defer t.Stop()

	if !c.Tick(ctx, c.opts.Now()) {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if !c.Tick(ctx, c.opts.Now()) {
				return nil
			}
		}
	}
}

func (c *Controller) buttonLow() bool {
	if c.opts.Button == nil {
		return false
	}
	low, err := c.opts.Button.Low()
	if err != nil {
		// A missed check only delays sleep to the next tick.
		c.log.Debug("button read failed", zap.Error(err))
		return false
	}
	return low
}

func (c *Controller) enterSleep(ctx context.Context, now time.Time, cause types.SleepCause) {
	c.mu.Lock()
	c.state = types.PowerSleeping
	c.cause = cause
	active := now.Sub(c.dc.ActiveSince)
	c.mu.Unlock()

	if c.opts.Counter != nil {
		if err := c.opts.Counter.Flush(); err != nil {
			c.log.Error("retention flush failed", zap.Error(err))
		}
	}
	c.publishState(now)
	c.log.Info("entering deep sleep", zap.String("cause", string(cause)), zap.Duration("active", active))

	if err := c.opts.Sleeper.Sleep(ctx); err != nil {
		c.log.Error("deep sleep entry failed", zap.Error(err))
	}
}

func (c *Controller) publishState(now time.Time) {
	if c.opts.Conn == nil {
		return
	}
	c.mu.Lock()
	st := types.LoggerState{
		State:       c.state,
		ActiveSince: c.dc.ActiveSince.UnixMilli(),
		SleepAfter:  c.opts.ActiveFor.Milliseconds(),
		Cause:       c.cause,
		TS:          now.UnixMilli(),
	}
	c.mu.Unlock()
	c.opts.Conn.Publish(c.opts.Conn.NewMessage(types.TopicState, st, true))
}
