//go:build rp2040 || rp2350

package board

import (
	"context"
	"errors"
	"machine"
	"time"

	"envlogger/types"
)

// PinButton is the wake button on a pulled-up input; pressed reads LOW.
type PinButton struct {
	p machine.Pin
}

func NewPinButton(n int) (*PinButton, error) {
	if n < 0 || n > 29 {
		return nil, errors.New("board: pin out of range")
	}
	p := machine.Pin(n)
	p.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	return &PinButton{p: p}, nil
}

func (b *PinButton) Low() (bool, error) { return !b.p.Get(), nil }

// WatchdogSleeper idles until a wake source fires and then reboots through
// the watchdog, which keeps the scratch registers holding retention state.
type WatchdogSleeper struct {
	Button *PinButton
	wake   types.WakeSources
	armed  bool
}

func (s *WatchdogSleeper) Arm(w types.WakeSources) error {
	s.wake = w
	s.armed = true
	return nil
}

func (s *WatchdogSleeper) Sleep(ctx context.Context) error {
	if !s.armed {
		return errors.New("sleeper: wake sources not armed")
	}
	deadline := time.Now().Add(time.Duration(s.wake.TimerAfterS) * time.Second)
	released := false
	for time.Now().Before(deadline) {
		if s.Button != nil && s.wake.ButtonLow {
			low, _ := s.Button.Low()
			if !low {
				released = true
			} else if released {
				break
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		time.Sleep(100 * time.Millisecond)
	}

	println("[board] watchdog reboot")
	machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 1})
	machine.Watchdog.Start()
	for {
	}
}
