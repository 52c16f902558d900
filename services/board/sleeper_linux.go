package board

import (
	"context"
	"errors"
	"os"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"envlogger/types"
)

// WakeCauseEnv carries the wake source into the next boot.
const WakeCauseEnv = "ENVLOGGER_WAKE_CAUSE"

const (
	WakeTimer  = "timer"
	WakeButton = "button"
)

type ButtonReader interface {
	Low() (bool, error)
}

// ProcessSleeper emulates deep sleep on Linux: the process idles until a
// wake source fires, then replaces itself with a fresh image of the same
// binary. Nothing in memory survives the wake.
type ProcessSleeper struct {
	Button ButtonReader
	// Poll is the button sampling period while asleep.
	Poll time.Duration
	Log  *zap.Logger
	// Exec defaults to syscall.Exec.
	Exec func(argv0 string, argv []string, envv []string) error

	wake  types.WakeSources
	armed bool
}

var errNotArmed = errors.New("sleeper: wake sources not armed")

func (p *ProcessSleeper) Arm(w types.WakeSources) error {
	if w.TimerAfterS == 0 && p.Button == nil {
		return errors.New("sleeper: no wake source")
	}
	p.wake = w
	p.armed = true
	return nil
}

// Sleep blocks until the timer fires or the button goes LOW, then re-executes
// the binary. It returns only on failure or cancellation.
func (p *ProcessSleeper) Sleep(ctx context.Context) error {
	cause, err := p.Wait(ctx)
	if err != nil {
		return err
	}
	self, err := os.Executable()
	if err != nil {
		return err
	}
	env := append(os.Environ(), WakeCauseEnv+"="+cause)
	exec := p.Exec
	if exec == nil {
		exec = syscall.Exec
	}
	p.log().Info("waking", zap.String("cause", cause))
	return exec(self, os.Args, env)
}

// Wait returns the wake cause. A button held down when sleep starts must be
// released first: the wake is the next HIGH to LOW transition.
func (p *ProcessSleeper) Wait(ctx context.Context) (string, error) {
	if !p.armed {
		return "", errNotArmed
	}
	poll := p.Poll
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}

	timer := make(chan struct{}, 1)
	if p.wake.TimerAfterS > 0 {
		c := cron.New()
		c.Schedule(cron.Every(time.Duration(p.wake.TimerAfterS)*time.Second), cron.FuncJob(func() {
			select {
			case timer <- struct{}{}:
			default:
			}
		}))
		c.Start()
		defer c.Stop()
	}

	var tick <-chan time.Time
	if p.Button != nil && p.wake.ButtonLow {
		t := time.NewTicker(poll)
		defer t.Stop()
		tick = t.C
	}
	released := false

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer:
			return WakeTimer, nil
		case <-tick:
			low, err := p.Button.Low()
			if err != nil {
				p.log().Debug("button read failed", zap.Error(err))
				continue
			}
			if !low {
				released = true
			} else if released {
				return WakeButton, nil
			}
		}
	}
}

func (p *ProcessSleeper) log() *zap.Logger {
	if p.Log == nil {
		return zap.NewNop()
	}
	return p.Log
}
