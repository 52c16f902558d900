//go:build linux

package board

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"envlogger/types"
)

func TestGPIOButton(t *testing.T) {
	root := t.TempDir()
	gpio := filepath.Join(root, "gpio14")
	require.NoError(t, os.MkdirAll(gpio, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(gpio, "value"), []byte("1\n"), 0o644))

	b, err := NewGPIOButton(root, 14)
	require.NoError(t, err)

	dir, err := os.ReadFile(filepath.Join(gpio, "direction"))
	require.NoError(t, err)
	assert.Equal(t, "in", string(dir))

	low, err := b.Low()
	require.NoError(t, err)
	assert.False(t, low)

	require.NoError(t, os.WriteFile(filepath.Join(gpio, "value"), []byte("0\n"), 0o644))
	low, err = b.Low()
	require.NoError(t, err)
	assert.True(t, low)
}

func TestGPIOButtonExportsMissingPin(t *testing.T) {
	root := t.TempDir()
	// The export file exists but nothing creates gpio7, so direction fails.
	require.NoError(t, os.WriteFile(filepath.Join(root, "export"), nil, 0o644))
	_, err := NewGPIOButton(root, 7)
	assert.Error(t, err)

	exported, err := os.ReadFile(filepath.Join(root, "export"))
	require.NoError(t, err)
	assert.Equal(t, "7", string(exported))
}

func TestFileButton(t *testing.T) {
	path := filepath.Join(t.TempDir(), "button")
	b := FileButton{Path: path}

	low, err := b.Low()
	require.NoError(t, err)
	assert.False(t, low)

	require.NoError(t, os.WriteFile(path, nil, 0o644))
	low, err = b.Low()
	require.NoError(t, err)
	assert.True(t, low)
}

type levelButton struct{ low atomic.Bool }

func (b *levelButton) Low() (bool, error) { return b.low.Load(), nil }

func TestSleeperRequiresArm(t *testing.T) {
	p := &ProcessSleeper{}
	_, err := p.Wait(context.Background())
	assert.Error(t, err)
	assert.Error(t, p.Arm(types.WakeSources{}))
}

func TestSleeperTimerWake(t *testing.T) {
	var argv0 string
	var env []string
	p := &ProcessSleeper{Exec: func(a string, _ []string, e []string) error {
		argv0, env = a, e
		return nil
	}}
	require.NoError(t, p.Arm(types.WakeSources{TimerAfterS: 1}))

	start := time.Now()
	require.NoError(t, p.Sleep(context.Background()))
	assert.Less(t, time.Since(start), 3*time.Second)
	assert.NotEmpty(t, argv0)
	assert.Contains(t, env, WakeCauseEnv+"=timer")
}

func TestSleeperButtonWakeNeedsRelease(t *testing.T) {
	btn := &levelButton{}
	btn.low.Store(true)
	p := &ProcessSleeper{Button: btn, Poll: time.Millisecond}
	require.NoError(t, p.Arm(types.WakeSources{TimerAfterS: 3600, ButtonPin: 14, ButtonLow: true}))

	got := make(chan string, 1)
	go func() {
		cause, err := p.Wait(context.Background())
		assert.NoError(t, err)
		got <- cause
	}()

	// Still held from the press that started sleep.
	select {
	case <-got:
		t.Fatal("woke while the button was still held")
	case <-time.After(20 * time.Millisecond):
	}

	btn.low.Store(false)
	time.Sleep(10 * time.Millisecond)
	btn.low.Store(true)

	select {
	case cause := <-got:
		assert.Equal(t, WakeButton, cause)
	case <-time.After(2 * time.Second):
		t.Fatal("no wake after button press")
	}
}

func TestSleeperCancelled(t *testing.T) {
	p := &ProcessSleeper{Button: &levelButton{}, Poll: time.Millisecond}
	require.NoError(t, p.Arm(types.WakeSources{TimerAfterS: 3600, ButtonLow: true}))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := p.Sleep(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, strings.Contains(err.Error(), "exec"))
}
