// Package sensor wraps the one-wire temperature probe: trigger a conversion,
// wait the hinted time, collect a Celsius value or fail.
package sensor

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"envlogger/errcode"
	"envlogger/x/mathx"
)

// Probe is the two-phase measurement shape shared by every backend.
// Collect reports an unusable conversion as NaN, not as an error.
type Probe interface {
	Trigger(ctx context.Context) (time.Duration, error)
	Collect(ctx context.Context) (float64, error)
}

// Plausible DS18B20 range.
const (
	MinCelsius = -55.0
	MaxCelsius = 125.0
)

// Reader turns a Probe into single validated reads.
type Reader struct {
	probe Probe
	log   *zap.Logger
}

func NewReader(p Probe, log *zap.Logger) *Reader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reader{probe: p, log: log}
}

// ReadCelsius returns a finite, in-range temperature or an
// errcode.SensorFailure error.
func (r *Reader) ReadCelsius(ctx context.Context) (float64, error) {
	after, err := r.probe.Trigger(ctx)
	if err != nil {
		return math.NaN(), errcode.Wrap(errcode.SensorFailure, "trigger", err)
	}
	if after > 0 {
		t := time.NewTimer(after)
		select {
		case <-ctx.Done():
			t.Stop()
			return math.NaN(), errcode.Wrap(errcode.SensorFailure, "trigger", ctx.Err())
		case <-t.C:
		}
	}

	c, err := r.probe.Collect(ctx)
	if err != nil {
		return math.NaN(), errcode.Wrap(errcode.SensorFailure, "collect", err)
	}
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return c, &errcode.E{C: errcode.SensorFailure, Op: "collect", Msg: "not a number"}
	}
	if !mathx.Between(c, MinCelsius, MaxCelsius) {
		r.log.Warn("temperature out of range", zap.Float64("celsius", c))
		return math.NaN(), &errcode.E{C: errcode.SensorFailure, Op: "collect", Msg: "out of range"}
	}
	return c, nil
}
