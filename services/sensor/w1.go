package sensor

import (
	"context"
	"math"
	"time"

	"envlogger/drivers/w1therm"
)

// W1Probe is a DS18B20 on the Linux w1 bus.
type W1Probe struct {
	dev w1therm.Device
}

// NewW1Probe binds to id, or to the first DS18B20 found when id is empty.
func NewW1Probe(root, id string) (*W1Probe, error) {
	if id == "" {
		ids, err := w1therm.Discover(root)
		if err != nil {
			return nil, err
		}
		id = ids[0]
	}
	return &W1Probe{dev: w1therm.New(root, id)}, nil
}

func (p *W1Probe) ID() string { return p.dev.ID() }

func (p *W1Probe) Trigger(context.Context) (time.Duration, error) {
	return p.dev.Trigger()
}

// Collect maps CRC failures and the disconnect marker to NaN.
func (p *W1Probe) Collect(context.Context) (float64, error) {
	mc, err := p.dev.Collect()
	switch {
	case err == w1therm.ErrCRC:
		return math.NaN(), nil
	case err != nil:
		return math.NaN(), err
	case mc == w1therm.DisconnectedMilliC:
		return math.NaN(), nil
	}
	return float64(mc) / 1000, nil
}
