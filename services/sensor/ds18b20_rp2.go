//go:build rp2040 || rp2350

package sensor

import (
	"context"
	"errors"
	"machine"
	"math"
	"time"

	"tinygo.org/x/drivers/ds18b20"
	"tinygo.org/x/drivers/onewire"
)

// disconnected is the DS18B20 bus-absent marker in milli-Celsius.
const disconnected = -127000

var errNoProbe = errors.New("ds18b20: no probe on bus")

// DS18B20Probe drives one probe on a one-wire pin.
type DS18B20Probe struct {
	ow    onewire.Device
	dev   ds18b20.Device
	romID []uint8
}

// NewDS18B20Probe configures the bus on pin and binds to the first probe found.
func NewDS18B20Probe(pin machine.Pin) (*DS18B20Probe, error) {
	ow := onewire.New(pin)
	ow.Configure(onewire.Config{})
	roms, err := ow.Search(onewire.ONEWIRE_SEARCH_ROM)
	if err != nil {
		return nil, err
	}
	if len(roms) == 0 {
		return nil, errNoProbe
	}
	return &DS18B20Probe{ow: ow, dev: ds18b20.New(ow), romID: roms[0]}, nil
}

func (p *DS18B20Probe) Trigger(context.Context) (time.Duration, error) {
	p.dev.RequestTemperature(p.romID)
	return 750 * time.Millisecond, nil
}

func (p *DS18B20Probe) Collect(context.Context) (float64, error) {
	mc, err := p.dev.ReadTemperature(p.romID)
	if err != nil {
		// Scratchpad CRC failures read as a failed conversion.
		return math.NaN(), nil
	}
	if mc == disconnected {
		return math.NaN(), nil
	}
	return float64(mc) / 1000, nil
}
