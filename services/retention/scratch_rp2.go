//go:build rp2040 || rp2350

package retention

import "device/rp"

// Scratch keeps the counter in the watchdog scratch registers, which survive
// a watchdog reboot and reset to zero on power-up. SCRATCH1 holds the
// complement of SCRATCH0; a mismatch reads as a cold start.
// SCRATCH4..7 belong to the bootrom and are left alone.
type Scratch struct{}

func (Scratch) Load() (uint32, error) {
	v := rp.WATCHDOG.SCRATCH0.Get()
	if rp.WATCHDOG.SCRATCH1.Get() != ^v {
		return 0, nil
	}
	return v, nil
}

func (Scratch) Save(v uint32) error {
	rp.WATCHDOG.SCRATCH0.Set(v)
	rp.WATCHDOG.SCRATCH1.Set(^v)
	return nil
}
