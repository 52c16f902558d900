// Package w1therm reads DS18B20 probes through the Linux w1_therm sysfs
// interface. It exposes the same two-phase shape as the MCU drivers:
//
//	hint, err := d.Trigger()   // start a conversion on the bus master (fast)
//	mc, err := d.Collect()     // read the slave file; blocks if no conversion ran
//
// Values are milli-degrees Celsius, as the kernel reports them.
package w1therm

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

// FamilyDS18B20 is the one-wire family code prefix of DS18B20 slave directories.
const FamilyDS18B20 = "28-"

// Special readings.
const (
	// DisconnectedMilliC is what the bus reports for an absent probe.
	DisconnectedMilliC = -127000
	// ConversionTime is the worst case at 12-bit resolution.
	ConversionTime = 750 * time.Millisecond
)

var (
	ErrNoDevice = errors.New("w1therm: no device")
	ErrCRC      = errors.New("w1therm: crc mismatch")
	ErrFormat   = errors.New("w1therm: unexpected slave format")
)

// Device is one probe under root (normally /sys/bus/w1/devices).
type Device struct {
	root string
	id   string
}

// New returns a handle for slave id. It does not touch the bus.
func New(root, id string) Device {
	return Device{root: root, id: id}
}

// Discover lists DS18B20 slave ids under root, sorted.
func Discover(root string) ([]string, error) {
	m, err := filepath.Glob(filepath.Join(root, FamilyDS18B20+"*"))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(m))
	for _, p := range m {
		ids = append(ids, filepath.Base(p))
	}
	sort.Strings(ids)
	if len(ids) == 0 {
		return nil, ErrNoDevice
	}
	return ids, nil
}

func (d Device) ID() string { return d.id }

// Trigger asks the bus master for a bulk conversion when the kernel supports
// it. Without bulk read support it is a no-op and Collect performs the
// conversion itself.
func (d Device) Trigger() (time.Duration, error) {
	// The slave directory links into its bus master directory.
	slave := filepath.Join(d.root, d.id)
	if link, err := filepath.EvalSymlinks(slave); err == nil {
		slave = link
	}
	bulk := filepath.Join(filepath.Dir(slave), "therm_bulk_read")

	f, err := os.OpenFile(bulk, os.O_WRONLY, 0)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	defer f.Close()
	if _, err := f.WriteString("trigger\n"); err != nil {
		return 0, err
	}
	return ConversionTime, nil
}

// Collect reads and validates the slave file.
func (d Device) Collect() (int32, error) {
	b, err := os.ReadFile(filepath.Join(d.root, d.id, "w1_slave"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, ErrNoDevice
		}
		return 0, err
	}
	return Parse(b)
}

// Parse decodes w1_slave content:
//
//	72 01 4b 46 7f ff 0e 10 57 : crc=57 YES
//	72 01 4b 46 7f ff 0e 10 57 t=23125
func Parse(b []byte) (int32, error) {
	lines := bytes.Split(bytes.TrimSpace(b), []byte("\n"))
	if len(lines) < 2 {
		return 0, ErrFormat
	}
	if !bytes.HasSuffix(bytes.TrimSpace(lines[0]), []byte("YES")) {
		return 0, ErrCRC
	}
	i := bytes.LastIndex(lines[1], []byte("t="))
	if i < 0 {
		return 0, ErrFormat
	}
	v, err := strconv.ParseInt(string(bytes.TrimSpace(lines[1][i+2:])), 10, 32)
	if err != nil {
		return 0, ErrFormat
	}
	return int32(v), nil
}
