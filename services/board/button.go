//go:build !(rp2040 || rp2350)

// Package board binds the wake button and deep-sleep entry to the platform.
package board

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// GPIOButton reads an input line through the sysfs GPIO interface.
// The button pulls the line to ground, so "0" is LOW.
type GPIOButton struct {
	root string
	pin  int
}

// NewGPIOButton exports pin if needed and sets it as an input.
func NewGPIOButton(root string, pin int) (*GPIOButton, error) {
	b := &GPIOButton{root: root, pin: pin}
	dir := b.dir()
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		if err := os.WriteFile(filepath.Join(root, "export"), []byte(strconv.Itoa(pin)), 0o644); err != nil {
			return nil, err
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "direction"), []byte("in"), 0o644); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *GPIOButton) dir() string {
	return filepath.Join(b.root, "gpio"+strconv.Itoa(b.pin))
}

func (b *GPIOButton) Low() (bool, error) {
	v, err := os.ReadFile(filepath.Join(b.dir(), "value"))
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(v)) == "0", nil
}

// FileButton is the sim button: the flag file existing means LOW.
type FileButton struct {
	Path string
}

func (b FileButton) Low() (bool, error) {
	_, err := os.Stat(b.Path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
