package w1therm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goodSlave = "72 01 4b 46 7f ff 0e 10 57 : crc=57 YES\n72 01 4b 46 7f ff 0e 10 57 t=23125\n"

func TestParse(t *testing.T) {
	v, err := Parse([]byte(goodSlave))
	require.NoError(t, err)
	assert.Equal(t, int32(23125), v)

	v, err = Parse([]byte("90 fe 4b 46 7f ff 0c 10 1c : crc=1c YES\n90 fe 4b 46 7f ff 0c 10 1c t=-25875\n"))
	require.NoError(t, err)
	assert.Equal(t, int32(-25875), v)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte("72 01 4b 46 7f ff 0e 10 57 : crc=00 NO\n72 01 4b 46 7f ff 0e 10 57 t=23125\n"))
	assert.ErrorIs(t, err, ErrCRC)

	_, err = Parse([]byte("garbage"))
	assert.ErrorIs(t, err, ErrFormat)

	_, err = Parse([]byte("x : crc=57 YES\nx t=warm\n"))
	assert.ErrorIs(t, err, ErrFormat)

	_, err = Parse([]byte("x : crc=57 YES\nno temperature here\n"))
	assert.ErrorIs(t, err, ErrFormat)
}

func fakeBus(t *testing.T, ids ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, id := range ids {
		dir := filepath.Join(root, id)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "w1_slave"), []byte(goodSlave), 0o644))
	}
	return root
}

func TestDiscover(t *testing.T) {
	root := fakeBus(t, "28-0000000b", "28-0000000a", "10-00000001")
	ids, err := Discover(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"28-0000000a", "28-0000000b"}, ids)

	_, err = Discover(t.TempDir())
	assert.ErrorIs(t, err, ErrNoDevice)
}

func TestTriggerCollect(t *testing.T) {
	root := fakeBus(t, "28-0000000a")
	d := New(root, "28-0000000a")

	// No bulk read support: conversion happens on Collect.
	hint, err := d.Trigger()
	require.NoError(t, err)
	assert.Zero(t, hint)

	bulk := filepath.Join(root, "therm_bulk_read")
	require.NoError(t, os.WriteFile(bulk, nil, 0o644))
	hint, err = d.Trigger()
	require.NoError(t, err)
	assert.Equal(t, ConversionTime, hint)
	b, err := os.ReadFile(bulk)
	require.NoError(t, err)
	assert.Equal(t, "trigger\n", string(b))

	v, err := d.Collect()
	require.NoError(t, err)
	assert.Equal(t, int32(23125), v)

	_, err = New(root, "28-missing").Collect()
	assert.ErrorIs(t, err, ErrNoDevice)
}
