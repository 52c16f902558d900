//go:build linux

package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"envlogger/types"
)

func TestClassify(t *testing.T) {
	execErr := errors.New("exec format error")
	cases := []struct {
		name   string
		ctxErr error
		state  types.PowerState
		runErr error
		want   outcome
	}{
		{"signal while active", context.Canceled, types.PowerActive, context.Canceled, cleanExit},
		{"signal while sleeping", context.Canceled, types.PowerSleeping, context.Canceled, cleanExit},
		{"exec failed", nil, types.PowerSleeping, execErr, wakeFailed},
		{"sleep returned nil", nil, types.PowerSleeping, nil, wakeFailed},
		{"loop error while active", nil, types.PowerActive, execErr, stopped},
		{"loop returned nil", nil, types.PowerActive, nil, cleanExit},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, classify(tc.ctxErr, tc.state, tc.runErr))
		})
	}
}
