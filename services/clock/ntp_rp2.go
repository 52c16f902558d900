//go:build rp2040 || rp2350

package clock

import (
	"context"
	"errors"
	"time"
)

var errNoNetwork = errors.New("ntp: no network interface")

// defaultQuery fails: rp2 boards pass their own QueryFunc, usually FromRTC.
func defaultQuery(time.Duration) QueryFunc {
	return func(context.Context, string) (time.Time, error) {
		return time.Time{}, errNoNetwork
	}
}
