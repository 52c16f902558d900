//go:build !(rp2040 || rp2350)

package clock

import (
	"context"
	"time"

	"github.com/beevik/ntp"
)

func defaultQuery(timeout time.Duration) QueryFunc {
	return func(_ context.Context, host string) (time.Time, error) {
		resp, err := ntp.QueryWithOptions(host, ntp.QueryOptions{Timeout: timeout})
		if err != nil {
			return time.Time{}, err
		}
		if err := resp.Validate(); err != nil {
			return time.Time{}, err
		}
		return resp.Time, nil
	}
}
