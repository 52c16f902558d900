package clock

import (
	"context"
	"errors"
	"time"
)

// RTC is a battery-backed real-time clock set to UTC, such as a DS3231.
type RTC interface {
	ReadTime() (time.Time, error)
}

// Implemented by RTCs that know whether they lost power since being set.
type validator interface {
	IsTimeValid() bool
}

var errRTCInvalid = errors.New("rtc: time not valid, clock lost power since it was set")

// FromRTC turns an RTC into a QueryFunc. The host argument is ignored.
func FromRTC(r RTC) QueryFunc {
	return func(ctx context.Context, _ string) (time.Time, error) {
		if err := ctx.Err(); err != nil {
			return time.Time{}, err
		}
		if v, ok := r.(validator); ok && !v.IsTimeValid() {
			return time.Time{}, errRTCInvalid
		}
		return r.ReadTime()
	}
}
