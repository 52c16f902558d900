// Package clock stamps Readings with network time.
package clock

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"envlogger/errcode"
	"envlogger/types"
)

// QueryFunc returns the current UTC time from host.
type QueryFunc func(ctx context.Context, host string) (time.Time, error)

type Config struct {
	Server   string
	Offset   time.Duration
	Attempts int
	Backoff  time.Duration
	Timeout  time.Duration
}

// Source queries an NTP server with a bounded retry.
type Source struct {
	cfg   Config
	query QueryFunc
	log   *zap.Logger
}

// New returns a Source using query, or a real NTP client when query is nil.
func New(cfg Config, query QueryFunc, log *zap.Logger) *Source {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	if query == nil {
		query = defaultQuery(cfg.Timeout)
	}
	return &Source{cfg: cfg, query: query, log: log}
}

// Now returns network time shifted by the configured offset.
func (s *Source) Now(ctx context.Context) (time.Time, error) {
	attempt := 0
	t, err := backoff.Retry(ctx, func() (time.Time, error) {
		attempt++
		t, err := s.query(ctx, s.cfg.Server)
		if err != nil {
			s.log.Debug("ntp query failed", zap.Int("attempt", attempt), zap.Error(err))
		}
		return t, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(s.cfg.Backoff)),
		backoff.WithMaxTries(uint(s.cfg.Attempts)),
	)
	if err != nil {
		return time.Time{}, errcode.Wrap(errcode.ClockUnavailable, "ntp", err)
	}
	return t.UTC().Add(s.cfg.Offset), nil
}

// Stamp takes date and time from a single query.
func (s *Source) Stamp(ctx context.Context) (types.Stamp, error) {
	t, err := s.Now(ctx)
	if err != nil {
		return types.Stamp{}, err
	}
	return types.StampOf(t), nil
}
