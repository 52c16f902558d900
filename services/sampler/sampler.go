// Package sampler decides when to sample and turns one sensor read plus one
// clock query into a persisted, published Reading.
package sampler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"envlogger/bus"
	"envlogger/errcode"
	"envlogger/services/retention"
	"envlogger/types"
)

type Thermometer interface {
	ReadCelsius(ctx context.Context) (float64, error)
}

type Clock interface {
	Stamp(ctx context.Context) (types.Stamp, error)
}

type Store interface {
	AppendReading(r types.Reading) error
}

// Recorder receives sampling outcomes, typically for metrics.
type Recorder interface {
	Reading(seq uint32)
	Temperature(c float64)
	Failure(code errcode.Code)
}

// DutyCycle is the state of one Active period. It lives for one boot only;
// the sequence id is kept in retention memory instead.
type DutyCycle struct {
	ActiveSince  time.Time
	LastSampleAt time.Time
	Sampled      bool

	// Last-known-good temperature.
	Temperature    float64
	HasTemperature bool
}

// Due reports whether interval has elapsed since the last attempt.
func (d *DutyCycle) Due(now time.Time, interval time.Duration) bool {
	return !d.Sampled || now.Sub(d.LastSampleAt) >= interval
}

type Options struct {
	Interval time.Duration
	Sensor   Thermometer
	Clock    Clock
	// Store is nil in degraded mode: Readings are published but not persisted.
	Store    Store
	Counter  *retention.Counter
	Conn     *bus.Connection
	Recorder Recorder
	Logger   *zap.Logger
}

type Scheduler struct {
	interval time.Duration
	sensor   Thermometer
	clock    Clock
	store    Store
	counter  *retention.Counter
	conn     *bus.Connection
	rec      Recorder
	log      *zap.Logger
}

func New(o Options) *Scheduler {
	log := o.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		interval: o.Interval,
		sensor:   o.Sensor,
		clock:    o.Clock,
		store:    o.Store,
		counter:  o.Counter,
		conn:     o.Conn,
		rec:      o.Recorder,
		log:      log,
	}
}

// Degraded reports whether Readings are kept off the Log Store.
func (s *Scheduler) Degraded() bool { return s.store == nil }

// MaybeSample produces a Reading if the sampling interval has elapsed since
// the last attempt. Every attempt consumes the interval, successful or not.
func (s *Scheduler) MaybeSample(ctx context.Context, dc *DutyCycle, now time.Time) (types.Reading, bool) {
	if !dc.Due(now, s.interval) {
		return types.Reading{}, false
	}
	dc.LastSampleAt = now
	dc.Sampled = true

	c, err := s.sensor.ReadCelsius(ctx)
	if err != nil {
		s.fail(errcode.SensorFailure, err, now)
		return types.Reading{}, false
	}
	dc.Temperature = c
	dc.HasTemperature = true
	s.publish(types.TopicTemperature, types.TemperatureValue{Celsius: c, TS: now.UnixMilli()}, true)
	if s.rec != nil {
		s.rec.Temperature(c)
	}

	st, err := s.clock.Stamp(ctx)
	if err != nil {
		s.fail(errcode.ClockUnavailable, err, now)
		return types.Reading{}, false
	}

	if st.Date == "" || st.Time == "" {
		s.fail(errcode.InvalidPayload, &errcode.E{C: errcode.InvalidPayload, Op: "reading", Msg: "incomplete stamp"}, now)
		return types.Reading{}, false
	}

	// The id is reserved before the append so a failed write leaves a gap,
	// never a reused id.
	seq, err := s.counter.Reserve()
	if err != nil {
		s.fail(errcode.IOFailure, err, now)
		return types.Reading{}, false
	}
	r := types.NewReading(seq, st, c)

	if s.store != nil {
		if err := s.store.AppendReading(r); err != nil {
			s.fail(errcode.IOFailure, err, now)
			return types.Reading{}, false
		}
	}

	s.log.Info("reading",
		zap.Uint32("sequence_id", r.SequenceID),
		zap.String("date", r.Date),
		zap.String("time", r.Time),
		zap.Float64("celsius", r.TemperatureC),
		zap.Bool("persisted", s.store != nil),
	)
	if s.rec != nil {
		s.rec.Reading(r.SequenceID)
	}
	s.publish(types.TopicReading, r, true)
	return r, true
}

func (s *Scheduler) fail(code errcode.Code, err error, now time.Time) {
	s.log.Warn("sample skipped", zap.String("code", string(code)), zap.Error(err))
	if s.rec != nil {
		s.rec.Failure(code)
	}
	s.publish(types.TopicEvent(string(code)), types.SampleEvent{
		Code:  string(code),
		Error: err.Error(),
		TS:    now.UnixMilli(),
	}, false)
}

func (s *Scheduler) publish(t bus.Topic, payload any, retained bool) {
	if s.conn == nil {
		return
	}
	s.conn.Publish(s.conn.NewMessage(t, payload, retained))
}
