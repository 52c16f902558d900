package heartbeat

import (
	"context"
	"time"

	"go.uber.org/zap"

	"envlogger/bus"
	"envlogger/types"
	"envlogger/x/mathx"
)

var topicConfigHeartbeat = bus.T("config", "heartbeat")

// PublishInterval retains the beat interval on the config topic, where a
// running or later-started Service picks it up.
func PublishInterval(conn *bus.Connection, d time.Duration) {
	conn.Publish(conn.NewMessage(topicConfigHeartbeat, map[string]any{"interval": d.Seconds()}, true))
}

// Status is the summary logged on every beat.
type Status struct {
	State      types.PowerState
	SleepInS   int64
	SequenceID uint32
	Celsius    float64
	HasTemp    bool
}

type Service struct {
	Interval time.Duration
	Log      *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time

	status      Status
	activeSince int64
	sleepAfter  int64
}

func (s *Service) apply(msg *bus.Message) {
	switch p := msg.Payload.(type) {
	case types.LoggerState:
		s.status.State = p.State
		s.activeSince = p.ActiveSince
		s.sleepAfter = p.SleepAfter
	case types.Reading:
		s.status.SequenceID = p.SequenceID
	case types.TemperatureValue:
		s.status.Celsius = p.Celsius
		s.status.HasTemp = true
	}
}

// Snapshot computes the status at now.
func (s *Service) Snapshot(now time.Time) Status {
	st := s.status
	if st.State == types.PowerActive {
		left := s.activeSince + s.sleepAfter - now.UnixMilli()
		st.SleepInS = mathx.Max(left, 0) / 1000
	}
	return st
}

func (s *Service) beat(now time.Time) {
	st := s.Snapshot(now)
	fields := []zap.Field{
		zap.String("state", string(st.State)),
		zap.Int64("sleep_in_s", st.SleepInS),
		zap.Uint32("sequence_id", st.SequenceID),
	}
	if st.HasTemp {
		fields = append(fields, zap.Float64("celsius", st.Celsius))
	}
	s.Log.Info("heartbeat", fields...)
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection, loggerSub, cfgSub *bus.Subscription) {
	defer conn.Unsubscribe(cfgSub)
	defer conn.Unsubscribe(loggerSub)

	tick := time.NewTicker(s.Interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Log.Debug("heartbeat service stopping")
			return
		case <-tick.C:
			s.beat(s.Now())
		case msg := <-loggerSub.Channel():
			s.apply(msg)
		case msg := <-cfgSub.Channel():
			// Change tick interval if requested.
			if m, ok := msg.Payload.(map[string]any); ok {
				if iv, ok := m["interval"].(float64); ok && iv > 0 {
					tick.Reset(time.Duration(iv * float64(time.Second)))
					s.Log.Info("heartbeat interval changed", zap.Float64("seconds", iv))
				}
			}
		}
	}
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	if s.Interval <= 0 {
		s.Interval = 10 * time.Second
	}
	if s.Log == nil {
		s.Log = zap.NewNop()
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	loggerSub := conn.Subscribe(bus.T("logger", bus.SingleLevel))
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	go s.serviceLoop(ctx, conn, loggerSub, cfgSub)
	return nil
}
