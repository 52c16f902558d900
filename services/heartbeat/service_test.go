package heartbeat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"envlogger/bus"
	"envlogger/types"
)

func TestSnapshot(t *testing.T) {
	var s Service
	s.apply(&bus.Message{Payload: types.LoggerState{State: types.PowerActive, ActiveSince: 1_000, SleepAfter: 100_000}})
	s.apply(&bus.Message{Payload: types.Reading{SequenceID: 12}})
	s.apply(&bus.Message{Payload: types.TemperatureValue{Celsius: 20.5}})

	st := s.Snapshot(time.UnixMilli(41_000))
	assert.Equal(t, types.PowerActive, st.State)
	assert.Equal(t, int64(60), st.SleepInS)
	assert.Equal(t, uint32(12), st.SequenceID)
	assert.True(t, st.HasTemp)

	assert.Equal(t, int64(0), s.Snapshot(time.UnixMilli(500_000)).SleepInS)

	s.apply(&bus.Message{Payload: types.LoggerState{State: types.PowerSleeping}})
	assert.Equal(t, int64(0), s.Snapshot(time.UnixMilli(41_000)).SleepInS)
}

func TestRetainedIntervalAppliedAtStart(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	b := bus.NewBus(8)
	PublishInterval(b.NewConnection("main"), 30*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := &Service{Interval: time.Hour, Log: zap.New(core)}
	require.NoError(t, s.Start(ctx, b.NewConnection("heartbeat")))

	require.Eventually(t, func() bool {
		return logs.FilterMessage("heartbeat interval changed").
			FilterField(zap.Float64("seconds", 30)).Len() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestServiceLogsBeats(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	b := bus.NewBus(8)
	pub := b.NewConnection("power")
	pub.Publish(pub.NewMessage(types.TopicState, types.LoggerState{State: types.PowerActive}, true))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := &Service{Interval: 5 * time.Millisecond, Log: zap.New(core)}
	require.NoError(t, s.Start(ctx, b.NewConnection("heartbeat")))

	require.Eventually(t, func() bool {
		return logs.FilterMessage("heartbeat").FilterField(zap.String("state", "active")).Len() > 0
	}, time.Second, 5*time.Millisecond)

	// Interval is reconfigurable over the bus.
	PublishInterval(pub, time.Millisecond)
	require.Eventually(t, func() bool {
		return logs.FilterMessage("heartbeat interval changed").Len() == 1
	}, time.Second, 5*time.Millisecond)
}
