package sampler

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"envlogger/bus"
	"envlogger/errcode"
	"envlogger/services/logstore"
	"envlogger/services/retention"
	"envlogger/types"
)

const interval = 10 * time.Second

type fakeSensor struct {
	values []float64
	calls  int
}

func (f *fakeSensor) ReadCelsius(context.Context) (float64, error) {
	v := f.values[f.calls%len(f.values)]
	f.calls++
	if math.IsNaN(v) {
		return v, &errcode.E{C: errcode.SensorFailure, Op: "collect", Msg: "not a number"}
	}
	return v, nil
}

type fakeClock struct {
	at    time.Time
	err   error
	calls int
}

func (f *fakeClock) Stamp(context.Context) (types.Stamp, error) {
	f.calls++
	if f.err != nil {
		return types.Stamp{}, errcode.Wrap(errcode.ClockUnavailable, "ntp", f.err)
	}
	st := types.StampOf(f.at)
	f.at = f.at.Add(interval)
	return st, nil
}

type failingStore struct{ calls int }

func (f *failingStore) AppendReading(types.Reading) error {
	f.calls++
	return errcode.Wrap(errcode.IOFailure, "append", errors.New("disk full"))
}

type countingRecorder struct {
	readings int
	failures map[errcode.Code]int
}

func (c *countingRecorder) Reading(uint32)      { c.readings++ }
func (c *countingRecorder) Temperature(float64) {}
func (c *countingRecorder) Failure(code errcode.Code) {
	if c.failures == nil {
		c.failures = map[errcode.Code]int{}
	}
	c.failures[code]++
}

type rig struct {
	sched   *Scheduler
	store   *logstore.Store
	counter *retention.Counter
	sensor  *fakeSensor
	clock   *fakeClock
	rec     *countingRecorder
	b       *bus.Bus
	dc      DutyCycle
	t0      time.Time
}

func newRig(t *testing.T, temps ...float64) *rig {
	t.Helper()
	if len(temps) == 0 {
		temps = []float64{21.5}
	}
	store := logstore.New(logstore.Config{Dir: t.TempDir(), File: "data.txt", ReseedHeader: true}, nil)
	require.NoError(t, store.EnsureInitialized())
	counter, err := retention.NewCounter(&retention.Memory{})
	require.NoError(t, err)

	r := &rig{
		store:   store,
		counter: counter,
		sensor:  &fakeSensor{values: temps},
		clock:   &fakeClock{at: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)},
		rec:     &countingRecorder{},
		b:       bus.NewBus(16),
		t0:      time.Unix(1000, 0),
	}
	r.dc.ActiveSince = r.t0
	r.sched = New(Options{
		Interval: interval,
		Sensor:   r.sensor,
		Clock:    r.clock,
		Store:    store,
		Counter:  counter,
		Conn:     r.b.NewConnection("sampler"),
		Recorder: r.rec,
	})
	return r
}

func (r *rig) at(d time.Duration) time.Time { return r.t0.Add(d) }

func (r *rig) records(t *testing.T) []types.Reading {
	t.Helper()
	data, err := r.store.ReadAll()
	require.NoError(t, err)
	rs, skipped := types.ParseRecords(string(data))
	require.Zero(t, skipped)
	return rs
}

func TestColdBootScenario(t *testing.T) {
	r := newRig(t, 21.5)

	got, ok := r.sched.MaybeSample(context.Background(), &r.dc, r.at(0))
	require.True(t, ok)
	assert.Equal(t, types.Reading{SequenceID: 1, Date: "2024-01-01", Time: "12:00:00", TemperatureC: 21.5}, got)

	data, err := r.store.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, types.RecordHeader+"1,2024-01-01,12:00:00,21.5\r\n", string(data))
	assert.Equal(t, uint32(1), r.counter.Current())
}

func TestSequenceIncreasesByOnePerInterval(t *testing.T) {
	r := newRig(t, 20, 20.25, 19.5)

	for i := 0; i < 6; i++ {
		got, ok := r.sched.MaybeSample(context.Background(), &r.dc, r.at(time.Duration(i)*interval))
		require.True(t, ok, "call %d", i)
		assert.Equal(t, uint32(i+1), got.SequenceID)
	}

	rs := r.records(t)
	require.Len(t, rs, 6)
	for i, rd := range rs {
		assert.Equal(t, uint32(i+1), rd.SequenceID)
	}
	assert.Equal(t, 6, r.rec.readings)
}

func TestSecondCallWithinIntervalIsNoop(t *testing.T) {
	r := newRig(t)

	_, ok := r.sched.MaybeSample(context.Background(), &r.dc, r.at(0))
	require.True(t, ok)
	_, ok = r.sched.MaybeSample(context.Background(), &r.dc, r.at(interval-time.Millisecond))
	assert.False(t, ok)

	assert.Len(t, r.records(t), 1)
	assert.Equal(t, uint32(1), r.counter.Current())
	assert.Equal(t, 1, r.sensor.calls)
	assert.Equal(t, 1, r.clock.calls)

	_, ok = r.sched.MaybeSample(context.Background(), &r.dc, r.at(interval))
	assert.True(t, ok)
}

func TestSensorNaNSkipsCycle(t *testing.T) {
	r := newRig(t, 21.5, math.NaN())
	conn := r.b.NewConnection("test")
	events := conn.Subscribe(types.TopicEventAll)

	_, ok := r.sched.MaybeSample(context.Background(), &r.dc, r.at(0))
	require.True(t, ok)

	_, ok = r.sched.MaybeSample(context.Background(), &r.dc, r.at(interval))
	assert.False(t, ok)
	assert.Len(t, r.records(t), 1)
	assert.Equal(t, uint32(1), r.counter.Current())
	assert.Equal(t, 1, r.clock.calls, "clock is not queried after a sensor failure")

	// Last-known-good temperature is kept.
	assert.True(t, r.dc.HasTemperature)
	assert.Equal(t, 21.5, r.dc.Temperature)

	// The failed attempt still consumed the interval.
	assert.Equal(t, r.at(interval), r.dc.LastSampleAt)
	_, ok = r.sched.MaybeSample(context.Background(), &r.dc, r.at(interval+time.Second))
	assert.False(t, ok)

	select {
	case msg := <-events.Channel():
		assert.Equal(t, "logger/event/sensor_failure", msg.Topic.String())
		ev := msg.Payload.(types.SampleEvent)
		assert.Equal(t, "sensor_failure", ev.Code)
	default:
		t.Fatal("expected a sensor_failure event")
	}
	assert.Equal(t, 1, r.rec.failures[errcode.SensorFailure])
}

func TestClockUnavailableSkipsCycle(t *testing.T) {
	r := newRig(t)
	r.clock.err = errors.New("no route to host")

	_, ok := r.sched.MaybeSample(context.Background(), &r.dc, r.at(0))
	assert.False(t, ok)
	assert.Empty(t, r.records(t))
	assert.Equal(t, uint32(0), r.counter.Current())
	assert.Equal(t, 1, r.rec.failures[errcode.ClockUnavailable])

	// Next cycle retries.
	r.clock.err = nil
	got, ok := r.sched.MaybeSample(context.Background(), &r.dc, r.at(interval))
	require.True(t, ok)
	assert.Equal(t, uint32(1), got.SequenceID)
}

func TestAppendFailureLeavesGapNotReuse(t *testing.T) {
	counter, err := retention.NewCounter(&retention.Memory{})
	require.NoError(t, err)
	fs := &failingStore{}
	b := bus.NewBus(8)
	readings := b.NewConnection("feed").Subscribe(types.TopicReading)
	rec := &countingRecorder{}
	s := New(Options{
		Interval: interval,
		Sensor:   &fakeSensor{values: []float64{20}},
		Clock:    &fakeClock{at: time.Unix(0, 0)},
		Store:    fs,
		Counter:  counter,
		Conn:     b.NewConnection("sampler"),
		Recorder: rec,
	})
	var dc DutyCycle

	_, ok := s.MaybeSample(context.Background(), &dc, time.Unix(100, 0))
	assert.False(t, ok)
	assert.Equal(t, 1, fs.calls)
	assert.Equal(t, 1, rec.failures[errcode.IOFailure])
	assert.Equal(t, uint32(1), counter.Current())
	assert.Equal(t, uint32(2), counter.Next())

	select {
	case <-readings.Channel():
		t.Fatal("no live feed notification for an unpersisted reading")
	default:
	}
}

func TestDegradedModePublishesWithoutStore(t *testing.T) {
	counter, err := retention.NewCounter(&retention.Memory{})
	require.NoError(t, err)
	b := bus.NewBus(8)
	readings := b.NewConnection("feed").Subscribe(types.TopicReading)
	s := New(Options{
		Interval: interval,
		Sensor:   &fakeSensor{values: []float64{18.75}},
		Clock:    &fakeClock{at: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)},
		Counter:  counter,
		Conn:     b.NewConnection("sampler"),
	})
	require.True(t, s.Degraded())
	var dc DutyCycle

	got, ok := s.MaybeSample(context.Background(), &dc, time.Unix(0, 0))
	require.True(t, ok)
	assert.Equal(t, uint32(1), got.SequenceID)

	select {
	case msg := <-readings.Channel():
		assert.Equal(t, got, msg.Payload.(types.Reading))
		assert.True(t, msg.Retained)
	default:
		t.Fatal("expected a reading on the live feed")
	}
}

func TestRetainedTemperatureAndReading(t *testing.T) {
	r := newRig(t, 22.125)
	_, ok := r.sched.MaybeSample(context.Background(), &r.dc, r.at(0))
	require.True(t, ok)

	// A late subscriber sees the retained values.
	conn := r.b.NewConnection("late")
	temp := conn.Subscribe(types.TopicTemperature)
	reading := conn.Subscribe(types.TopicReading)

	msg := <-temp.Channel()
	assert.Equal(t, 22.125, msg.Payload.(types.TemperatureValue).Celsius)
	msg = <-reading.Channel()
	assert.Equal(t, uint32(1), msg.Payload.(types.Reading).SequenceID)
}

func TestSequenceSurvivesReboot(t *testing.T) {
	mem := &retention.Memory{}
	require.NoError(t, mem.Save(41))
	counter, err := retention.NewCounter(mem)
	require.NoError(t, err)
	s := New(Options{
		Interval: interval,
		Sensor:   &fakeSensor{values: []float64{20}},
		Clock:    &fakeClock{at: time.Unix(0, 0)},
		Counter:  counter,
	})
	var dc DutyCycle
	got, ok := s.MaybeSample(context.Background(), &dc, time.Unix(0, 0))
	require.True(t, ok)
	assert.Equal(t, uint32(42), got.SequenceID)

	v, err := mem.Load()
	require.NoError(t, err)
	assert.Equal(t, uint32(42), v)
}

func TestRecordsAreWellFormed(t *testing.T) {
	r := newRig(t, -3.5, 0, 100.0625)
	for i := 0; i < 3; i++ {
		_, ok := r.sched.MaybeSample(context.Background(), &r.dc, r.at(time.Duration(i)*interval))
		require.True(t, ok)
	}
	data, err := r.store.ReadAll()
	require.NoError(t, err)
	lines := strings.SplitAfter(strings.TrimPrefix(string(data), types.RecordHeader), "\r\n")
	assert.Equal(t, []string{
		"1,2024-01-01,12:00:00,-3.5\r\n",
		"2,2024-01-01,12:00:10,0\r\n",
		"3,2024-01-01,12:00:20,100.0625\r\n",
		"",
	}, lines)
}

func TestExhaustedSequenceSkipsWithoutWrapping(t *testing.T) {
	mem := &retention.Memory{}
	require.NoError(t, mem.Save(math.MaxUint32))
	counter, err := retention.NewCounter(mem)
	require.NoError(t, err)
	fs := &failingStore{}
	b := bus.NewBus(8)
	events := b.NewConnection("test").Subscribe(types.TopicEventAll)
	rec := &countingRecorder{}
	s := New(Options{
		Interval: interval,
		Sensor:   &fakeSensor{values: []float64{20}},
		Clock:    &fakeClock{at: time.Unix(0, 0)},
		Store:    fs,
		Counter:  counter,
		Conn:     b.NewConnection("sampler"),
		Recorder: rec,
	})
	var dc DutyCycle

	for i := 0; i < 2; i++ {
		_, ok := s.MaybeSample(context.Background(), &dc, time.Unix(int64(i)*100, 0))
		assert.False(t, ok)
	}
	assert.Zero(t, fs.calls)
	assert.Equal(t, 2, rec.failures[errcode.IOFailure])
	assert.Equal(t, uint32(math.MaxUint32), counter.Current())

	msg := <-events.Channel()
	assert.Equal(t, "logger/event/io_failure", msg.Topic.String())
}
