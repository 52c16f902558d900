//go:build rp2040 || rp2350

package main

import (
	"context"
	"machine"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"tinygo.org/x/drivers/ds3231"

	"envlogger/bus"
	"envlogger/services/board"
	"envlogger/services/clock"
	"envlogger/services/heartbeat"
	"envlogger/services/logstore"
	"envlogger/services/power"
	"envlogger/services/retention"
	"envlogger/services/sampler"
	"envlogger/services/sensor"
)

// Board wiring and duty cycle for a Pico with a DS18B20 on GP15, the wake
// button on GP14 and a DS3231 RTC on I2C0 (GP4 SDA, GP5 SCL).
const (
	probePin  = machine.GP15
	buttonPin = 14
	rtcSDA    = machine.GP4
	rtcSCL    = machine.GP5

	sampleInterval = 10 * time.Second
	activeFor      = 100 * time.Second
	sleepFor       = 600 * time.Second
	tick           = 100 * time.Millisecond
	heartbeatEvery = 10 * time.Second

	storeDir = "/log"
)

func newLogger() *zap.Logger {
	enc := zap.NewDevelopmentEncoderConfig()
	enc.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(os.Stdout), zap.InfoLevel)
	return zap.New(core)
}

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	println("[main] boot")

	ctx := context.Background()
	log := newLogger()
	b := bus.NewBus(4)

	counter, err := retention.NewCounter(retention.Scratch{})
	if err != nil {
		println("[main] retention:", err.Error())
		return
	}
	log.Info("sequence id restored", zap.Uint32("sequence_id", counter.Current()), zap.Uint32("next_id", counter.Next()))

	var sampleStore sampler.Store
	flash, err := logstore.MountFlash(storeDir)
	if err != nil {
		log.Error("flash volume unavailable, readings will not be persisted", zap.Error(err))
	} else {
		store := logstore.New(logstore.Config{
			Dir:          storeDir,
			File:         "data.txt",
			ReseedHeader: true,
			FS:           flash,
		}, log.Named("logstore"))
		if err := store.EnsureInitialized(); err != nil {
			log.Error("log store unavailable, readings will not be persisted", zap.Error(err))
		} else {
			sampleStore = store
			dumpIfHeld(store)
		}
	}

	var probe sensor.Probe
	ds, err := sensor.NewDS18B20Probe(probePin)
	if err != nil {
		log.Error("temperature probe unavailable", zap.Error(err))
		probe = sensor.Unavailable{Err: err}
	} else {
		probe = ds
	}

	btn, err := board.NewPinButton(buttonPin)
	if err != nil {
		println("[main] button:", err.Error())
		return
	}

	// No network stack on this board; the RTC is set to UTC when fitted.
	if err := machine.I2C0.Configure(machine.I2CConfig{SDA: rtcSDA, SCL: rtcSCL, Frequency: 400 * machine.KHz}); err != nil {
		log.Error("i2c unavailable", zap.Error(err))
	}
	rtc := ds3231.New(machine.I2C0)
	rtc.Configure()
	clk := clock.New(clock.Config{Server: "ds3231", Attempts: 2, Backoff: 50 * time.Millisecond}, clock.FromRTC(&rtc), log.Named("clock"))

	smp := sampler.New(sampler.Options{
		Interval: sampleInterval,
		Sensor:   sensor.NewReader(probe, log.Named("sensor")),
		Clock:    clk,
		Store:    sampleStore,
		Counter:  counter,
		Conn:     b.NewConnection("sampler"),
		Logger:   log.Named("sampler"),
	})

	heartbeat.PublishInterval(b.NewConnection("config"), heartbeatEvery)
	hb := &heartbeat.Service{Log: log.Named("heartbeat")}
	_ = hb.Start(ctx, b.NewConnection("heartbeat"))

	ctl := power.New(power.Options{
		ActiveFor: activeFor,
		SleepFor:  sleepFor,
		ButtonPin: buttonPin,
		Tick:      tick,
		Sampler:   smp,
		Button:    btn,
		Sleeper:   &board.WatchdogSleeper{Button: btn},
		Counter:   counter,
		Conn:      b.NewConnection("power"),
		Logger:    log.Named("power"),
	})
	if err := ctl.Boot(time.Now()); err != nil {
		println("[main] arm:", err.Error())
		return
	}
	_ = ctl.Run(ctx)
	println("[main] sleep entry failed")
	for {
		time.Sleep(time.Second)
	}
}

// dumpIfHeld prints the record file on the USB console when the wake button
// is held at power-on. The held button then also sends the device to sleep.
func dumpIfHeld(store *logstore.Store) {
	p := machine.Pin(buttonPin)
	p.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	if p.Get() {
		return
	}
	println("[main] dumping log")
	if _, err := store.Export(os.Stdout); err != nil {
		println("[main] dump:", err.Error())
	}
	println("[main] dump done")
}
