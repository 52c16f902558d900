package types

// ---- Power lifecycle (retained on logger/state) ----

type PowerState string

const (
	PowerActive   PowerState = "active"
	PowerSleeping PowerState = "sleeping"
)

// SleepCause says which boundary test ended the Active period.
type SleepCause string

const (
	CauseActiveElapsed SleepCause = "active_elapsed"
	CauseButton        SleepCause = "button"
)

type LoggerState struct {
	State       PowerState `json:"state"`
	ActiveSince int64      `json:"active_since_ms"`
	SleepAfter  int64      `json:"sleep_after_ms"`
	Cause       SleepCause `json:"cause,omitempty"`
	TS          int64      `json:"ts_ms"`
}

// ---- Sampling events (logger/event/<code>) ----

type SampleEvent struct {
	Code  string `json:"code"`
	Error string `json:"error,omitempty"`
	TS    int64  `json:"ts_ms"`
}

// TemperatureValue is the last-known-good sensor value (retained on logger/temperature).
type TemperatureValue struct {
	Celsius float64 `json:"celsius"`
	TS      int64   `json:"ts_ms"`
}

// WakeSources is configured once at boot before entering Active.
type WakeSources struct {
	TimerAfterS uint32 `json:"timer_after_s"`
	ButtonPin   int    `json:"button_pin"`
	// ButtonLow wakes on a LOW level when true.
	ButtonLow bool `json:"button_low"`
}
