package types

import "envlogger/bus"

// Bus topics. Temperature, reading and state are retained.
var (
	TopicTemperature = bus.T("logger", "temperature")
	TopicReading     = bus.T("logger", "reading")
	TopicState       = bus.T("logger", "state")
	TopicEventAll    = bus.T("logger", "event", bus.MultiLevel)
)

// TopicEvent is logger/event/<code>.
func TopicEvent(code string) bus.Topic {
	return bus.T("logger", "event", code)
}
