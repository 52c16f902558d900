package errcode

// Code is a stable, bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK             Code = "ok"
	Busy           Code = "busy"
	InvalidParams  Code = "invalid_params"
	InvalidPayload Code = "invalid_payload"
	Timeout        Code = "timeout"

	// Logger taxonomy.
	SensorFailure    Code = "sensor_failure"
	ClockUnavailable Code = "clock_unavailable"
	StoreUnavailable Code = "store_unavailable"
	IOFailure        Code = "io_failure"
	NotFound         Code = "not_found"

	Error Code = "error" // generic fallback
)

// E keeps context and a cause alongside a Code.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

// Wrap builds an *E for op with cause err.
func Wrap(c Code, op string, err error) *E {
	return &E{C: c, Op: op, Err: err}
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Is lets errors.Is(err, errcode.NotFound) match through the wrapper.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	if u, ok := err.(interface{ Unwrap() error }); ok {
		return Of(u.Unwrap())
	}
	return Error
}
