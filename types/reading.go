package types

import (
	"math"
	"strings"
	"time"

	"envlogger/errcode"
	"envlogger/x/strconvx"
)

// RecordHeader is written once when the Log Store is first created.
const RecordHeader = "Reading ID, Date, Hour, Temperature\r\n"

// Date and time-of-day layouts for a Stamp.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// Stamp is the date/time pair taken from a single clock query.
type Stamp struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// StampOf formats t with DateLayout and TimeLayout.
func StampOf(t time.Time) Stamp {
	return Stamp{Date: t.Format(DateLayout), Time: t.Format(TimeLayout)}
}

// Reading is one timestamped, validated temperature observation.
type Reading struct {
	SequenceID   uint32  `json:"sequence_id"`
	Date         string  `json:"date"`
	Time         string  `json:"time"`
	TemperatureC float64 `json:"temperature_c"`
}

// NewReading binds a sequence id, one Stamp and a temperature.
func NewReading(seq uint32, st Stamp, tempC float64) Reading {
	return Reading{SequenceID: seq, Date: st.Date, Time: st.Time, TemperatureC: tempC}
}

// Valid reports whether every field is populated and the temperature is finite.
func (r Reading) Valid() bool {
	if r.SequenceID == 0 || r.Date == "" || r.Time == "" {
		return false
	}
	return !math.IsNaN(r.TemperatureC) && !math.IsInf(r.TemperatureC, 0)
}

// FormatTemperature renders a Celsius value the way it is persisted and pushed.
func FormatTemperature(c float64) string {
	return strconvx.FormatFloat(c, 'f', -1, 64)
}

// FormatRecord serializes r as one CRLF-terminated row:
//
//	sequence_id,date,time,temperature
func FormatRecord(r Reading) string {
	var b strings.Builder
	b.Grow(40)
	b.WriteString(strconvx.FormatUint(uint64(r.SequenceID), 10))
	b.WriteByte(',')
	b.WriteString(r.Date)
	b.WriteByte(',')
	b.WriteString(r.Time)
	b.WriteByte(',')
	b.WriteString(FormatTemperature(r.TemperatureC))
	b.WriteString("\r\n")
	return b.String()
}

// ParseRecord is the inverse of FormatRecord. It accepts CRLF, LF or no
// terminator and rejects the header row.
func ParseRecord(line string) (Reading, error) {
	line = strings.TrimRight(line, "\r\n")
	f := strings.Split(line, ",")
	if len(f) != 4 {
		return Reading{}, &errcode.E{C: errcode.InvalidPayload, Op: "parse_record", Msg: "want 4 fields"}
	}
	seq, err := strconvx.ParseUint(strings.TrimSpace(f[0]), 10, 32)
	if err != nil {
		return Reading{}, errcode.Wrap(errcode.InvalidPayload, "parse_record", err)
	}
	t, err := strconvx.ParseFloat(strings.TrimSpace(f[3]), 64)
	if err != nil {
		return Reading{}, errcode.Wrap(errcode.InvalidPayload, "parse_record", err)
	}
	r := Reading{
		SequenceID:   uint32(seq),
		Date:         strings.TrimSpace(f[1]),
		Time:         strings.TrimSpace(f[2]),
		TemperatureC: t,
	}
	if !r.Valid() {
		return Reading{}, &errcode.E{C: errcode.InvalidPayload, Op: "parse_record", Msg: "incomplete record"}
	}
	return r, nil
}

// ParseRecords splits a Log Store dump into Readings. The header and blank
// lines are ignored; rows that do not parse are skipped and counted.
func ParseRecords(data string) (out []Reading, skipped int) {
	out = make([]Reading, 0, strings.Count(data, "\n"))
	for _, ln := range strings.Split(data, "\n") {
		ln = strings.TrimRight(ln, "\r")
		if ln == "" || ln+"\r\n" == RecordHeader {
			continue
		}
		r, err := ParseRecord(ln)
		if err != nil {
			skipped++
			continue
		}
		out = append(out, r)
	}
	return out, skipped
}
