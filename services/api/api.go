// Package api is the local HTTP surface: current temperature, log export
// and clear, the live feed socket, metrics and health.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"envlogger/bus"
	"envlogger/errcode"
	"envlogger/types"
)

// Fixed response bodies. Clients match on them.
const (
	msgNotFound     = "File not found"
	msgCleared      = "Data cleared successfully"
	msgClearFailed  = "Failed to clear data"
	msgNoReading    = "No reading yet"
	msgExportFailed = "Failed to read data"
)

// LogStore is the read/clear side of the Log Store.
type LogStore interface {
	Export(w io.Writer) (int64, error)
	ReadAll() ([]byte, error)
	Clear() error
}

type Metrics interface {
	WrapHandler(route string, next http.Handler) http.Handler
	Handler() http.Handler
}

type Options struct {
	// Store is nil when the Log Store could not be initialized at boot.
	Store     LogStore
	Feed      http.Handler
	Metrics   Metrics
	StaticDir string
	BootID    string
	Logger    *zap.Logger
}

type Server struct {
	opts Options
	log  *zap.Logger

	mu      sync.RWMutex
	temp    *types.TemperatureValue
	state   *types.LoggerState
	lastSeq uint32
}

func New(o Options) *Server {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return &Server{opts: o, log: o.Logger}
}

// Start tracks the retained logger topics until ctx is done.
func (s *Server) Start(ctx context.Context, conn *bus.Connection) {
	sub := conn.Subscribe(bus.T("logger", bus.SingleLevel))
replay:
	for {
		select {
		case msg := <-sub.Channel():
			s.apply(msg)
		default:
			break replay
		}
	}
	go func() {
		defer conn.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				s.apply(msg)
			}
		}
	}()
}

func (s *Server) apply(msg *bus.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch p := msg.Payload.(type) {
	case types.TemperatureValue:
		s.temp = &p
	case types.LoggerState:
		s.state = &p
	case types.Reading:
		s.lastSeq = p.SequenceID
	}
}

// Handler returns the routed, logged and panic-safe handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	s.route(r, "/temperature", http.HandlerFunc(s.getTemperature), http.MethodGet)
	s.route(r, "/downloaddata", handlers.CompressHandler(http.HandlerFunc(s.getDownload)), http.MethodGet)
	s.route(r, "/loaddata", http.HandlerFunc(s.getLoad), http.MethodGet)
	s.route(r, "/cleardata", http.HandlerFunc(s.postClear), http.MethodPost)
	s.route(r, "/health", http.HandlerFunc(s.getHealth), http.MethodGet)
	if s.opts.Feed != nil {
		// Not wrapped: the upgrade needs the raw ResponseWriter.
		r.Handle("/ws", s.opts.Feed).Methods(http.MethodGet)
	}
	if s.opts.Metrics != nil {
		r.Handle("/metrics", s.opts.Metrics.Handler()).Methods(http.MethodGet)
	}
	if s.opts.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.opts.StaticDir))).Methods(http.MethodGet)
	}

	logged := handlers.CustomLoggingHandler(io.Discard, r, s.logRequest)
	return handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{s.log}))(logged)
}

func (s *Server) route(r *mux.Router, path string, h http.Handler, method string) {
	if s.opts.Metrics != nil {
		h = s.opts.Metrics.WrapHandler(path, h)
	}
	r.Handle(path, h).Methods(method)
}

func (s *Server) logRequest(_ io.Writer, p handlers.LogFormatterParams) {
	s.log.Debug("http",
		zap.String("method", p.Request.Method),
		zap.String("path", p.URL.Path),
		zap.Int("status", p.StatusCode),
		zap.Int("bytes", p.Size),
		zap.Duration("took", time.Since(p.TimeStamp)),
	)
}

type recoveryLogger struct{ log *zap.Logger }

func (l recoveryLogger) Println(v ...interface{}) {
	l.log.Error("handler panic", zap.Any("panic", v))
}

func text(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (s *Server) getTemperature(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	t := s.temp
	s.mu.RUnlock()
	if t == nil {
		text(w, http.StatusNotFound, msgNoReading)
		return
	}
	text(w, http.StatusOK, types.FormatTemperature(t.Celsius))
}

// countingWriter records whether the body has started.
type countingWriter struct {
	http.ResponseWriter
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.ResponseWriter.Write(p)
	c.n += int64(n)
	return n, err
}

func (s *Server) getDownload(w http.ResponseWriter, _ *http.Request) {
	if s.opts.Store == nil {
		text(w, http.StatusNotFound, msgNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="data.txt"`)
	cw := &countingWriter{ResponseWriter: w}
	_, err := s.opts.Store.Export(cw)
	if err == nil {
		return
	}
	if cw.n > 0 {
		s.log.Warn("export interrupted", zap.Int64("sent", cw.n), zap.Error(err))
		return
	}
	w.Header().Del("Content-Disposition")
	if errcode.Of(err) == errcode.NotFound {
		text(w, http.StatusNotFound, msgNotFound)
		return
	}
	s.log.Error("export failed", zap.Error(err))
	text(w, http.StatusInternalServerError, msgExportFailed)
}

// getLoad returns the stored Readings as JSON. Rows that do not parse are
// skipped.
func (s *Server) getLoad(w http.ResponseWriter, _ *http.Request) {
	if s.opts.Store == nil {
		text(w, http.StatusNotFound, msgNotFound)
		return
	}
	data, err := s.opts.Store.ReadAll()
	if err != nil {
		if errcode.Of(err) == errcode.NotFound {
			text(w, http.StatusNotFound, msgNotFound)
			return
		}
		s.log.Error("read failed", zap.Error(err))
		text(w, http.StatusInternalServerError, msgExportFailed)
		return
	}

	out, skipped := types.ParseRecords(string(data))
	if skipped > 0 {
		s.log.Warn("skipped unparsable rows", zap.Int("rows", skipped))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (s *Server) postClear(w http.ResponseWriter, _ *http.Request) {
	if s.opts.Store == nil {
		text(w, http.StatusNotFound, msgNotFound)
		return
	}
	err := s.opts.Store.Clear()
	switch errcode.Of(err) {
	case errcode.OK:
		text(w, http.StatusOK, msgCleared)
	case errcode.NotFound:
		text(w, http.StatusNotFound, msgNotFound)
	default:
		s.log.Error("clear failed", zap.Error(err))
		text(w, http.StatusInternalServerError, msgClearFailed)
	}
}

type health struct {
	Status     string           `json:"status"`
	State      types.PowerState `json:"state,omitempty"`
	SequenceID uint32           `json:"sequence_id"`
	Persisting bool             `json:"persisting"`
	BootID     string           `json:"boot_id,omitempty"`
}

func (s *Server) getHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	h := health{
		Status:     "ok",
		SequenceID: s.lastSeq,
		Persisting: s.opts.Store != nil,
		BootID:     s.opts.BootID,
	}
	if s.state != nil {
		h.State = s.state.State
	}
	s.mu.RUnlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h)
}
