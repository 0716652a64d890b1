// Package history records finished conversation turns: a bounded
// in-memory window for quick inspection plus an optional sqlite sink for
// persistence across restarts.
package history

import (
	"sync"
	"time"
)

// DefaultMaxTurns bounds the in-memory window.
const DefaultMaxTurns = 10

// Record is one finalized conversation turn, flattened for storage.
type Record struct {
	ID         string    `json:"id"`
	Mode       string    `json:"mode"`
	StartedAt  time.Time `json:"started_at"`
	Utterance  string    `json:"utterance,omitempty"`
	Tag        string    `json:"tag,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	Response   string    `json:"response,omitempty"`
	Delegated  bool      `json:"delegated,omitempty"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`

	CaptureMs  int64 `json:"capture_ms"`
	ClassifyMs int64 `json:"classify_ms"`
	HandleMs   int64 `json:"handle_ms"`
	SpeakMs    int64 `json:"speak_ms"`
	TotalMs    int64 `json:"total_ms"`
}

// Sink receives every appended record. The sqlite store implements it.
type Sink interface {
	Store(rec Record) error
	Close() error
}

// Log keeps the most recent turns in memory, oldest first, and forwards
// each append to an optional sink.
type Log struct {
	mu       sync.Mutex
	records  []Record
	maxTurns int
	sink     Sink
}

// NewLog creates a log holding at most maxTurns records.
func NewLog(maxTurns int) *Log {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Log{maxTurns: maxTurns}
}

// WithSink attaches a persistence sink and returns the log.
func (l *Log) WithSink(sink Sink) *Log {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sink = sink
	return l
}

// Append records a finished turn, evicting the oldest entry when the
// window is full. Sink failures are reported but do not evict the
// in-memory record.
func (l *Log) Append(rec Record) error {
	l.mu.Lock()
	l.records = append(l.records, rec)
	if len(l.records) > l.maxTurns {
		l.records = l.records[len(l.records)-l.maxTurns:]
	}
	sink := l.sink
	l.mu.Unlock()

	if sink != nil {
		return sink.Store(rec)
	}
	return nil
}

// Recent returns up to n most recent records, oldest first.
func (l *Log) Recent(n int) []Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n <= 0 || n > len(l.records) {
		n = len(l.records)
	}
	out := make([]Record, n)
	copy(out, l.records[len(l.records)-n:])
	return out
}

// Len returns the number of records currently held.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Stats summarizes pipeline performance over the in-memory window.
type Stats struct {
	Turns       int     `json:"turns"`
	Succeeded   int     `json:"succeeded"`
	SuccessRate float64 `json:"success_rate"`

	AvgCaptureMs  float64 `json:"avg_capture_ms"`
	AvgClassifyMs float64 `json:"avg_classify_ms"`
	AvgHandleMs   float64 `json:"avg_handle_ms"`
	AvgSpeakMs    float64 `json:"avg_speak_ms"`
	AvgTotalMs    float64 `json:"avg_total_ms"`

	FastestMs int64 `json:"fastest_ms"`
	SlowestMs int64 `json:"slowest_ms"`
}

// Stats computes aggregates over the held records.
func (l *Log) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Stats{Turns: len(l.records)}
	if s.Turns == 0 {
		return s
	}

	var capture, classify, handle, speak, total int64
	s.FastestMs = l.records[0].TotalMs
	for _, rec := range l.records {
		if rec.Success {
			s.Succeeded++
		}
		capture += rec.CaptureMs
		classify += rec.ClassifyMs
		handle += rec.HandleMs
		speak += rec.SpeakMs
		total += rec.TotalMs
		if rec.TotalMs < s.FastestMs {
			s.FastestMs = rec.TotalMs
		}
		if rec.TotalMs > s.SlowestMs {
			s.SlowestMs = rec.TotalMs
		}
	}

	n := float64(s.Turns)
	s.SuccessRate = float64(s.Succeeded) / n
	s.AvgCaptureMs = float64(capture) / n
	s.AvgClassifyMs = float64(classify) / n
	s.AvgHandleMs = float64(handle) / n
	s.AvgSpeakMs = float64(speak) / n
	s.AvgTotalMs = float64(total) / n
	return s
}
