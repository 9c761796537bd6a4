package telemetry

import (
	"sync/atomic"
	"time"
)

// Provider exposes the latest telemetry
type Provider interface {
	Get() *Telemetry
}

// Reporter consumes acquisition results and tick failures
type Reporter interface {
	Report(t *Telemetry)
	ReportError(sessionID string, msg string)
}

// Failure is the last error reported by the acquisition
type Failure struct {
	SessionID string    `json:"sessionId"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Recorder keeps the latest telemetry and the latest failure. It is safe
// for concurrent use.
type Recorder struct {
	last    atomic.Pointer[Telemetry]
	failure atomic.Pointer[Failure]
	reports atomic.Uint64
	errors  atomic.Uint64
	now     func() time.Time
}

// NewRecorder creates a new empty Recorder
func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

// Report stores t as the latest telemetry
func (r *Recorder) Report(t *Telemetry) {
	if t == nil {
		return
	}
	r.last.Store(t)
	r.reports.Add(1)
}

// ReportError stores msg as the latest failure
func (r *Recorder) ReportError(sessionID string, msg string) {
	r.failure.Store(&Failure{
		SessionID: sessionID,
		Message:   msg,
		Timestamp: r.now(),
	})
	r.errors.Add(1)
}

// Get returns the latest telemetry, nil before the first report
func (r *Recorder) Get() *Telemetry {
	return r.last.Load()
}

// LastFailure returns the latest failure, nil if none was reported
func (r *Recorder) LastFailure() *Failure {
	return r.failure.Load()
}

// Counts returns the number of reports and failures received
func (r *Recorder) Counts() (reports, failures uint64) {
	return r.reports.Load(), r.errors.Load()
}
