// Package telemetry forwards session intervals and summaries to a
// time-series sink.
package telemetry

import (
	"github.com/nerrad567/surprise-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/surprise-core/internal/session"
)

// Sink accepts points. *influxdb.Client implements it; writes are queued
// by the client and never block.
type Sink interface {
	WriteInterval(p influxdb.IntervalPoint)
	WriteSummary(p influxdb.SummaryPoint)
}

// Recorder adapts session records to time-series points.
type Recorder struct {
	sink Sink
}

// NewRecorder creates a session.Recorder writing to sink.
func NewRecorder(sink Sink) *Recorder {
	return &Recorder{sink: sink}
}

// RecordInterval writes one session_interval point.
func (r *Recorder) RecordInterval(rec session.IntervalRecord) {
	r.sink.WriteInterval(influxdb.IntervalPoint{
		State:   string(rec.State),
		Seconds: rec.Seconds,
		Terms:   len(rec.Terms),
		Teased:  rec.Teased,
		At:      rec.At,
	})
}

// RecordSession writes one session_summary point.
func (r *Recorder) RecordSession(rec session.SessionRecord) {
	r.sink.WriteSummary(influxdb.SummaryPoint{
		OnSeconds:  rec.OnSeconds,
		OffSeconds: rec.OffSeconds,
		Intervals:  rec.Intervals,
		Duration:   rec.EndedAt.Sub(rec.StartedAt),
		Forced:     rec.Forced,
		Locked:     rec.Locked,
		EndedAt:    rec.EndedAt,
	})
}
