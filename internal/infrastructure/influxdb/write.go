package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementInterval = "session_interval"
	MeasurementSummary  = "session_summary"
)

// IntervalPoint describes one randomised On or Off interval.
type IntervalPoint struct {
	State   string
	Seconds float64
	Terms   int
	Teased  bool
	At      time.Time
}

// SummaryPoint describes a finished session.
type SummaryPoint struct {
	OnSeconds  float64
	OffSeconds float64
	Intervals  int
	Duration   time.Duration
	Forced     bool
	Locked     bool
	EndedAt    time.Time
}

// WriteInterval records an interval draw as a session_interval point,
// tagged by state.
//
// Example:
//
//	client.WriteInterval(influxdb.IntervalPoint{State: "On", Seconds: 140, Terms: 1, At: time.Now()})
func (c *Client) WriteInterval(p IntervalPoint) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		MeasurementInterval,
		map[string]string{
			"state":  p.State,
			"teased": boolTag(p.Teased),
		},
		map[string]interface{}{
			"seconds": p.Seconds,
			"terms":   p.Terms,
		},
		p.At,
	)

	c.writeAPI.WritePoint(point)
}

// WriteSummary records a finished session as a session_summary point.
// Forced is a tag so forced and normal endings can be compared.
func (c *Client) WriteSummary(p SummaryPoint) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		MeasurementSummary,
		map[string]string{
			"forced": boolTag(p.Forced),
			"locked": boolTag(p.Locked),
		},
		map[string]interface{}{
			"on_seconds":       p.OnSeconds,
			"off_seconds":      p.OffSeconds,
			"intervals":        p.Intervals,
			"duration_seconds": p.Duration.Seconds(),
		},
		p.EndedAt,
	)

	c.writeAPI.WritePoint(point)
}

func boolTag(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
