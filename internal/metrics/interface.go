package metrics

import (
	"context"
	"time"
)

// MetricsCollector records the session history shown in the dashboard
// summary. History lives only as long as the process.
type MetricsCollector interface {
	Record(ctx context.Context, snapshot *MetricsSnapshot) error
	Summary(ctx context.Context) (Summary, error)
	Close() error
}

// MetricsRepository defines the interface for metrics data storage
type MetricsRepository interface {
	Record(snapshot *MetricsSnapshot) error
	Summary() (Summary, error)
	Close() error
}

// MetricsSnapshot is one control loop tick.
type MetricsSnapshot struct {
	Timestamp   time.Time
	Temperature TempMetrics
	FanSpeed    FanMetrics
	Utilization int
}

// Domain value objects
type TempMetrics struct {
	Current int
	Target  int
	Delta   int
}

type FanMetrics struct {
	Requested int
	Confirmed int
}

// Summary aggregates every snapshot recorded so far.
type Summary struct {
	Samples        int
	MinTemperature int
	MaxTemperature int
	AvgTemperature float64
	AvgFanSpeed    float64
	Since          time.Time
}
