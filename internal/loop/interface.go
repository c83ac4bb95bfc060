package loop

import (
	"time"

	"codeberg.org/mutker/nvfanmon/internal/control"
	"codeberg.org/mutker/nvfanmon/internal/gpu"
	"codeberg.org/mutker/nvfanmon/internal/metrics"
)

// Renderer displays one tick. Errors are logged and never stop the loop.
type Renderer interface {
	Render(Snapshot) error
}

// Input reports a user quit request. Poll blocks for at most wait.
type Input interface {
	Poll(wait time.Duration) bool
}

// Snapshot is everything the dashboard shows for one tick.
type Snapshot struct {
	Tick       int
	Params     control.Params
	Reading    gpu.Reading
	State      control.State
	SpeedDelta int
	Static     gpu.StaticInfo
	Summary    metrics.Summary
}

// Options wires a Scheduler.
type Options struct {
	Telemetry gpu.TelemetryPort
	Actuator  gpu.ActuatorPort
	Renderer  Renderer
	Input     Input
	History   metrics.MetricsCollector

	Params       control.Params
	InitialSpeed int

	Interval     time.Duration
	PollInterval time.Duration

	// RestoreOnQuit routes a user quit through the safe exit path, handing
	// the fan back to the driver.
	RestoreOnQuit bool

	// Now is the clock used for history timestamps.
	Now func() time.Time
}
