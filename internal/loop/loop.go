// Package loop drives the fan controller: one tick reads telemetry, decides a
// speed, commands it and renders the dashboard, then waits for the next tick
// while watching for a quit request.
//
// Every hardware-facing failure ends the loop through the safe exit path,
// which commands the ceiling speed and hands fan control back to the driver.
package loop

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/nvfanmon/internal/control"
	"codeberg.org/mutker/nvfanmon/internal/errors"
	"codeberg.org/mutker/nvfanmon/internal/gpu"
	"codeberg.org/mutker/nvfanmon/internal/logger"
	"codeberg.org/mutker/nvfanmon/internal/metrics"
)

const (
	DefaultInterval     = 5 * time.Second
	DefaultPollInterval = time.Second
	MaxPollInterval     = time.Second
)

type Scheduler struct {
	opts Options

	mu    sync.Mutex
	state State

	control control.State
	static  gpu.StaticInfo

	safeExitOnce sync.Once
}

func New(opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.PollInterval <= 0 || opts.PollInterval > MaxPollInterval {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Scheduler{opts: opts, state: StateInit}
}

// State returns the current lifecycle phase.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *Scheduler) transition(next State) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()

	logger.Debug().
		Str("from", prev.String()).
		Str("to", next.String()).
		Msg("Scheduler state changed")
}

// Run executes the loop until the user quits, ctx is canceled or a hardware
// call fails, and returns the process exit code.
func (s *Scheduler) Run(ctx context.Context) int {
	code := s.run(ctx)
	s.transition(StateExited)

	return code
}

func (s *Scheduler) run(ctx context.Context) int {
	if err := s.init(); err != nil {
		return s.fail(err)
	}

	s.transition(StateRunning)

	for tick := 1; ; tick++ {
		if err := s.tick(ctx, tick); err != nil {
			return s.fail(err)
		}

		if s.wait(ctx) {
			return s.terminate()
		}
	}
}

// init takes manual control of the fan, commands the initial speed and
// records the starting temperature.
func (s *Scheduler) init() error {
	errFactory := errors.New()

	manual, err := s.opts.Actuator.SetFanControlMode(true)
	if err != nil {
		return errFactory.Wrap(errors.ErrModeEntry, err)
	}
	if !manual {
		return errFactory.WithMessage(errors.ErrModeEntry, "driver did not confirm manual fan control")
	}

	speed, err := s.opts.Actuator.SetSpeed(s.opts.InitialSpeed)
	if err != nil {
		return err
	}

	temp, err := s.opts.Telemetry.QueryTemperature()
	if err != nil {
		return err
	}

	static, err := s.opts.Telemetry.QueryStaticInfo()
	if err != nil {
		return err
	}

	s.control = control.State{CurrentSpeed: speed, PreviousTemperature: temp}
	s.static = static

	logger.Info().
		Int("target", s.opts.Params.Target).
		Int("speed", speed).
		Int("temperature", temp).
		Msg("Manual fan control enabled")

	return nil
}

func (s *Scheduler) tick(ctx context.Context, n int) error {
	reading, err := s.opts.Telemetry.Read()
	if err != nil {
		return err
	}

	requested, delta := control.Decide(s.opts.Params, s.control, reading.Temperature)

	confirmed, err := s.opts.Actuator.SetSpeed(requested)
	if err != nil {
		return err
	}

	speedDelta := confirmed - s.control.CurrentSpeed
	s.control = control.State{
		CurrentSpeed:        confirmed,
		PreviousTemperature: reading.Temperature,
		TemperatureDelta:    delta,
	}

	logger.Debug().
		Int("tick", n).
		Int("temperature", reading.Temperature).
		Int("delta", delta).
		Int("speed", confirmed).
		Msg("Tick")

	summary := s.record(ctx, reading, requested)

	if s.opts.Renderer != nil {
		err := s.opts.Renderer.Render(Snapshot{
			Tick:       n,
			Params:     s.opts.Params,
			Reading:    reading,
			State:      s.control,
			SpeedDelta: speedDelta,
			Static:     s.static,
			Summary:    summary,
		})
		if err != nil {
			if !errors.HasCode(err, errors.ErrRender) {
				err = errors.New().Wrap(errors.ErrRender, err)
			}
			logError(err, "Dashboard render failed")
		}
	}

	return nil
}

// record appends the tick to the session history. History failures are
// logged only.
func (s *Scheduler) record(ctx context.Context, reading gpu.Reading, requested int) metrics.Summary {
	if s.opts.History == nil {
		return metrics.Summary{}
	}

	err := s.opts.History.Record(ctx, &metrics.MetricsSnapshot{
		Timestamp: s.opts.Now(),
		Temperature: metrics.TempMetrics{
			Current: reading.Temperature,
			Target:  s.opts.Params.Target,
			Delta:   s.control.TemperatureDelta,
		},
		FanSpeed: metrics.FanMetrics{
			Requested: requested,
			Confirmed: s.control.CurrentSpeed,
		},
		Utilization: reading.Utilization.Graphics,
	})
	if err != nil {
		logError(err, "Failed to record history")
		return metrics.Summary{}
	}

	summary, err := s.opts.History.Summary(ctx)
	if err != nil {
		logError(err, "Failed to summarize history")
	}

	return summary
}

// wait sleeps for one interval in PollInterval steps and reports whether a
// quit was requested. Quit requests are seen within one step.
func (s *Scheduler) wait(ctx context.Context) bool {
	for remaining := s.opts.Interval; remaining > 0; remaining -= s.opts.PollInterval {
		if ctx.Err() != nil {
			return true
		}

		step := min(s.opts.PollInterval, remaining)

		if s.opts.Input != nil {
			if s.opts.Input.Poll(step) {
				return true
			}
			continue
		}

		timer := time.NewTimer(step)
		select {
		case <-ctx.Done():
			timer.Stop()
			return true
		case <-timer.C:
		}
	}

	return ctx.Err() != nil
}

func (s *Scheduler) terminate() int {
	s.transition(StateTerminating)

	if s.opts.RestoreOnQuit {
		s.safeExit()
		return ExitOK
	}

	logger.Info().
		Int("speed", s.control.CurrentSpeed).
		Msg("Quit requested, fan left in manual mode")

	return ExitOK
}

func (s *Scheduler) fail(err error) int {
	s.transition(StateFailed)
	logError(err, "Control loop failed")
	s.safeExit()

	return ExitFailure
}

// safeExit commands the ceiling speed and then restores automatic fan
// control. Both steps are attempted even if the first fails. It runs at most
// once.
func (s *Scheduler) safeExit() {
	s.safeExitOnce.Do(func() {
		ceiling := s.opts.Params.Bounds.Ceiling

		if _, err := s.opts.Actuator.SetSpeed(ceiling); err != nil {
			logError(err, "Safe exit: failed to set ceiling speed")
		}

		manual, err := s.opts.Actuator.SetFanControlMode(false)
		switch {
		case err != nil:
			logError(err, "Safe exit: failed to restore automatic fan control")
		case manual:
			logger.Warn().Msg("Safe exit: driver still reports manual fan control")
		default:
			logger.Info().Int("speed", ceiling).Msg("Automatic fan control restored")
		}
	})
}

func logError(err error, msg string) {
	logger.Error().
		Str("error_code", string(errors.CodeOf(err))).
		Err(err).
		Msg(msg)
}
