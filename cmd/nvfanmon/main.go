package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/nvfanmon/internal/config"
	"codeberg.org/mutker/nvfanmon/internal/dashboard"
	"codeberg.org/mutker/nvfanmon/internal/errors"
	"codeberg.org/mutker/nvfanmon/internal/exec"
	"codeberg.org/mutker/nvfanmon/internal/gpu"
	"codeberg.org/mutker/nvfanmon/internal/logger"
	"codeberg.org/mutker/nvfanmon/internal/loop"
	"codeberg.org/mutker/nvfanmon/internal/metrics"
	"codeberg.org/mutker/nvfanmon/internal/oracle"
	"codeberg.org/mutker/nvfanmon/internal/pid"
	"codeberg.org/mutker/nvfanmon/internal/window"
	"github.com/spf13/cobra"
)

const windowTitle = "nvfanmon - GPU temperature monitor"

func main() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stderr))
}

func newRootCmd(code *int) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nvfanmon <target-temperature> <window-width> <window-height>",
		Short: "Hold an NVIDIA GPU at a target temperature by driving its fan",
		Long: `nvfanmon takes manual control of the GPU fan and adjusts its speed every
few seconds to keep the GPU near the target temperature (°C, at most 85).
A live dashboard shows temperatures, utilization, clocks and memory.
Press q to quit. On any hardware error the fan is set to the ceiling speed
and automatic control is restored.`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags(), args)
			if err != nil {
				return err
			}

			*code, err = run(cmd.Context(), cfg)
			return err
		},
	}

	config.RegisterFlags(cmd.Flags())

	return cmd
}

// execute runs the command line and returns the process exit code. Argument
// and setup errors exit 1 before the fan is touched.
func execute(ctx context.Context, args []string, stderr io.Writer) int {
	code := loop.ExitOK

	cmd := newRootCmd(&code)
	cmd.SetArgs(args)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "nvfanmon: %v\n", err)
		fmt.Fprintf(stderr, "Run 'nvfanmon --help' for usage.\n")
		return loop.ExitFailure
	}

	return code
}

func run(ctx context.Context, cfg *config.Config) (int, error) {
	errFactory := errors.New()

	logFile, err := logger.OpenFile(cfg.LogFile)
	if err != nil {
		return loop.ExitFailure, err
	}
	defer logFile.Close()

	level, err := logger.ParseLevel(cfg.LogLevel.String())
	if err != nil {
		return loop.ExitFailure, err
	}
	logger.Init(logFile, level)

	if cfg.Oracle == oracle.BackendSettings && !exec.LookPath(cfg.OracleBinary) {
		return loop.ExitFailure, errFactory.WithMessage(errors.ErrUnavailable,
			cfg.OracleBinary+" not found, install the NVIDIA X server settings utility")
	}

	if err := pid.Write(); err != nil {
		return loop.ExitFailure, err
	}
	defer func() {
		if err := pid.Remove(); err != nil {
			logger.Warn().Err(err).Msg("Failed to remove PID file")
		}
	}()

	o, err := oracle.New(oracle.Options{
		Backend: cfg.Oracle,
		Binary:  cfg.OracleBinary,
		Display: cfg.Display,
	})
	if err != nil {
		return loop.ExitFailure, err
	}
	defer func() {
		if err := o.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close oracle")
		}
	}()

	if cfg.PlaceWindow {
		window.NewPlacer(nil).Place(window.Geometry{
			X:      cfg.WindowX,
			Y:      cfg.WindowY,
			Width:  cfg.WindowWidth,
			Height: cfg.WindowHeight,
		}, windowTitle)
	}

	history := openHistory(cfg.History)
	defer func() {
		if err := history.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close session history")
		}
	}()

	keyboard, err := dashboard.NewKeyboard(os.Stdin)
	if err != nil {
		return loop.ExitFailure, err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Int("target", cfg.TargetTemperature).
		Str("oracle", cfg.Oracle).
		Str("bounds", cfg.Bounds().String()).
		Msg("Starting fan control")

	scheduler := loop.New(loop.Options{
		Telemetry:     gpu.NewTelemetry(o),
		Actuator:      gpu.NewActuator(o, cfg.FanSpeedAttribute, cfg.Bounds()),
		Renderer:      dashboard.NewTerminal(os.Stdout, keyboard.Raw()),
		Input:         keyboard,
		History:       history,
		Params:        cfg.Params(),
		InitialSpeed:  cfg.InitialFanSpeed,
		Interval:      cfg.Interval,
		PollInterval:  cfg.PollInterval,
		RestoreOnQuit: cfg.RestoreOnQuit,
	})

	code := scheduler.Run(ctx)

	if err := keyboard.Close(); err != nil {
		logger.Warn().Err(err).Msg("Failed to restore terminal")
	}

	if code != loop.ExitOK {
		fmt.Fprintf(os.Stderr, "nvfanmon: fan control failed, automatic control restored; see %s\n", cfg.LogFile)
	}

	logger.Info().Int("code", code).Msg("Exiting")

	return code, nil
}

// openHistory returns the session history, falling back to a no-op
// collector when the in-memory database cannot be opened.
func openHistory(enabled bool) metrics.MetricsCollector {
	cfg := metrics.DefaultConfig()
	cfg.Enabled = enabled

	history, err := metrics.NewService(cfg, logger.Default())
	if err == nil {
		return history
	}

	logger.Warn().Err(err).Msg("Session history unavailable")

	history, _ = metrics.NewService(metrics.Config{Enabled: false}, logger.Default())

	return history
}
