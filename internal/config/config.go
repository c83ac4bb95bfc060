// Package config builds the immutable run configuration from positional
// arguments, flags, environment variables and an optional TOML file, in that
// order of precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/nvfanmon/internal/control"
	"codeberg.org/mutker/nvfanmon/internal/errors"
	"codeberg.org/mutker/nvfanmon/internal/logger"
	"codeberg.org/mutker/nvfanmon/internal/oracle"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultEnvPrefix  = "NVFANMON"
	DefaultConfigFile = "/etc/nvfanmon.toml"

	defaultInitialFanSpeed = 70
	defaultDisplay         = "localhost:0"
	defaultWindowX         = 1600
	defaultWindowY         = 1
	maxPollInterval        = time.Second
)

// Config keys
const (
	keyTolerance         = "tolerance"
	keyFanSpeedFloor     = "fan_speed_floor"
	keyFanSpeedCeiling   = "fan_speed_ceiling"
	keyInitialFanSpeed   = "initial_fan_speed"
	keyInterval          = "interval"
	keyPollInterval      = "poll_interval"
	keyOracle            = "oracle"
	keyOracleBinary      = "oracle_binary"
	keyDisplay           = "display"
	keyFanSpeedAttribute = "fan_speed_attribute"
	keyLogLevel          = "log_level"
	keyLogFile           = "log_file"
	keyHistory           = "history"
	keyRestoreOnQuit     = "restore_on_quit"
	keyPlaceWindow       = "place_window"
	keyWindowX           = "window_x"
	keyWindowY           = "window_y"

	flagConfig = "config"
)

type Config struct {
	// Positional arguments
	TargetTemperature int `mapstructure:"-"`
	WindowWidth       int `mapstructure:"-"`
	WindowHeight      int `mapstructure:"-"`

	Tolerance         int           `mapstructure:"tolerance"`
	FanSpeedFloor     int           `mapstructure:"fan_speed_floor"`
	FanSpeedCeiling   int           `mapstructure:"fan_speed_ceiling"`
	InitialFanSpeed   int           `mapstructure:"initial_fan_speed"`
	Interval          time.Duration `mapstructure:"interval"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	Oracle            string        `mapstructure:"oracle"`
	OracleBinary      string        `mapstructure:"oracle_binary"`
	Display           string        `mapstructure:"display"`
	FanSpeedAttribute string        `mapstructure:"fan_speed_attribute"`
	LogLevel          LogLevel      `mapstructure:"log_level"`
	LogFile           string        `mapstructure:"log_file"`
	History           bool          `mapstructure:"history"`
	RestoreOnQuit     bool          `mapstructure:"restore_on_quit"`
	PlaceWindow       bool          `mapstructure:"place_window"`
	WindowX           int           `mapstructure:"window_x"`
	WindowY           int           `mapstructure:"window_y"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(keyTolerance, control.DefaultTolerance)
	v.SetDefault(keyFanSpeedFloor, control.DefaultFloor)
	v.SetDefault(keyFanSpeedCeiling, control.DefaultCeiling)
	v.SetDefault(keyInitialFanSpeed, defaultInitialFanSpeed)
	v.SetDefault(keyInterval, 5*time.Second)
	v.SetDefault(keyPollInterval, time.Second)
	v.SetDefault(keyOracle, oracle.BackendSettings)
	v.SetDefault(keyOracleBinary, oracle.BackendSettings)
	v.SetDefault(keyDisplay, defaultDisplay)
	v.SetDefault(keyFanSpeedAttribute, oracle.DefaultFanSpeedAttribute)
	v.SetDefault(keyLogLevel, string(LogLevelInfo))
	v.SetDefault(keyLogFile, logger.DefaultFilePath())
	v.SetDefault(keyHistory, true)
	v.SetDefault(keyRestoreOnQuit, false)
	v.SetDefault(keyPlaceWindow, true)
	v.SetDefault(keyWindowX, defaultWindowX)
	v.SetDefault(keyWindowY, defaultWindowY)
}

// flagName maps a config key to its command line flag.
func flagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

// RegisterFlags adds every configuration flag to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(flagConfig, "", "Path to a TOML configuration file")
	fs.Int(flagName(keyTolerance), control.DefaultTolerance, "Temperature band around the target in which the fan speed is left alone (°C)")
	fs.Int(flagName(keyFanSpeedFloor), control.DefaultFloor, "Lowest fan speed ever commanded (%)")
	fs.Int(flagName(keyFanSpeedCeiling), control.DefaultCeiling, "Highest fan speed ever commanded, also used on safe exit (%)")
	fs.Int(flagName(keyInitialFanSpeed), defaultInitialFanSpeed, "Fan speed commanded at startup (%)")
	fs.Duration(flagName(keyInterval), 5*time.Second, "Time between control ticks")
	fs.Duration(flagName(keyPollInterval), time.Second, "Keyboard poll step while waiting, at most 1s")
	fs.String(flagName(keyOracle), oracle.BackendSettings, "Backend: nvidia-settings or nvml")
	fs.String(flagName(keyOracleBinary), oracle.BackendSettings, "Path to the nvidia-settings binary")
	fs.String(flagName(keyDisplay), defaultDisplay, "X display passed to nvidia-settings")
	fs.String(flagName(keyFanSpeedAttribute), oracle.DefaultFanSpeedAttribute, "Fan speed attribute (GPUCurrentFanSpeed or GPUTargetFanSpeed)")
	fs.String(flagName(keyLogLevel), string(LogLevelInfo), "Log level: debug, info, warning or error")
	fs.String(flagName(keyLogFile), logger.DefaultFilePath(), "Log file; the terminal belongs to the dashboard")
	fs.Bool(flagName(keyHistory), true, "Keep an in-memory session history for the dashboard summary")
	fs.Bool(flagName(keyRestoreOnQuit), false, "Restore automatic fan control when quitting")
	fs.Bool(flagName(keyPlaceWindow), true, "Move and resize the terminal window with wmctrl")
	fs.Int(flagName(keyWindowX), defaultWindowX, "Window X position in pixels")
	fs.Int(flagName(keyWindowY), defaultWindowY, "Window Y position in pixels")
}

var keys = []string{
	keyTolerance, keyFanSpeedFloor, keyFanSpeedCeiling, keyInitialFanSpeed,
	keyInterval, keyPollInterval, keyOracle, keyOracleBinary, keyDisplay,
	keyFanSpeedAttribute, keyLogLevel, keyLogFile, keyHistory, keyRestoreOnQuit,
	keyPlaceWindow, keyWindowX, keyWindowY,
}

// Load parses args (target temperature, window width, window height) and
// merges the remaining settings from fs, the environment and the config file.
// fs must already be parsed; it may be nil.
func Load(fs *pflag.FlagSet, args []string, opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &options{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	target, width, height, err := parseArgs(args)
	if err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for _, key := range keys {
			if flag := fs.Lookup(flagName(key)); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
				}
			}
		}
	}

	if err := readConfigFile(v, configPath(fs, o)); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	cfg.TargetTemperature = target
	cfg.WindowWidth = width
	cfg.WindowHeight = height

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// configPath picks the config file: option, then flag, then environment.
// An empty result means the default file, which may be absent.
func configPath(fs *pflag.FlagSet, o *options) string {
	if o.configPath != "" {
		return o.configPath
	}

	if fs != nil {
		if path, err := fs.GetString(flagConfig); err == nil && path != "" {
			return path
		}
	}

	return os.Getenv(o.envPrefix + "_CONFIG")
}

func readConfigFile(v *viper.Viper, path string) error {
	errFactory := errors.New()
	v.SetConfigType("toml")

	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err != nil {
			return nil
		}
		path = DefaultConfigFile
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return errFactory.Wrap(errors.ErrReadConfig, err).WithMessage("read " + path)
	}

	logger.Debug().Str("path", path).Msg("Configuration file loaded")

	return nil
}

func parseArgs(args []string) (target, width, height int, err error) {
	errFactory := errors.New()

	if len(args) != 3 {
		return 0, 0, 0, errFactory.WithMessage(errors.ErrInvalidArgument,
			fmt.Sprintf("expected 3 arguments (target temperature, window width, window height), got %d", len(args)))
	}

	values := make([]int, len(args))
	for i, arg := range args {
		n, convErr := strconv.Atoi(arg)
		if convErr != nil || n <= 0 {
			return 0, 0, 0, errFactory.WithMessage(errors.ErrInvalidArgument,
				fmt.Sprintf("argument %d must be a positive integer, got %q", i+1, arg))
		}
		values[i] = n
	}

	if values[0] > control.MaxTargetTemperature {
		return 0, 0, 0, errFactory.WithData(errors.ErrTargetTooHigh,
			fmt.Sprintf("%d°C, maximum is %d°C", values[0], control.MaxTargetTemperature))
	}

	return values[0], values[1], values[2], nil
}

// Validate checks every setting.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.TargetTemperature <= 0 {
		return errFactory.WithMessage(errors.ErrInvalidArgument, "target temperature must be positive")
	}
	if c.TargetTemperature > control.MaxTargetTemperature {
		return errFactory.WithData(errors.ErrTargetTooHigh, c.TargetTemperature)
	}

	if c.Tolerance < 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, fmt.Sprintf("%s must not be negative", keyTolerance))
	}

	bounds := c.Bounds()
	if err := bounds.Validate(); err != nil {
		return err
	}
	if !bounds.Contains(c.InitialFanSpeed) {
		return errFactory.WithData(errors.ErrInvalidConfig,
			fmt.Sprintf("%s %d%% outside %s", keyInitialFanSpeed, c.InitialFanSpeed, bounds))
	}

	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, fmt.Sprintf("%s %s", keyInterval, c.Interval))
	}
	if c.PollInterval <= 0 || c.PollInterval > maxPollInterval || c.PollInterval > c.Interval {
		return errFactory.WithData(errors.ErrInvalidInterval,
			fmt.Sprintf("%s %s must be in (0, %s] and not above %s", keyPollInterval, c.PollInterval, maxPollInterval, keyInterval))
	}

	switch c.Oracle {
	case oracle.BackendSettings, oracle.BackendNVML:
	default:
		return errFactory.WithData(errors.ErrInvalidConfig, fmt.Sprintf("unknown %s %q", keyOracle, c.Oracle))
	}

	if !c.LogLevel.IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	return nil
}

// Bounds returns the configured fan speed bounds.
func (c *Config) Bounds() control.SpeedBounds {
	return control.SpeedBounds{Floor: c.FanSpeedFloor, Ceiling: c.FanSpeedCeiling}
}

// Params returns the control parameters.
func (c *Config) Params() control.Params {
	return control.Params{
		Target:    c.TargetTemperature,
		Tolerance: c.Tolerance,
		Bounds:    c.Bounds(),
	}
}
