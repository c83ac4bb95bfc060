// Package window moves and titles the active terminal window with wmctrl.
// Placement is a convenience: every failure is logged and ignored.
package window

import (
	"fmt"

	"codeberg.org/mutker/nvfanmon/internal/exec"
	"codeberg.org/mutker/nvfanmon/internal/logger"
)

const (
	Binary       = "wmctrl"
	DefaultTitle = "nvfanmon"
	activeWindow = ":ACTIVE:"
)

// Geometry is the window position and size in pixels.
type Geometry struct {
	X, Y          int
	Width, Height int
}

type Placer struct {
	run      exec.Runner
	lookPath func(string) bool
}

func NewPlacer(run exec.Runner) *Placer {
	if run == nil {
		run = exec.Command
	}

	return &Placer{run: run, lookPath: exec.LookPath}
}

// Place moves the active window to g and sets its title. It reports whether
// both steps succeeded.
func (p *Placer) Place(g Geometry, title string) bool {
	if !p.lookPath(Binary) {
		logger.Info().Msg("wmctrl not found, window placement skipped")
		return false
	}

	if title == "" {
		title = DefaultTitle
	}

	geometry := fmt.Sprintf("0,%d,%d,%d,%d", g.X, g.Y, g.Width, g.Height)
	if _, err := p.run(Binary, "-r", activeWindow, "-e", geometry); err != nil {
		logger.Warn().Err(err).Str("geometry", geometry).Msg("Failed to place window")
		return false
	}

	if _, err := p.run(Binary, "-r", activeWindow, "-T", title); err != nil {
		logger.Warn().Err(err).Msg("Failed to set window title")
		return false
	}

	logger.Debug().Str("geometry", geometry).Msg("Window placed")

	return true
}
