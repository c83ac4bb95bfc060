// Package dashboard draws the live status screen and reads the quit key.
package dashboard

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"codeberg.org/mutker/nvfanmon/internal/errors"
	"codeberg.org/mutker/nvfanmon/internal/gpu"
	"codeberg.org/mutker/nvfanmon/internal/loop"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
)

const (
	clearScreen = "\033[H\033[2J"
	footer      = "Press q to exit"
	mebibyte    = 1024 * 1024
)

// Terminal renders snapshots as a table, redrawing the whole screen each tick.
type Terminal struct {
	out     io.Writer
	newline string
	clear   bool
}

// NewTerminal returns a renderer writing to out. In raw terminal mode lines
// must end in "\r\n".
func NewTerminal(out io.Writer, raw bool) *Terminal {
	newline := "\n"
	if raw {
		newline = "\r\n"
	}

	return &Terminal{out: out, newline: newline, clear: true}
}

// WithoutClear disables the screen clear sequence.
func (t *Terminal) WithoutClear() *Terminal {
	t.clear = false
	return t
}

func (t *Terminal) Render(s loop.Snapshot) error {
	var buf bytes.Buffer

	if t.clear {
		buf.WriteString(clearScreen)
	}

	fmt.Fprintf(&buf, "nvfanmon  tick %d  fan bounds %s%s%s",
		s.Tick, s.Params.Bounds, t.newline, t.newline)

	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"Sensor", "Field", "Value"})
	table.SetAutoFormatHeaders(false)
	table.SetAutoMergeCellsByColumnIndex([]int{0})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetNewLine(t.newline)
	table.AppendBulk(rows(s))
	table.Render()

	buf.WriteString(t.newline)
	buf.WriteString(footer)
	buf.WriteString(t.newline)

	if _, err := t.out.Write(buf.Bytes()); err != nil {
		return errors.New().Wrap(errors.ErrRender, err)
	}

	return nil
}

func rows(s loop.Snapshot) [][]string {
	r, st, info := s.Reading, s.State, s.Static

	out := [][]string{
		{"Utilization", "Graphics", percent(r.Utilization.Graphics)},
		{"Utilization", "Memory", percent(r.Utilization.Memory)},
		{"Utilization", "Video", percent(r.Utilization.Video)},
		{"Utilization", "PCIe", percent(r.Utilization.PCIe)},
		{"PCIe", "Generation", strconv.Itoa(info.PCIeGeneration)},
		{"PCIe", "Width", fmt.Sprintf("x%d of x%d", r.PCIe.Width, info.MaxLinkWidth)},
		{"PCIe", "Speed", fmt.Sprintf("%s of %s", transferRate(r.PCIe.Speed), transferRate(info.MaxLinkSpeed))},
		{"Temperature", "Target", fmt.Sprintf("%d°C ±%d", s.Params.Target, s.Params.Tolerance)},
		{"Temperature", "Current", fmt.Sprintf("%d°C", r.Temperature)},
		{"Temperature", "Delta", fmt.Sprintf("%+d°C", st.TemperatureDelta)},
		{"Fan", "Speed", percent(st.CurrentSpeed)},
		{"Fan", "Delta", fmt.Sprintf("%+d%%", s.SpeedDelta)},
		{"Fan", "RPM", rpm(r.FanRPM)},
		{"Clocks", "Graphics", fmt.Sprintf("%d MHz", r.Clocks.Graphics)},
		{"Clocks", "Memory", fmt.Sprintf("%d MHz", r.Clocks.Memory)},
		{"Memory", "Total", humanize.IBytes(uint64(info.TotalMemoryMB) * mebibyte)},
		{"Memory", "Used", humanize.IBytes(uint64(r.UsedMemoryMB) * mebibyte)},
		{"GPU", "CUDA cores", strconv.Itoa(info.CUDACores)},
		{"GPU", "Driver", info.DriverVersion},
	}

	if sum := s.Summary; sum.Samples > 0 {
		out = append(out,
			[]string{"Session", "Samples", strconv.Itoa(sum.Samples)},
			[]string{"Session", "Temperature", fmt.Sprintf("min %d°C, max %d°C, avg %.1f°C", sum.MinTemperature, sum.MaxTemperature, sum.AvgTemperature)},
			[]string{"Session", "Fan speed", fmt.Sprintf("avg %.1f%%", sum.AvgFanSpeed)},
			[]string{"Session", "Started", humanize.Time(sum.Since)},
		)
	}

	return out
}

func percent(v int) string {
	return strconv.Itoa(v) + "%"
}

// transferRate formats MT/s as GT/s.
func transferRate(mts int) string {
	return fmt.Sprintf("%.1f GT/s", float64(mts)/1000)
}

func rpm(v int) string {
	if v == gpu.FanRPMUnavailable {
		return "n/a"
	}

	return strconv.Itoa(v)
}
