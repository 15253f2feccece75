package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/progress"

	"github.com/muurk/socflash/internal/observer"
)

// Display renders protocol engine events to a terminal: a single in-place
// progress bar plus scrolling leveled status lines. It implements
// observer.Observer and is driven synchronously by the engines, so every
// method returns quickly and never blocks.
type Display struct {
	out   io.Writer
	bar   progress.Model
	width int

	// Verbose includes debug-level engine messages in the output.
	Verbose bool

	percent  float64
	barDrawn bool
	busy     bool
}

// NewDisplay creates a display writing to stdout.
func NewDisplay() *Display {
	return NewDisplayWriter(os.Stdout, GetTerminalWidth())
}

// NewDisplayWriter creates a display with an explicit writer and width.
func NewDisplayWriter(out io.Writer, width int) *Display {
	barWidth := width - 20 // leave room for the percentage
	if barWidth < 20 {
		barWidth = 20
	}
	if barWidth > MaxBarWidth {
		barWidth = MaxBarWidth
	}
	return &Display{
		out: out,
		bar: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(barWidth),
		),
		width: width,
	}
}

// Header prints the operation title and its parameters.
func (d *Display) Header(title string, params [][2]string) {
	fmt.Fprintln(d.out)
	fmt.Fprintln(d.out, HeaderTitleStyle.Render(title))
	for _, kv := range params {
		fmt.Fprintf(d.out, "%s %s\n",
			HeaderParamKeyStyle.Render(kv[0]+":"),
			HeaderParamValueStyle.Render(kv[1]),
		)
	}
	fmt.Fprintln(d.out)
}

// Progress implements observer.Observer.
func (d *Display) Progress(percent float64) {
	d.percent = percent
	d.drawBar()
}

// Log implements observer.Observer.
func (d *Display) Log(level observer.Level, msg string) {
	if level == observer.LevelDebug && !d.Verbose {
		return
	}
	d.clearBar()

	var style = LogInfoStyle
	prefix := "  "
	switch level {
	case observer.LevelDebug:
		style = LogDebugStyle
	case observer.LevelWarn:
		style = LogWarnStyle
		prefix = "  " + WarningMarker + " "
	case observer.LevelError:
		style = LogErrorStyle
		prefix = "  " + FailureMarker + " "
	}
	fmt.Fprintln(d.out, style.Render(prefix+msg))

	if d.busy {
		d.drawBar()
	}
}

// Busy implements observer.Observer. The bar is shown while busy and
// finalized with a newline when the operation ends.
func (d *Display) Busy(busy bool) {
	if d.busy && !busy {
		d.drawBar()
		if d.barDrawn {
			fmt.Fprintln(d.out)
			d.barDrawn = false
		}
	}
	d.busy = busy
}

// ReportError implements observer.Observer.
func (d *Display) ReportError(msg string, detail string) {
	d.clearBar()
	fmt.Fprintln(d.out)
	fmt.Fprintln(d.out, ErrorTitleStyle.Render("  "+FailureMarker+" "+msg))
	if detail != "" {
		fmt.Fprintln(d.out, ErrorDetailStyle.Render("    "+detail))
	}
}

// Success prints a closing success block with optional key/value details.
func (d *Display) Success(msg string, details [][2]string) {
	d.clearBar()
	fmt.Fprintln(d.out)
	fmt.Fprintln(d.out, SuccessTitleStyle.Render("  "+SuccessMarker+" "+msg))
	for _, kv := range details {
		fmt.Fprintf(d.out, "    %s%s\n",
			ResultKeyStyle.Render(kv[0]),
			ResultValueStyle.Render(kv[1]),
		)
	}
	fmt.Fprintln(d.out)
}

// drawBar repaints the progress bar in place.
func (d *Display) drawBar() {
	line := fmt.Sprintf("  %s %3.0f%%", d.bar.ViewAs(d.percent/100), d.percent)
	fmt.Fprint(d.out, "\r"+line)
	d.barDrawn = true
}

// clearBar erases the in-place bar line so a full line can be printed.
func (d *Display) clearBar() {
	if !d.barDrawn {
		return
	}
	fmt.Fprint(d.out, "\r"+strings.Repeat(" ", d.width-1)+"\r")
	d.barDrawn = false
}
