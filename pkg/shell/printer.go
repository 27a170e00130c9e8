package shell

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/labstack/gommon/color"
)

// Printer writes user-facing output with colored status markers.
type Printer struct {
	out   io.Writer
	color *color.Color
}

// NewPrinter colors markers only when out is a terminal and colored is set.
func NewPrinter(out io.Writer, colored bool) *Printer {
	c := color.New()
	c.SetOutput(out)
	if !colored {
		c.Disable()
	}
	return &Printer{out: out, color: c}
}

func (p *Printer) Writer() io.Writer { return p.out }

func (p *Printer) Print(s string) {
	fmt.Fprint(p.out, s)
}

func (p *Printer) Printf(format string, args ...any) {
	fmt.Fprintf(p.out, format, args...)
}

func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintln(p.out, p.color.Green("✓")+" "+fmt.Sprintf(format, args...))
}

func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintln(p.out, p.color.Cyan("→")+" "+fmt.Sprintf(format, args...))
}

func (p *Printer) Warn(format string, args ...any) {
	fmt.Fprintln(p.out, p.color.Yellow("!")+" "+fmt.Sprintf(format, args...))
}

// Error prints err with a failure marker and its hint, if any.
func (p *Printer) Error(err error) {
	msg := err.Error()
	if errors.Is(err, context.Canceled) {
		msg = "cancelled: " + msg
	}
	fmt.Fprintln(p.out, p.color.Red("✗")+" "+msg)
	if hint := HintOf(err); hint != "" {
		fmt.Fprintln(p.out, "  "+p.color.Grey("hint:")+" "+hint)
	}
}

func (p *Printer) Clear() {
	fmt.Fprint(p.out, "\033[H\033[2J")
}
