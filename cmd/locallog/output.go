package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/tinytelemetry/locallog/internal/model"
)

const (
	formatText = "text"
	formatJSON = "json"
)

// printer writes decoded entries to the console.
type printer struct {
	w      *bufio.Writer
	enc    *json.Encoder
	format string
	layout string
	loc    *time.Location

	showSource bool

	timeStyle   lipgloss.Style
	sourceStyle lipgloss.Style
	errStyle    lipgloss.Style
	styled      bool
}

type jsonEntry struct {
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Line      string    `json:"line"`
}

func newPrinter(out io.Writer, cfg appConfig) *printer {
	w := bufio.NewWriter(out)
	p := &printer{
		w:          w,
		enc:        json.NewEncoder(w),
		format:     cfg.Format,
		layout:     cfg.TimestampLayout,
		loc:        time.UTC,
		showSource: cfg.ShowSource,
	}
	p.enc.SetEscapeHTML(false)
	if cfg.LocalTime {
		p.loc = time.Local
	}

	if !cfg.NoColor {
		p.setRenderer(lipgloss.NewRenderer(out))
	}
	return p
}

// setRenderer enables styling when r can emit colors. Output that is not a
// terminal is left byte for byte as decoded.
func (p *printer) setRenderer(r *lipgloss.Renderer) {
	if r.ColorProfile() == termenv.Ascii {
		p.styled = false
		return
	}
	base := r.NewStyle().TabWidth(lipgloss.NoTabConversion)
	p.timeStyle = base.Foreground(lipgloss.Color("240"))
	p.sourceStyle = base.Foreground(lipgloss.Color("39"))
	p.errStyle = base.Foreground(lipgloss.Color("196"))
	p.styled = true
}

// paint styles each line of s on its own so Render never pads lines to a
// common width.
func paint(style lipgloss.Style, s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = style.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}

// Print writes one entry. Output is buffered until Flush.
func (p *printer) Print(entry model.LogEntry) error {
	ts := entry.Timestamp.In(p.loc)
	if p.format == formatJSON {
		return p.enc.Encode(jsonEntry{Source: entry.Source, Timestamp: ts, Line: entry.Line})
	}

	stamp := ts.Format(p.layout)
	line := strings.TrimSuffix(entry.Line, "\n")
	source := entry.Source
	if p.styled {
		stamp = paint(p.timeStyle, stamp)
		source = paint(p.sourceStyle, source)
		if entry.Source == "stderr" {
			line = paint(p.errStyle, line)
		}
	}

	var err error
	if p.showSource {
		_, err = fmt.Fprintf(p.w, "%s [%s]: %s\n", stamp, source, line)
	} else {
		_, err = fmt.Fprintf(p.w, "%s: %s\n", stamp, line)
	}
	return err
}

func (p *printer) Flush() error {
	return p.w.Flush()
}
