// Package report renders decoded telegrams for people: a plain text report,
// a table, or JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/aso824/dcf77decoder/internal/telegram"
)

// Format selects the report layout.
type Format string

const (
	FormatText  Format = "text"
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// RejectedMessage is printed when a telegram does not decode.
const RejectedMessage = "Incorrect data. Receive new frame and try again."

// DefaultCentury is added to the two-digit year when building civil time.
const DefaultCentury = 2000

// Options controls rendering.
type Options struct {
	Format  Format
	NoColor bool
	Century int
}

var weekdays = [7]string{
	"monday",
	"tuesday",
	"wednesday",
	"thursday",
	"friday",
	"saturday",
	"sunday",
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatText, FormatTable, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (want text, table or json)", s)
	}
}

// WeekdayName returns the English name for weekday 1 (Monday) to 7 (Sunday),
// or "" outside that range.
func WeekdayName(weekday int) string {
	if weekday < 1 || weekday > len(weekdays) {
		return ""
	}
	return weekdays[weekday-1]
}

// Season describes the summer-time flag: 0 is summer, anything else winter.
func Season(r telegram.Result) string {
	if r.SummerTime == 0 {
		return "summer"
	}
	return "winter"
}

// AntennaName describes the antenna flag.
func AntennaName(antenna int) string {
	if antenna == 0 {
		return "normal"
	}
	return "backup"
}

// Render writes r to w in the requested format.
func Render(w io.Writer, r telegram.Result, opts Options) error {
	if opts.Century == 0 {
		opts.Century = DefaultCentury
	}
	switch opts.Format {
	case FormatTable:
		return renderTable(w, r, opts)
	case FormatJSON:
		return renderJSON(w, r, opts)
	default:
		return renderText(w, r, opts)
	}
}

// RenderRejected reports a telegram that failed to decode.
func RenderRejected(w io.Writer, err error, opts Options) error {
	if opts.Format == FormatJSON {
		return json.NewEncoder(w).Encode(map[string]string{
			"error": RejectedMessage,
			"kind":  telegram.Kind(err),
		})
	}
	c := color.New(color.FgRed)
	if opts.NoColor {
		c.DisableColor()
	}
	_, werr := c.Fprintln(w, RejectedMessage)
	return werr
}

func renderText(w io.Writer, r telegram.Result, opts Options) error {
	heading := color.New(color.FgCyan, color.Bold)
	warn := color.New(color.FgYellow)
	if opts.NoColor {
		heading.DisableColor()
		warn.DisableColor()
	}

	t := r.Time
	heading.Fprintln(w, "== Received data ==")
	fmt.Fprintf(w, "Date: %d.%d.%d\n", t.Day, t.Month, t.Year)
	fmt.Fprintf(w, "It's %d day of week (%s)\n", t.Weekday, WeekdayName(t.Weekday))
	fmt.Fprintf(w, "Hour: %d:%d\n", t.Hour, t.Minute)
	fmt.Fprintf(w, "Time: %s", Season(r))
	if r.TimeChange != 0 {
		warn.Fprint(w, " (next hour is time change)")
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Antenna: %d (%s)\n", r.Antenna, AntennaName(r.Antenna))
	_, err := fmt.Fprintln(w, "Weather information is encrypted")
	return err
}

func renderTable(w io.Writer, r telegram.Result, opts Options) error {
	t := r.Time

	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Field", "Value"})
	tw.AppendRows([]table.Row{
		{"Date", fmt.Sprintf("%02d.%02d.%02d", t.Day, t.Month, t.Year)},
		{"Weekday", fmt.Sprintf("%d (%s)", t.Weekday, WeekdayName(t.Weekday))},
		{"Time", fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)},
		{"Season", Season(r)},
		{"Time change", r.TimeChange != 0},
		{"Antenna", fmt.Sprintf("%d (%s)", r.Antenna, AntennaName(r.Antenna))},
	})
	if ct, err := r.Civil(opts.Century); err == nil {
		tw.AppendFooter(table.Row{"Civil", ct.Format(time.RFC3339)})
	}

	_, err := fmt.Fprintln(w, tw.Render())
	return err
}

// Document is the JSON form of a decoded telegram.
type Document struct {
	Result      telegram.Result `json:"result"`
	WeekdayName string          `json:"weekday_name"`
	Season      string          `json:"season"`
	AntennaName string          `json:"antenna_name"`
	Civil       string          `json:"civil,omitempty"`
}

// NewDocument builds the JSON document for r. Civil is empty when the
// result does not form a valid calendar time.
func NewDocument(r telegram.Result, century int) Document {
	doc := Document{
		Result:      r,
		WeekdayName: WeekdayName(r.Time.Weekday),
		Season:      Season(r),
		AntennaName: AntennaName(r.Antenna),
	}
	if ct, err := r.Civil(century); err == nil {
		doc.Civil = ct.Format(time.RFC3339)
	}
	return doc
}

func renderJSON(w io.Writer, r telegram.Result, opts Options) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewDocument(r, opts.Century))
}
