// Package output renders operator-facing previews, reports, and prompts.
package output

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/chanctl/chanctl/pkg/types"
)

// FieldChange is one before/after pair in a preview.
type FieldChange struct {
	Field  string
	Before any
	After  any
}

// Renderer writes human-readable engine output.
type Renderer struct {
	w       io.Writer
	added   *color.Color
	removed *color.Color
	header  *color.Color
	warn    *color.Color
}

// NewRenderer creates a renderer. noColor disables ANSI styling.
func NewRenderer(w io.Writer, noColor bool) *Renderer {
	r := &Renderer{
		w:       w,
		added:   color.New(color.FgGreen),
		removed: color.New(color.FgRed),
		header:  color.New(color.Bold),
		warn:    color.New(color.FgYellow),
	}
	if noColor {
		for _, c := range []*color.Color{r.added, r.removed, r.header, r.warn} {
			c.DisableColor()
		}
	}
	return r
}

// Writer exposes the underlying writer for prompts.
func (r *Renderer) Writer() io.Writer {
	return r.w
}

// PreviewHeader announces how many records are about to change.
func (r *Renderer) PreviewHeader(total, unchanged int) {
	r.header.Fprintf(r.w, "\nPlanned changes: %d record(s)", total)
	if unchanged > 0 {
		fmt.Fprintf(r.w, " (%d already up to date)", unchanged)
	}
	fmt.Fprintln(r.w)
}

// RecordChanges prints one record's before/after field list.
func (r *Renderer) RecordChanges(rec *types.Record, changes []FieldChange) {
	r.header.Fprintf(r.w, "\n%s\n", rec.String())
	for _, ch := range changes {
		r.removed.Fprintf(r.w, "  - %s: %s\n", ch.Field, renderValue(ch.Before))
		r.added.Fprintf(r.w, "  + %s: %s\n", ch.Field, renderValue(ch.After))
	}
}

// Record prints one full record, fields sorted by name.
func (r *Renderer) Record(rec *types.Record) {
	r.header.Fprintf(r.w, "%s\n", rec.String())
	names := rec.FieldNames()
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(r.w, "  %s: %s\n", name, renderValue(rec.Get(name)))
	}
}

// Compare prints a per-field difference without proposing a change.
func (r *Renderer) Compare(rec *types.Record, field string, source, target any) {
	r.header.Fprintf(r.w, "%s differs on %s\n", rec.String(), field)
	fmt.Fprintf(r.w, "  source: %s\n", renderValue(source))
	fmt.Fprintf(r.w, "  target: %s\n", renderValue(target))
}

// Warn prints an operator-facing warning line.
func (r *Renderer) Warn(msg string) {
	r.warn.Fprintf(r.w, "warning: %s\n", msg)
}

// Info prints a plain line.
func (r *Renderer) Info(msg string) {
	fmt.Fprintln(r.w, msg)
}

// Report prints the final per-record outcomes and totals.
func (r *Renderer) Report(results []types.PatchResult, unchanged int, snapshotPath string) {
	succeeded, failed := 0, 0
	for _, res := range results {
		if res.Success {
			succeeded++
			continue
		}
		failed++
		name := res.Name
		if name == "" {
			name = fmt.Sprintf("ID:%d", res.ID)
		}
		r.removed.Fprintf(r.w, "failed: %s: %s\n", name, res.Message)
	}

	r.header.Fprintf(r.w, "\nDone: %d updated, %d failed, %d unchanged\n", succeeded, failed, unchanged)
	if snapshotPath != "" {
		fmt.Fprintf(r.w, "snapshot: %s\n", snapshotPath)
	}
}

// renderValue flattens a value for display, keeping map output stable.
func renderValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "(empty)"
	case string:
		if t == "" {
			return "(empty)"
		}
		return t
	case map[string]any:
		if len(t) == 0 {
			return "(empty)"
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %v", k, t[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprint(v)
	}
}

// Confirm asks a yes/no question and returns the answer. Anything but an
// explicit yes declines.
func Confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", prompt)
	reader := bufio.NewReader(in)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
