// Package output provides text/JSON dual-mode CLI output.
package output

import (
	"fmt"
	"io"
	"os"
	"sort"
)

// Format selects how results are rendered.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Writer renders command results in the selected format. JSON goes to stdout
// for machine consumption; text goes to stderr so it never pollutes pipelines.
type Writer struct {
	format Format
	stdout io.Writer
	stderr io.Writer
}

// New creates a writer for the given format. Unknown formats fall back to text.
func New(format Format) *Writer {
	if format != FormatJSON {
		format = FormatText
	}
	return &Writer{format: format, stdout: os.Stdout, stderr: os.Stderr}
}

// NewWithStreams creates a writer with explicit streams, for tests.
func NewWithStreams(format Format, stdout, stderr io.Writer) *Writer {
	w := New(format)
	w.stdout = stdout
	w.stderr = stderr
	return w
}

// IsJSON reports whether the writer renders JSON.
func (w *Writer) IsJSON() bool {
	return w.format == FormatJSON
}

// Write renders v: JSON in JSON mode, a sorted key/value listing in text mode.
func (w *Writer) Write(v any) error {
	if w.format == FormatJSON {
		return writeJSON(w.stdout, v, true)
	}
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w.stderr, "%s: %v\n", k, t[k])
		}
		return nil
	case string:
		_, err := fmt.Fprintln(w.stderr, t)
		return err
	default:
		// Fall back to JSON rendering for structured values in text mode.
		return writeJSON(w.stderr, v, true)
	}
}
