// Package output renders run summaries and status reports.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format names an output encoding selected with --output.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

type encodeFunc func(w io.Writer, v any) error

var encoders = map[Format]encodeFunc{
	FormatText: encodeText,
	FormatJSON: encodeJSON,
	FormatYAML: encodeYAML,
	// TOML documents must be tables; reports are structs.
	FormatTOML: func(w io.Writer, v any) error { return toml.NewEncoder(w).Encode(v) },
}

var aliases = map[string]Format{
	"":    FormatText,
	"yml": FormatYAML,
}

// Writer encodes reports onto an io.Writer.
type Writer struct {
	w      io.Writer
	encode encodeFunc
}

// NewWriter returns a Writer for format. Unknown formats fall back to text.
func NewWriter(w io.Writer, format Format) *Writer {
	encode, ok := encoders[format]
	if !ok {
		encode = encodeText
	}
	return &Writer{w: w, encode: encode}
}

// Write encodes v.
func (w *Writer) Write(v any) error {
	return w.encode(w.w, v)
}

// ParseFormat resolves the --output flag value.
func ParseFormat(s string) (Format, error) {
	if f, ok := aliases[s]; ok {
		return f, nil
	}
	if _, ok := encoders[Format(s)]; ok {
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown format: %s (want one of %s)", s, strings.Join(formatNames(), ", "))
}

func formatNames() []string {
	names := make([]string, 0, len(encoders))
	for f := range encoders {
		names = append(names, string(f))
	}
	sort.Strings(names)
	return names
}

// encodeText prints the report's own summary lines when it has them.
func encodeText(w io.Writer, v any) error {
	if s, ok := v.(fmt.Stringer); ok {
		_, err := fmt.Fprintln(w, s.String())
		return err
	}
	_, err := fmt.Fprintf(w, "%+v\n", v)
	return err
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func encodeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
