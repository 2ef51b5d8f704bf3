package prompt

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects how a Document is written out.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatSections Format = "sections"
)

// Formats lists the accepted values for ParseFormat.
var Formats = []Format{FormatText, FormatJSON, FormatYAML, FormatSections}

// ParseFormat maps a user supplied name onto a Format. Empty selects text.
func ParseFormat(value string) (Format, error) {
	v := Format(strings.ToLower(strings.TrimSpace(value)))
	if v == "" {
		return FormatText, nil
	}
	for _, f := range Formats {
		if v == f {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown output format %q (want one of text, json, yaml, sections)", value)
}

// Render writes doc to w in the given format.
func Render(w io.Writer, doc Document, format Format) error {
	if doc.Sections == nil {
		doc.Sections = []Section{}
	}
	switch format {
	case FormatText, "":
		_, err := io.WriteString(w, doc.Text)
		return err
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(doc)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	case FormatSections:
		if _, err := io.WriteString(w, doc.Text); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "\n\n---\n"); err != nil {
			return err
		}
		for _, s := range doc.Sections {
			if _, err := fmt.Fprintf(w, "%d..%d\t%s\n", s.Start, s.End, s.Label); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
