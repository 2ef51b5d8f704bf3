package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultSeparator is inserted between consecutive fragments.
const DefaultSeparator = "\n\n"

// Fragment is one unit of source material: the PR description or a single
// comment. Content is placed into the document verbatim.
type Fragment struct {
	Label   string `json:"label" yaml:"label"`
	Content string `json:"content" yaml:"content"`
}

// Section locates one fragment's content inside a Document as the half-open
// byte range [Start, End).
type Section struct {
	Label string `json:"label" yaml:"label"`
	Start int    `json:"start" yaml:"start"`
	End   int    `json:"end" yaml:"end"`
}

// Len returns the length of the range.
func (s Section) Len() int { return s.End - s.Start }

// Document is the concatenated text plus one section per fragment, in
// fragment order.
type Document struct {
	Text     string    `json:"text" yaml:"text"`
	Sections []Section `json:"sections" yaml:"sections"`
}

// Assemble concatenates fragments, placing separator between consecutive
// fragments only, and records where each fragment's content landed.
// Separator bytes are never covered by a section.
func Assemble(fragments []Fragment, separator string) Document {
	size := 0
	for _, f := range fragments {
		size += len(f.Content)
	}
	if len(fragments) > 1 {
		size += len(separator) * (len(fragments) - 1)
	}

	buf := make([]byte, 0, size)
	sections := make([]Section, 0, len(fragments))
	for i, f := range fragments {
		if i > 0 {
			buf = append(buf, separator...)
		}
		start := len(buf)
		buf = append(buf, f.Content...)
		sections = append(sections, Section{Label: f.Label, Start: start, End: len(buf)})
	}
	return Document{Text: string(buf), Sections: sections}
}

// Slice returns the text covered by the i-th section.
func (d Document) Slice(i int) string {
	s := d.Sections[i]
	return d.Text[s.Start:s.End]
}

// RuneSections returns the sections with offsets counted in unicode scalar
// values instead of bytes.
func (d Document) RuneSections() []Section {
	out := make([]Section, 0, len(d.Sections))
	for i, s := range d.Sections {
		start := utf8.RuneCountInString(d.Text[:s.Start])
		out = append(out, Section{
			Label: s.Label,
			Start: start,
			End:   start + utf8.RuneCountInString(d.Slice(i)),
		})
	}
	return out
}

// Offsets is the unit section offsets are reported in.
type Offsets string

const (
	OffsetsBytes Offsets = "bytes"
	OffsetsRunes Offsets = "runes"
)

// ParseOffsets maps a user supplied unit name onto Offsets. Empty selects bytes.
func ParseOffsets(value string) (Offsets, error) {
	switch Offsets(strings.ToLower(strings.TrimSpace(value))) {
	case "", OffsetsBytes:
		return OffsetsBytes, nil
	case OffsetsRunes:
		return OffsetsRunes, nil
	default:
		return "", fmt.Errorf("unknown offset unit %q (want bytes or runes)", value)
	}
}

// In returns a copy of d whose sections are counted in unit. The text is
// unchanged.
func (d Document) In(unit Offsets) Document {
	if unit == OffsetsRunes {
		d.Sections = d.RuneSections()
	}
	return d
}

// Validate checks that every section lies within the text, that sections do
// not overlap and that they appear in order.
func (d Document) Validate() error {
	prevEnd := 0
	for i, s := range d.Sections {
		if s.Start < 0 || s.Len() < 0 || s.End > len(d.Text) {
			return fmt.Errorf("section %d %q: range %d..%d outside text of length %d", i, s.Label, s.Start, s.End, len(d.Text))
		}
		if s.Start < prevEnd {
			return fmt.Errorf("section %d %q: starts at %d before previous end %d", i, s.Label, s.Start, prevEnd)
		}
		prevEnd = s.End
	}
	return nil
}
