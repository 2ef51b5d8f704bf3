package prompt

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleDocument() Document {
	return Assemble([]Fragment{
		{Label: "PR #3: Fix <parser>", Content: "body & more"},
		{Label: "Comment by @alice", Content: "lgtm"},
	}, DefaultSeparator)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{
		"":         FormatText,
		"text":     FormatText,
		" JSON ":   FormatJSON,
		"yaml":     FormatYAML,
		"sections": FormatSections,
	} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFormat("xml")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestRender_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleDocument(), FormatText))
	assert.Equal(t, "body & more\n\nlgtm", buf.String())
}

func TestRender_JSON(t *testing.T) {
	var buf bytes.Buffer
	doc := sampleDocument()
	require.NoError(t, Render(&buf, doc, FormatJSON))

	assert.Contains(t, buf.String(), `"label": "PR #3: Fix <parser>"`)

	var decoded Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, doc, decoded)
}

func TestRender_JSONEmptyDocumentHasSectionArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, Document{}, FormatJSON))
	assert.Contains(t, buf.String(), `"sections": []`)
}

func TestRender_YAML(t *testing.T) {
	var buf bytes.Buffer
	doc := sampleDocument()
	require.NoError(t, Render(&buf, doc, FormatYAML))

	var decoded Document
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, doc, decoded)
}

func TestRender_Sections(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleDocument(), FormatSections))
	assert.Equal(t, "body & more\n\nlgtm\n\n---\n0..11\tPR #3: Fix <parser>\n13..17\tComment by @alice\n", buf.String())
}

func TestRender_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Render(&buf, sampleDocument(), Format("html")))
}
