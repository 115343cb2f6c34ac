package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectiveMode(t *testing.T) {
	tests := []struct {
		name string
		mode Mode
		want Mode
	}{
		{name: "explicit text", mode: ModeText, want: ModeText},
		{name: "explicit markdown", mode: ModeMarkdown, want: ModeMarkdown},
		{name: "explicit json", mode: ModeJSON, want: ModeJSON},
		// Buffers are not TTYs, so auto resolves to markdown
		{name: "auto on buffer", mode: ModeAuto, want: ModeMarkdown},
		{name: "empty defaults to auto", mode: "", want: ModeMarkdown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRenderer(&bytes.Buffer{}, &bytes.Buffer{}, tt.mode)
			assert.Equal(t, tt.want, r.EffectiveMode())
		})
	}
}

func TestValidMode(t *testing.T) {
	for _, valid := range []string{"auto", "text", "markdown", "json"} {
		assert.True(t, ValidMode(valid), valid)
	}
	assert.False(t, ValidMode("yaml"))
	assert.False(t, ValidMode(""))
}

func TestRenderer_JSON(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out, &bytes.Buffer{}, ModeJSON)

	err := r.JSON(ListOutput{
		Steps:   []StepInfo{{Name: "frontend", Dir: "frontend", Entrypoint: "./build.sh"}},
		Summary: ListSummary{Steps: 1},
	})
	require.NoError(t, err)

	var decoded ListOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	require.Len(t, decoded.Steps, 1)
	assert.Equal(t, "frontend", decoded.Steps[0].Name)
	assert.Equal(t, 1, decoded.Summary.Steps)
}

func TestRenderer_StatusLine(t *testing.T) {
	tests := []struct {
		status string
		glyph  string
	}{
		{status: "success", glyph: "✓"},
		{status: "failed", glyph: "✗"},
		{status: "skipped", glyph: "-"},
		{status: "running", glyph: "→"},
		{status: "pending", glyph: "·"},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			var out bytes.Buffer
			r := NewRenderer(&out, &bytes.Buffer{}, ModeText)
			r.StatusLine("frontend", tt.status, "")

			line := out.String()
			assert.Contains(t, line, tt.glyph)
			assert.Contains(t, line, "frontend")
		})
	}
}

func TestRenderer_StatusLineDetail(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out, &bytes.Buffer{}, ModeText)
	r.StatusLine("backend", "success", "1.2s")

	assert.Contains(t, out.String(), "(1.2s)")
}

func TestRenderer_WarningGoesToErrStream(t *testing.T) {
	var out, errOut bytes.Buffer
	r := NewRenderer(&out, &errOut, ModeText)

	r.Warning("no steps configured")

	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "no steps configured")
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "# Pipeline", FormatHeader(1, "Pipeline"))
	assert.Equal(t, "## Steps", FormatHeader(2, "Steps"))
	assert.Equal(t, "###### deep", FormatHeader(9, "deep"))
	assert.Equal(t, "# clamped", FormatHeader(0, "clamped"))

	assert.Equal(t, "- **Target**: bin/server", FormatKeyValue("Target", "bin/server"))

	block := FormatCodeBlock("yaml", "steps:\n  - name: frontend\n")
	assert.True(t, strings.HasPrefix(block, "```yaml\n"))
	assert.True(t, strings.HasSuffix(block, "\n```"))
}
