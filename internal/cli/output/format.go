package output

import (
	"fmt"
	"strings"
)

// FormatHeader renders a markdown header at the given level.
func FormatHeader(level int, text string) string {
	if level < 1 {
		level = 1
	}
	if level > 6 {
		level = 6
	}
	return strings.Repeat("#", level) + " " + text
}

// FormatKeyValue renders a markdown list entry with a bold key.
func FormatKeyValue(key, value string) string {
	return fmt.Sprintf("- **%s**: %s", key, value)
}

// FormatCodeBlock renders a fenced code block with an optional language tag.
func FormatCodeBlock(lang, code string) string {
	return fmt.Sprintf("```%s\n%s\n```", lang, strings.TrimRight(code, "\n"))
}
