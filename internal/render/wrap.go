package render

import "strings"

// WrapText breaks text into lines no wider than width, preferring
// whitespace boundaries and splitting overlong words hard if they
// alone exceed width. Width <= 0 returns the text unwrapped.
func WrapText(text string, width int) []string {
	if width <= 0 {
		return strings.Split(text, "\n")
	}

	var out []string
	for _, paragraph := range strings.Split(text, "\n") {
		if paragraph == "" {
			out = append(out, "")
			continue
		}
		out = append(out, wrapParagraph(paragraph, width)...)
	}
	return out
}

func wrapParagraph(paragraph string, width int) []string {
	words := strings.Fields(paragraph)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	var line strings.Builder
	for _, word := range words {
		for len(word) > width {
			if line.Len() > 0 {
				lines = append(lines, line.String())
				line.Reset()
			}
			lines = append(lines, word[:width])
			word = word[width:]
		}

		candidate := word
		if line.Len() > 0 {
			candidate = line.String() + " " + word
		}
		if len(candidate) > width {
			lines = append(lines, line.String())
			line.Reset()
			line.WriteString(word)
			continue
		}
		line.Reset()
		line.WriteString(candidate)
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return lines
}

// LayoutText wraps text at width and produces a CachedLayout whose
// rows each hold a single text cell.
func LayoutText(text string, width int) CachedLayout {
	wrapped := WrapText(text, width)
	rows := make([]Row, len(wrapped))
	for i, line := range wrapped {
		rows[i] = Row{{Text: line}}
	}
	return CachedLayout{WrappedLines: wrapped, Rows: rows}
}
