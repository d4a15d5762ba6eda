package layout

// Wrap cuts text into chunks of at most width runes. Words are split where
// the width falls; no whitespace is dropped or added.
func Wrap(text string, width int) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if width <= 0 || len(runes) <= width {
		return []string{text}
	}

	lines := make([]string, 0, (len(runes)+width-1)/width)
	for len(runes) > 0 {
		n := width
		if len(runes) < n {
			n = len(runes)
		}
		lines = append(lines, string(runes[:n]))
		runes = runes[n:]
	}
	return lines
}
