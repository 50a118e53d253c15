package util

// Truncate shortens text to at most max runes, appending an ellipsis when
// anything was cut. Slicing happens on rune boundaries so multi-byte text
// never yields invalid UTF-8.
func Truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
