package ocr

import "strings"

// CleanText trims every recognized line and drops the empty ones.
func CleanText(raw string) (string, error) {
	var lines []string
	for _, l := range strings.Split(raw, "\n") {
		if s := strings.TrimSpace(l); s != "" {
			lines = append(lines, s)
		}
	}
	if len(lines) == 0 {
		return "", ErrNoText
	}
	return strings.Join(lines, "\n"), nil
}
