package tui

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

func clampString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))

	n := 0
	for _, r := range s {
		if n >= maxLen {
			break
		}
		b.WriteRune(r)
		n++
	}
	return b.String() + "…"
}

func summaryLine(rows []formRow) string {
	var done, failed, cancelled int
	for _, r := range rows {
		switch r.state {
		case stateDone:
			done++
		case stateFailed:
			failed++
		case stateCancelled:
			cancelled++
		}
	}
	s := fmt.Sprintf("%d/%d forms finished", done+failed+cancelled, len(rows))
	if failed > 0 {
		s += fmt.Sprintf(", %d failed", failed)
	}
	if cancelled > 0 {
		s += fmt.Sprintf(", %d cancelled", cancelled)
	}
	return s
}
