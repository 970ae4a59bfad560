package adapter

import "strings"

// textLimit stays under Telegram's 4096-character message limit.
const textLimit = 4000

func isHTML(parseMode string) bool { return strings.EqualFold(parseMode, "HTML") }

// splitText cuts s into parts of at most limit runes. A cut prefers the
// last newline in the second two thirds of the window and, for HTML, never
// lands inside a tag. Newlines at the cut are dropped.
func splitText(s string, limit int, html bool) []string {
	if limit <= 0 {
		limit = textLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	var parts []string
	for len(rs) > 0 {
		n := len(rs)
		if n > limit {
			n = cutPoint(rs[:limit], limit, html)
		}
		parts = append(parts, strings.TrimRight(string(rs[:n]), "\n"))
		rs = rs[n:]
		for len(rs) > 0 && rs[0] == '\n' {
			rs = rs[1:]
		}
	}
	return parts
}

// cutPoint picks where to end a part within window.
func cutPoint(window []rune, limit int, html bool) int {
	n := len(window)
	for i := n - 1; i >= limit/3; i-- {
		if window[i] == '\n' {
			n = i + 1
			break
		}
	}
	if html {
		if open := lastIndex(window[:n], '<'); open > 1 && open > lastIndex(window[:n], '>') {
			n = open
		}
	}
	return n
}

func lastIndex(rs []rune, r rune) int {
	for i := len(rs) - 1; i >= 0; i-- {
		if rs[i] == r {
			return i
		}
	}
	return -1
}
