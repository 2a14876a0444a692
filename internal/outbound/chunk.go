package outbound

import "unicode"

// Split breaks text into the fewest chunks of at most limit runes. Each cut
// is made at the last line break inside the window, else the last
// whitespace, else exactly at the limit. The separator at a line-break or
// whitespace cut is dropped. limit <= 0 means no limit.
func Split(text string, limit int) []string {
	return SplitWidth(text, limit, runeWidth)
}

// SplitWidth is Split with limit measured in width units per rune
func SplitWidth(text string, limit int, width func(rune) int) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if limit <= 0 || fit(runes, limit, width) == len(runes) {
		return []string{text}
	}

	var chunks []string
	for {
		n := fit(runes, limit, width)
		if n >= len(runes) {
			break
		}
		cut := lastIndex(runes, n, func(r rune) bool { return r == '\n' })
		if cut < 0 {
			cut = lastIndex(runes, n, unicode.IsSpace)
		}
		if cut < 0 {
			chunks = append(chunks, string(runes[:n]))
			runes = runes[n:]
			continue
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut+1:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

// UTF16Width counts a rune in UTF-16 code units, which is how Twilio
// measures a body
func UTF16Width(r rune) int {
	if r >= 0x10000 {
		return 2
	}
	return 1
}

func runeWidth(rune) int { return 1 }

// fit returns how many leading runes fit in limit width units, at least one
// so a rune wider than the limit still moves the split forward
func fit(runes []rune, limit int, width func(rune) int) int {
	used := 0
	for i, r := range runes {
		used += width(r)
		if used > limit {
			if i == 0 {
				return 1
			}
			return i
		}
	}
	return len(runes)
}

// lastIndex finds the last i in [1, n] with match(runes[i]); cutting there
// leaves a non-empty chunk of at most n runes
func lastIndex(runes []rune, n int, match func(rune) bool) int {
	for i := n; i >= 1; i-- {
		if i < len(runes) && match(runes[i]) {
			return i
		}
	}
	return -1
}
