package report

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Fallback is the narrative used whenever the narration service fails.
const Fallback = "This vulnerability analysis failed harder than Penny's cooking! Bazinga! 🔥"

const fallbackMarker = "failed harder than Penny's cooking"

// TruncationMarker is appended to narratives cut to the delivery limit.
const TruncationMarker = "\n... (truncated)"

// IsFallback reports whether text is (or embeds) the fallback narrative.
func IsFallback(text string) bool {
	return strings.Contains(text, fallbackMarker)
}

// AppendSignoff appends signoff unless text already contains its
// catchphrase, the sign-off without trailing emoji or symbols.
func AppendSignoff(text, signoff string) string {
	signoff = strings.TrimSpace(signoff)
	if signoff == "" || strings.Contains(text, catchphrase(signoff)) {
		return text
	}
	return strings.TrimRight(text, " \t\n") + " " + signoff
}

// catchphrase drops trailing words made only of symbols: "Bazinga! ⚛️"
// becomes "Bazinga!".
func catchphrase(signoff string) string {
	words := strings.Fields(signoff)
	for len(words) > 1 && strings.IndexFunc(words[len(words)-1], isWordRune) < 0 {
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Sanitize prepares text for the chat channel: invalid UTF-8 and NUL
// characters are removed, and text longer than limit runes is cut so that
// the result, marker included, is exactly limit runes. limit <= 0 disables
// truncation. Sanitize(Sanitize(x, n), n) == Sanitize(x, n).
func Sanitize(text string, limit int) string {
	text = strings.ToValidUTF8(text, "")
	text = strings.ReplaceAll(text, "\x00", "")

	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}

	runes := []rune(text)
	marker := utf8.RuneCountInString(TruncationMarker)
	if limit < marker {
		return string(runes[:limit])
	}
	return string(runes[:limit-marker]) + TruncationMarker
}
