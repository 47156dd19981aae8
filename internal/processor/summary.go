package processor

import (
	"strings"
	"unicode"

	"WebResearcher/internal/domain"
)

const (
	extractiveSentences = 3
	extractiveMaxRunes  = 400
)

// ExtractiveSummary builds a summary from the leading sentences of the
// source's description or text. It is used when no model summary is
// available.
func ExtractiveSummary(src domain.Source) string {
	for _, candidate := range []string{src.Description, src.ExtractedText, src.Markdown} {
		text := strings.Join(strings.Fields(stripMarkdown(candidate)), " ")
		if text == "" {
			continue
		}
		return clip(leadingSentences(text, extractiveSentences), extractiveMaxRunes)
	}
	return src.Title
}

func leadingSentences(text string, n int) string {
	runes := []rune(text)
	count := 0
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		count++
		if count == n {
			return string(runes[:i+1])
		}
	}
	return text
}

func stripMarkdown(s string) string {
	return strings.NewReplacer("#", "", "**", "", "`", "", "*", "").Replace(s)
}

func clip(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	cut := string(runes[:limit])
	if i := strings.LastIndexByte(cut, ' '); i > limit/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut) + "..."
}
