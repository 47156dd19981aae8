package synth

import (
	"fmt"
	"regexp"
	"strings"

	"WebResearcher/internal/domain"
	"WebResearcher/internal/ports"
)

// DefaultSystemPrompt grounds the answer in the numbered sources.
const DefaultSystemPrompt = `You are a research assistant. Answer the user's question using the numbered sources provided.
Cite sources inline as [n] using their numbers. Prefer facts stated in the sources over prior knowledge,
say so when the sources disagree or do not cover the question, and format the answer in Markdown.`

const followUpPrompt = `Suggest %d short follow-up questions the user might ask next, based on the question and answer below.
Reply with one question per line and nothing else.`

func buildMessages(systemPrompt string, query domain.Query, sources []domain.Source, maxSourceChars int) []ports.ChatMessage {
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = DefaultSystemPrompt
	}
	messages := []ports.ChatMessage{{Role: "system", Content: systemPrompt}}
	for _, turn := range query.Context() {
		messages = append(messages,
			ports.ChatMessage{Role: "user", Content: turn.Query},
			ports.ChatMessage{Role: "assistant", Content: turn.Response},
		)
	}
	messages = append(messages, ports.ChatMessage{Role: "user", Content: userPrompt(query.Text(), sources, maxSourceChars)})
	return messages
}

func userPrompt(question string, sources []domain.Source, maxSourceChars int) string {
	var b strings.Builder
	if len(sources) == 0 {
		b.WriteString("No web sources could be retrieved for this question. Answer from general knowledge and state that no sources were available.\n\n")
	} else {
		b.WriteString("Sources:\n\n")
		for i, src := range sources {
			fmt.Fprintf(&b, "[%d] %s\nURL: %s\n", i+1, sourceTitle(src), src.URL)
			if src.Summary != "" {
				fmt.Fprintf(&b, "Summary: %s\n", src.Summary)
			}
			if body := sourceBody(src, maxSourceChars); body != "" {
				fmt.Fprintf(&b, "Content:\n%s\n", body)
			}
			b.WriteString("\n")
		}
	}
	fmt.Fprintf(&b, "Question: %s", question)
	return b.String()
}

func followUpMessages(question, answer string, count int) []ports.ChatMessage {
	return []ports.ChatMessage{
		{Role: "system", Content: fmt.Sprintf(followUpPrompt, count)},
		{Role: "user", Content: fmt.Sprintf("Question: %s\n\nAnswer:\n%s", question, answer)},
	}
}

func sourceTitle(src domain.Source) string {
	if t := strings.TrimSpace(src.Title); t != "" {
		return t
	}
	return src.URL
}

func sourceBody(src domain.Source, limit int) string {
	body := strings.TrimSpace(src.Markdown)
	if body == "" {
		body = strings.TrimSpace(src.ExtractedText)
	}
	if limit > 0 {
		if runes := []rune(body); len(runes) > limit {
			body = string(runes[:limit]) + "..."
		}
	}
	return body
}

var listMarker = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)

// parseFollowUps keeps at most count distinct non-empty lines, stripping list
// markers and numbering.
func parseFollowUps(raw string, count int) []string {
	out := make([]string, 0, count)
	seen := map[string]struct{}{}
	for _, line := range strings.Split(raw, "\n") {
		if len(out) >= count {
			break
		}
		q := listMarker.ReplaceAllString(line, "")
		q = strings.TrimSpace(strings.Trim(strings.TrimSpace(q), "\""))
		if q == "" {
			continue
		}
		key := strings.ToLower(q)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q)
	}
	return out
}
