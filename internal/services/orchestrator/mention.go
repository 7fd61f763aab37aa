package orchestrator

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/unifiedui/multiagent-service/internal/domain/models"
)

const mentionMarker = '@'

// Mention is an explicit "@Name" target in user input.
type Mention struct {
	Name  string
	Agent *models.Agent
}

// FindMention returns the first mention in text, or nil when there is none.
// A mention starts at "@" at the beginning of the text or after whitespace
// and names an agent exactly: the name must be followed by whitespace or the
// end of the text. The longest such name wins; an unknown mention carries the
// token up to the next whitespace and a nil Agent.
func FindMention(text string, agents []*models.Agent) *Mention {
	prev := ' '
	for i, r := range text {
		if r == mentionMarker && unicode.IsSpace(prev) {
			if m := mentionAt(text[i+utf8.RuneLen(r):], agents); m != nil {
				return m
			}
		}
		prev = r
	}
	return nil
}

func mentionAt(rest string, agents []*models.Agent) *Mention {
	var best *models.Agent
	for _, a := range agents {
		if a.Name == "" || !strings.HasPrefix(rest, a.Name) || !endsWord(rest[len(a.Name):]) {
			continue
		}
		if best == nil || len(a.Name) > len(best.Name) {
			best = a
		}
	}
	if best != nil {
		return &Mention{Name: best.Name, Agent: best}
	}

	token := rest
	if idx := strings.IndexFunc(rest, unicode.IsSpace); idx >= 0 {
		token = rest[:idx]
	}
	if token == "" {
		return nil
	}
	return &Mention{Name: token}
}

func endsWord(after string) bool {
	if after == "" {
		return true
	}
	r, _ := utf8.DecodeRuneInString(after)
	return unicode.IsSpace(r)
}
