package ai

import "strings"

// Turn is one prior exchange handed to the model
type Turn struct {
	Role    string
	Content string
}

func validRole(role string) bool {
	switch role {
	case "user", "assistant", "system":
		return true
	}
	return false
}

// TrimHistory drops turns with an unknown role or blank content and keeps
// the last limit of what remains, in order. Roles are trimmed. A negative
// limit keeps everything.
func TrimHistory(history []Turn, limit int) []Turn {
	kept := make([]Turn, 0, len(history))
	for _, t := range history {
		t.Role = strings.TrimSpace(t.Role)
		if !validRole(t.Role) || strings.TrimSpace(t.Content) == "" {
			continue
		}
		kept = append(kept, t)
	}
	if limit >= 0 && len(kept) > limit {
		kept = kept[len(kept)-limit:]
	}
	return kept
}
