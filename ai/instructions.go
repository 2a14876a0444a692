package ai

import (
	"os"
	"strings"
)

// FallbackInstructions is used when neither AGENT_INSTRUCTIONS nor the
// instructions file provide a prompt
const FallbackInstructions = "Você é uma assistente útil, cordial e objetiva. Responda em português do Brasil."

// LoadInstructions resolves the system prompt. An inline value wins, with
// literal "\n" sequences turned into newlines; otherwise the file is read.
func LoadInstructions(inline, path string) string {
	if s := strings.TrimSpace(strings.ReplaceAll(inline, `\n`, "\n")); s != "" {
		return s
	}
	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if s := strings.TrimSpace(string(data)); s != "" {
				return s
			}
		}
	}
	return FallbackInstructions
}
