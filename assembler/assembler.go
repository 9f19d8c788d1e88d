package assembler

import (
	"errors"
	"fmt"
	"strings"

	"documentiq-backend/models"
)

// DefaultMaxContextSize is the character budget for assembled prompt context
const DefaultMaxContextSize = 16000

var ErrInvalidMaxContextSize = errors.New("max context size must be positive")

// Assembler turns ranked retrieval results into the bounded context block
// that is placed in front of the LLM prompt. It is stateless and safe to
// share across goroutines.
type Assembler struct {
	maxContextSize int
}

// New creates an Assembler with the given character budget
func New(maxContextSize int) (*Assembler, error) {
	if maxContextSize <= 0 {
		return nil, ErrInvalidMaxContextSize
	}
	return &Assembler{maxContextSize: maxContextSize}, nil
}

// MaxContextSize returns the configured character budget
func (a *Assembler) MaxContextSize() int {
	return a.maxContextSize
}

// Assemble greedily includes chunks in rank order until the budget is
// spent. A chunk that does not fit is skipped whole rather than truncated
// mid-sentence, and lower-ranked chunks are still considered so leftover
// budget is not wasted. The returned sources list each distinct source once,
// in order of first inclusion. Empty input yields an empty context and no
// sources, which callers treat as "answer not found in documents".
func (a *Assembler) Assemble(chunks []models.RetrievedChunk) (string, []string) {
	var context strings.Builder
	var sources []string
	seen := make(map[string]bool)

	for _, chunk := range chunks {
		label := chunk.SourceLabel()
		block := fmt.Sprintf("[Source: %s]\n%s", label, chunk.Text)

		separator := ""
		if context.Len() > 0 {
			separator = "\n\n"
		}
		if context.Len()+len(separator)+len(block) > a.maxContextSize {
			continue
		}

		context.WriteString(separator)
		context.WriteString(block)

		if !seen[label] {
			seen[label] = true
			sources = append(sources, label)
		}
	}

	return context.String(), sources
}
