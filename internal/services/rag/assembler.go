package rag

import (
	"fmt"
	"math"
	"strings"

	"github.com/contextq/contextq/internal/common"
	"github.com/contextq/contextq/internal/interfaces"
	"github.com/contextq/contextq/internal/models"
)

const ragSystemPrompt = `You are a document Q&A assistant. Answer the user's question using only the provided context passages.

Rules:
- Base your answer strictly on the context. If the context does not contain the answer, say so plainly.
- Cite passages as [Source N] where relevant.
- Be concise and direct.`

const generalSystemPrompt = `You are a helpful assistant for a document Q&A application. The user has not asked about their documents; respond conversationally. If they ask what you can do, explain that they can upload documents and ask questions about them.`

// contextSeparator joins context blocks
const contextSeparator = "\n\n---\n\n"

// Assembler turns filtered chunks into the generation prompt and the
// client-facing source list
type Assembler struct {
	config *common.RAGConfig
}

// NewAssembler creates a context assembler
func NewAssembler(config *common.RAGConfig) *Assembler {
	return &Assembler{config: config}
}

// BuildContext formats chunks as numbered source blocks. Numbering follows
// the input order, which the caller has already ranked by relevance.
func (a *Assembler) BuildContext(chunks []models.RetrievedChunk) string {
	blocks := make([]string, 0, len(chunks))
	for i, rc := range chunks {
		header := fmt.Sprintf("[Source %d: %s]", i+1, rc.Chunk.Filename)
		if rc.Chunk.PageNumber > 0 {
			header = fmt.Sprintf("[Source %d: %s, page %d]", i+1, rc.Chunk.Filename, rc.Chunk.PageNumber)
		}
		blocks = append(blocks, header+"\n"+rc.Chunk.Text)
	}
	return strings.Join(blocks, contextSeparator)
}

// BuildSources converts chunks to client-facing citations: passages
// truncated to the configured limit, scores rounded to 4 decimal places
func (a *Assembler) BuildSources(chunks []models.RetrievedChunk) []models.Source {
	limit := a.config.SourceTextLimit
	if limit <= 0 {
		limit = 500
	}

	sources := make([]models.Source, 0, len(chunks))
	for _, rc := range chunks {
		text := clipRunes(rc.Chunk.Text, limit, "...")
		sources = append(sources, models.Source{
			DocumentID: rc.Chunk.DocumentID,
			Filename:   rc.Chunk.Filename,
			PageNumber: rc.Chunk.PageNumber,
			ChunkIndex: rc.Chunk.ChunkIndex,
			Text:       text,
			Score:      math.Round(rc.Score*10000) / 10000,
		})
	}
	return sources
}

// BuildRAGPrompt constructs the grounded generation request. History is
// folded into the user message as a labeled section so the context and the
// question stay adjacent.
func (a *Assembler) BuildRAGPrompt(question, contextText string, history []interfaces.Message) (string, []interfaces.Message) {
	var prompt strings.Builder

	if historyText := formatHistory(history); historyText != "" {
		prompt.WriteString("CONVERSATION HISTORY:\n")
		prompt.WriteString(historyText)
		prompt.WriteString("\n\n")
	}

	prompt.WriteString("CONTEXT:\n")
	prompt.WriteString(contextText)
	prompt.WriteString("\n\nQUESTION: ")
	prompt.WriteString(question)

	return ragSystemPrompt, []interfaces.Message{
		{Role: "user", Content: prompt.String()},
	}
}

// BuildGeneralPrompt constructs the request for questions that skip retrieval
func (a *Assembler) BuildGeneralPrompt(question string, history []interfaces.Message) (string, []interfaces.Message) {
	var prompt strings.Builder

	if historyText := formatHistory(history); historyText != "" {
		prompt.WriteString("CONVERSATION HISTORY:\n")
		prompt.WriteString(historyText)
		prompt.WriteString("\n\n")
	}

	prompt.WriteString(question)

	return generalSystemPrompt, []interfaces.Message{
		{Role: "user", Content: prompt.String()},
	}
}

// clipRunes truncates text to limit characters, appending the marker when
// anything was cut. The limit counts runes, not bytes, so multi-byte text is
// never split mid-character.
func clipRunes(text string, limit int, marker string) string {
	if len(text) <= limit {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + marker
}

// formatHistory renders prior turns as labeled lines
func formatHistory(history []interfaces.Message) string {
	if len(history) == 0 {
		return ""
	}

	lines := make([]string, 0, len(history))
	for _, msg := range history {
		var label string
		switch msg.Role {
		case "user":
			label = "User"
		case "assistant":
			label = "Assistant"
		case "summary":
			label = "Summary of earlier conversation"
		default:
			label = msg.Role
		}
		lines = append(lines, label+": "+msg.Content)
	}
	return strings.Join(lines, "\n")
}
