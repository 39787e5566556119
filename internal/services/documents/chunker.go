package documents

import (
	"regexp"
	"strings"

	"github.com/contextq/contextq/internal/common"
)

// breakWindow is how far back from the target end the chunker searches for
// a natural boundary
const breakWindow = 200

// breakPatterns are tried in priority order: paragraph break, line break,
// sentence end, clause break, any space
var breakPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\n\n`),
	regexp.MustCompile(`\n`),
	regexp.MustCompile(`\. `),
	regexp.MustCompile(`[!?] `),
	regexp.MustCompile(`[,;] `),
	regexp.MustCompile(` `),
}

// TextChunk is one window of document text with position metadata
type TextChunk struct {
	Text       string
	ChunkIndex int
	StartChar  int
	EndChar    int
	PageNumber int // Estimated from position, 0 when page count is unknown
}

// Chunker splits text into overlapping character windows, preferring to cut
// at natural boundaries near the window end
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker from configuration
func NewChunker(config *common.ChunkingConfig) *Chunker {
	chunkSize := config.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 1500
	}
	chunkOverlap := config.ChunkOverlap
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 8
	}

	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// ChunkText splits text into overlapping chunks. pageCount > 0 enables page
// number estimation from character position.
func (c *Chunker) ChunkText(text string, pageCount int) []TextChunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var chunks []TextChunk
	textLength := len(text)
	start := 0
	chunkIndex := 0

	for start < textLength {
		end := start + c.chunkSize
		if end > textLength {
			end = textLength
		}

		// Mid-text windows cut at a natural boundary when one is near
		if end < textLength {
			end = c.findBreakPoint(text, start, end)
		}

		chunkText := strings.TrimSpace(text[start:end])
		if chunkText != "" {
			pageNumber := 0
			if pageCount > 0 {
				positionRatio := float64(start+end) / 2 / float64(textLength)
				pageNumber = int(positionRatio*float64(pageCount)) + 1
				if pageNumber < 1 {
					pageNumber = 1
				}
				if pageNumber > pageCount {
					pageNumber = pageCount
				}
			}

			chunks = append(chunks, TextChunk{
				Text:       chunkText,
				ChunkIndex: chunkIndex,
				StartChar:  start,
				EndChar:    end,
				PageNumber: pageNumber,
			})
			chunkIndex++
		}

		next := end - c.chunkOverlap
		// Overlap must never stall the scan
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// findBreakPoint looks back from the target end for a natural boundary and
// returns the position just after it. Falls back to the raw end when the
// window has no boundary at all.
func (c *Chunker) findBreakPoint(text string, start, end int) int {
	searchStart := end - breakWindow
	if searchStart < start {
		searchStart = start
	}
	searchText := text[searchStart:end]

	for _, pattern := range breakPatterns {
		matches := pattern.FindAllStringIndex(searchText, -1)
		if len(matches) > 0 {
			last := matches[len(matches)-1]
			return searchStart + last[1]
		}
	}

	return end
}

// EstimateChunkCount predicts how many chunks a text of the given length
// produces, for pre-upload validation
func (c *Chunker) EstimateChunkCount(textLength int) int {
	if textLength <= 0 {
		return 0
	}
	if textLength <= c.chunkSize {
		return 1
	}

	effectiveStep := c.chunkSize - c.chunkOverlap
	if effectiveStep <= 0 {
		effectiveStep = c.chunkSize / 2
	}

	count := (textLength-c.chunkOverlap)/effectiveStep + 1
	if count < 1 {
		count = 1
	}
	return count
}
