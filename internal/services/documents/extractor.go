package documents

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"
)

// Extractor pulls plain text out of uploaded files. PDF extraction goes
// through pdfcpu, which works on files, so content round-trips through a
// temp directory.
type Extractor struct {
	logger  arbor.ILogger
	tempDir string
}

// NewExtractor creates a text extractor
func NewExtractor(logger arbor.ILogger) *Extractor {
	tempDir := filepath.Join(os.TempDir(), "contextq-pdf")
	os.MkdirAll(tempDir, 0755)

	return &Extractor{
		logger:  logger,
		tempDir: tempDir,
	}
}

// ExtractedText is the result of text extraction
type ExtractedText struct {
	Text      string
	PageCount int // 0 for non-paginated formats
}

// Extract returns the text content of an upload based on its content type.
// TXT and Markdown pass through unchanged.
func (e *Extractor) Extract(contentType string, content []byte) (*ExtractedText, error) {
	switch {
	case strings.Contains(contentType, "pdf"):
		return e.extractPDF(content)
	case strings.HasPrefix(contentType, "text/"):
		return &ExtractedText{Text: string(content)}, nil
	default:
		return nil, fmt.Errorf("unsupported content type: %s", contentType)
	}
}

// extractPDF extracts page text with pdfcpu
func (e *Extractor) extractPDF(content []byte) (*ExtractedText, error) {
	tempFile := filepath.Join(e.tempDir, fmt.Sprintf("extract_%s.pdf", uuid.New().String()))
	if err := os.WriteFile(tempFile, content, 0644); err != nil {
		return nil, fmt.Errorf("failed to write temp PDF file: %w", err)
	}
	defer os.Remove(tempFile)

	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadContextFile(tempFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}

	pageCount := pdfCtx.PageCount

	outDir := tempFile + "_pages"
	os.MkdirAll(outDir, 0755)
	defer os.RemoveAll(outDir)

	if err := api.ExtractContentFile(tempFile, outDir, nil, conf); err != nil {
		return nil, fmt.Errorf("failed to extract PDF content: %w", err)
	}

	// Collect per-page content files, then assemble in page order
	pageTexts := make(map[int]string)
	files, _ := os.ReadDir(outDir)
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(outDir, file.Name()))
		if err != nil {
			continue
		}
		var pageNum int
		if _, err := fmt.Sscanf(file.Name(), "Content_page_%d", &pageNum); err == nil {
			pageTexts[pageNum] = string(data)
		} else if _, err := fmt.Sscanf(file.Name(), "page_%d", &pageNum); err == nil {
			pageTexts[pageNum] = string(data)
		}
	}

	var fullText strings.Builder
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		text, ok := pageTexts[pageNum]
		if !ok {
			continue
		}
		if fullText.Len() > 0 {
			fullText.WriteString("\n\n")
		}
		fullText.WriteString(text)
	}

	e.logger.Debug().
		Int("page_count", pageCount).
		Int("text_length", fullText.Len()).
		Msg("PDF text extracted")

	return &ExtractedText{
		Text:      fullText.String(),
		PageCount: pageCount,
	}, nil
}
