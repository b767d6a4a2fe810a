// Package extractors turns fetched court documents into normalised text.
package extractors

import (
	"errors"
	"strings"

	"github.com/code-sleuth/caselaw-go/internal/manager/interfaces"
	"github.com/code-sleuth/caselaw-go/internal/manager/models"
	"github.com/code-sleuth/caselaw-go/pkg/util"

	"github.com/rs/zerolog"
)

// Extraction paths, recorded in decision metadata.
const (
	methodHTMLMain    = "html_main"
	methodHTMLVisible = "html_visible"
	methodPDFFast     = "pdf_fast"
	methodPDFThorough = "pdf_thorough"
	methodPDFNone     = "pdf_none"
	methodPlain       = "plain"
)

var (
	ErrEmptyText          = errors.New("document yielded no text")
	ErrUnsupportedContent = errors.New("unsupported content type")
)

// Extractor dispatches on content type. It is safe for concurrent use.
type Extractor struct {
	html   *htmlExtractor
	logger zerolog.Logger
}

var _ interfaces.Extractor = (*Extractor)(nil)

func NewExtractor() *Extractor {
	return &Extractor{
		html:   newHTMLExtractor(),
		logger: util.NewLogger(util.LevelFromEnv()),
	}
}

// Extract returns the title and normalised text of content. Responses whose
// URL path ends in .pdf are read as PDF unless the body is HTML. PDFs that cannot
// be read produce empty text rather than an error; callers apply their own
// minimum-length policy.
func (e *Extractor) Extract(content []byte, contentType, url string) (*models.Extracted, error) {
	ct := strings.ToLower(contentType)

	switch {
	case ReadAsPDF(ct, content, url):
		text, method := extractPDF(content)
		e.logger.Debug().Str("url", url).Str("method", method).Int("chars", len(text)).Msg("Extracted PDF")
		return &models.Extracted{Text: text, Method: method}, nil
	case isHTML(ct, content):
		title, text, method := e.html.extract(content, contentType)
		e.logger.Debug().Str("url", url).Str("method", method).Int("chars", len(text)).Msg("Extracted HTML")
		return &models.Extracted{Title: title, Text: text, Method: method}, nil
	case strings.HasPrefix(ct, "text/plain"):
		return &models.Extracted{Text: NormalizeText(string(toUTF8(content, contentType))), Method: methodPlain}, nil
	default:
		e.logger.Warn().Str("url", url).Str("content_type", contentType).Msg("Unsupported content type")
		return nil, ErrUnsupportedContent
	}
}

// ReadAsPDF reports whether a response is extracted as PDF: by header, magic
// bytes, or a .pdf URL path whose body is not HTML.
func ReadAsPDF(contentType string, body []byte, rawURL string) bool {
	ct := strings.ToLower(contentType)
	return IsPDF(ct, body) || (HasPDFPath(rawURL) && !isHTML(ct, body))
}

func isHTML(contentType string, body []byte) bool {
	if strings.Contains(contentType, "html") {
		return true
	}
	if contentType != "" && !strings.HasPrefix(contentType, "application/octet-stream") {
		return false
	}
	head := strings.ToLower(string(body[:min(len(body), 512)]))
	return strings.Contains(head, "<html") || strings.Contains(head, "<!doctype html")
}
