package document

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/encoding/charmap"
)

// Unsupported is returned as text, not as an error, for extensions we cannot
// read.
const Unsupported = "Unsupported document format or empty content."

const maxPDFPages = 5

// Extractor pulls plain text out of uploaded documents. PDFs are staged in
// tempDir and removed afterwards.
type Extractor struct {
	tempDir string
}

func NewExtractor(tempDir string) *Extractor {
	return &Extractor{tempDir: tempDir}
}

// Extract dispatches on the extension of filename.
func (e *Extractor) Extract(filename string, data []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt":
		return DecodeText(data), nil
	case ".pdf":
		return e.extractPDF(data)
	default:
		return Unsupported, nil
	}
}

// DecodeText reads data as UTF-8, falling back to Latin-1 when it is not
// valid UTF-8. It never fails.
func DecodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "")
	}
	return string(out)
}

func (e *Extractor) extractPDF(data []byte) (string, error) {
	if e.tempDir != "" {
		if err := os.MkdirAll(e.tempDir, 0755); err != nil {
			return "", fmt.Errorf("failed to create upload directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(e.tempDir, "upload-*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	path := tmp.Name()
	defer func() { _ = os.Remove(path) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}

	return readPDF(path)
}

func readPDF(path string) (text string, err error) {
	// The pdf package panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("read pdf: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer func() { _ = f.Close() }()

	pages := min(r.NumPage(), maxPDFPages)
	if pages == 0 {
		return "", errors.New("read pdf: document has no pages")
	}

	texts := make([]string, 0, pages)
	for i := 1; i <= pages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			texts = append(texts, "")
			continue
		}
		t, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("read pdf page %d: %w", i, err)
		}
		texts = append(texts, t)
	}

	return strings.Join(texts, "\n"), nil
}
