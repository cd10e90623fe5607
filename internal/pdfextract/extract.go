package pdfextract

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Result is the plain text pulled out of one PDF source.
type Result struct {
	Text      string
	PageCount int
}

// FromFile extracts the plain text of a PDF file.
func FromFile(path string) (*Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	return extract(file, info.Size())
}

// FromReader extracts the plain text of a PDF read from r. Non-seekable
// readers are buffered in memory.
func FromReader(r io.Reader) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return extract(bytes.NewReader(data), int64(len(data)))
}

func extract(r io.ReaderAt, size int64) (*Result, error) {
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	var text strings.Builder
	pages := reader.NumPage()
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		// A page that cannot be decoded is skipped, not fatal: scanned
		// pages without a text layer are common in clinical PDFs.
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text.WriteString(content)
		text.WriteString("\n")
	}

	return &Result{Text: text.String(), PageCount: pages}, nil
}

// TitleFromPath derives a document title from a PDF file name.
func TitleFromPath(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	return strings.TrimSpace(name)
}
