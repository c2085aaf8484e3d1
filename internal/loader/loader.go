// Package loader reads a directory of source documents into page-level
// chunks of raw text.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"docindex/internal/upload"
)

var ErrNoDocuments = errors.New("no documents found")

const (
	MetaSource = "source"
	MetaPage   = "page"
)

type DirLoader struct {
	Dir     string
	Pattern string
}

func NewDirLoader(dir, pattern string) *DirLoader {
	if pattern == "" {
		pattern = "*.pdf"
	}
	return &DirLoader{Dir: dir, Pattern: pattern}
}

// Load returns one document per PDF page and one per text file, in lexical
// file order. PDF pages carry a zero-based page number.
func (l *DirLoader) Load(ctx context.Context) ([]upload.Chunk, error) {
	paths, err := filepath.Glob(filepath.Join(l.Dir, l.Pattern))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", l.Pattern, err)
	}
	sort.Strings(paths)

	var docs []upload.Chunk
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			continue
		}

		var fileDocs []upload.Chunk
		if strings.EqualFold(filepath.Ext(path), ".pdf") {
			fileDocs, err = loadPDF(path)
		} else {
			fileDocs, err = loadText(path)
		}
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		slog.DebugContext(ctx, "document loaded", "path", path, "pages", len(fileDocs))
		docs = append(docs, fileDocs...)
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("%w in %s matching %s", ErrNoDocuments, l.Dir, l.Pattern)
	}
	return docs, nil
}

func loadPDF(path string) ([]upload.Chunk, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var docs []upload.Chunk
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			slog.Warn("skipping unreadable pdf page", "path", path, "page", i, "error", err)
			continue
		}
		text = cleanText(text)
		if text == "" {
			continue
		}
		docs = append(docs, upload.Chunk{
			Text: text,
			Metadata: upload.Metadata{
				MetaSource: upload.String(path),
				MetaPage:   upload.Int(int64(i - 1)),
			},
		})
	}
	return docs, nil
}

func loadText(path string) ([]upload.Chunk, error) {
	b, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- path comes from the configured corpus directory
	if err != nil {
		return nil, err
	}
	text := cleanText(string(b))
	if text == "" {
		return nil, nil
	}
	return []upload.Chunk{{
		Text:     text,
		Metadata: upload.Metadata{MetaSource: upload.String(path)},
	}}, nil
}

// cleanText trims the text and replaces invalid UTF-8, which extracted PDF
// text sometimes contains and which metadata serialization rejects.
func cleanText(text string) string {
	return strings.TrimSpace(strings.ToValidUTF8(text, "\uFFFD"))
}
