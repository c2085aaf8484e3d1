package text

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"docindex/internal/upload"
)

var ErrInvalidSplitter = errors.New("invalid splitter configuration")

// separators are tried in order: paragraphs, lines, words, characters.
var separators = []string{"\n\n", "\n", " ", ""}

// Splitter cuts documents into chunks of at most ChunkSize characters.
// Consecutive chunks share up to ChunkOverlap characters so context survives
// chunk boundaries.
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int
}

func NewSplitter(chunkSize, chunkOverlap int) (*Splitter, error) {
	if chunkSize < 1 {
		return nil, fmt.Errorf("%w: chunk size %d", ErrInvalidSplitter, chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap %d with chunk size %d", ErrInvalidSplitter, chunkOverlap, chunkSize)
	}
	return &Splitter{ChunkSize: chunkSize, ChunkOverlap: chunkOverlap}, nil
}

// Split splits every document and copies its metadata onto each chunk.
func (s *Splitter) Split(docs []upload.Chunk) []upload.Chunk {
	var chunks []upload.Chunk
	for _, doc := range docs {
		for _, piece := range s.SplitText(doc.Text) {
			chunks = append(chunks, upload.Chunk{Text: piece, Metadata: doc.Metadata})
		}
	}
	return chunks
}

func (s *Splitter) SplitText(text string) []string {
	return s.split(text, separators)
}

func (s *Splitter) split(text string, seps []string) []string {
	sep := ""
	var rest []string
	for i, c := range seps {
		if c == "" {
			break
		}
		if strings.Contains(text, c) {
			sep = c
			rest = seps[i+1:]
			break
		}
	}

	var chunks, fitting []string
	for _, part := range strings.Split(text, sep) {
		if part == "" {
			continue
		}
		if utf8.RuneCountInString(part) <= s.ChunkSize {
			fitting = append(fitting, part)
			continue
		}

		if len(fitting) > 0 {
			chunks = append(chunks, s.merge(fitting, sep)...)
			fitting = nil
		}
		chunks = append(chunks, s.split(part, rest)...)
	}
	if len(fitting) > 0 {
		chunks = append(chunks, s.merge(fitting, sep)...)
	}
	return chunks
}

// merge joins parts greedily up to ChunkSize. After each emitted chunk the
// window keeps its trailing parts, up to ChunkOverlap characters, as the
// start of the next one.
func (s *Splitter) merge(parts []string, sep string) []string {
	sepLen := utf8.RuneCountInString(sep)

	var chunks, window []string
	total := 0
	for _, part := range parts {
		n := utf8.RuneCountInString(part)
		joined := total + n
		if len(window) > 0 {
			joined += sepLen
		}

		if joined > s.ChunkSize && len(window) > 0 {
			chunks = appendChunk(chunks, strings.Join(window, sep))
			for len(window) > 0 && (total > s.ChunkOverlap || total+sepLen+n > s.ChunkSize) {
				total -= utf8.RuneCountInString(window[0])
				if len(window) > 1 {
					total -= sepLen
				}
				window = window[1:]
			}
		}

		if len(window) > 0 {
			total += sepLen
		}
		window = append(window, part)
		total += n
	}
	if len(window) > 0 {
		chunks = appendChunk(chunks, strings.Join(window, sep))
	}
	return chunks
}

func appendChunk(chunks []string, chunk string) []string {
	chunk = strings.TrimSpace(chunk)
	if chunk == "" {
		return chunks
	}
	return append(chunks, chunk)
}
