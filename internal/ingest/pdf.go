package ingest

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// SentencesPerChunk is how many sentences of plain text go into one chunk
const SentencesPerChunk = 3

// LoadPDF extracts the text of a PDF and chunks it by sentence.
func LoadPDF(path string) ([]Chunk, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("extracting text from %s: %w", path, err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return nil, fmt.Errorf("reading text of %s: %w", path, err)
	}
	return ChunkText(path, buf.String(), SentencesPerChunk), nil
}

// ChunkText splits unstructured text into chunks of up to perChunk sentences.
func ChunkText(origin, text string, perChunk int) []Chunk {
	if perChunk <= 0 {
		perChunk = SentencesPerChunk
	}
	name := strings.TrimSuffix(filepath.Base(origin), filepath.Ext(origin))

	var chunks []Chunk
	var buffer []string

	flush := func() {
		if len(buffer) == 0 {
			return
		}
		content := strings.Join(buffer, ". ") + "."
		buffer = buffer[:0]
		chunks = append(chunks, Chunk{
			Origin:    origin,
			Name:      name,
			Content:   content,
			ChunkHash: Hash(origin, content),
			Index:     len(chunks),
		})
	}

	for _, s := range strings.Split(text, ".") {
		s = strings.Join(strings.Fields(s), " ")
		if s == "" {
			continue
		}
		buffer = append(buffer, s)
		if len(buffer) >= perChunk {
			flush()
		}
	}
	flush()

	return chunks
}
