// Package ingest turns markdown memory files into heading-delimited chunks
// with stable hashes, ready to be written to a search backend.
package ingest

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Chunk is one indexable unit of a markdown document
type Chunk struct {
	Origin    string `json:"origin"`  // Absolute path of the document
	Name      string `json:"name"`    // File name without extension
	Heading   string `json:"heading"` // Nearest preceding heading, empty before the first
	Content   string `json:"content"`
	ChunkHash string `json:"chunk_hash"`
	Index     int    `json:"chunk_index"` // Position within the document
}

// Hash returns the stable identifier of content at origin.
func Hash(origin, content string) string {
	sum := sha256.Sum256([]byte(origin + "\x00" + content))
	return hex.EncodeToString(sum[:16])
}

// isHeading reports whether line is an ATX heading ("# Title", "## Title").
func isHeading(line string) (string, bool) {
	if !strings.HasPrefix(line, "#") {
		return "", false
	}
	rest := strings.TrimLeft(line, "#")
	if len(line)-len(rest) > 6 {
		return "", false
	}
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

// ChunkDocument splits content into chunks on markdown headings. Lines inside
// fenced code blocks are never treated as headings. A document without
// headings becomes a single chunk; blank sections are dropped.
func ChunkDocument(origin, content string) []Chunk {
	var chunks []Chunk
	name := strings.TrimSuffix(filepath.Base(origin), filepath.Ext(origin))

	var heading string
	var body strings.Builder
	inFence := false

	flushChunk := func() {
		text := strings.TrimSpace(body.String())
		body.Reset()
		if text == "" {
			return
		}
		chunks = append(chunks, Chunk{
			Origin:    origin,
			Name:      name,
			Heading:   heading,
			Content:   text,
			ChunkHash: Hash(origin, text),
			Index:     len(chunks),
		})
	}

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
		}
		if !inFence {
			if h, ok := isHeading(line); ok {
				flushChunk()
				heading = h
				continue
			}
		}

		if body.Len() > 0 {
			body.WriteString("\n")
		}
		body.WriteString(line)
	}
	flushChunk()

	return chunks
}

// LoadDir walks root and chunks every markdown and PDF file under it. Hidden
// directories are skipped. Origins are absolute paths.
func LoadDir(root string) ([]Chunk, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", root, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return LoadFile(abs)
	}

	var all []Chunk
	err = fs.WalkDir(os.DirFS(abs), ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != "." && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if !supported(path) {
			return nil
		}

		chunks, err := LoadFile(filepath.Join(abs, filepath.FromSlash(path)))
		if err != nil {
			return err
		}
		all = append(all, chunks...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}

func supported(path string) bool {
	ext := filepath.Ext(path)
	return strings.EqualFold(ext, ".md") || strings.EqualFold(ext, ".pdf")
}

// LoadFile chunks a single markdown or PDF file.
func LoadFile(path string) ([]Chunk, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return LoadPDF(path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return ChunkDocument(path, string(content)), nil
}
