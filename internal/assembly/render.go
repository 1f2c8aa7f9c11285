package assembly

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/Yates-Labs/memctx/internal/search"
)

// Placeholder names a template token written as {{name}}
type Placeholder string

const (
	PlaceholderContent   Placeholder = "content"
	PlaceholderName      Placeholder = "name"
	PlaceholderSource    Placeholder = "source"
	PlaceholderScore     Placeholder = "score"
	PlaceholderChunkHash Placeholder = "chunkHash"
	PlaceholderHeading   Placeholder = "heading"
)

// RenderInput is everything a template can draw from for one hit
type RenderInput struct {
	Hit              search.Hit
	SourceName       string // Fallback for {{name}} when the hit has none
	ScopePath        string // Prefix stripped from origins for {{source}}
	MaxContentLength int    // Zero disables truncation
}

// extractors map each placeholder to its value. Placeholders missing from
// this table are left in the output verbatim.
var extractors = map[Placeholder]func(RenderInput) string{
	PlaceholderContent: func(in RenderInput) string {
		return TruncateContent(in.Hit.Content, in.MaxContentLength)
	},
	PlaceholderName: func(in RenderInput) string {
		if in.Hit.Name != "" {
			return in.Hit.Name
		}
		return in.SourceName
	},
	PlaceholderSource: func(in RenderInput) string {
		return RelativeOrigin(in.Hit.OriginKey(), in.ScopePath)
	},
	PlaceholderScore: func(in RenderInput) string {
		return FormatScore(in.Hit.Score)
	},
	PlaceholderChunkHash: func(in RenderInput) string {
		return in.Hit.ChunkHash
	},
	PlaceholderHeading: func(in RenderInput) string {
		return in.Hit.Metadata["heading"]
	},
}

type segment struct {
	literal     string
	placeholder Placeholder // Empty for literal segments
}

// Template is an injection template split into literals and placeholders.
// Rendering is a single pass, so braces inside substituted values are never
// expanded again.
type Template struct {
	segments []segment
}

// ParseTemplate splits raw into literal text and known placeholders. Unknown
// or unterminated tokens stay literal.
func ParseTemplate(raw string) Template {
	var segs []segment
	var lit strings.Builder

	rest := raw
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			lit.WriteString(rest)
			break
		}
		end := strings.Index(rest[start+2:], "}}")
		if end < 0 {
			lit.WriteString(rest)
			break
		}

		name := Placeholder(rest[start+2 : start+2+end])
		if _, ok := extractors[name]; !ok {
			// Keep one brace and rescan, so "{{{content}}}" still finds its token.
			lit.WriteString(rest[:start+1])
			rest = rest[start+1:]
			continue
		}

		lit.WriteString(rest[:start])
		if lit.Len() > 0 {
			segs = append(segs, segment{literal: lit.String()})
			lit.Reset()
		}
		segs = append(segs, segment{placeholder: name})
		rest = rest[start+2+end+2:]
	}
	if lit.Len() > 0 {
		segs = append(segs, segment{literal: lit.String()})
	}

	return Template{segments: segs}
}

// Render substitutes every placeholder for in.
func (t Template) Render(in RenderInput) string {
	var b strings.Builder
	for _, s := range t.segments {
		if s.placeholder == "" {
			b.WriteString(s.literal)
			continue
		}
		b.WriteString(extractors[s.placeholder](in))
	}
	return b.String()
}

// TruncateContent trims surrounding whitespace and, when the result is longer
// than max characters, cuts it to max and appends TruncationMarker.
func TruncateContent(content string, max int) string {
	content = strings.TrimSpace(content)
	if max <= 0 || utf8.RuneCountInString(content) <= max {
		return content
	}
	return string([]rune(content)[:max]) + TruncationMarker
}

// RelativeOrigin strips scope and one leading path separator from origin when
// origin lies under scope. Anything else is returned unchanged.
func RelativeOrigin(origin, scope string) string {
	if scope == "" || !strings.HasPrefix(origin, scope) {
		return origin
	}
	return strings.TrimPrefix(origin[len(scope):], "/")
}

// FormatScore renders a score with two decimal places.
func FormatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', 2, 64)
}
