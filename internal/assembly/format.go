package assembly

import (
	"fmt"
	"strings"
)

// CompactionQuery is the fixed query used to gather memories for a session summary
const CompactionQuery = "what were the main goals and achievements of this session?"

// Default limits for compaction retrieval
const (
	CompactionPrimaryLimit = 5
	CompactionGlobalLimit  = 3
	CompactionTotal        = 5
)

const (
	compactTag    = "memsearch-compact-context"
	compactHeader = "Relevant memories to assist in session summarization:"
	previewLength = 200
)

// SessionRequest builds the tiered request used to augment a session prompt:
// primary limit topK, global limit max(3, topK/2), capped at topK.
func SessionRequest(query, scope string, topK int) TieredRequest {
	return TieredRequest{
		Query:        query,
		PrimaryScope: scope,
		PrimaryLimit: topK,
		GlobalLimit:  max(3, topK/2),
		Total:        topK,
	}
}

// CompactionRequest builds the tiered request used before a session summary.
func CompactionRequest(scope string) TieredRequest {
	return TieredRequest{
		Query:        CompactionQuery,
		PrimaryScope: scope,
		PrimaryLimit: CompactionPrimaryLimit,
		GlobalLimit:  CompactionGlobalLimit,
		Total:        CompactionTotal,
	}
}

// FormatPromptBlock renders tiered hits as a context block for a session
// prompt. It returns "" when there are no hits.
func FormatPromptBlock(hits []TieredHit, scope string) string {
	if len(hits) == 0 {
		return ""
	}

	entries := make([]string, 0, len(hits))
	for _, h := range hits {
		var b strings.Builder
		fmt.Fprintf(&b, "Source: %s\n", RelativeOrigin(h.OriginKey(), scope))
		if heading := h.Metadata["heading"]; heading != "" {
			fmt.Fprintf(&b, "Heading: %s\n", heading)
		}
		fmt.Fprintf(&b, "Chunk Hash: %s\n", h.ChunkHash)
		fmt.Fprintf(&b, "Confidence: %s\n", FormatScore(h.Score))
		fmt.Fprintf(&b, "Content: %s", Preview(h.Content, previewLength))
		entries = append(entries, b.String())
	}

	return wrap(DefaultTag, strings.Join(entries, HitSeparator))
}

// FormatCompactionBlock renders tiered hits as a human-readable listing for
// session summarization. Content is kept whole. It returns "" when there are
// no hits.
func FormatCompactionBlock(hits []TieredHit, scope string) string {
	if len(hits) == 0 {
		return ""
	}

	entries := make([]string, 0, len(hits))
	for _, h := range hits {
		var b strings.Builder
		fmt.Fprintf(&b, "Source: %s\n", RelativeOrigin(h.OriginKey(), scope))
		if heading := h.Metadata["heading"]; heading != "" {
			fmt.Fprintf(&b, "Heading: %s\n", heading)
		}
		fmt.Fprintf(&b, "Content: %s", strings.TrimSpace(h.Content))
		entries = append(entries, b.String())
	}

	return wrap(compactTag, compactHeader+"\n"+strings.Join(entries, HitSeparator))
}

// Preview shortens content to at most n characters, cutting at the last space
// when there is one, and appends TruncationMarker when it cut anything.
func Preview(content string, n int) string {
	content = strings.TrimSpace(content)
	runes := []rune(content)
	if len(runes) <= n {
		return content
	}

	cut := string(runes[:n])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return cut + TruncationMarker
}
