package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// maxWordRunes bounds a single unbreakable token. Anything longer cannot be
// split on a boundary and fails ingestion.
const maxWordRunes = 2048

// ChunkSpan is one bounded slice of a source text produced by the Chunker
type ChunkSpan struct {
	Text       string
	TokenCount int
}

// Chunker splits raw text into chunks bounded by a maximum token count,
// preserving paragraph and sentence boundaries where possible. Identical
// input always produces identical chunk boundaries.
type Chunker struct {
	maxTokens int
}

// NewChunker creates a chunker with the given token budget per chunk
func NewChunker(maxTokens int) *Chunker {
	if maxTokens <= 0 {
		maxTokens = 300
	}
	return &Chunker{maxTokens: maxTokens}
}

// Split breaks text into ordered chunks. Paragraphs are packed greedily;
// oversized paragraphs fall back to sentence splits, oversized sentences to
// word windows.
func (c *Chunker) Split(text string) ([]ChunkSpan, error) {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	if strings.TrimSpace(normalized) == "" {
		return nil, ErrEmptyText
	}

	var chunks []ChunkSpan
	var current []string
	currentTokens := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		joined := strings.TrimSpace(strings.Join(current, "\n\n"))
		if joined != "" {
			chunks = append(chunks, ChunkSpan{Text: joined, TokenCount: CountTokens(joined)})
		}
		current = nil
		currentTokens = 0
	}

	for _, para := range strings.Split(normalized, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		tokens := CountTokens(para)
		if tokens > c.maxTokens {
			// Paragraph alone exceeds the budget: close the running chunk
			// and split the paragraph on sentence boundaries.
			flush()
			pieces, err := c.splitOversized(para)
			if err != nil {
				return nil, err
			}
			chunks = append(chunks, pieces...)
			continue
		}

		if currentTokens+tokens > c.maxTokens {
			flush()
		}
		current = append(current, para)
		currentTokens += tokens
	}
	flush()

	if len(chunks) == 0 {
		return nil, ErrEmptyText
	}
	return chunks, nil
}

// splitOversized packs sentences of a too-large paragraph into chunks,
// hard-splitting individual sentences on word windows when needed.
func (c *Chunker) splitOversized(para string) ([]ChunkSpan, error) {
	var chunks []ChunkSpan
	var current []string
	currentTokens := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		joined := strings.TrimSpace(strings.Join(current, " "))
		if joined != "" {
			chunks = append(chunks, ChunkSpan{Text: joined, TokenCount: CountTokens(joined)})
		}
		current = nil
		currentTokens = 0
	}

	for _, sentence := range splitSentences(para) {
		tokens := CountTokens(sentence)
		if tokens > c.maxTokens {
			flush()
			words := strings.Fields(sentence)
			var window []string
			for _, word := range words {
				if len([]rune(word)) > maxWordRunes {
					return nil, fmt.Errorf("%w: token of %d runes", ErrChunkTooLong, len([]rune(word)))
				}
				window = append(window, word)
				if len(window) >= c.maxTokens {
					chunks = append(chunks, ChunkSpan{
						Text:       strings.Join(window, " "),
						TokenCount: len(window),
					})
					window = nil
				}
			}
			if len(window) > 0 {
				chunks = append(chunks, ChunkSpan{
					Text:       strings.Join(window, " "),
					TokenCount: len(window),
				})
			}
			continue
		}

		if currentTokens+tokens > c.maxTokens {
			flush()
		}
		current = append(current, sentence)
		currentTokens += tokens
	}
	flush()

	return chunks, nil
}

// splitSentences breaks a paragraph after '.', '!' or '?' followed by
// whitespace. Purely positional, so the split is reproducible.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '.' || r == '!' || r == '?' {
			if i+1 >= len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n' || runes[i+1] == '\t' {
				sentence := strings.TrimSpace(string(runes[start : i+1]))
				if sentence != "" {
					sentences = append(sentences, sentence)
				}
				start = i + 1
			}
		}
	}

	if rest := strings.TrimSpace(string(runes[start:])); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

// CountTokens estimates the token count of a text span. Whitespace-delimited
// word count is used as the approximation; it only has to be deterministic
// and monotone in text length, not model-exact.
func CountTokens(text string) int {
	return len(strings.Fields(text))
}

// HashText computes the content hash used for chunk deduplication
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
