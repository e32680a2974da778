package ingest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkerSplit(t *testing.T) {
	t.Run("empty text is rejected", func(t *testing.T) {
		c := NewChunker(10)
		_, err := c.Split("   \n\n  ")
		assert.ErrorIs(t, err, ErrEmptyText)
	})

	t.Run("short text becomes a single chunk", func(t *testing.T) {
		c := NewChunker(100)
		chunks, err := c.Split("hello world")
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, "hello world", chunks[0].Text)
		assert.Equal(t, 2, chunks[0].TokenCount)
	})

	t.Run("paragraphs pack greedily within the budget", func(t *testing.T) {
		c := NewChunker(10)
		text := "one two three\n\nfour five six\n\nseven eight nine ten eleven twelve"
		chunks, err := c.Split(text)
		require.NoError(t, err)
		// First two paragraphs (3+3 tokens) fit together, third (6) forces a
		// new chunk since 6+6 exceeds 10
		require.Len(t, chunks, 2)
		assert.Contains(t, chunks[0].Text, "one two three")
		assert.Contains(t, chunks[0].Text, "four five six")
		assert.Contains(t, chunks[1].Text, "seven eight nine")
	})

	t.Run("every chunk respects the token budget", func(t *testing.T) {
		c := NewChunker(20)
		var sb strings.Builder
		for i := 0; i < 50; i++ {
			fmt.Fprintf(&sb, "Sentence number %d has exactly seven words here. ", i)
		}
		chunks, err := c.Split(sb.String())
		require.NoError(t, err)
		require.NotEmpty(t, chunks)
		for _, chunk := range chunks {
			assert.LessOrEqual(t, chunk.TokenCount, 20)
		}
	})

	t.Run("oversized sentence is hard-split on word windows", func(t *testing.T) {
		c := NewChunker(5)
		words := make([]string, 17)
		for i := range words {
			words[i] = fmt.Sprintf("w%d", i)
		}
		chunks, err := c.Split(strings.Join(words, " "))
		require.NoError(t, err)
		require.Len(t, chunks, 4)
		assert.Equal(t, 5, chunks[0].TokenCount)
		assert.Equal(t, 2, chunks[3].TokenCount)
	})

	t.Run("identical input yields identical chunk boundaries", func(t *testing.T) {
		c := NewChunker(15)
		text := "First paragraph with some words.\n\nSecond paragraph, a bit longer, with more words in it.\n\nThird."
		a, err := c.Split(text)
		require.NoError(t, err)
		b, err := c.Split(text)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("windows line endings are normalized", func(t *testing.T) {
		c := NewChunker(10)
		a, err := c.Split("alpha beta\r\n\r\ngamma delta")
		require.NoError(t, err)
		b, err := c.Split("alpha beta\n\ngamma delta")
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("unbreakable token beyond the rune cap fails", func(t *testing.T) {
		c := NewChunker(5)
		giant := strings.Repeat("x", maxWordRunes+1)
		text := "short words " + giant + " more short words again here now ok"
		_, err := c.Split(text)
		assert.ErrorIs(t, err, ErrChunkTooLong)
	})
}

func TestHashText(t *testing.T) {
	t.Run("stable for identical input", func(t *testing.T) {
		assert.Equal(t, HashText("some chunk text"), HashText("some chunk text"))
	})

	t.Run("differs for different input", func(t *testing.T) {
		assert.NotEqual(t, HashText("a"), HashText("b"))
	})
}

func TestCountTokens(t *testing.T) {
	assert.Equal(t, 0, CountTokens(""))
	assert.Equal(t, 3, CountTokens("  one\ttwo\nthree  "))
}
