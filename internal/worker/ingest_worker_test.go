package worker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkTextShortInput(t *testing.T) {
	chunks := chunkText("short text", 1000, 200)
	require.Len(t, chunks, 1)
	assert.Equal(t, "short text", chunks[0])
}

func TestChunkTextEmptyInput(t *testing.T) {
	assert.Empty(t, chunkText("", 1000, 200))
}

func TestChunkTextOverlap(t *testing.T) {
	text := strings.Repeat("a", 25)
	chunks := chunkText(text, 10, 3)

	require.NotEmpty(t, chunks)
	// Every chunk except possibly the last is exactly the chunk size.
	for _, c := range chunks[:len(chunks)-1] {
		assert.Len(t, c, 10)
	}
	// Consecutive chunks overlap by 3, so the stride is 7.
	assert.Len(t, chunks, 4)
}

func TestChunkTextCoversWholeInput(t *testing.T) {
	text := "0123456789abcdefghij"
	chunks := chunkText(text, 8, 2)

	// Dropping each chunk's 2-rune overlap reconstitutes the input.
	var rebuilt strings.Builder
	for i, c := range chunks {
		runes := []rune(c)
		if i > 0 {
			runes = runes[2:]
		}
		rebuilt.WriteString(string(runes))
	}
	assert.Equal(t, text, rebuilt.String())
}

func TestChunkTextRuneSafe(t *testing.T) {
	text := strings.Repeat("héllo wörld ", 20)
	chunks := chunkText(text, 16, 4)

	for _, c := range chunks {
		for _, r := range c {
			assert.NotEqual(t, '�', r)
		}
	}
}

func TestChunkTextOversizedOverlapClamped(t *testing.T) {
	chunks := chunkText(strings.Repeat("x", 30), 10, 10)
	assert.NotEmpty(t, chunks)
	// Clamped overlap still makes forward progress.
	assert.Less(t, len(chunks), 30)
}
