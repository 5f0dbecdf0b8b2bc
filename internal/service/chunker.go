package service

import (
	"strings"
	"unicode"
)

const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 150
)

// ChunkText splits text into chunks of at most size runes where consecutive
// chunks share about overlap runes. Chunks end on whitespace when one falls
// in the second half of the window.
func ChunkText(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(strings.TrimSpace(text))
	var chunks []string
	for start := 0; start < len(runes); {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else {
			for i := end; i > start+size/2; i-- {
				if unicode.IsSpace(runes[i-1]) {
					end = i
					break
				}
			}
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		// Start the next chunk on a word boundary when there is one.
		snapped := next
		for snapped < end && !unicode.IsSpace(runes[snapped-1]) {
			snapped++
		}
		if snapped < end {
			next = snapped
		}
		start = next
	}
	return chunks
}
