package voice

import (
	"strings"
	"unicode"
)

// SentenceChunker incrementally splits streamed text into complete sentences
// so synthesis can start before the full turn has been generated. A sentence
// is complete once a terminator (. ! ?) is followed by whitespace; trailing
// text without a terminator stays buffered until Flush.
type SentenceChunker struct {
	buf strings.Builder
}

// Feed appends fragment to the buffer and returns any sentences completed by
// it, in order, trimmed of surrounding whitespace.
func (c *SentenceChunker) Feed(fragment string) []string {
	c.buf.WriteString(fragment)
	text := c.buf.String()

	var sentences []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes)-1; i++ {
		if !isTerminator(runes[i]) || !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			sentences = append(sentences, s)
		}
		start = i + 1
	}

	c.buf.Reset()
	c.buf.WriteString(string(runes[start:]))
	return sentences
}

// Flush returns whatever incomplete sentence remains and resets the chunker.
func (c *SentenceChunker) Flush() string {
	rest := strings.TrimSpace(c.buf.String())
	c.buf.Reset()
	return rest
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
