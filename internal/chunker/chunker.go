// Package chunker splits text into token-bounded chunks at sentence boundaries.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// Tokenizer converts text to tokens and back. Decode(Encode(s)) must equal s for valid UTF-8 s.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// isTerminator reports whether r ends a sentence.
func isTerminator(r rune) bool {
	switch r {
	case '。', '！', '？', '.', '!', '?':
		return true
	}
	return false
}

// Sentences splits text after every sentence terminator, keeping the terminator with
// the sentence it ends. Joining the result reproduces text.
func Sentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if !isTerminator(r) {
			continue
		}
		end := i + utf8.RuneLen(r)
		out = append(out, text[start:end])
		start = end
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

// words splits s on single spaces, re-attaching the space to every fragment but the last.
func words(s string) []string {
	parts := strings.Split(s, " ")
	for i := 0; i < len(parts)-1; i++ {
		parts[i] += " "
	}
	return parts
}

// Split packs sentences greedily into chunks of fewer than budget tokens.
//
// If the first sentence alone exceeds the budget it is broken into words instead. A unit
// that does not fit even an empty chunk still gets a chunk of its own, so only
// pathological input produces a chunk at or over budget. Empty text yields one empty chunk.
// text must be valid UTF-8; BPE tokenizers replace invalid bytes with U+FFFD.
func Split(text string, budget int, tok Tokenizer) []string {
	units := Sentences(text)
	if len(units) > 0 && len(tok.Encode(units[0])) > budget {
		units = append(words(units[0]), units[1:]...)
	}

	chunks := [][]int{nil}
	for _, unit := range units {
		tokens := tok.Encode(unit)
		last := len(chunks) - 1
		cur := chunks[last]
		if len(cur) == 0 || len(cur)+len(tokens) < budget {
			chunks[last] = append(cur, tokens...)
			continue
		}
		chunks = append(chunks, tokens)
	}

	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = tok.Decode(c)
	}
	return out
}
