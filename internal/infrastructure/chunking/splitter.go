package chunking

import (
	"iter"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Splitter groups sentences into chunks of at most MaxChunkSize runes.
// Accumulations shorter than MinChunkSize are merged forward instead of
// being emitted early. A single sentence longer than MaxChunkSize is passed
// through whole.
type Splitter struct {
	MaxChunkSize int
	MinChunkSize int
}

func NewSplitter(maxChunkSize, minChunkSize int) *Splitter {
	if maxChunkSize <= 0 {
		maxChunkSize = 512
	}
	if minChunkSize < 0 {
		minChunkSize = 0
	}
	if minChunkSize > maxChunkSize {
		minChunkSize = maxChunkSize
	}
	return &Splitter{
		MaxChunkSize: maxChunkSize,
		MinChunkSize: minChunkSize,
	}
}

// Split collects Chunks. Non-positive bounds fall back to the splitter defaults.
func (s *Splitter) Split(text string, maxChunkSize, minChunkSize int) []string {
	return slices.Collect(s.Chunks(text, maxChunkSize, minChunkSize))
}

func (s *Splitter) Chunks(text string, maxChunkSize, minChunkSize int) iter.Seq[string] {
	if maxChunkSize <= 0 {
		maxChunkSize = s.MaxChunkSize
	}
	if minChunkSize <= 0 {
		minChunkSize = s.MinChunkSize
	}

	return func(yield func(string) bool) {
		if strings.TrimSpace(text) == "" {
			return
		}

		var current strings.Builder
		for sentence := range Sentences(text) {
			if current.Len() == 0 {
				current.WriteString(sentence)
				continue
			}

			candidate := current.String() + sentence
			if trimmedLen(candidate) <= maxChunkSize || trimmedLen(current.String()) < minChunkSize {
				current.WriteString(sentence)
				continue
			}

			if chunk := strings.TrimSpace(current.String()); chunk != "" {
				if !yield(chunk) {
					return
				}
			}
			current.Reset()
			current.WriteString(sentence)
		}

		if chunk := strings.TrimSpace(current.String()); chunk != "" {
			yield(chunk)
		}
	}
}

// Sentences yields consecutive segments of text, each ending after a run of
// sentence terminators (plus closing quotes or brackets) and the whitespace
// that follows it. Concatenating the segments gives back text exactly.
func Sentences(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		start := 0
		i := 0
		for i < len(text) {
			r, size := utf8.DecodeRuneInString(text[i:])
			if !isTerminator(r) {
				i += size
				continue
			}

			j := i + size
			j = skipWhile(text, j, isTerminator)
			j = skipWhile(text, j, isCloser)
			if j < len(text) {
				next, _ := utf8.DecodeRuneInString(text[j:])
				if !unicode.IsSpace(next) {
					i = j
					continue
				}
			}
			j = skipWhile(text, j, unicode.IsSpace)

			if !yield(text[start:j]) {
				return
			}
			start = j
			i = j
		}
		if start < len(text) {
			yield(text[start:])
		}
	}
}

func skipWhile(text string, pos int, pred func(rune) bool) int {
	for pos < len(text) {
		r, size := utf8.DecodeRuneInString(text[pos:])
		if !pred(r) {
			break
		}
		pos += size
	}
	return pos
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '…', '。', '！', '？':
		return true
	default:
		return false
	}
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '}', '”', '’', '»':
		return true
	default:
		return false
	}
}

func trimmedLen(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}
