package chunking

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// CharsPerToken is the crude characters-per-token estimate used for the budget.
const CharsPerToken = 4

const DefaultMaxTokens = 500

var paragraphBreak = regexp.MustCompile(`\n\n+`)

type Chunker struct {
	MaxTokens int
}

func New(maxTokens int) Chunker {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return Chunker{MaxTokens: maxTokens}
}

// Budget is the maximum chunk length in characters (code points).
func (c Chunker) Budget() int {
	if c.MaxTokens <= 0 {
		return DefaultMaxTokens * CharsPerToken
	}
	return c.MaxTokens * CharsPerToken
}

// Split returns the ordered chunks of text. Every chunk is non-empty and at
// most Budget characters long.
func (c Chunker) Split(text string) []string {
	max := c.Budget()
	text = strings.ReplaceAll(text, "\r\n", "\n")
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if runeLen(trimmed) <= max {
		return []string{trimmed}
	}

	var pieces []string
	for _, para := range paragraphBreak.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if runeLen(para) <= max {
			pieces = append(pieces, para)
			continue
		}
		pieces = append(pieces, packSentences(splitSentences(para), max)...)
	}

	out := make([]string, 0, len(pieces))
	for _, p := range pieces {
		for _, s := range hardSlice(p, max) {
			if strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// splitSentences cuts after '.', '!' or '?' when followed by whitespace; the
// whitespace run is dropped.
func splitSentences(para string) []string {
	var out []string
	start := 0
	i := 0
	for i < len(para) {
		r, size := utf8.DecodeRuneInString(para[i:])
		next := i + size
		if (r == '.' || r == '!' || r == '?') && next < len(para) {
			ws, wsSize := utf8.DecodeRuneInString(para[next:])
			if unicode.IsSpace(ws) {
				out = append(out, para[start:next])
				j := next + wsSize
				for j < len(para) {
					r2, s2 := utf8.DecodeRuneInString(para[j:])
					if !unicode.IsSpace(r2) {
						break
					}
					j += s2
				}
				start = j
				i = j
				continue
			}
		}
		i = next
	}
	if start < len(para) {
		out = append(out, para[start:])
	}
	return out
}

// packSentences joins sentences with single spaces while the buffer fits.
func packSentences(sentences []string, max int) []string {
	var out []string
	buf := ""
	for _, s := range sentences {
		candidate := s
		if buf != "" {
			candidate = buf + " " + s
		}
		if runeLen(strings.TrimSpace(candidate)) > max {
			if buf != "" {
				out = append(out, strings.TrimSpace(buf))
			}
			buf = s
			continue
		}
		buf = candidate
	}
	if buf != "" {
		out = append(out, strings.TrimSpace(buf))
	}
	return out
}

func hardSlice(s string, max int) []string {
	r := []rune(s)
	if len(r) <= max {
		return []string{s}
	}
	out := make([]string, 0, len(r)/max+1)
	for i := 0; i < len(r); i += max {
		end := i + max
		if end > len(r) {
			end = len(r)
		}
		out = append(out, string(r[i:end]))
	}
	return out
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
