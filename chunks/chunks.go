// Package chunks splits long text into pieces sized for a delegate model.
package chunks

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/samber/lo"
)

const (
	DefaultMinParagraphLength = 100
	DefaultChunkSize          = 6000
	DefaultOverlap            = 500
)

// BySection splits before lines starting with `===` or `### `, dropping blank sections.
func BySection(text string) []string {
	var sections []string
	var buf strings.Builder
	first := true
	for line := range strings.Lines(text) {
		if !first && isSectionHeader(line) {
			sections = append(sections, buf.String())
			buf.Reset()
		}
		first = false
		buf.WriteString(line)
	}
	sections = append(sections, buf.String())
	return lo.FilterMap(sections, func(s string, _ int) (string, bool) {
		s = strings.TrimSpace(s)
		return s, s != ""
	})
}

func isSectionHeader(line string) bool {
	if strings.HasPrefix(line, "===") {
		return true
	}
	rest := strings.TrimLeft(line, "#")
	if len(line)-len(rest) < 3 {
		return false
	}
	r, _ := utf8.DecodeRuneInString(rest)
	return r != utf8.RuneError && unicode.IsSpace(r)
}

var blankLinePattern = regexp.MustCompile(`\n\s*\n`)

// ByParagraph splits on blank lines and merges paragraphs until each chunk has at least
// minLength characters. A short tail is merged into the last chunk.
func ByParagraph(text string, minLength int) []string {
	var chunks []string
	buf := ""
	for _, para := range blankLinePattern.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if buf != "" {
			buf += "\n\n" + para
		} else {
			buf = para
		}
		if utf8.RuneCountInString(buf) >= minLength {
			chunks = append(chunks, buf)
			buf = ""
		}
	}
	if buf != "" {
		if len(chunks) > 0 {
			chunks[len(chunks)-1] += "\n\n" + buf
		} else {
			chunks = append(chunks, buf)
		}
	}
	return chunks
}

// ByTokens returns character windows of chunkSize overlapping by overlap.
// Sizes are in characters, roughly four per token.
func ByTokens(text string, chunkSize int, overlap int) ([]string, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("overlap must be in [0, %d), got %d", chunkSize, overlap)
	}
	runes := []rune(text)
	if len(runes) <= chunkSize {
		return []string{text}, nil
	}
	var chunks []string
	for start := 0; start < len(runes); start += chunkSize - overlap {
		end := min(start+chunkSize, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks, nil
}
