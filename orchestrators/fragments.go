package orchestrators

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/reusee/distill/prompts"
	"github.com/reusee/distill/repls"
	"github.com/samber/lo"
)

var fragmentPattern = regexp.MustCompile("(?s)```repl\\s*\\n(.*?)```")

// ExtractFragments returns the bodies of ```repl blocks in order.
func ExtractFragments(response string) []string {
	return lo.Map(
		fragmentPattern.FindAllStringSubmatch(response, -1),
		func(match []string, _ int) string {
			return match[1]
		},
	)
}

func fragmentOutput(result repls.ExecResult) string {
	var b strings.Builder
	b.WriteString(result.Stdout)
	if result.Stderr != "" {
		if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
			b.WriteByte('\n')
		}
		b.WriteString("[stderr]\n")
		b.WriteString(result.Stderr)
	}
	if b.Len() == 0 {
		return "(no output)"
	}
	return b.String()
}

// feedback renders the outputs shown to the controller, cut to limit runes.
// The second return value is the full rune count.
func feedback(results []repls.ExecResult, limit int) (shown string, total int, truncated bool) {
	if len(results) == 0 {
		return prompts.NoCode, 0, false
	}
	full := strings.Join(lo.Map(results, func(result repls.ExecResult, _ int) string {
		return fragmentOutput(result)
	}), "\n\n")
	total = utf8.RuneCountInString(full)
	if total <= limit {
		return full, total, false
	}
	return cutRunes(full, limit), total, true
}

// cutRunes returns the prefix of s holding n runes. Invalid bytes count as one
// rune each and are kept as they are.
func cutRunes(s string, n int) string {
	offset := 0
	for range n {
		_, size := utf8.DecodeRuneInString(s[offset:])
		offset += size
	}
	return s[:offset]
}
