package orchestrators

import (
	"strings"
	"testing"

	"github.com/reusee/distill/prompts"
	"github.com/reusee/distill/repls"
)

func TestExtractFragments(t *testing.T) {
	cases := []struct {
		response string
		expected []string
	}{
		{"no code", nil},
		{"```repl\nx = 1\n```", []string{"x = 1\n"}},
		{"a\n```repl\nx = 1\n```\nb\n```repl  \ny = 2\nz = 3\n```", []string{"x = 1\n", "y = 2\nz = 3\n"}},
		{"```python\nx = 1\n```", nil},
		{"```repl x = 1```", nil},
	}
	for _, c := range cases {
		got := ExtractFragments(c.response)
		if len(got) != len(c.expected) {
			t.Fatalf("%q: got %q", c.response, got)
		}
		for i := range got {
			if got[i] != c.expected[i] {
				t.Fatalf("%q: got %q", c.response, got)
			}
		}
	}
}

func TestFeedback(t *testing.T) {
	t.Run("no fragments", func(t *testing.T) {
		shown, _, truncated := feedback(nil, 100)
		if shown != prompts.NoCode || truncated {
			t.Fatalf("got %q", shown)
		}
	})

	t.Run("joined", func(t *testing.T) {
		shown, total, truncated := feedback([]repls.ExecResult{
			{Stdout: "a\n"},
			{},
			{Stdout: "b", Stderr: "Error: boom"},
		}, 1000)
		expected := "a\n\n\n(no output)\n\nb\n[stderr]\nError: boom"
		if shown != expected {
			t.Fatalf("got %q", shown)
		}
		if truncated || total != len([]rune(expected)) {
			t.Fatalf("got %v %v", total, truncated)
		}
	})

	t.Run("stderr only", func(t *testing.T) {
		shown, _, _ := feedback([]repls.ExecResult{
			{Stderr: "x"},
		}, 1000)
		if shown != "[stderr]\nx" {
			t.Fatalf("got %q", shown)
		}
	})

	t.Run("truncated by runes", func(t *testing.T) {
		shown, total, truncated := feedback([]repls.ExecResult{
			{Stdout: strings.Repeat("é", 30)},
		}, 10)
		if !truncated || total != 30 {
			t.Fatalf("got %v %v", total, truncated)
		}
		if shown != strings.Repeat("é", 10) {
			t.Fatalf("got %q", shown)
		}
	})
	t.Run("invalid utf-8 kept", func(t *testing.T) {
		shown, total, truncated := feedback([]repls.ExecResult{
			{Stdout: "\xc3abc\xff\n"},
		}, 3)
		if !truncated || total != 6 {
			t.Fatalf("got %v %v", total, truncated)
		}
		if shown != "\xc3ab" {
			t.Fatalf("got %q", shown)
		}
	})
}
