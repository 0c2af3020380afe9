package repls

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// SandboxViolation is raised by operations the environment refuses to perform.
type SandboxViolation struct {
	Operation string
}

var _ error = new(SandboxViolation)

func (s *SandboxViolation) Error() string {
	return fmt.Sprintf("sandbox violation: %s is not allowed in this environment", s.Operation)
}

var deniedNames = []string{
	"eval",
	"exec",
	"compile",
	"input",
	"open",
	"globals",
	"breakpoint",
	"exit",
	"quit",
}

func deniedBuiltins() starlark.StringDict {
	ret := make(starlark.StringDict)
	for _, name := range deniedNames {
		ret[name] = starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
			return nil, &SandboxViolation{
				Operation: b.Name() + "()",
			}
		})
	}
	ret["__import__"] = starlark.NewBuiltin("__import__", func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
		module := "module"
		if len(args) > 0 {
			module = toText(args[0])
		}
		return nil, &SandboxViolation{
			Operation: fmt.Sprintf("import of %q", module),
		}
	})
	return ret
}

// parseFragment parses code, turning each Python import statement the parser
// stops at into a call that raises at run time, so statements before it still
// execute. Text inside string literals is never touched.
func parseFragment(name string, code string) (*syntax.File, error) {
	for range strings.Count(code, "import") + 1 {
		file, err := FileOptions.Parse(name, code, 0)
		if err == nil {
			return file, nil
		}
		var syntaxErr syntax.Error
		if !errors.As(err, &syntaxErr) {
			return nil, err
		}
		offset := offsetOf(code, syntaxErr.Pos)
		if offset < 0 {
			return nil, err
		}
		rewritten, ok := rewriteImportAt(code, offset)
		if !ok {
			return nil, err
		}
		code = rewritten
	}
	return FileOptions.Parse(name, code, 0)
}

// offsetOf converts a 1-based line and rune column to a byte offset.
func offsetOf(code string, pos syntax.Position) int {
	if pos.Line < 1 || pos.Col < 1 {
		return -1
	}
	offset := 0
	for line := int32(1); line < pos.Line; line++ {
		i := strings.IndexByte(code[offset:], '\n')
		if i < 0 {
			return -1
		}
		offset += i + 1
	}
	for col := int32(1); col < pos.Col; col++ {
		if offset >= len(code) || code[offset] == '\n' {
			return -1
		}
		_, size := utf8.DecodeRuneInString(code[offset:])
		offset += size
	}
	return offset
}

// rewriteImportAt replaces the import statement starting at offset.
// Newlines inside a parenthesized or continued statement are kept.
func rewriteImportAt(code string, offset int) (string, bool) {
	rest := code[offset:]
	var keyword string
	for _, k := range []string{"import", "from"} {
		if strings.HasPrefix(rest, k) && (len(rest) == len(k) || !isNameByte(rest[len(k)])) {
			keyword = k
			break
		}
	}
	if keyword == "" {
		return code, false
	}

	module := strings.TrimLeft(rest[len(keyword):], " \t")
	end := 0
	for end < len(module) && (isNameByte(module[end]) || module[end] == '.') {
		end++
	}
	module = module[:end]
	if module == "" {
		module = "module"
	}

	depth := 0
	newlines := 0
	end = 0
loop:
	for ; end < len(rest); end++ {
		switch rest[end] {
		case '(':
			depth++
		case ')':
			depth--
		case '\\':
			if end+1 < len(rest) && rest[end+1] == '\n' {
				newlines++
				end++
			}
		case '#':
			i := strings.IndexByte(rest[end:], '\n')
			if i < 0 {
				end = len(rest)
				break loop
			}
			end += i - 1
		case ';':
			if depth <= 0 {
				break loop
			}
		case '\n':
			if depth <= 0 {
				break loop
			}
			newlines++
		}
	}

	call := fmt.Sprintf("__import__(%q)", module)
	if end == len(rest) || rest[end] == '\n' {
		call += strings.Repeat("\n", newlines)
	}
	return code[:offset] + call + rest[end:], true
}

func isNameByte(b byte) bool {
	return b == '_' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
