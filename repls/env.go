// Package repls runs controller-written code fragments in a persistent Starlark namespace.
package repls

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/reusee/distill/prompts"
	starlarkjson "go.starlark.net/lib/json"
	starlarkmath "go.starlark.net/lib/math"
	starlarktime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

type Config struct {
	Query string
	// a string, or a structured document converted with ToValue; nil binds ""
	Context any

	// Delegate and DelegateBatch never fail; errors are reported as text.
	Delegate      func(ctx context.Context, prompt string) string
	DelegateBatch func(ctx context.Context, prompts []string) []string

	// Capabilities are extra names bound in the namespace, converted with ToValue.
	Capabilities map[string]any
	Features     prompts.Features

	// zero disables each guard
	FragmentTimeout  time.Duration
	FragmentMaxSteps uint64
}

// Env owns one namespace. It is not safe for concurrent use.
type Env struct {
	config    Config
	globals   starlark.StringDict
	seeded    map[string]bool
	fragments int

	final       bool
	finalAnswer string
}

type ExecResult struct {
	Stdout    string
	Stderr    string
	Error     string
	Violation bool
	Final     bool
	// the environment had already finalized, nothing ran
	Skipped bool
	Elapsed time.Duration
}

// FileOptions is the Starlark dialect fragments are compiled with.
var FileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

func New(config Config) (*Env, error) {
	env := &Env{
		config:  config,
		globals: make(starlark.StringDict),
	}

	document, err := contextValue(config.Context)
	if err != nil {
		return nil, err
	}
	env.globals["context"] = document
	env.globals["query"] = starlark.String(config.Query)
	env.globals["FINAL"] = starlark.NewBuiltin("FINAL", env.finalBuiltin)
	env.globals["json"] = starlarkjson.Module
	env.globals["math"] = starlarkmath.Module
	env.globals["time"] = starlarktime.Module
	if config.Delegate != nil {
		env.globals["delegate"] = starlark.NewBuiltin("delegate", env.delegateBuiltin)
	}
	if config.DelegateBatch != nil {
		env.globals["delegate_batch"] = starlark.NewBuiltin("delegate_batch", env.delegateBatchBuiltin)
	}
	for name, value := range deniedBuiltins() {
		env.globals[name] = value
	}
	if config.Features.BuiltinChunking {
		for name, value := range chunkBuiltins() {
			env.globals[name] = value
		}
	}
	for name, capability := range config.Capabilities {
		if !isIdentifier(name) {
			return nil, fmt.Errorf("invalid capability name: %q", name)
		}
		value, err := ToValue(name, capability)
		if err != nil {
			return nil, fmt.Errorf("capability %s: %w", name, err)
		}
		env.globals[name] = value
	}

	env.seeded = make(map[string]bool, len(env.globals))
	for name := range env.globals {
		env.seeded[name] = true
	}

	return env, nil
}

const contextLocal = "repls.context"

func threadContext(thread *starlark.Thread) context.Context {
	if ctx, ok := thread.Local(contextLocal).(context.Context); ok {
		return ctx
	}
	return context.Background()
}

// Execute runs one fragment against the namespace.
// Names bound before a failure stay bound.
func (e *Env) Execute(ctx context.Context, code string) (ret ExecResult) {
	if e.final {
		ret.Skipped = true
		return
	}

	start := time.Now()
	defer func() {
		ret.Elapsed = time.Since(start)
	}()

	e.fragments++
	name := fmt.Sprintf("fragment-%d", e.fragments)

	var stdout strings.Builder
	thread := &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			stdout.WriteString(msg)
			stdout.WriteByte('\n')
		},
		Load: func(_ *starlark.Thread, module string) (starlark.StringDict, error) {
			return nil, &SandboxViolation{
				Operation: fmt.Sprintf("load(%q)", module),
			}
		},
	}

	if e.config.FragmentTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.FragmentTimeout)
		defer cancel()
	}
	stop := context.AfterFunc(ctx, func() {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			thread.Cancel("fragment timeout exceeded")
		} else {
			thread.Cancel("fragment cancelled")
		}
	})
	defer stop()
	if e.config.FragmentMaxSteps > 0 {
		thread.SetMaxExecutionSteps(e.config.FragmentMaxSteps)
	}
	thread.SetLocal(contextLocal, ctx)

	err := e.exec(thread, name, code)
	ret.Stdout = stdout.String()

	if e.final {
		ret.Final = true
		return
	}

	if err != nil {
		ret.Error, ret.Stderr = describeError(err)
		var violation *SandboxViolation
		ret.Violation = errors.As(err, &violation)
	}

	return
}

func (e *Env) exec(thread *starlark.Thread, name string, code string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("internal error: %v", p)
		}
	}()
	file, err := parseFragment(name, code)
	if err != nil {
		return err
	}
	return starlark.ExecREPLChunk(file, thread, e.globals)
}

func describeError(err error) (message string, stderr string) {
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		return evalErr.Msg, evalErr.Backtrace()
	}
	return err.Error(), err.Error()
}

// Final reports whether FINAL was called, and its argument.
func (e *Env) Final() (answer string, ok bool) {
	return e.finalAnswer, e.final
}

var errFinal = errors.New("FINAL called")

func (e *Env) finalBuiltin(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var answer starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "answer", &answer); err != nil {
		return nil, err
	}
	if !e.final {
		e.finalAnswer = toText(answer)
		e.final = true
	}
	// unwinds the fragment
	return nil, errFinal
}

func toText(value starlark.Value) string {
	if s, ok := starlark.AsString(value); ok {
		return s
	}
	return value.String()
}

// Namespace is the live namespace. Callers must not use it while a fragment runs.
func (e *Env) Namespace() starlark.StringDict {
	return e.globals
}

func (e *Env) Get(name string) (starlark.Value, bool) {
	v, ok := e.globals[name]
	return v, ok
}

// UserNames lists names bound by fragments, excluding seeded names.
func (e *Env) UserNames() []string {
	var names []string
	for _, name := range slices.Sorted(maps.Keys(e.globals)) {
		if e.seeded[name] {
			continue
		}
		names = append(names, name)
	}
	return names
}

func isIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || i > 0 && r >= '0' && r <= '9' {
			continue
		}
		return false
	}
	return true
}
