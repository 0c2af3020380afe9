package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/reusee/distill/configs"
	"github.com/reusee/distill/gateways"
	"github.com/reusee/distill/modes"
	"github.com/reusee/distill/prompts"
	"github.com/reusee/distill/traces"
	"github.com/reusee/distill/vars"
	"github.com/reusee/dscope"
	"go.starlark.net/starlark"
)

func testScope(t *testing.T) dscope.Scope {
	return dscope.New(
		modes.ForTest(t),
		new(Module),
		dscope.Provide(configs.NewLoader(nil, "")),
	)
}

// scripted replies with the given responses in order and records every conversation it receives.
type scripted struct {
	t         *testing.T
	mu        sync.Mutex
	responses []string
	received  [][]gateways.Message
}

func script(t *testing.T, responses ...string) *scripted {
	return &scripted{
		t:         t,
		responses: responses,
	}
}

func (s *scripted) gateway() gateways.Gateway {
	return gateways.GatewayFunc{
		Name: "controller",
		Func: func(ctx context.Context, messages []gateways.Message) (*gateways.Response, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.received = append(s.received, messages)
			if len(s.responses) == 0 {
				s.t.Errorf("unexpected controller call %d", len(s.received))
				return nil, errors.New("script exhausted")
			}
			content := s.responses[0]
			s.responses = s.responses[1:]
			return &gateways.Response{
				Content: content,
				Usage: gateways.Usage{
					InputTokens:  100,
					OutputTokens: 10,
				},
			}, nil
		},
	}
}

func (s *scripted) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.received)
}

// userTurns returns the user messages after the last assistant message of call i.
func (s *scripted) userTurns(i int) (ret []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	messages := s.received[i]
	for j := len(messages) - 1; j >= 0; j-- {
		if messages[j].Role != gateways.RoleUser {
			break
		}
		ret = append([]string{messages[j].Content}, ret...)
	}
	return
}

func echoDelegate() gateways.Gateway {
	return gateways.GatewayFunc{
		Name: "delegate",
		Func: func(ctx context.Context, messages []gateways.Message) (*gateways.Response, error) {
			return &gateways.Response{
				Content: "echo:" + messages[0].Content,
				Usage: gateways.Usage{
					InputTokens:  3,
					OutputTokens: 2,
				},
			}, nil
		},
	}
}

func repl(code string) string {
	return "```repl\n" + code + "\n```"
}

func TestImmediateFinal(t *testing.T) {
	testScope(t).Call(func(
		run Run,
	) {
		controller := script(t, repl(`FINAL("42")`))
		result, err := run(t.Context(), Request{
			Query:      "q",
			Context:    "ctx",
			Controller: controller.gateway(),
			Delegate:   echoDelegate(),
		})
		if err != nil {
			t.Fatal(err)
		}
		if result.Status != StatusSuccess {
			t.Fatalf("got %v", result.Status)
		}
		if !result.HasAnswer || result.Answer != "42" {
			t.Fatalf("got %+v", result)
		}
		if result.Steps != 1 || controller.calls() != 1 {
			t.Fatalf("got %d steps", result.Steps)
		}
		if result.DelegateUsage != (gateways.Usage{}) || result.DelegateCalls != 0 {
			t.Fatalf("got %+v", result.DelegateUsage)
		}
		if result.ControllerUsage.InputTokens != 100 {
			t.Fatalf("got %+v", result.ControllerUsage)
		}
		if result.RunID == "" {
			t.Fatal("no run id")
		}
	})
}

func TestInitialMessages(t *testing.T) {
	testScope(t).Call(func(
		run Run,
	) {
		controller := script(t, repl(`FINAL(len(context))`))
		result, err := run(t.Context(), Request{
			Query:      "what is it",
			Context:    strings.Repeat("x", 1234),
			Controller: controller.gateway(),
			Delegate:   echoDelegate(),
		})
		if err != nil {
			t.Fatal(err)
		}
		if result.Answer != "1234" {
			t.Fatalf("got %q", result.Answer)
		}
		messages := controller.received[0]
		if len(messages) != 2 {
			t.Fatalf("got %d", len(messages))
		}
		if messages[0].Role != gateways.RoleSystem {
			t.Fatal()
		}
		if !strings.Contains(messages[1].Content, "1,234 characters") {
			t.Fatalf("got %q", messages[1].Content)
		}
		if !strings.Contains(messages[1].Content, "what is it") {
			t.Fatalf("got %q", messages[1].Content)
		}
		if strings.Contains(messages[1].Content, "xxxx") {
			t.Fatal("context leaked into the prompt")
		}
	})
}

func TestStructuredContext(t *testing.T) {
	testScope(t).Call(func(
		run Run,
	) {
		dir := filepath.Join(t.TempDir(), "run")
		document := map[string]any{
			"title":    "Report",
			"sections": []string{"alpha", "beta"},
		}
		controller := script(t, repl(`FINAL(context["sections"][1])`))
		result, err := run(t.Context(), Request{
			Query:      "second section?",
			Context:    document,
			Controller: controller.gateway(),
			Delegate:   echoDelegate(),
			LogDir:     dir,
		})
		if err != nil {
			t.Fatal(err)
		}
		if result.Answer != "beta" {
			t.Fatalf("got %q", result.Answer)
		}

		text := `{"sections": ["alpha", "beta"], "title": "Report"}`
		if !strings.Contains(controller.received[0][1].Content, fmt.Sprintf("%d characters", len(text))) {
			t.Fatalf("got %q", controller.received[0][1].Content)
		}
		tasks, err := traces.ReadStream[traces.TaskEvent](filepath.Join(dir, traces.StreamTask.FileName()))
		if err != nil {
			t.Fatal(err)
		}
		if tasks[0].Context != text {
			t.Fatalf("got %q", tasks[0].Context)
		}
	})
}

func TestFinalStopsControllerCalls(t *testing.T) {
	testScope(t).Call(func(
		run Run,
	) {
		controller := script(t,
			repl(`x = 1`),
			repl(`FINAL("done")`)+"\n"+repl(`print("never")`),
			repl(`FINAL("too late")`),
		)
		result, err := run(t.Context(), Request{
			Query:      "q",
			Controller: controller.gateway(),
			Delegate:   echoDelegate(),
		})
		if err != nil {
			t.Fatal(err)
		}
		if result.Answer != "done" || result.Steps != 2 {
			t.Fatalf("got %+v", result)
		}
		if controller.calls() != 2 {
			t.Fatalf("got %d calls", controller.calls())
		}
	})
}

func TestPartialMutationPersists(t *testing.T) {
	testScope(t).Call(func(
		run Run,
	) {
		controller := script(t,
			repl("x = 1\nfail(\"boom\")\nx = 2"),
			repl(`FINAL(str(x))`),
		)
		result, err := run(t.Context(), Request{
			Query:      "q",
			Controller: controller.gateway(),
			Delegate:   echoDelegate(),
		})
		if err != nil {
			t.Fatal(err)
		}
		if result.Answer != "1" {
			t.Fatalf("got %q", result.Answer)
		}
		turns := controller.userTurns(1)
		if len(turns) != 2 {
			t.Fatalf("got %q", turns)
		}
		if !strings.Contains(turns[0], "[stderr]") || !strings.Contains(turns[0], "boom") {
			t.Fatalf("got %q", turns[0])
		}
		if !strings.HasPrefix(turns[1], "Step 2/15.") {
			t.Fatalf("got %q", turns[1])
		}
	})
}

func TestDelegateBatchOrder(t *testing.T) {
	testScope(t).Call(func(
		run Run,
	) {
		delegate := gateways.GatewayFunc{
			Name: "delegate",
			Func: func(ctx context.Context, messages []gateways.Message) (*gateways.Response, error) {
				i, err := strconv.Atoi(messages[0].Content)
				if err != nil {
					return nil, err
				}
				// earlier prompts finish last
				time.Sleep(time.Duration(8-i) * 5 * time.Millisecond)
				return &gateways.Response{
					Content: fmt.Sprintf("r%d", i),
					Usage: gateways.Usage{
						InputTokens:  1,
						OutputTokens: 1,
					},
				}, nil
			},
		}
		controller := script(t, repl(`
rs = delegate_batch([str(i) for i in range(8)])
FINAL(",".join(rs))
`))
		result, err := run(t.Context(), Request{
			Query:      "q",
			Controller: controller.gateway(),
			Delegate:   delegate,
		})
		if err != nil {
			t.Fatal(err)
		}
		if result.Answer != "r0,r1,r2,r3,r4,r5,r6,r7" {
			t.Fatalf("got %q", result.Answer)
		}
		if result.DelegateCalls != 8 {
			t.Fatalf("got %d", result.DelegateCalls)
		}
		if result.DelegateUsage != (gateways.Usage{InputTokens: 8, OutputTokens: 8}) {
			t.Fatalf("got %+v", result.DelegateUsage)
		}
	})
}

func TestDelegateConcurrencyLimit(t *testing.T) {
	testScope(t).Call(func(
		run Run,
	) {
		var mu sync.Mutex
		var running, peak int
		delegate := gateways.GatewayFunc{
			Name: "delegate",
			Func: func(ctx context.Context, messages []gateways.Message) (*gateways.Response, error) {
				mu.Lock()
				running++
				peak = max(peak, running)
				mu.Unlock()
				time.Sleep(10 * time.Millisecond)
				mu.Lock()
				running--
				mu.Unlock()
				return &gateways.Response{Content: "ok"}, nil
			},
		}
		controller := script(t, repl(`
rs = delegate_batch(["p"] * 6)
FINAL(str(len(rs)))
`))
		result, err := run(t.Context(), Request{
			Query:               "q",
			Controller:          controller.gateway(),
			Delegate:            delegate,
			DelegateConcurrency: 2,
		})
		if err != nil {
			t.Fatal(err)
		}
		if result.Answer != "6" {
			t.Fatalf("got %q", result.Answer)
		}
		if peak > 2 {
			t.Fatalf("got peak %d", peak)
		}
	})
}

func TestDelegateError(t *testing.T) {
	testScope(t).Call(func(
		run Run,
	) {
		delegate := gateways.GatewayFunc{
			Name: "delegate",
			Func: func(ctx context.Context, messages []gateways.Message) (*gateways.Response, error) {
				if messages[0].Content == "bad" {
					return nil, errors.New("rate limited")
				}
				return &gateways.Response{
					Content: "good",
					Usage:   gateways.Usage{InputTokens: 1},
				}, nil
			},
		}
		controller := script(t,
			repl(`
a = delegate("bad")
b = delegate_batch(["ok", "bad"])
print(a)
`),
			repl(`FINAL(b[0] + "|" + b[1])`),
		)
		result, err := run(t.Context(), Request{
			Query:      "q",
			Controller: controller.gateway(),
			Delegate:   delegate,
		})
		if err != nil {
			t.Fatal(err)
		}
		if result.Answer != "good|ERROR: delegate call failed: rate limited" {
			t.Fatalf("got %q", result.Answer)
		}
		if result.DelegateCalls != 3 {
			t.Fatalf("got %d", result.DelegateCalls)
		}
		if result.DelegateUsage.InputTokens != 1 {
			t.Fatalf("got %+v", result.DelegateUsage)
		}
		a, ok := result.Namespace["a"]
		if !ok {
			t.Fatal("a not bound")
		}
		if s, _ := starlark.AsString(a); s != "ERROR: delegate call failed: rate limited" {
			t.Fatalf("got %q", s)
		}
	})
}

func TestStructuredOutputSuffix(t *testing.T) {
	testScope(t).Call(func(
		run Run,
	) {
		var mu sync.Mutex
		var received []string
		delegate := gateways.GatewayFunc{
			Name: "delegate",
			Func: func(ctx context.Context, messages []gateways.Message) (*gateways.Response, error) {
				mu.Lock()
				received = append(received, messages[0].Content)
				mu.Unlock()
				return &gateways.Response{Content: "answer: x"}, nil
			},
		}
		controller := script(t, repl(`
delegate("a")
delegate_batch(["b"])
FINAL("ok")
`))
		_, err := run(t.Context(), Request{
			Query:      "q",
			Controller: controller.gateway(),
			Delegate:   delegate,
			Features: prompts.Features{
				StructuredOutput: true,
			},
		})
		if err != nil {
			t.Fatal(err)
		}
		if len(received) != 2 {
			t.Fatalf("got %d", len(received))
		}
		for _, p := range received {
			if !strings.HasSuffix(p, prompts.StructuredOutputSuffix) {
				t.Fatalf("got %q", p)
			}
		}
	})
}

func TestZeroFragments(t *testing.T) {
	testScope(t).Call(func(
		run Run,
	) {
		controller := script(t,
			"Let me think about it.",
			repl(`FINAL("x")`),
		)
		result, err := run(t.Context(), Request{
			Query:      "q",
			Controller: controller.gateway(),
			Delegate:   echoDelegate(),
		})
		if err != nil {
			t.Fatal(err)
		}
		if result.Steps != 2 || result.Answer != "x" {
			t.Fatalf("got %+v", result)
		}
		turns := controller.userTurns(1)
		if len(turns) != 2 || turns[0] != prompts.NoCode {
			t.Fatalf("got %q", turns)
		}
		history := controller.received[1]
		if history[2].Role != gateways.RoleAssistant || history[2].Content != "Let me think about it." {
			t.Fatalf("got %+v", history[2])
		}
	})
}

func TestTruncation(t *testing.T) {
	testScope(t).Call(func(
		run Run,
	) {
		dir := filepath.Join(t.TempDir(), "run")
		controller := script(t,
			repl(`print("é" * 50)`),
			repl(`FINAL("ok")`),
		)
		_, err := run(t.Context(), Request{
			Query:       "q",
			Controller:  controller.gateway(),
			Delegate:    echoDelegate(),
			OutputLimit: 10,
			LogDir:      dir,
		})
		if err != nil {
			t.Fatal(err)
		}
		full := strings.Repeat("é", 50) + "\n"
		turns := controller.userTurns(1)
		if len(turns) != 2 {
			t.Fatalf("got %q", turns)
		}
		if turns[0] != string([]rune(full)[:10]) {
			t.Fatalf("got %q", turns[0])
		}
		if !strings.Contains(turns[1], prompts.Truncated(10, len([]rune(full)))) {
			t.Fatalf("got %q", turns[1])
		}

		executions, err := traces.ReadStream[traces.ExecutionEvent](filepath.Join(dir, traces.StreamExecution.FileName()))
		if err != nil {
			t.Fatal(err)
		}
		if len(executions) != 2 {
			t.Fatalf("got %d", len(executions))
		}
		if executions[0].Stdout != full {
			t.Fatalf("got %q", executions[0].Stdout)
		}
	})
}

func TestExecutionLogKeepsBytes(t *testing.T) {
	testScope(t).Call(func(
		run Run,
	) {
		dir := filepath.Join(t.TempDir(), "run")
		controller := script(t,
			repl(`print(context[:1] + "abc")`),
			repl(`FINAL("ok")`),
		)
		_, err := run(t.Context(), Request{
			Query:      "q",
			Context:    "é doc",
			Controller: controller.gateway(),
			Delegate:   echoDelegate(),
			LogDir:     dir,
		})
		if err != nil {
			t.Fatal(err)
		}
		produced := "\xc3abc\n"
		if turns := controller.userTurns(1); turns[0] != produced {
			t.Fatalf("got %q", turns[0])
		}

		executions, err := traces.ReadStream[traces.ExecutionEvent](filepath.Join(dir, traces.StreamExecution.FileName()))
		if err != nil {
			t.Fatal(err)
		}
		stdout, _ := executions[0].Output()
		if stdout != produced {
			t.Fatalf("got %q", stdout)
		}
	})
}

func TestBudgetExhausted(t *testing.T) {
	testScope(t).Call(func(
		run Run,
	) {
		controller := script(t,
			repl(`print("working")`),
			repl(`print("still working")`),
		)
		result, err := run(t.Context(), Request{
			Query:      "q",
			Controller: controller.gateway(),
			Delegate:   echoDelegate(),
			MaxSteps:   2,
		})
		if err != nil {
			t.Fatal(err)
		}
		if result.Status != StatusBudgetExhausted {
			t.Fatalf("got %v", result.Status)
		}
		if result.HasAnswer || result.Answer != "" {
			t.Fatalf("got %+v", result)
		}
		if result.Steps != 2 || controller.calls() != 2 {
			t.Fatalf("got %d steps %d calls", result.Steps, controller.calls())
		}
		if !strings.Contains(result.LastResponse, "still working") {
			t.Fatalf("got %q", result.LastResponse)
		}
		turns := controller.userTurns(1)
		if len(turns) != 2 {
			t.Fatalf("got %q", turns)
		}
		if !strings.Contains(turns[1], "LAST step") || !strings.Contains(turns[1], "FINAL") {
			t.Fatalf("got %q", turns[1])
		}
	})
}

func TestSandboxViolation(t *testing.T) {
	testScope(t).Call(func(
		run Run,
	) {
		controller := script(t,
			repl("x = 1\nopen(\"/etc/passwd\")\nx = 2"),
			repl("import os"),
			repl(`FINAL(str(x))`),
		)
		result, err := run(t.Context(), Request{
			Query:      "q",
			Controller: controller.gateway(),
			Delegate:   echoDelegate(),
		})
		if err != nil {
			t.Fatal(err)
		}
		if result.Status != StatusSuccess || result.Answer != "1" {
			t.Fatalf("got %+v", result)
		}
		for _, i := range []int{1, 2} {
			turns := controller.userTurns(i)
			if !strings.Contains(turns[0], "not allowed") {
				t.Fatalf("got %q", turns[0])
			}
		}
	})
}

func TestControllerFailure(t *testing.T) {
	testScope(t).Call(func(
		run Run,
	) {
		e := errors.New("connection refused")
		calls := 0
		controller := gateways.GatewayFunc{
			Name: "controller",
			Func: func(ctx context.Context, messages []gateways.Message) (*gateways.Response, error) {
				calls++
				if calls == 1 {
					return &gateways.Response{Content: repl(`x = 1`)}, nil
				}
				return nil, e
			},
		}
		result, err := run(t.Context(), Request{
			Query:      "q",
			Controller: controller,
			Delegate:   echoDelegate(),
		})
		if !errors.Is(err, ErrControllerCall) || !errors.Is(err, e) {
			t.Fatalf("got %v", err)
		}
		if !strings.Contains(err.Error(), "span: ") {
			t.Fatalf("got %v", err)
		}
		if result == nil {
			t.Fatal("expected result")
		}
		if result.Status != StatusFailed || result.HasAnswer {
			t.Fatalf("got %+v", result)
		}
		if result.Steps != 2 || calls != 2 {
			t.Fatalf("got %d", result.Steps)
		}
	})
}

func TestNilResponse(t *testing.T) {
	testScope(t).Call(func(
		run Run,
	) {
		empty := gateways.GatewayFunc{
			Name: "empty",
			Func: func(ctx context.Context, messages []gateways.Message) (*gateways.Response, error) {
				return nil, nil
			},
		}

		result, err := run(t.Context(), Request{
			Query:      "q",
			Controller: empty,
			Delegate:   echoDelegate(),
		})
		if !errors.Is(err, ErrControllerCall) || !errors.Is(err, gateways.ErrNoResponse) {
			t.Fatalf("got %v", err)
		}
		if result.Status != StatusFailed {
			t.Fatalf("got %+v", result)
		}

		controller := script(t, repl(`
a = delegate("x")
bs = delegate_batch(["y"])
FINAL(a + "|" + bs[0])
`))
		result, err = run(t.Context(), Request{
			Query:      "q",
			Controller: controller.gateway(),
			Delegate:   empty,
		})
		if err != nil {
			t.Fatal(err)
		}
		parts := strings.Split(result.Answer, "|")
		if len(parts) != 2 {
			t.Fatalf("got %q", result.Answer)
		}
		for _, part := range parts {
			if !strings.HasPrefix(part, delegateErrorPrefix) || !strings.Contains(part, "no response") {
				t.Fatalf("got %q", part)
			}
		}
		if result.DelegateCalls != 2 {
			t.Fatalf("got %d", result.DelegateCalls)
		}
	})
}

func TestCapabilities(t *testing.T) {
	testScope(t).Call(func(
		run Run,
	) {
		controller := script(t, repl(`FINAL(str(add(1, 2)) + unit)`))
		result, err := run(t.Context(), Request{
			Query:      "q",
			Controller: controller.gateway(),
			Delegate:   echoDelegate(),
			Capabilities: map[string]any{
				"add": starlark.NewBuiltin("add", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
					var x, y int
					if err := starlark.UnpackArgs(b.Name(), args, kwargs, "x", &x, "y", &y); err != nil {
						return nil, err
					}
					return starlark.MakeInt(x + y), nil
				}),
				"unit": "kg",
			},
		})
		if err != nil {
			t.Fatal(err)
		}
		if result.Answer != "3kg" {
			t.Fatalf("got %q", result.Answer)
		}
	})
}

func TestInvalidRequest(t *testing.T) {
	testScope(t).Call(func(
		run Run,
	) {
		_, err := run(t.Context(), Request{
			Delegate: echoDelegate(),
		})
		if !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("got %v", err)
		}
		_, err = run(t.Context(), Request{
			Controller: echoDelegate(),
			Delegate:   echoDelegate(),
			MaxSteps:   -1,
		})
		if !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("got %v", err)
		}
		_, err = run(t.Context(), Request{
			Context:    make(chan int),
			Controller: echoDelegate(),
			Delegate:   echoDelegate(),
		})
		if !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("got %v", err)
		}
	})
}

func TestTraces(t *testing.T) {
	testScope(t).Call(func(
		run Run,
	) {
		dir := filepath.Join(t.TempDir(), "run")
		controller := script(t,
			repl(`
a = delegate("x")
bs = delegate_batch(["y", "z"])
`),
			repl(`FINAL(a)`),
		)
		result, err := run(t.Context(), Request{
			Query:      "q",
			Context:    "ctx",
			Controller: controller.gateway(),
			Delegate:   echoDelegate(),
			LogDir:     dir,
		})
		if err != nil {
			t.Fatal(err)
		}

		summary, err := traces.Summarize(dir)
		if err != nil {
			t.Fatal(err)
		}
		if summary.RunID != result.RunID {
			t.Fatalf("got %q", summary.RunID)
		}
		if summary.Steps != 2 || summary.ControllerCalls != 2 {
			t.Fatalf("got %+v", summary)
		}
		if summary.ControllerUsage != result.ControllerUsage {
			t.Fatalf("got %+v", summary.ControllerUsage)
		}
		if summary.DelegateCalls != 3 || summary.DelegateUsage != result.DelegateUsage {
			t.Fatalf("got %+v", summary)
		}
		if summary.Status != string(StatusSuccess) || summary.Answer != "echo:x" {
			t.Fatalf("got %+v", summary)
		}

		delegates, err := traces.ReadStream[traces.DelegateEvent](filepath.Join(dir, traces.StreamDelegate.FileName()))
		if err != nil {
			t.Fatal(err)
		}
		if delegates[0].BatchIndex != nil {
			t.Fatal("single call has a batch index")
		}
		if delegates[2].BatchIndex == nil || vars.DerefOrZero(delegates[2].BatchIndex) != 1 || delegates[2].BatchSize != 2 {
			t.Fatalf("got %+v", delegates[2])
		}
		if delegates[1].Prompt != "y" || delegates[1].Response != "echo:y" {
			t.Fatalf("got %+v", delegates[1])
		}

		controllers, err := traces.ReadStream[traces.ControllerEvent](filepath.Join(dir, traces.StreamController.FileName()))
		if err != nil {
			t.Fatal(err)
		}
		if len(controllers[1].Messages) != 5 {
			t.Fatalf("got %d", len(controllers[1].Messages))
		}
	})
}
