package orchestrators

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/reusee/distill/gateways"
	"github.com/reusee/distill/metrics"
	"github.com/reusee/distill/prompts"
	"github.com/reusee/distill/repls"
	"github.com/reusee/distill/traces"
)

// phase is one state of the control loop. A nil next phase terminates the run.
type phase func(ctx context.Context, r *run) (phase, error)

func (r *run) drive(ctx context.Context) error {
	p := awaitController
	for p != nil {
		next, err := p(ctx, r)
		if err != nil {
			return err
		}
		p = next
	}
	return nil
}

func awaitController(ctx context.Context, r *run) (phase, error) {
	if r.step >= r.MaxSteps {
		return terminate(StatusBudgetExhausted), nil
	}
	r.step++

	messages := slices.Clone(r.messages)
	start := time.Now()
	resp, err := gateways.Send(ctx, r.Controller, messages)
	elapsed := time.Since(start)

	event := traces.ControllerEvent{
		Step:      r.step,
		Timestamp: start,
		Kind:      traces.KindController,
		Model:     r.Controller.Model(),
		Messages:  messages,
		Elapsed:   traces.SecondsOf(elapsed),
	}

	if err != nil {
		event.Error = err.Error()
		r.recorder.Record(traces.StreamController, event)
		r.metrics.ObserveControllerCall(0, 0, err)
		r.logger.ErrorContext(ctx, "controller call failed",
			"step", r.step,
			"error", err,
		)
		r.err = fmt.Errorf("%w: step %d: %w", ErrControllerCall, r.step, err)
		return terminate(StatusFailed), nil
	}

	event.Response = resp.Content
	event.Usage = resp.Usage
	r.recorder.Record(traces.StreamController, event)
	r.metrics.ObserveControllerCall(resp.Usage.InputTokens, resp.Usage.OutputTokens, nil)
	r.controllerUsage = r.controllerUsage.Add(resp.Usage)
	r.lastResponse = resp.Content

	r.messages = append(r.messages, gateways.Message{
		Role:    gateways.RoleAssistant,
		Content: resp.Content,
	})

	fragments := ExtractFragments(resp.Content)
	r.logger.InfoContext(ctx, "controller replied",
		"step", r.step,
		"fragments", len(fragments),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"elapsed", elapsed,
	)

	return execute(fragments), nil
}

func execute(fragments []string) phase {
	return func(ctx context.Context, r *run) (phase, error) {
		results := make([]repls.ExecResult, 0, len(fragments))

		for i, code := range fragments {
			result := r.env.Execute(ctx, code)
			if result.Skipped {
				break
			}
			results = append(results, result)

			event := traces.ExecutionEvent{
				Step:          r.step,
				Timestamp:     time.Now(),
				Kind:          traces.KindExecution,
				FragmentIndex: i,
				Code:          code,
				Error:         result.Error,
				Violation:     result.Violation,
				Final:         result.Final,
				Elapsed:       traces.SecondsOf(result.Elapsed),
			}
			event.SetOutput(result.Stdout, result.Stderr)
			r.recorder.Record(traces.StreamExecution, event)

			switch {
			case result.Final:
				r.metrics.ObserveFragment(metrics.OutcomeFinal)
			case result.Violation:
				r.metrics.ObserveFragment(metrics.OutcomeViolation)
				r.logger.WarnContext(ctx, "sandbox violation",
					"step", r.step,
					"fragment", i,
					"error", result.Error,
				)
			case result.Error != "":
				r.metrics.ObserveFragment(metrics.OutcomeError)
				r.logger.DebugContext(ctx, "fragment error",
					"step", r.step,
					"fragment", i,
					"error", result.Error,
				)
			default:
				r.metrics.ObserveFragment(metrics.OutcomeOK)
			}

			if result.Final {
				break
			}
		}

		if answer, ok := r.env.Final(); ok {
			r.answer = answer
			r.hasAnswer = true
			return terminate(StatusSuccess), nil
		}

		if r.step >= r.MaxSteps {
			return terminate(StatusBudgetExhausted), nil
		}

		return appendFeedback(results), nil
	}
}

func appendFeedback(results []repls.ExecResult) phase {
	return func(ctx context.Context, r *run) (phase, error) {
		shown, total, truncated := feedback(results, r.OutputLimit)
		nudge := prompts.Nudge(r.step, r.MaxSteps, r.Features)
		if truncated {
			nudge = prompts.Truncated(r.OutputLimit, total) + "\n\n" + nudge
		}
		r.messages = append(r.messages,
			gateways.Message{
				Role:    gateways.RoleUser,
				Content: shown,
			},
			gateways.Message{
				Role:    gateways.RoleUser,
				Content: nudge,
			},
		)
		return awaitController, nil
	}
}

func terminate(status Status) phase {
	return func(ctx context.Context, r *run) (phase, error) {
		r.status = status
		return nil, nil
	}
}
