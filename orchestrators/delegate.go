package orchestrators

import (
	"context"
	"time"

	"github.com/reusee/distill/gateways"
	"github.com/reusee/distill/prompts"
	"github.com/reusee/distill/traces"
	"github.com/reusee/distill/vars"
	"github.com/samber/lo"
)

const delegateErrorPrefix = "ERROR: delegate call failed: "

func (r *run) delegate(ctx context.Context, prompt string) string {
	return r.callDelegate(ctx, []string{prompt}, false)[0]
}

func (r *run) delegateBatch(ctx context.Context, inputs []string) []string {
	return r.callDelegate(ctx, inputs, true)
}

// callDelegate runs on the control goroutine; only the gateway calls fan out.
func (r *run) callDelegate(ctx context.Context, inputs []string, batch bool) []string {
	if len(inputs) == 0 {
		return []string{}
	}

	conversations := lo.Map(inputs, func(input string, _ int) []gateways.Message {
		if r.Features.StructuredOutput {
			input += prompts.StructuredOutputSuffix
		}
		return []gateways.Message{
			{
				Role:    gateways.RoleUser,
				Content: input,
			},
		}
	})

	start := time.Now()
	var results []gateways.Result
	if batch {
		results = gateways.SendBatch(ctx, r.Delegate, conversations, r.DelegateConcurrency)
	} else {
		resp, err := gateways.Send(ctx, r.Delegate, conversations[0])
		results = []gateways.Result{
			{
				Response: resp,
				Err:      err,
			},
		}
	}
	wallTime := time.Since(start)

	outputs := make([]string, len(results))
	for i, result := range results {
		event := traces.DelegateEvent{
			Step:      r.step,
			Timestamp: start,
			Kind:      traces.KindDelegate,
			Model:     r.Delegate.Model(),
			Prompt:    conversations[i][0].Content,
			Elapsed:   traces.SecondsOf(wallTime),
		}
		if batch {
			event.BatchIndex = vars.PtrTo(i)
			event.BatchSize = len(results)
		}

		var usage gateways.Usage
		if result.Err != nil {
			outputs[i] = delegateErrorPrefix + result.Err.Error()
			event.Error = result.Err.Error()
			r.logger.WarnContext(ctx, "delegate call failed",
				"step", r.step,
				"index", i,
				"error", result.Err,
			)
		} else {
			outputs[i] = result.Response.Content
			usage = result.Response.Usage
			event.Response = result.Response.Content
			event.Usage = usage
			if result.Response.Elapsed > 0 {
				event.Elapsed = traces.SecondsOf(result.Response.Elapsed)
			}
		}

		r.delegateUsage = r.delegateUsage.Add(usage)
		r.delegateCalls++
		r.metrics.ObserveDelegateCall(usage.InputTokens, usage.OutputTokens, result.Err)
		r.recorder.Record(traces.StreamDelegate, event)
	}

	return outputs
}
