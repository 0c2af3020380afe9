package orchestrators

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/reusee/distill/gateways"
	"github.com/reusee/distill/logs"
	"github.com/reusee/distill/metrics"
	"github.com/reusee/distill/prompts"
	"github.com/reusee/distill/repls"
	"github.com/reusee/distill/traces"
)

type run struct {
	Request

	id       string
	logger   logs.Logger
	recorder traces.Recorder
	metrics  *metrics.Metrics
	env      *repls.Env

	messages []gateways.Message
	step     int
	start    time.Time

	controllerUsage gateways.Usage
	delegateUsage   gateways.Usage
	delegateCalls   int
	lastResponse    string

	status    Status
	answer    string
	hasAnswer bool
	err       error
}

// Run answers one query. On a controller failure the result is returned along with an error wrapping ErrControllerCall.
type Run func(ctx context.Context, req Request) (*Result, error)

func (Module) Run(
	logger logs.Logger,
	newSpan logs.NewSpan,
	countTokens gateways.BPETokenCounter,
	m *metrics.Metrics,
) Run {
	return func(ctx context.Context, req Request) (*Result, error) {
		req = req.withDefaults()
		if err := req.validate(); err != nil {
			return nil, err
		}
		contextText, err := repls.ContextText(req.Context)
		if err != nil {
			return nil, errors.Join(ErrInvalidRequest, err)
		}

		ctx, _ = newSpan(ctx, "")

		r := &run{
			Request: req,
			id:      uuid.NewString(),
			logger:  logger,
			metrics: m,
			start:   time.Now(),
		}

		recorder := traces.Open(req.LogDir, logger)
		if closer, ok := recorder.(interface{ Close() error }); ok {
			defer closer.Close()
		}
		r.recorder = recorder

		env, err := repls.New(repls.Config{
			Query:            req.Query,
			Context:          req.Context,
			Delegate:         r.delegate,
			DelegateBatch:    r.delegateBatch,
			Capabilities:     req.Capabilities,
			Features:         req.Features,
			FragmentTimeout:  req.FragmentTimeout,
			FragmentMaxSteps: req.FragmentMaxSteps,
		})
		if err != nil {
			return nil, err
		}
		r.env = env

		contextTokens, err := countTokens(contextText)
		if err != nil {
			logger.WarnContext(ctx, "count context tokens", "error", err)
			contextTokens = 0
		}
		r.messages = prompts.Initial(
			prompts.Params{
				DelegateContextK: req.DelegateContextK,
				OutputLimit:      req.OutputLimit,
				Features:         req.Features,
			},
			req.Query,
			utf8.RuneCountInString(contextText),
			contextTokens,
		)

		logger.InfoContext(ctx, "run start",
			"run", r.id,
			"controller", req.Controller.Model(),
			"delegate", req.Delegate.Model(),
			"max_steps", req.MaxSteps,
			"features", req.Features.Label(),
		)
		r.recorder.Record(traces.StreamTask, traces.TaskEvent{
			Timestamp:       r.start,
			Kind:            traces.KindInput,
			RunID:           r.id,
			Query:           req.Query,
			Context:         contextText,
			Label:           req.Features.Label(),
			Features:        req.Features.Names(),
			ControllerModel: req.Controller.Model(),
			DelegateModel:   req.Delegate.Model(),
			MaxSteps:        req.MaxSteps,
		})

		if err := r.drive(ctx); err != nil {
			return nil, err
		}

		result := r.result()
		r.metrics.ObserveRun(string(result.Status), result.Steps, result.Elapsed)

		output := traces.TaskEvent{
			Timestamp:       time.Now(),
			Kind:            traces.KindOutput,
			RunID:           r.id,
			Status:          string(result.Status),
			Answer:          result.Answer,
			HasAnswer:       result.HasAnswer,
			Steps:           result.Steps,
			ControllerUsage: result.ControllerUsage,
			DelegateUsage:   result.DelegateUsage,
			Elapsed:         traces.SecondsOf(result.Elapsed),
		}
		if r.err != nil {
			output.Error = r.err.Error()
		}
		r.recorder.Record(traces.StreamTask, output)

		logger.InfoContext(ctx, "run end",
			"run", r.id,
			"status", result.Status,
			"steps", result.Steps,
			"controller_tokens", result.ControllerUsage.Total(),
			"delegate_tokens", result.DelegateUsage.Total(),
			"elapsed", result.Elapsed,
		)

		return result, logs.WrapSpan(ctx, r.err)
	}
}

func (r *run) result() *Result {
	return &Result{
		RunID:           r.id,
		Status:          r.status,
		Answer:          r.answer,
		HasAnswer:       r.hasAnswer,
		Steps:           r.step,
		ControllerUsage: r.controllerUsage,
		DelegateUsage:   r.delegateUsage,
		DelegateCalls:   r.delegateCalls,
		Elapsed:         time.Since(r.start),
		LastResponse:    r.lastResponse,
		Namespace:       r.env.Namespace(),
	}
}
