package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/reusee/distill/cmds"
	"github.com/reusee/distill/debugs"
	"github.com/reusee/distill/distillconfigs"
	"github.com/reusee/distill/gateways"
	"github.com/reusee/distill/logs"
	"github.com/reusee/distill/metrics"
	"github.com/reusee/distill/orchestrators"
	"github.com/reusee/distill/storages"
	"golang.org/x/term"
)

var (
	queryFlag       = cmds.Var[string]("query")
	contextFlag     = cmds.Var[string]("context")
	jsonContextFlag = cmds.Switch("-json-context")
)

// Query runs one question and returns the process exit code.
type Query func(ctx context.Context, out io.Writer) int

func (Module) Query(
	logger logs.Logger,
	run orchestrators.Run,
	getGateway gateways.GetGateway,
	controllerModel distillconfigs.ControllerModel,
	delegateModel distillconfigs.DelegateModel,
	maxSteps distillconfigs.MaxSteps,
	outputLimit distillconfigs.OutputLimit,
	contextK distillconfigs.DelegateContextK,
	concurrency distillconfigs.DelegateConcurrency,
	getFragmentTimeout distillconfigs.GetFragmentTimeout,
	fragmentMaxSteps distillconfigs.FragmentMaxSteps,
	getFeatures distillconfigs.GetFeatures,
	logDir distillconfigs.LogDir,
	dbPath distillconfigs.DBPath,
	metricsFile distillconfigs.MetricsFile,
	m *metrics.Metrics,
	tapEnabled debugs.TapEnabled,
	tap debugs.Tap,
) Query {
	return func(ctx context.Context, out io.Writer) int {
		fail := func(err error) int {
			logger.ErrorContext(ctx, "query failed", "error", err)
			fmt.Fprintln(os.Stderr, err.Error())
			return 1
		}

		if *queryFlag == "" {
			return fail(errors.New(`no query, usage: distill query "<question>" context <file|->`))
		}
		content, err := readContext(*contextFlag)
		if err != nil {
			return fail(err)
		}
		document, err := decodeContext(content, *jsonContextFlag)
		if err != nil {
			return fail(err)
		}

		controller, err := getGateway(string(controllerModel))
		if err != nil {
			return fail(fmt.Errorf("controller: %w", err))
		}
		delegate, err := getGateway(string(delegateModel))
		if err != nil {
			return fail(fmt.Errorf("delegate: %w", err))
		}
		features, err := getFeatures()
		if err != nil {
			return fail(err)
		}
		fragmentTimeout, err := getFragmentTimeout()
		if err != nil {
			return fail(err)
		}

		var runDir string
		if logDir != "" {
			runDir = filepath.Join(string(logDir), time.Now().Format("20060102-150405"))
		}

		result, runErr := run(ctx, orchestrators.Request{
			Query:               *queryFlag,
			Context:             document,
			Controller:          controller,
			Delegate:            delegate,
			MaxSteps:            int(maxSteps),
			OutputLimit:         int(outputLimit),
			DelegateContextK:    int(contextK),
			DelegateConcurrency: int(concurrency),
			FragmentTimeout:     time.Duration(fragmentTimeout),
			FragmentMaxSteps:    uint64(fragmentMaxSteps),
			Features:            features,
			LogDir:              runDir,
		})
		if result == nil {
			return fail(runErr)
		}

		printResult(out, result)
		if runDir != "" {
			fmt.Fprintf(out, "Traces: %s\n", runDir)
		}

		if dbPath != "" {
			if err := recordRun(ctx, string(dbPath), result, orchestrators.Request{
				Query:      *queryFlag,
				Controller: controller,
				Delegate:   delegate,
				Features:   features,
				LogDir:     runDir,
			}, runErr); err != nil {
				logger.ErrorContext(ctx, "record run", "error", err)
			}
		}

		if metricsFile != "" {
			if err := m.WriteToTextfile(string(metricsFile)); err != nil {
				logger.ErrorContext(ctx, "write metrics", "error", err)
			}
		}

		if tapEnabled {
			if err := tap(ctx, "run "+result.RunID, result.Namespace, map[string]any{
				"status":        string(result.Status),
				"answer":        result.Answer,
				"steps":         result.Steps,
				"last_response": result.LastResponse,
			}); err != nil {
				logger.ErrorContext(ctx, "tap", "error", err)
			}
		}

		if runErr != nil {
			fmt.Fprintln(os.Stderr, runErr.Error())
			return 1
		}
		if result.Status != orchestrators.StatusSuccess {
			return 3
		}
		return 0
	}
}

// readContext reads a file, or stdin for "-". Without a path, piped stdin is used.
func readContext(path string) (string, error) {
	switch path {
	case "-":
		content, err := io.ReadAll(os.Stdin)
		return string(content), err
	case "":
		if term.IsTerminal(int(os.Stdin.Fd())) {
			return "", nil
		}
		content, err := io.ReadAll(os.Stdin)
		return string(content), err
	}
	content, err := os.ReadFile(path)
	return string(content), err
}

// decodeContext parses content as a JSON document when asJSON is set.
func decodeContext(content string, asJSON bool) (any, error) {
	if !asJSON {
		return content, nil
	}
	var document any
	if err := json.Unmarshal([]byte(content), &document); err != nil {
		return nil, fmt.Errorf("decode context: %w", err)
	}
	return document, nil
}

func printResult(out io.Writer, result *orchestrators.Result) {
	if result.HasAnswer {
		fmt.Fprintf(out, "Answer: %s\n", result.Answer)
	} else {
		fmt.Fprintln(out, "Answer: (none)")
	}
	fmt.Fprintf(out, "Status: %s\n", result.Status)
	fmt.Fprintf(out, "Steps: %d\n", result.Steps)
	fmt.Fprintf(out, "Controller tokens: %s in, %s out\n",
		humanize.Comma(int64(result.ControllerUsage.InputTokens)),
		humanize.Comma(int64(result.ControllerUsage.OutputTokens)),
	)
	fmt.Fprintf(out, "Delegate tokens: %s in, %s out (%d calls)\n",
		humanize.Comma(int64(result.DelegateUsage.InputTokens)),
		humanize.Comma(int64(result.DelegateUsage.OutputTokens)),
		result.DelegateCalls,
	)
	fmt.Fprintf(out, "Elapsed: %s\n", result.Elapsed.Round(time.Millisecond))
}

func recordRun(ctx context.Context, path string, result *orchestrators.Result, req orchestrators.Request, runErr error) error {
	store, err := storages.OpenRunStore(ctx, path)
	if err != nil {
		return err
	}
	defer store.Close()
	record := storages.RunRecord{
		ID:              result.RunID,
		Query:           req.Query,
		ControllerModel: req.Controller.Model(),
		DelegateModel:   req.Delegate.Model(),
		Features:        req.Features.Names(),
		Status:          string(result.Status),
		Answer:          result.Answer,
		HasAnswer:       result.HasAnswer,
		Steps:           result.Steps,
		ControllerIn:    result.ControllerUsage.InputTokens,
		ControllerOut:   result.ControllerUsage.OutputTokens,
		DelegateIn:      result.DelegateUsage.InputTokens,
		DelegateOut:     result.DelegateUsage.OutputTokens,
		DelegateCalls:   result.DelegateCalls,
		Elapsed:         result.Elapsed,
		LogDir:          req.LogDir,
	}
	if runErr != nil {
		record.Error = runErr.Error()
	}
	return store.Insert(ctx, record)
}
