package traces

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/reusee/distill/gateways"
	"github.com/samber/lo"
)

// ReadStream decodes every line of a JSONL file. A missing file reads as empty.
func ReadStream[T any](path string) (ret []T, err error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1<<20), 1<<30)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var v T
		if err := json.Unmarshal(line, &v); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNum, err)
		}
		ret = append(ret, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

type Summary struct {
	Dir             string
	RunID           string
	Query           string
	ControllerModel string
	DelegateModel   string
	Features        []string
	Status          string
	Answer          string
	HasAnswer       bool

	Steps           int
	ControllerCalls int
	ControllerUsage gateways.Usage
	DelegateCalls   int
	DelegateErrors  int
	DelegateUsage   gateways.Usage
	Fragments       int
	FragmentErrors  int
	Violations      int
	Elapsed         Seconds
}

func Summarize(dir string) (summary Summary, err error) {
	summary.Dir = dir

	controllers, err := ReadStream[ControllerEvent](filepath.Join(dir, StreamController.FileName()))
	if err != nil {
		return
	}
	delegates, err := ReadStream[DelegateEvent](filepath.Join(dir, StreamDelegate.FileName()))
	if err != nil {
		return
	}
	executions, err := ReadStream[ExecutionEvent](filepath.Join(dir, StreamExecution.FileName()))
	if err != nil {
		return
	}
	tasks, err := ReadStream[TaskEvent](filepath.Join(dir, StreamTask.FileName()))
	if err != nil {
		return
	}

	summary.ControllerCalls = len(controllers)
	for _, event := range controllers {
		summary.Steps = max(summary.Steps, event.Step)
		summary.ControllerUsage = summary.ControllerUsage.Add(event.Usage)
		if summary.ControllerModel == "" {
			summary.ControllerModel = event.Model
		}
	}

	summary.DelegateCalls = len(delegates)
	summary.DelegateErrors = lo.CountBy(delegates, func(event DelegateEvent) bool {
		return event.Error != ""
	})
	for _, event := range delegates {
		summary.DelegateUsage = summary.DelegateUsage.Add(event.Usage)
		if summary.DelegateModel == "" {
			summary.DelegateModel = event.Model
		}
	}

	summary.Fragments = len(executions)
	for _, event := range executions {
		if event.Error != "" {
			summary.FragmentErrors++
		}
		if event.Violation {
			summary.Violations++
		}
		if event.Final && !summary.HasAnswer {
			summary.HasAnswer = true
		}
	}

	for _, event := range tasks {
		switch event.Kind {
		case KindInput:
			summary.RunID = event.RunID
			summary.Query = event.Query
			summary.Features = event.Features
			summary.ControllerModel = lo.CoalesceOrEmpty(event.ControllerModel, summary.ControllerModel)
			summary.DelegateModel = lo.CoalesceOrEmpty(event.DelegateModel, summary.DelegateModel)
		case KindOutput:
			summary.Status = event.Status
			summary.Answer = event.Answer
			summary.HasAnswer = event.HasAnswer
			summary.Elapsed = event.Elapsed
			summary.Steps = max(summary.Steps, event.Steps)
		}
	}

	return summary, nil
}

// RunDirs expands paths: a directory holding a controller stream is a run,
// otherwise its immediate subdirectories holding one are runs.
func RunDirs(paths ...string) (dirs []string, err error) {
	isRun := func(dir string) bool {
		_, err := os.Stat(filepath.Join(dir, StreamController.FileName()))
		return err == nil
	}
	for _, path := range paths {
		if isRun(path) {
			dirs = append(dirs, path)
			continue
		}
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			child := filepath.Join(path, entry.Name())
			if isRun(child) {
				dirs = append(dirs, child)
			}
		}
	}
	slices.Sort(dirs)
	return lo.Uniq(dirs), nil
}
