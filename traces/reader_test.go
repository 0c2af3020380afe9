package traces

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/reusee/distill/gateways"
)

func writeRun(t *testing.T, dir string) {
	t.Helper()
	rec := Open(dir, nil).(*FileRecorder)
	defer rec.Close()
	rec.Record(StreamTask, TaskEvent{
		Kind:            KindInput,
		RunID:           "run-1",
		Query:           "q",
		Features:        []string{"structured_jobs"},
		ControllerModel: "org/controller",
	})
	for step := 1; step <= 3; step++ {
		rec.Record(StreamController, ControllerEvent{
			Step:  step,
			Kind:  KindController,
			Model: "org/controller",
			Usage: gateways.Usage{InputTokens: 1000, OutputTokens: 10},
		})
	}
	rec.Record(StreamDelegate, DelegateEvent{
		Step:  1,
		Kind:  KindDelegate,
		Model: "delegate",
		Usage: gateways.Usage{InputTokens: 3, OutputTokens: 4},
	})
	rec.Record(StreamDelegate, DelegateEvent{
		Step:  2,
		Kind:  KindDelegate,
		Model: "delegate",
		Error: "boom",
	})
	rec.Record(StreamExecution, ExecutionEvent{Step: 1, Kind: KindExecution})
	rec.Record(StreamExecution, ExecutionEvent{Step: 2, Kind: KindExecution, Error: "sandbox violation", Violation: true})
	rec.Record(StreamExecution, ExecutionEvent{Step: 3, Kind: KindExecution, Final: true})
	rec.Record(StreamTask, TaskEvent{
		Kind:      KindOutput,
		RunID:     "run-1",
		Status:    "success",
		Answer:    "42",
		HasAnswer: true,
		Steps:     3,
		Elapsed:   1.5,
	})
}

func TestSummarize(t *testing.T) {
	dir := t.TempDir()
	writeRun(t, dir)

	s, err := Summarize(dir)
	if err != nil {
		t.Fatal(err)
	}
	if s.RunID != "run-1" {
		t.Fatalf("got %q", s.RunID)
	}
	if s.Steps != 3 || s.ControllerCalls != 3 {
		t.Fatalf("got %+v", s)
	}
	if s.ControllerUsage.InputTokens != 3000 || s.ControllerUsage.OutputTokens != 30 {
		t.Fatalf("got %+v", s.ControllerUsage)
	}
	if s.DelegateCalls != 2 || s.DelegateErrors != 1 {
		t.Fatalf("got %+v", s)
	}
	if s.DelegateUsage.Total() != 7 {
		t.Fatal()
	}
	if s.Fragments != 3 || s.FragmentErrors != 1 || s.Violations != 1 {
		t.Fatalf("got %+v", s)
	}
	if s.Status != "success" || s.Answer != "42" || !s.HasAnswer {
		t.Fatalf("got %+v", s)
	}
	if s.DelegateModel != "delegate" {
		t.Fatalf("got %q", s.DelegateModel)
	}
}

func TestSummarizeEmptyDir(t *testing.T) {
	s, err := Summarize(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if s.Steps != 0 || s.ControllerCalls != 0 || s.HasAnswer {
		t.Fatalf("got %+v", s)
	}
}

func TestRunDirs(t *testing.T) {
	parent := t.TempDir()
	writeRun(t, filepath.Join(parent, "b"))
	writeRun(t, filepath.Join(parent, "a"))
	if err := os.MkdirAll(filepath.Join(parent, "empty"), 0o755); err != nil {
		t.Fatal(err)
	}

	dirs, err := RunDirs(parent)
	if err != nil {
		t.Fatal(err)
	}
	if len(dirs) != 2 {
		t.Fatalf("got %v", dirs)
	}
	if filepath.Base(dirs[0]) != "a" {
		t.Fatalf("got %v", dirs)
	}

	dirs, err = RunDirs(filepath.Join(parent, "a"), filepath.Join(parent, "a"))
	if err != nil {
		t.Fatal(err)
	}
	if len(dirs) != 1 {
		t.Fatalf("got %v", dirs)
	}

	if _, err := RunDirs(filepath.Join(parent, "missing")); err == nil {
		t.Fatal("expected error")
	}
}

func TestWriteTable(t *testing.T) {
	dir := t.TempDir()
	writeRun(t, dir)
	s, err := Summarize(dir)
	if err != nil {
		t.Fatal(err)
	}
	buf := new(bytes.Buffer)
	if err := WriteTable(buf, []Summary{s}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "3,000") {
		t.Fatalf("got %s", out)
	}
	if strings.Contains(out, "org/") {
		t.Fatalf("model not shortened: %s", out)
	}
	if !strings.Contains(out, "success") {
		t.Fatalf("got %s", out)
	}
}
