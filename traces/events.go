package traces

import (
	"time"
	"unicode/utf8"

	"github.com/reusee/distill/gateways"
)

type Stream string

const (
	StreamController Stream = "controller"
	StreamDelegate   Stream = "delegate"
	StreamExecution  Stream = "execution"
	StreamTask       Stream = "task"
)

var Streams = []Stream{
	StreamController,
	StreamDelegate,
	StreamExecution,
	StreamTask,
}

func (s Stream) FileName() string {
	return string(s) + ".jsonl"
}

const (
	KindController = "controller"
	KindDelegate   = "delegate"
	KindExecution  = "execution"
	KindInput      = "input"
	KindOutput     = "output"
)

// Seconds is a duration encoded as fractional seconds.
type Seconds float64

func SecondsOf(d time.Duration) Seconds {
	return Seconds(d.Seconds())
}

func (s Seconds) Duration() time.Duration {
	return time.Duration(float64(s) * float64(time.Second))
}

type ControllerEvent struct {
	Step      int                `json:"step"`
	Timestamp time.Time          `json:"timestamp"`
	Kind      string             `json:"kind"`
	Model     string             `json:"model"`
	Messages  []gateways.Message `json:"messages"`
	Response  string             `json:"response"`
	Error     string             `json:"error,omitempty"`
	Usage     gateways.Usage     `json:"usage"`
	Elapsed   Seconds            `json:"elapsed"`
}

type DelegateEvent struct {
	Step       int            `json:"step"`
	Timestamp  time.Time      `json:"timestamp"`
	Kind       string         `json:"kind"`
	Model      string         `json:"model"`
	Prompt     string         `json:"prompt"`
	Response   string         `json:"response"`
	Error      string         `json:"error,omitempty"`
	Usage      gateways.Usage `json:"usage"`
	Elapsed    Seconds        `json:"elapsed"`
	BatchIndex *int           `json:"batch_index,omitempty"`
	BatchSize  int            `json:"batch_size,omitempty"`
}

type ExecutionEvent struct {
	Step          int       `json:"step"`
	Timestamp     time.Time `json:"timestamp"`
	Kind          string    `json:"kind"`
	FragmentIndex int       `json:"fragment_index"`
	Code          string    `json:"code"`
	Stdout        string    `json:"stdout"`
	Stderr        string    `json:"stderr"`
	Error         string    `json:"error,omitempty"`
	Violation     bool      `json:"violation,omitempty"`
	Final         bool      `json:"final,omitempty"`
	Skipped       bool      `json:"skipped,omitempty"`
	Elapsed       Seconds   `json:"elapsed"`

	// set when the text is not valid UTF-8, encoded as base64
	StdoutBytes []byte `json:"stdout_bytes,omitempty"`
	StderrBytes []byte `json:"stderr_bytes,omitempty"`
}

// SetOutput stores stdout and stderr, keeping the exact bytes of invalid UTF-8 text.
func (e *ExecutionEvent) SetOutput(stdout, stderr string) {
	e.Stdout = stdout
	e.Stderr = stderr
	e.StdoutBytes = nil
	e.StderrBytes = nil
	if !utf8.ValidString(stdout) {
		e.StdoutBytes = []byte(stdout)
	}
	if !utf8.ValidString(stderr) {
		e.StderrBytes = []byte(stderr)
	}
}

// Output returns stdout and stderr exactly as produced.
func (e ExecutionEvent) Output() (stdout, stderr string) {
	stdout, stderr = e.Stdout, e.Stderr
	if e.StdoutBytes != nil {
		stdout = string(e.StdoutBytes)
	}
	if e.StderrBytes != nil {
		stderr = string(e.StderrBytes)
	}
	return
}

// TaskEvent records a run's input (Kind "input") and outcome (Kind "output").
type TaskEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	RunID     string    `json:"run_id"`

	// input
	Query           string   `json:"query,omitempty"`
	Context         string   `json:"context,omitempty"`
	Label           string   `json:"label,omitempty"`
	Features        []string `json:"features,omitempty"`
	ControllerModel string   `json:"controller_model,omitempty"`
	DelegateModel   string   `json:"delegate_model,omitempty"`
	MaxSteps        int      `json:"max_steps,omitempty"`

	// output
	Status          string         `json:"status,omitempty"`
	Answer          string         `json:"answer,omitempty"`
	HasAnswer       bool           `json:"has_answer,omitempty"`
	Steps           int            `json:"steps,omitempty"`
	ControllerUsage gateways.Usage `json:"controller_usage"`
	DelegateUsage   gateways.Usage `json:"delegate_usage"`
	Error           string         `json:"error,omitempty"`
	Elapsed         Seconds        `json:"elapsed,omitempty"`
}
