package orchestrators

import (
	"errors"
	"time"

	"github.com/reusee/distill/gateways"
	"github.com/reusee/distill/prompts"
	"go.starlark.net/starlark"
)

var (
	ErrControllerCall = errors.New("controller call failed")
	ErrInvalidRequest = errors.New("invalid request")
)

const (
	DefaultMaxSteps         = 15
	DefaultOutputLimit      = 2000
	DefaultDelegateContextK = 8
)

type Request struct {
	Query string
	// text, or a structured document of maps, slices and scalars
	Context any

	Controller gateways.Gateway
	Delegate   gateways.Gateway

	// zero values take the defaults above
	MaxSteps         int
	OutputLimit      int
	DelegateContextK int

	// zero is unbounded
	DelegateConcurrency int
	FragmentTimeout     time.Duration
	FragmentMaxSteps    uint64

	Features prompts.Features
	// extra names bound in the namespace
	Capabilities map[string]any

	// trace directory, empty disables tracing
	LogDir string
}

func (r Request) withDefaults() Request {
	if r.MaxSteps == 0 {
		r.MaxSteps = DefaultMaxSteps
	}
	if r.OutputLimit == 0 {
		r.OutputLimit = DefaultOutputLimit
	}
	if r.DelegateContextK == 0 {
		r.DelegateContextK = DefaultDelegateContextK
	}
	return r
}

func (r Request) validate() error {
	switch {
	case r.Controller == nil:
		return errors.Join(ErrInvalidRequest, errors.New("no controller gateway"))
	case r.Delegate == nil:
		return errors.Join(ErrInvalidRequest, errors.New("no delegate gateway"))
	case r.MaxSteps < 0:
		return errors.Join(ErrInvalidRequest, errors.New("negative step limit"))
	case r.OutputLimit < 0:
		return errors.Join(ErrInvalidRequest, errors.New("negative output limit"))
	case r.DelegateConcurrency < 0:
		return errors.Join(ErrInvalidRequest, errors.New("negative delegate concurrency"))
	}
	return nil
}

type Status string

const (
	StatusSuccess         Status = "success"
	StatusBudgetExhausted Status = "budget_exhausted"
	StatusFailed          Status = "failed"
)

type Result struct {
	RunID  string
	Status Status

	// set only on success
	Answer    string
	HasAnswer bool

	Steps           int
	ControllerUsage gateways.Usage
	DelegateUsage   gateways.Usage
	DelegateCalls   int
	Elapsed         time.Duration

	// the last controller reply, kept for callers that want to salvage an informal answer
	LastResponse string
	// the namespace after the last fragment
	Namespace starlark.StringDict
}
