package distillconfigs

import (
	"fmt"
	"time"

	"github.com/reusee/distill/cmds"
	"github.com/reusee/distill/configs"
	"github.com/reusee/distill/vars"
)

type MaxSteps int

var maxStepsFlag = cmds.Var[int]("-max-steps")

func (Module) MaxSteps(
	loader configs.Loader,
) MaxSteps {
	return MaxSteps(vars.FirstNonZero(
		*maxStepsFlag,
		configs.First[int](loader, "max_steps"),
		15,
	))
}

// OutputLimit is the number of characters of fragment output shown to the controller.
type OutputLimit int

var outputLimitFlag = cmds.Var[int]("-output-limit")

func (Module) OutputLimit(
	loader configs.Loader,
) OutputLimit {
	return OutputLimit(vars.FirstNonZero(
		*outputLimitFlag,
		configs.First[int](loader, "output_limit"),
		2000,
	))
}

// DelegateContextK is the delegate context window in thousands of tokens, used in prompt hints.
type DelegateContextK int

var delegateContextKFlag = cmds.Var[int]("-delegate-context-k")

func (Module) DelegateContextK(
	loader configs.Loader,
) DelegateContextK {
	return DelegateContextK(vars.FirstNonZero(
		*delegateContextKFlag,
		configs.First[int](loader, "delegate_context_k"),
		8,
	))
}

// DelegateConcurrency bounds delegate_batch fan-out. Zero is unbounded.
type DelegateConcurrency int

var delegateConcurrencyFlag = cmds.Var[int]("-delegate-concurrency")

func (Module) DelegateConcurrency(
	loader configs.Loader,
) DelegateConcurrency {
	return DelegateConcurrency(vars.FirstNonZero(
		*delegateConcurrencyFlag,
		configs.First[int](loader, "delegate_concurrency"),
	))
}

// FragmentTimeout is the per fragment deadline. Zero is none.
type FragmentTimeout time.Duration

type GetFragmentTimeout func() (FragmentTimeout, error)

var fragmentTimeoutFlag = cmds.Var[string]("-fragment-timeout")

func (Module) GetFragmentTimeout(
	loader configs.Loader,
) GetFragmentTimeout {
	return func() (FragmentTimeout, error) {
		str := vars.FirstNonZero(
			*fragmentTimeoutFlag,
			configs.First[string](loader, "fragment_timeout"),
		)
		if str == "" {
			return 0, nil
		}
		d, err := time.ParseDuration(str)
		if err != nil {
			return 0, fmt.Errorf("fragment timeout: %w", err)
		}
		if d < 0 {
			return 0, fmt.Errorf("fragment timeout: negative duration %s", str)
		}
		return FragmentTimeout(d), nil
	}
}

// FragmentMaxSteps caps Starlark execution steps per fragment. Zero is unlimited.
type FragmentMaxSteps uint64

var fragmentMaxStepsFlag = cmds.Var[uint64]("-fragment-max-steps")

func (Module) FragmentMaxSteps(
	loader configs.Loader,
) FragmentMaxSteps {
	return FragmentMaxSteps(vars.FirstNonZero(
		*fragmentMaxStepsFlag,
		configs.First[uint64](loader, "fragment_max_steps"),
	))
}
