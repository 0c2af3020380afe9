package distillconfigs

import (
	"os"

	"github.com/reusee/distill/cmds"
	"github.com/reusee/distill/configs"
	"github.com/reusee/distill/vars"
)

const (
	DefaultControllerModel = "together:meta-llama/Llama-3.3-70B-Instruct-Turbo"
	DefaultDelegateModel   = "together:meta-llama/Meta-Llama-3.1-8B-Instruct-Turbo"
)

type ControllerModel string

var controllerModelFlag = cmds.Var[string]("-controller")

func (Module) ControllerModel(
	loader configs.Loader,
) ControllerModel {
	return ControllerModel(vars.FirstNonZero(
		*controllerModelFlag,
		configs.First[string](loader, "controller_model"),
		os.Getenv("DISTILL_CONTROLLER_MODEL"),
		DefaultControllerModel,
	))
}

type DelegateModel string

var delegateModelFlag = cmds.Var[string]("-delegate")

func (Module) DelegateModel(
	loader configs.Loader,
) DelegateModel {
	return DelegateModel(vars.FirstNonZero(
		*delegateModelFlag,
		configs.First[string](loader, "delegate_model"),
		os.Getenv("DISTILL_DELEGATE_MODEL"),
		DefaultDelegateModel,
	))
}
