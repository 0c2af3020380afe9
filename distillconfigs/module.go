package distillconfigs

import (
	"github.com/reusee/distill/logs"
	"github.com/reusee/dscope"
)

type Module struct {
	dscope.Module
	Logs logs.Module
}
