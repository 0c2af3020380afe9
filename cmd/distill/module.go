package main

import (
	"github.com/reusee/distill/debugs"
	"github.com/reusee/distill/distillconfigs"
	"github.com/reusee/distill/orchestrators"
	"github.com/reusee/dscope"
)

type Module struct {
	dscope.Module
	Orchestrators orchestrators.Module
	Configs       distillconfigs.Module
	Debugs        debugs.Module
}
