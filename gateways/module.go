package gateways

import (
	"github.com/reusee/distill/logs"
	"github.com/reusee/distill/nets"
	"github.com/reusee/dscope"
)

type Module struct {
	dscope.Module
	Nets nets.Module
	Logs logs.Module
}
