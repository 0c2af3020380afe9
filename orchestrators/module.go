package orchestrators

import (
	"github.com/reusee/distill/gateways"
	"github.com/reusee/distill/logs"
	"github.com/reusee/distill/metrics"
	"github.com/reusee/dscope"
)

type Module struct {
	dscope.Module
	Gateways gateways.Module
	Logs     logs.Module
	Metrics  metrics.Module
}
