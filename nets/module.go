package nets

import (
	"github.com/reusee/distill/logs"
	"github.com/reusee/dscope"
)

// Module needs a configs.Loader provided by the enclosing scope.
type Module struct {
	dscope.Module
	Logs logs.Module
}
