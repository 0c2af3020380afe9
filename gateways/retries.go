package gateways

import (
	"time"

	"github.com/reusee/distill/cmds"
	"github.com/reusee/distill/configs"
)

// GatewayRetries is the number of extra attempts after a retryable failure.
type GatewayRetries int

var gatewayRetriesFlag = cmds.Var[int]("-gateway-retries")

func (Module) GatewayRetries(
	loader configs.Loader,
) GatewayRetries {
	if *gatewayRetriesFlag > 0 {
		return GatewayRetries(*gatewayRetriesFlag)
	}
	var n int
	if err := loader.AssignFirst("gateway_retries", &n); err == nil {
		return GatewayRetries(n)
	}
	return 3
}

// RetryDelay is the first backoff delay, doubled per attempt.
type RetryDelay time.Duration

func (Module) RetryDelay() RetryDelay {
	return RetryDelay(time.Second)
}
