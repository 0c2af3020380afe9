package debugs

import (
	"context"
	"maps"
	"slices"

	"github.com/reusee/distill/cmds"
	"github.com/reusee/distill/logs"
	"github.com/reusee/distill/repls"
	"go.starlark.net/repl"
	"go.starlark.net/starlark"
)

var tapFlag = cmds.Switch("-tap")

// Tap opens an interactive Starlark prompt over a namespace copy plus extra Go values.
type Tap func(ctx context.Context, what string, namespace starlark.StringDict, extras map[string]any) error

// TapEnabled reports whether -tap was given.
type TapEnabled bool

func (Module) TapEnabled() TapEnabled {
	return TapEnabled(*tapFlag)
}

func (Module) Tap(
	logger logs.Logger,
) Tap {
	return func(ctx context.Context, what string, namespace starlark.StringDict, extras map[string]any) error {
		mappings := make(starlark.StringDict, len(namespace)+len(extras))
		maps.Copy(mappings, namespace)
		for name, value := range extras {
			v, err := repls.ToValue(name, value)
			if err != nil {
				return err
			}
			mappings[name] = v
		}

		logger.InfoContext(ctx, "tap: "+what,
			"globals", slices.Sorted(maps.Keys(mappings)),
		)
		defer func() {
			logger.InfoContext(ctx, "tap end: "+what)
		}()

		thread := &starlark.Thread{
			Name: "tap",
		}
		repl.REPLOptions(repls.FileOptions, thread, mappings)
		return nil
	}
}
