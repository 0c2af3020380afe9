package gateways

import (
	"sync"

	"github.com/reusee/distill/configs"
)

// ModelSpec is a user defined model in the `models` config list.
type ModelSpec struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Args
}

type GetModelSpecs func() ([]ModelSpec, error)

func (Module) GetModelSpecs(
	loader configs.Loader,
) GetModelSpecs {
	return sync.OnceValues(func() (ret []ModelSpec, err error) {
		for specs, err := range configs.All[[]ModelSpec](loader, "models") {
			if err != nil {
				return nil, err
			}
			ret = append(ret, specs...)
		}
		return
	})
}
