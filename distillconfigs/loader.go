package distillconfigs

import (
	_ "embed"

	"github.com/reusee/distill/configs"
	"github.com/reusee/distill/logs"
)

//go:embed schema.cue
var schema string

var FileNames = []string{
	"distill.cue",
	".distill.cue",
}

func (Module) ConfigsLoader(
	logger logs.Logger,
) configs.Loader {
	paths := configs.FindFiles(FileNames, configs.DefaultDirs()...)
	if len(paths) > 0 {
		logger.Info("config file",
			"paths", paths,
		)
	}
	return configs.NewLoader(paths, schema)
}
