package distillconfigs

import (
	"github.com/reusee/distill/cmds"
	"github.com/reusee/distill/configs"
	"github.com/reusee/distill/prompts"
	"github.com/reusee/distill/vars"
)

// LogDir is the parent directory of per run trace directories. Empty disables traces.
type LogDir string

var logDirFlag = cmds.Var[string]("-log-dir")

func (Module) LogDir(
	loader configs.Loader,
) LogDir {
	return LogDir(vars.FirstNonZero(
		*logDirFlag,
		configs.First[string](loader, "log_dir"),
	))
}

// DBPath is the sqlite run index. Empty disables it.
type DBPath string

var dbPathFlag = cmds.Var[string]("-db")

func (Module) DBPath(
	loader configs.Loader,
) DBPath {
	return DBPath(vars.FirstNonZero(
		*dbPathFlag,
		configs.First[string](loader, "db"),
	))
}

// MetricsFile is the prometheus textfile written after a run. Empty disables it.
type MetricsFile string

var metricsFileFlag = cmds.Var[string]("-metrics-file")

func (Module) MetricsFile(
	loader configs.Loader,
) MetricsFile {
	return MetricsFile(vars.FirstNonZero(
		*metricsFileFlag,
		configs.First[string](loader, "metrics_file"),
	))
}

type GetFeatures func() (prompts.Features, error)

var featureFlags = cmds.Collect[string]("-feature")

// GetFeatures uses -feature flags when given, the features config otherwise.
func (Module) GetFeatures(
	loader configs.Loader,
) GetFeatures {
	return func() (prompts.Features, error) {
		if len(*featureFlags) > 0 {
			return prompts.ParseFeatures(*featureFlags...)
		}
		var names []string
		for value, err := range loader.IterCueValues("features") {
			if err != nil {
				return prompts.Features{}, err
			}
			if err := value.Decode(&names); err != nil {
				return prompts.Features{}, err
			}
			break
		}
		return prompts.ParseFeatures(names...)
	}
}
