package cmds

import (
	"fmt"
	"os"
)

var GlobalExecutor = func() *Executor {
	executor := NewExecutor()
	executor.usageOut = os.Stdout
	executor.exit = os.Exit
	return executor
}()

func Define(name string, command *Command) {
	GlobalExecutor.Define(name, command)
}

// Execute runs the global executor and exits the process on error.
func Execute(args []string) {
	if err := GlobalExecutor.Execute(args); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
}
