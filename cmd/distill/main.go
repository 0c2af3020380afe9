package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/reusee/distill/cmds"
	"github.com/reusee/distill/modes"
	"github.com/reusee/dscope"
)

var (
	summaryDirs []string
	runsDB      string
)

func init() {
	cmds.Define("summary", cmds.Func(func(dir string) {
		summaryDirs = append(summaryDirs, dir)
	}).
		Desc("print a summary of trace directories, or of the runs under them").
		Alias("sum"))
	cmds.Define("runs", cmds.Func(func(path string) {
		runsDB = path
	}).
		Desc("list runs recorded in a sqlite database"))
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	cmds.Execute(os.Args[1:])
	ctx := context.Background()

	scope := dscope.New(
		new(Module),
		modes.ForProduction(),
	)

	switch {
	case len(summaryDirs) > 0:
		ce(summarize(os.Stdout, summaryDirs))
	case runsDB != "":
		ce(listRuns(ctx, os.Stdout, runsDB))
	default:
		var code int
		scope.Call(func(query Query) {
			code = query(ctx, os.Stdout)
		})
		os.Exit(code)
	}
}

func ce(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
