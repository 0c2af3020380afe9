package main

import (
	"errors"
	"io"

	"github.com/reusee/distill/traces"
)

func summarize(w io.Writer, paths []string) error {
	dirs, err := traces.RunDirs(paths...)
	if err != nil {
		return err
	}
	if len(dirs) == 0 {
		return errors.New("no run directories found")
	}
	var summaries []traces.Summary
	for _, dir := range dirs {
		summary, err := traces.Summarize(dir)
		if err != nil {
			return err
		}
		summaries = append(summaries, summary)
	}
	return traces.WriteTable(w, summaries)
}
