package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/reusee/distill/storages"
)

func listRuns(ctx context.Context, w io.Writer, path string) error {
	store, err := storages.OpenRunStore(ctx, path)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(ctx, 0)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCreated\tStatus\tSteps\tController Tokens\tDelegate Tokens\tElapsed\tQuery\t")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\t\n",
			run.ID,
			humanize.Time(run.CreatedAt),
			run.Status,
			run.Steps,
			humanize.Comma(int64(run.ControllerIn+run.ControllerOut)),
			humanize.Comma(int64(run.DelegateIn+run.DelegateOut)),
			run.Elapsed.Round(100*time.Millisecond),
			oneLine(run.Query, 60),
		)
	}
	return tw.Flush()
}

func oneLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) > limit {
		return string(runes[:limit-3]) + "..."
	}
	return s
}
