package traces

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
)

func shortenModel(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}

// WriteTable prints one row per summary.
func WriteTable(w io.Writer, summaries []Summary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Run\tController\tDelegate\tStatus\tSteps\tDelegate Calls\tErrors\tCtl In\tCtl Out\tDlg In\tDlg Out\tElapsed\t")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\t%s\t%s\t%.1fs\t\n",
			s.Dir,
			shortenModel(s.ControllerModel),
			shortenModel(s.DelegateModel),
			s.Status,
			s.Steps,
			s.DelegateCalls,
			s.DelegateErrors+s.FragmentErrors,
			humanize.Comma(int64(s.ControllerUsage.InputTokens)),
			humanize.Comma(int64(s.ControllerUsage.OutputTokens)),
			humanize.Comma(int64(s.DelegateUsage.InputTokens)),
			humanize.Comma(int64(s.DelegateUsage.OutputTokens)),
			float64(s.Elapsed),
		)
	}
	return tw.Flush()
}
