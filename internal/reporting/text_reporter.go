// internal/reporting/text_reporter.go
package reporting

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xkilldash9x/rehydrate/internal/suite"
)

// TextReporter prints one line per scenario followed by failure details and
// a totals line.
type TextReporter struct {
	w io.WriteCloser
}

// NewTextReporter creates a text reporter that owns w.
func NewTextReporter(w io.WriteCloser) *TextReporter {
	return &TextReporter{w: w}
}

var statusLabel = map[suite.Status]string{
	suite.StatusPassed:  "PASS",
	suite.StatusFailed:  "FAIL",
	suite.StatusSkipped: "SKIP",
}

func (r *TextReporter) Report(summary *suite.Summary) error {
	bw := bufio.NewWriter(r.w)

	for _, res := range summary.Results {
		line := fmt.Sprintf("%s  %s", statusLabel[res.Status], res.FullName())
		switch res.Status {
		case suite.StatusSkipped:
			if res.Error != "" {
				line += " (" + res.Error + ")"
			}
		default:
			line += fmt.Sprintf(" [%s, %s]", res.Driver, round(res.Duration))
		}
		fmt.Fprintln(bw, line)
	}

	var failed []suite.Result
	for _, res := range summary.Results {
		if res.Status == suite.StatusFailed {
			failed = append(failed, res)
		}
	}
	if len(failed) > 0 {
		fmt.Fprintln(bw, "\nFailures:")
		for i, res := range failed {
			fmt.Fprintf(bw, "\n%d) %s\n", i+1, res.FullName())
			if res.FailedStep != "" {
				fmt.Fprintf(bw, "   step: %s\n", res.FailedStep)
			}
			if res.SessionID != "" {
				fmt.Fprintf(bw, "   session: %s\n", res.SessionID)
			}
			fmt.Fprintf(bw, "   %s\n", indent(res.Error, "   "))
		}
	}

	fmt.Fprintf(bw, "\n%d scenarios, %d passed, %d failed, %d skipped in %s (run %s)\n",
		summary.Total, summary.Passed, summary.Failed, summary.Skipped, round(summary.Duration), summary.RunID)
	return bw.Flush()
}

func (r *TextReporter) Close() error {
	return r.w.Close()
}

func round(d time.Duration) time.Duration {
	if d < time.Second {
		return d.Round(time.Millisecond)
	}
	return d.Round(10 * time.Millisecond)
}

func indent(s, prefix string) string {
	return strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", "\n"+prefix)
}
