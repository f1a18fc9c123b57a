// -- internal/reporting/reporter.go --
package reporting

import (
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/xkilldash9x/rehydrate/internal/suite"
)

// Reporter writes a run summary to an output.
type Reporter interface {
	// Report renders the summary. It may be called once.
	Report(summary *suite.Summary) error
	// Close releases the output (a no-op for stdout).
	Close() error
}

// Formats lists the report formats New accepts.
var Formats = []string{"text", "json", "junit"}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a reporter for format ("text", "json" or "junit") writing to outputPath.
// An empty path or "stdout" writes to stdout, which the reporter never closes.
func New(format, outputPath string, stdout io.Writer) (Reporter, error) {
	if !slices.Contains(Formats, format) {
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	var w io.WriteCloser
	if outputPath == "" || outputPath == "stdout" {
		w = &nopWriteCloser{stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		w = f
	}
	return NewWithWriter(format, w)
}

// NewWithWriter creates a reporter that takes ownership of w.
func NewWithWriter(format string, w io.WriteCloser) (Reporter, error) {
	switch format {
	case "text":
		return NewTextReporter(w), nil
	case "json":
		return NewJSONReporter(w), nil
	case "junit":
		return NewJUnitReporter(w), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}
