// internal/reporting/json_reporter.go
package reporting

import (
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/rehydrate/internal/suite"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONReporter writes the summary as a single indented JSON document.
type JSONReporter struct {
	w io.WriteCloser
}

// NewJSONReporter creates a JSON reporter that owns w.
func NewJSONReporter(w io.WriteCloser) *JSONReporter {
	return &JSONReporter{w: w}
}

func (r *JSONReporter) Report(summary *suite.Summary) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("failed to encode JSON report: %w", err)
	}
	return nil
}

func (r *JSONReporter) Close() error {
	return r.w.Close()
}
