// internal/reporting/junit_reporter.go
package reporting

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/beevik/etree"

	"github.com/xkilldash9x/rehydrate/internal/suite"
)

// JUnitReporter writes the summary as JUnit XML, one testsuite per feature,
// for CI systems that render test results.
type JUnitReporter struct {
	w io.WriteCloser
}

// NewJUnitReporter creates a JUnit reporter that owns w.
func NewJUnitReporter(w io.WriteCloser) *JUnitReporter {
	return &JUnitReporter{w: w}
}

type featureTotals struct {
	el       *etree.Element
	tests    int
	failures int
	skipped  int
	duration time.Duration
}

func (r *JUnitReporter) Report(summary *suite.Summary) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("testsuites")
	root.CreateAttr("name", "rehydrate")
	root.CreateAttr("tests", strconv.Itoa(summary.Total))
	root.CreateAttr("failures", strconv.Itoa(summary.Failed))
	root.CreateAttr("skipped", strconv.Itoa(summary.Skipped))
	root.CreateAttr("time", seconds(summary.Duration))

	// Features keep the order of their first scenario.
	var order []string
	features := make(map[string]*featureTotals)
	for _, res := range summary.Results {
		ft, ok := features[res.Feature]
		if !ok {
			ft = &featureTotals{el: root.CreateElement("testsuite")}
			ft.el.CreateAttr("name", res.Feature)
			features[res.Feature] = ft
			order = append(order, res.Feature)
		}
		ft.tests++
		ft.duration += res.Duration

		tc := ft.el.CreateElement("testcase")
		tc.CreateAttr("classname", res.Feature)
		tc.CreateAttr("name", caseName(res))
		tc.CreateAttr("time", seconds(res.Duration))

		switch res.Status {
		case suite.StatusFailed:
			ft.failures++
			failure := tc.CreateElement("failure")
			msg := res.FailedStep
			if msg == "" {
				msg = "scenario failed"
			}
			failure.CreateAttr("message", msg)
			failure.CreateAttr("type", "failure")
			failure.CreateCharData(res.Error)
		case suite.StatusSkipped:
			ft.skipped++
			skipped := tc.CreateElement("skipped")
			if res.Error != "" {
				skipped.CreateAttr("message", res.Error)
			}
		}

		props := tc.CreateElement("properties")
		addProperty(props, "driver", res.Driver)
		if res.SessionID != "" {
			addProperty(props, "session_id", res.SessionID)
		}
	}

	for _, name := range order {
		ft := features[name]
		ft.el.CreateAttr("tests", strconv.Itoa(ft.tests))
		ft.el.CreateAttr("failures", strconv.Itoa(ft.failures))
		ft.el.CreateAttr("skipped", strconv.Itoa(ft.skipped))
		ft.el.CreateAttr("time", seconds(ft.duration))
	}

	doc.Indent(2)
	if _, err := doc.WriteTo(r.w); err != nil {
		return fmt.Errorf("failed to write JUnit report: %w", err)
	}
	return nil
}

func (r *JUnitReporter) Close() error {
	return r.w.Close()
}

func caseName(res suite.Result) string {
	if res.Name == "" {
		return res.Feature
	}
	return res.Name
}

func addProperty(props *etree.Element, name, value string) {
	p := props.CreateElement("property")
	p.CreateAttr("name", name)
	p.CreateAttr("value", value)
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
