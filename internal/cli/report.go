package cli

import (
	"fmt"
	"strings"

	"github.com/chaban-mb/wikilift/internal/convert"
	"github.com/chaban-mb/wikilift/internal/orchestrate"
)

// VerdictReport is the run command's output payload.
type VerdictReport struct {
	Token       string       `json:"token"`
	Source      string       `json:"source"`
	Resolved    bool         `json:"resolved"`
	Entity      string       `json:"entity,omitempty"`
	Target      string       `json:"target,omitempty"`
	FailureCode string       `json:"failure_code,omitempty"`
	Handled     int          `json:"handled"`
	Total       int          `json:"total"`
	Submitted   bool         `json:"submitted"`
	Items       []ItemReport `json:"items,omitempty"`
}

// ItemReport is one item's disposition within a VerdictReport.
type ItemReport struct {
	Position       int    `json:"position"`
	Classification string `json:"classification"`
	Outcome        string `json:"outcome"`
	State          string `json:"state"`
}

// buildVerdictReport flattens a verdict and its items for output.
func buildVerdictReport(source string, v orchestrate.Verdict, items []*convert.Item) VerdictReport {
	report := VerdictReport{
		Token:       v.Token,
		Source:      source,
		Resolved:    v.Resolved,
		Entity:      v.Entity,
		Target:      v.Target,
		FailureCode: string(v.FailureCode),
		Handled:     v.Handled,
		Total:       v.Total,
		Submitted:   v.Submitted,
	}
	for i, item := range items {
		report.Items = append(report.Items, ItemReport{
			Position:       i,
			Classification: item.Classification,
			Outcome:        item.Outcome().String(),
			State:          item.State().String(),
		})
	}
	return report
}

// renderVerdict formats the text report.
func renderVerdict(r VerdictReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "token:     %s\n", r.Token)
	fmt.Fprintf(&b, "source:    %s\n", r.Source)
	if r.Resolved {
		fmt.Fprintf(&b, "resolved:  yes (%s -> %s)\n", r.Entity, r.Target)
	} else {
		fmt.Fprintf(&b, "resolved:  no (%s)\n", r.FailureCode)
	}
	fmt.Fprintf(&b, "items:     %d/%d handled\n", r.Handled, r.Total)
	fmt.Fprintf(&b, "submitted: %s", yesNo(r.Submitted))
	for _, item := range r.Items {
		fmt.Fprintf(&b, "\n  [%d] %s: %s (%s)", item.Position, item.Classification, item.Outcome, item.State)
	}
	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
