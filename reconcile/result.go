// Package reconcile completes and cross-checks the tax arithmetic of an
// extracted invoice and raises anomaly flags against it.
package reconcile

import "github.com/JaimeStill/tally/invoice"

// Status summarizes a reconciled document.
type Status string

const (
	StatusOK      Status = "ok"
	StatusFlagged Status = "flagged"
)

// AutoFix records a value filled in during reconciliation. Line is the
// 1-based item number, or 0 for a document-level total.
type AutoFix struct {
	Line   int    `json:"line,omitempty"`
	Field  string `json:"field"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

// Result is a reconciled document. Document is a copy of the input with
// completed items and totals and with Flags set; the input is untouched.
type Result struct {
	Document  *invoice.Document `json:"document"`
	AutoFixes []AutoFix         `json:"auto_fixes"`
	Status    Status            `json:"status"`
}

// Flagged reports whether any anomaly was raised.
func (r *Result) Flagged() bool {
	return r.Status == StatusFlagged
}

// FlagKinds lists the kinds of the raised flags in order.
func (r *Result) FlagKinds() []string {
	kinds := make([]string, 0, len(r.Document.Flags))
	for _, f := range r.Document.Flags {
		kinds = append(kinds, f.Kind)
	}
	return kinds
}
