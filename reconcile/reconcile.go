package reconcile

import (
	"fmt"
	"slices"

	"github.com/JaimeStill/tally/hsn"
	"github.com/JaimeStill/tally/invoice"
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	two     = decimal.NewFromInt(2)
)

// Item notes.
const (
	NoteMissingHSNAndGST = "missing_hsn_and_gst"
	NoteHSNNotInTable    = "hsn_not_in_table"
)

// Reconcile completes the tax arithmetic of doc against the rate table and
// evaluates every anomaly rule over the result. Stated values are never
// overwritten by derived ones except item component amounts, which are
// always recomputed from their percentages. table may be nil.
func Reconcile(doc *invoice.Document, table *hsn.Table, opts Options) *Result {
	out := doc.Clone()
	res := &Result{Document: out, AutoFixes: []AutoFix{}}

	for i := range out.Items {
		res.AutoFixes = append(res.AutoFixes, reconcileItem(i+1, &out.Items[i], table, opts)...)
	}
	stated := out.Totals
	res.AutoFixes = append(res.AutoFixes, reconcileTotals(out)...)

	out.Flags = detect(out, stated, opts)
	res.Status = StatusOK
	if len(out.Flags) > 0 {
		res.Status = StatusFlagged
	}
	out.NeedsReview = len(out.Notes) > 0 || res.Flagged()
	return res
}

func reconcileItem(line int, li *invoice.LineItem, table *hsn.Table, opts Options) []AutoFix {
	var fixes []AutoFix
	fix := func(field string, v decimal.Decimal, reason string) {
		fixes = append(fixes, AutoFix{Line: line, Field: field, Value: v.String(), Reason: reason})
	}

	deriveComponentPercentages(li, fix)

	if !li.GSTPercentage.Valid {
		switch {
		case li.CGSTPercentage.Valid && li.SGSTPercentage.Valid:
			li.GSTPercentage = valid(li.CGSTPercentage.Decimal.Add(li.SGSTPercentage.Decimal))
		case li.IGSTPercentage.Valid:
			li.GSTPercentage = li.IGSTPercentage
		case li.HSN == "":
			addNote(li, NoteMissingHSNAndGST)
		default:
			if rate, ok := table.Lookup(li.HSN); ok {
				li.GSTPercentage = valid(rate)
				fix("gst_percentage", rate, fmt.Sprintf("rate table lookup for HSN %s", li.HSN))
			} else {
				addNote(li, NoteHSNNotInTable)
			}
		}
	}

	splitPercentage(li, opts)
	computeAmounts(li, opts)

	total := li.TaxableValue.Add(li.TaxAmount())
	if li.LineTotal.Valid && li.LineTotal.Decimal.Sub(total).Abs().GreaterThan(opts.TotalTolerance) {
		addNote(li, fmt.Sprintf("line_total reported %s, computed %s", li.LineTotal.Decimal.StringFixed(2), total.StringFixed(2)))
	}
	li.LineTotal = valid(total)

	return fixes
}

// deriveComponentPercentages recovers missing component percentages from
// stated component amounts, and mirrors a lone CGST or SGST percentage
// onto its missing partner.
func deriveComponentPercentages(li *invoice.LineItem, fix func(string, decimal.Decimal, string)) {
	if li.TaxableValue.IsPositive() {
		for _, c := range components(li) {
			if c.pct.Valid || !c.amt.Valid {
				continue
			}
			pct := c.amt.Decimal.Mul(hundred).Div(li.TaxableValue).Round(2)
			*c.pct = valid(pct)
			fix(c.name+"_percentage", pct, "derived from stated "+c.name+"_amount")
		}
	}

	switch {
	case li.CGSTPercentage.Valid && !li.SGSTPercentage.Valid:
		li.SGSTPercentage = li.CGSTPercentage
		fix("sgst_percentage", li.SGSTPercentage.Decimal, "mirrored from cgst_percentage")
	case li.SGSTPercentage.Valid && !li.CGSTPercentage.Valid:
		li.CGSTPercentage = li.SGSTPercentage
		fix("cgst_percentage", li.CGSTPercentage.Decimal, "mirrored from sgst_percentage")
	}
}

// splitPercentage assigns the combined percentage to components when no
// split is stated. A standard slab splits into equal CGST and SGST halves;
// anything else is IGST. The components of the other shape are zeroed.
func splitPercentage(li *invoice.LineItem, opts Options) {
	intra := li.CGSTPercentage.Valid && li.SGSTPercentage.Valid
	inter := li.IGSTPercentage.Valid

	switch {
	case intra && !inter:
		li.IGSTPercentage = valid(decimal.Zero)
	case inter && !intra:
		li.CGSTPercentage = valid(decimal.Zero)
		li.SGSTPercentage = valid(decimal.Zero)
	case !intra && !inter && li.GSTPercentage.Valid:
		pct := li.GSTPercentage.Decimal
		if _, ok := opts.matchSlab(pct); ok {
			half := valid(pct.Div(two))
			li.CGSTPercentage, li.SGSTPercentage = half, half
			li.IGSTPercentage = valid(decimal.Zero)
		} else {
			li.IGSTPercentage = valid(pct)
			li.CGSTPercentage = valid(decimal.Zero)
			li.SGSTPercentage = valid(decimal.Zero)
		}
	}
}

// computeAmounts sets every component amount with a known percentage to
// taxable * pct / 100 rounded half-up to 2 places, noting any stated
// amount that disagrees beyond tolerance.
func computeAmounts(li *invoice.LineItem, opts Options) {
	for _, c := range components(li) {
		if !c.pct.Valid {
			continue
		}
		amt := li.TaxableValue.Mul(c.pct.Decimal).Div(hundred).Round(2)
		if c.amt.Valid && c.amt.Decimal.Sub(amt).Abs().GreaterThan(opts.TaxTolerance) {
			addNote(li, fmt.Sprintf("%s_amount reported %s, computed %s", c.name, c.amt.Decimal.StringFixed(2), amt.StringFixed(2)))
		}
		*c.amt = valid(amt)
	}
}

type componentRef struct {
	name string
	pct  *decimal.NullDecimal
	amt  *decimal.NullDecimal
}

func components(li *invoice.LineItem) []componentRef {
	return []componentRef{
		{"cgst", &li.CGSTPercentage, &li.CGSTAmount},
		{"sgst", &li.SGSTPercentage, &li.SGSTAmount},
		{"igst", &li.IGSTPercentage, &li.IGSTAmount},
	}
}

// reconcileTotals fills unstated document totals. A stated total tax with
// no component figures is split into CGST and SGST halves; every other
// missing total is summed from the items.
func reconcileTotals(d *invoice.Document) []AutoFix {
	var fixes []AutoFix
	t := &d.Totals
	set := func(target *decimal.NullDecimal, field invoice.Field, v decimal.Decimal, reason string) {
		*target = valid(v)
		fixes = append(fixes, AutoFix{Field: string(field), Value: v.StringFixed(2), Reason: reason})
	}

	if t.TotalTax.Valid && !t.CGSTAmount.Valid && !t.SGSTAmount.Valid && !t.IGSTAmount.Valid {
		half := t.TotalTax.Decimal.Div(two).Round(2)
		set(&t.CGSTAmount, invoice.FieldCGSTAmount, half, "half of stated total_tax")
		set(&t.SGSTAmount, invoice.FieldSGSTAmount, t.TotalTax.Decimal.Sub(half), "half of stated total_tax")
	}

	if len(d.Items) == 0 {
		if !t.TotalTax.Valid && anyValid(t.CGSTAmount, t.SGSTAmount, t.IGSTAmount) {
			set(&t.TotalTax, invoice.FieldTotalTax, sumValid(t.CGSTAmount, t.SGSTAmount, t.IGSTAmount), "sum of stated components")
		}
		if !t.TotalAmount.Valid && t.TaxableAmount.Valid && t.TotalTax.Valid {
			set(&t.TotalAmount, invoice.FieldTotalAmount, t.TaxableAmount.Decimal.Add(t.TotalTax.Decimal), "taxable_amount plus total_tax")
		}
		return fixes
	}

	var s itemSums
	for _, li := range d.Items {
		s.add(li)
	}

	if !t.TaxableAmount.Valid {
		set(&t.TaxableAmount, invoice.FieldTaxableAmount, s.taxable, "sum of item taxable values")
	}
	if !t.CGSTAmount.Valid {
		set(&t.CGSTAmount, invoice.FieldCGSTAmount, s.cgst, "sum of item cgst amounts")
	}
	if !t.SGSTAmount.Valid {
		set(&t.SGSTAmount, invoice.FieldSGSTAmount, s.sgst, "sum of item sgst amounts")
	}
	if !t.IGSTAmount.Valid {
		set(&t.IGSTAmount, invoice.FieldIGSTAmount, s.igst, "sum of item igst amounts")
	}
	if !t.TotalTax.Valid {
		set(&t.TotalTax, invoice.FieldTotalTax, s.tax(), "sum of item tax amounts")
	}
	if !t.TotalAmount.Valid {
		set(&t.TotalAmount, invoice.FieldTotalAmount, s.lineTotals, "sum of item line totals")
	}
	return fixes
}

type itemSums struct {
	taxable    decimal.Decimal
	cgst       decimal.Decimal
	sgst       decimal.Decimal
	igst       decimal.Decimal
	lineTotals decimal.Decimal
}

func (s *itemSums) add(li invoice.LineItem) {
	s.taxable = s.taxable.Add(li.TaxableValue)
	s.cgst = s.cgst.Add(orZero(li.CGSTAmount))
	s.sgst = s.sgst.Add(orZero(li.SGSTAmount))
	s.igst = s.igst.Add(orZero(li.IGSTAmount))
	s.lineTotals = s.lineTotals.Add(orZero(li.LineTotal))
}

func (s itemSums) tax() decimal.Decimal {
	return s.cgst.Add(s.sgst).Add(s.igst)
}

func addNote(li *invoice.LineItem, note string) {
	if !slices.Contains(li.Notes, note) {
		li.Notes = append(li.Notes, note)
	}
}

func valid(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NewNullDecimal(d)
}

func orZero(v decimal.NullDecimal) decimal.Decimal {
	if v.Valid {
		return v.Decimal
	}
	return decimal.Zero
}

func anyValid(vs ...decimal.NullDecimal) bool {
	return slices.ContainsFunc(vs, func(v decimal.NullDecimal) bool { return v.Valid })
}

func sumValid(vs ...decimal.NullDecimal) decimal.Decimal {
	sum := decimal.Zero
	for _, v := range vs {
		sum = sum.Add(orZero(v))
	}
	return sum
}
