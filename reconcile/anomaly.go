package reconcile

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/JaimeStill/tally/invoice"
	"github.com/shopspring/decimal"
)

// Anomaly kinds.
const (
	KindMissingCompanyGSTIN  = "missing_company_gstin"
	KindMissingPAN           = "missing_pan"
	KindInvoiceDateInFuture  = "invoice_date_in_future"
	KindArithmeticMismatch   = "arithmetic_mismatch"
	KindTaxMismatch          = "tax_mismatch"
	KindGSTComponentMismatch = "gst_component_mismatch"
	KindNonstandardGSTSlab   = "nonstandard_gst_slab"
	KindLowOCRText           = "low_ocr_text"
	KindUPIDocIncomplete     = "upi_doc_incomplete"
)

var (
	panToken     = regexp.MustCompile(`\b[A-Z]{5}\d{4}[A-Z]\b`)
	paymentID    = regexp.MustCompile(`[a-zA-Z0-9.\-_]{2,}@[a-zA-Z]{2,}`)
	paymentTxn   = regexp.MustCompile(`(?i)(?:Txn ID|Transaction ID|UTR|Ref|TXN|Transaction No|Trans ID)\s*[:\-\s]*([A-Za-z0-9\-_/]{6,})`)
	paymentMoney = regexp.MustCompile(`\d{1,3}(?:,\d{2,3})*(?:\.\d{1,2})?|\d+\.\d{2}`)
)

// rule inspects a reconciled document and returns a flag when triggered.
// stated holds the document totals as extracted, before any were filled.
type rule func(d *invoice.Document, stated invoice.Totals, opts Options) (invoice.Flag, bool)

// rules run in this order; every rule runs regardless of the others.
var rules = []rule{
	missingCompanyGSTIN,
	missingPAN,
	invoiceDateInFuture,
	arithmeticMismatch,
	taxMismatch,
	gstComponentMismatch,
	nonstandardSlab,
	lowOCRText,
	upiIncomplete,
}

func detect(d *invoice.Document, stated invoice.Totals, opts Options) []invoice.Flag {
	flags := []invoice.Flag{}
	for _, r := range rules {
		if f, ok := r(d, stated, opts); ok {
			flags = append(flags, f)
		}
	}
	return flags
}

func missingCompanyGSTIN(d *invoice.Document, _ invoice.Totals, _ Options) (invoice.Flag, bool) {
	if d.SellerGSTIN != "" {
		return invoice.Flag{}, false
	}
	return invoice.Flag{Kind: KindMissingCompanyGSTIN, Message: "seller GSTIN not found"}, true
}

func missingPAN(d *invoice.Document, _ invoice.Totals, _ Options) (invoice.Flag, bool) {
	if panToken.MatchString(d.RawText) {
		return invoice.Flag{}, false
	}
	return invoice.Flag{Kind: KindMissingPAN, Message: "no PAN found in transcript"}, true
}

func invoiceDateInFuture(d *invoice.Document, _ invoice.Totals, opts Options) (invoice.Flag, bool) {
	if d.InvoiceDate == "" {
		return invoice.Flag{}, false
	}
	date, err := time.Parse(time.DateOnly, d.InvoiceDate)
	if err != nil {
		return invoice.Flag{}, false
	}
	now := opts.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if !date.After(today) {
		return invoice.Flag{}, false
	}
	return invoice.Flag{
		Kind:    KindInvoiceDateInFuture,
		Message: "invoice date is after today",
		Detail:  map[string]string{"invoice_date": d.InvoiceDate, "today": today.Format(time.DateOnly)},
	}, true
}

func arithmeticMismatch(d *invoice.Document, _ invoice.Totals, opts Options) (invoice.Flag, bool) {
	if !d.Totals.TotalAmount.Valid || len(d.Items) == 0 {
		return invoice.Flag{}, false
	}
	computed := decimal.Zero
	for _, li := range d.Items {
		computed = computed.Add(orZero(li.LineTotal))
	}
	reported := d.Totals.TotalAmount.Decimal
	diff := reported.Sub(computed).Abs()
	if !diff.GreaterThan(opts.TotalTolerance) {
		return invoice.Flag{}, false
	}
	return invoice.Flag{
		Kind:    KindArithmeticMismatch,
		Message: "stated total does not match the sum of line totals",
		Detail: map[string]string{
			"reported_total":      reported.StringFixed(2),
			"computed_from_lines": computed.StringFixed(2),
			"diff":                diff.StringFixed(2),
		},
	}, true
}

// taxMismatch compares the stated tax to the item tax. The stated tax is
// the total tax when one was extracted, otherwise the sum of the stated
// component amounts. Items with no known percentage carry no computed tax,
// so the rule needs at least one rated item.
func taxMismatch(d *invoice.Document, stated invoice.Totals, opts Options) (invoice.Flag, bool) {
	var reported decimal.Decimal
	switch {
	case stated.TotalTax.Valid:
		reported = stated.TotalTax.Decimal
	case anyValid(stated.CGSTAmount, stated.SGSTAmount, stated.IGSTAmount):
		reported = sumValid(stated.CGSTAmount, stated.SGSTAmount, stated.IGSTAmount)
	default:
		return invoice.Flag{}, false
	}
	rated := slices.ContainsFunc(d.Items, func(li invoice.LineItem) bool { return li.GSTPercentage.Valid })
	if !rated {
		return invoice.Flag{}, false
	}
	computed := decimal.Zero
	for _, li := range d.Items {
		computed = computed.Add(li.TaxAmount())
	}
	diff := reported.Sub(computed).Abs()
	if !diff.GreaterThan(opts.TaxTolerance) {
		return invoice.Flag{}, false
	}
	return invoice.Flag{
		Kind:    KindTaxMismatch,
		Message: "stated tax does not match the computed item tax",
		Detail: map[string]string{
			"reported_tax": reported.StringFixed(2),
			"computed_tax": computed.StringFixed(2),
			"diff":         diff.StringFixed(2),
		},
	}, true
}

// gstComponentMismatch only looks at extracted figures; a filled total tax
// is derived from the items and is covered by taxMismatch.
func gstComponentMismatch(_ *invoice.Document, stated invoice.Totals, opts Options) (invoice.Flag, bool) {
	t := stated
	if !t.TotalTax.Valid || !anyValid(t.CGSTAmount, t.SGSTAmount, t.IGSTAmount) {
		return invoice.Flag{}, false
	}
	components := sumValid(t.CGSTAmount, t.SGSTAmount, t.IGSTAmount)
	diff := t.TotalTax.Decimal.Sub(components).Abs()
	if !diff.GreaterThan(opts.TaxTolerance) {
		return invoice.Flag{}, false
	}
	return invoice.Flag{
		Kind:    KindGSTComponentMismatch,
		Message: "CGST, SGST and IGST do not add up to the total tax",
		Detail: map[string]string{
			"total_tax":     t.TotalTax.Decimal.StringFixed(2),
			"component_sum": components.StringFixed(2),
			"diff":          diff.StringFixed(2),
		},
	}, true
}

func nonstandardSlab(d *invoice.Document, _ invoice.Totals, opts Options) (invoice.Flag, bool) {
	var off []string
	for _, li := range d.Items {
		if !li.GSTPercentage.Valid {
			continue
		}
		if _, ok := opts.matchSlab(li.GSTPercentage.Decimal); !ok {
			pct := li.GSTPercentage.Decimal.String()
			if !slices.Contains(off, pct) {
				off = append(off, pct)
			}
		}
	}
	if len(off) == 0 {
		return invoice.Flag{}, false
	}
	return invoice.Flag{
		Kind:    KindNonstandardGSTSlab,
		Message: "item GST percentage matches no standard slab",
		Detail:  map[string]string{"percentages": strings.Join(off, ",")},
	}, true
}

func lowOCRText(d *invoice.Document, _ invoice.Totals, opts Options) (invoice.Flag, bool) {
	n := utf8.RuneCountInString(d.RawText)
	if n >= opts.MinTextLength {
		return invoice.Flag{}, false
	}
	return invoice.Flag{
		Kind:    KindLowOCRText,
		Message: "transcript is too short to be reliable",
		Detail:  map[string]string{"length": strconv.Itoa(n)},
	}, true
}

// upiIncomplete flags a payment identifier that has no transaction
// reference or no amount within the payment window around it.
func upiIncomplete(d *invoice.Document, _ invoice.Totals, opts Options) (invoice.Flag, bool) {
	loc := paymentID.FindStringIndex(d.RawText)
	if loc == nil {
		return invoice.Flag{}, false
	}

	near := around(d.RawText, loc[0], loc[1], opts.PaymentWindow)
	var missing []string
	if !paymentTxn.MatchString(near) {
		missing = append(missing, "txn_missing")
	}
	if !paymentMoney.MatchString(stripIDs(near)) {
		missing = append(missing, "amount_missing")
	}
	if len(missing) == 0 {
		return invoice.Flag{}, false
	}
	return invoice.Flag{
		Kind:    KindUPIDocIncomplete,
		Message: "payment reference lacks a transaction id or amount",
		Detail: map[string]string{
			"payment_id": d.RawText[loc[0]:loc[1]],
			"issues":     strings.Join(missing, ","),
		},
	}, true
}

// around returns up to width characters on each side of text[start:end],
// including the span itself.
func around(text string, start, end, width int) string {
	from := start
	for n := 0; n < width && from > 0; n++ {
		_, size := utf8.DecodeLastRuneInString(text[:from])
		from -= size
	}
	to := end
	for n := 0; n < width && to < len(text); n++ {
		_, size := utf8.DecodeRuneInString(text[to:])
		to += size
	}
	return text[from:to]
}

// stripIDs removes payment identifiers and transaction references so
// their digits are not mistaken for an amount.
func stripIDs(s string) string {
	s = paymentID.ReplaceAllString(s, " ")
	return paymentTxn.ReplaceAllString(s, " ")
}
