package invoice

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	handwrittenMarker = regexp.MustCompile(`(?i)handwritten`)
	readableText      = regexp.MustCompile(`(?i)Readable\s*Text\s*[:\-]?\s*([^\n<]+)`)
)

// Extract recovers a Document from a transcript. Upstream guesses, when
// supplied, outrank anything found in the text. Fields and items that
// cannot be recovered are left empty and noted; only an empty transcript
// is an error.
func Extract(t Transcript, guesses FieldGuesses, opts Options) (*Document, error) {
	if t.Empty() {
		return nil, ErrEmptyTranscript
	}

	full := fullSurface(t)
	surfaces := [2]string{headerSurface(t.Fragments, opts.HeaderFragments), full}

	doc := &Document{
		Items:       []LineItem{},
		Handwritten: []HandwrittenAnnotation{},
		Flags:       []Flag{},
		Notes:       []string{},
		Sources:     make(map[Field]Source),
		RawText:     full,
	}

	for _, rule := range fieldRules {
		if g, ok := rule.resolve(guesses, surfaces); ok {
			doc.assign(rule.field, g.Value)
			doc.Sources[rule.field] = g.Source
		}
	}

	extractParties(doc, full, guesses, opts)

	candidates, source := extractItems(full, t.Fragments, doc.Totals.TotalAmount, opts)
	doc.Items = append(doc.Items, SelectItems(candidates, doc.Totals.TotalAmount, opts)...)
	if len(doc.Items) > 0 {
		doc.Sources[FieldItems] = source
	}

	doc.Handwritten = append(doc.Handwritten, handwrittenAnnotations(t.Fragments)...)
	doc.ItemsSignature = itemsSignature(doc.Items)
	doc.Notes = extractionNotes(doc)
	doc.NeedsReview = len(doc.Notes) > 0

	return doc, nil
}

// extractParties resolves seller and buyer GSTINs. Upstream guesses
// override the text when they canonicalize.
func extractParties(doc *Document, text string, guesses FieldGuesses, opts Options) {
	seller, buyer, sellerLabeled, buyerLabeled := resolveParties(text, opts.GSTINWindow)

	set := func(field Field, target *string, occ gstinOccurrence, labeled bool) {
		if raw, ok := guesses[field]; ok {
			if v, ok := CanonicalGSTIN(raw); ok {
				*target = v
				doc.Sources[field] = SourceUpstream
				return
			}
		}
		if occ.value == "" {
			return
		}
		*target = occ.value
		doc.Sources[field] = SourceLayout
		if labeled {
			doc.Sources[field] = SourcePattern
		}
	}

	set(FieldSellerGSTIN, &doc.SellerGSTIN, seller, sellerLabeled)
	set(FieldBuyerGSTIN, &doc.BuyerGSTIN, buyer, buyerLabeled)
}

func (d *Document) assign(f Field, v string) {
	switch f {
	case FieldInvoiceNumber:
		d.InvoiceNumber = v
	case FieldInvoiceDate:
		d.InvoiceDate = v
	case FieldVendorName:
		d.VendorName = v
	case FieldBuyerName:
		d.BuyerName = v
	case FieldIRN:
		d.IRN = v
	case FieldPONumber:
		d.PONumber = v
	case FieldBookingNumber:
		d.BookingNumber = v
	case FieldAckNumber:
		d.AckNumber = v
	case FieldAckDate:
		d.AckDate = v
	case FieldAmountInWords:
		d.AmountInWords = v
	case FieldTaxableAmount:
		d.Totals.TaxableAmount = parseNull(v)
	case FieldCGSTPercentage:
		d.Totals.CGSTPercentage = parseNull(v)
	case FieldCGSTAmount:
		d.Totals.CGSTAmount = parseNull(v)
	case FieldSGSTPercentage:
		d.Totals.SGSTPercentage = parseNull(v)
	case FieldSGSTAmount:
		d.Totals.SGSTAmount = parseNull(v)
	case FieldIGSTPercentage:
		d.Totals.IGSTPercentage = parseNull(v)
	case FieldIGSTAmount:
		d.Totals.IGSTAmount = parseNull(v)
	case FieldTotalTax:
		d.Totals.TotalTax = parseNull(v)
	case FieldTotalAmount:
		d.Totals.TotalAmount = parseNull(v)
	}
}

func handwrittenAnnotations(frags []Fragment) []HandwrittenAnnotation {
	var out []HandwrittenAnnotation
	for _, f := range frags {
		if !strings.EqualFold(f.Tag, "attestation") || !handwrittenMarker.MatchString(f.Text) {
			continue
		}
		a := HandwrittenAnnotation{FragmentID: f.ID}
		if m := readableText.FindStringSubmatch(f.Text); m != nil {
			a.Text = strings.TrimSpace(m[1])
		}
		out = append(out, a)
	}
	return out
}

var (
	noteTolerance    = decimal.NewFromInt(1)
	noteRelTolerance = decimal.RequireFromString("0.05")
)

// extractionNotes lists what extraction could not recover or could not
// make consistent, for human review.
func extractionNotes(d *Document) []string {
	notes := []string{}
	if d.InvoiceNumber == "" {
		notes = append(notes, "invoice_number missing")
	}
	if !d.Totals.TotalAmount.Valid {
		notes = append(notes, "total_amount missing")
	}
	if d.SellerGSTIN == "" {
		notes = append(notes, "seller_gstin missing or ambiguous")
	}
	if d.VendorName == "" {
		notes = append(notes, "vendor_name missing or ambiguous")
	}
	if len(d.Items) == 0 {
		notes = append(notes, "no line items recovered")
		return notes
	}

	if !d.Totals.TotalAmount.Valid {
		return notes
	}
	sum := d.ItemSum()
	if tx := d.Totals.TaxableAmount; tx.Valid && sum.Sub(tx.Decimal).Abs().LessThan(noteTolerance) {
		return notes
	}
	total := d.Totals.TotalAmount.Decimal
	limit := decimal.Max(noteTolerance, total.Mul(noteRelTolerance))
	if sum.Sub(total).Abs().GreaterThan(limit) {
		notes = append(notes, "items sum does not match total (may be partial or noisy)")
	}
	return notes
}

type signatureEntry struct {
	HSN            string `json:"hsn"`
	TaxableValue   string `json:"taxable_value"`
	CGSTPercentage string `json:"cgst_percentage"`
	SGSTPercentage string `json:"sgst_percentage"`
}

// itemsSignature is a SHA-256 over the items' identifying fields, sorted
// so that item order does not matter. Callers use it to spot duplicate
// submissions of the same invoice.
func itemsSignature(items []LineItem) string {
	if len(items) == 0 {
		return ""
	}
	entries := make([]signatureEntry, 0, len(items))
	for _, it := range items {
		entries = append(entries, signatureEntry{
			HSN:            it.HSN,
			TaxableValue:   it.TaxableValue.StringFixed(2),
			CGSTPercentage: nullString(it.CGSTPercentage),
			SGSTPercentage: nullString(it.SGSTPercentage),
		})
	}
	slices.SortFunc(entries, func(a, b signatureEntry) int {
		if c := strings.Compare(a.HSN, b.HSN); c != 0 {
			return c
		}
		return strings.Compare(a.TaxableValue, b.TaxableValue)
	})

	data, _ := json.Marshal(entries)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func parseNull(v string) decimal.NullDecimal {
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func nullString(v decimal.NullDecimal) string {
	if !v.Valid {
		return ""
	}
	return v.Decimal.String()
}
