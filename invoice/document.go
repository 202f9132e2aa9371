// Package invoice recovers a structured GST invoice record from a noisy
// OCR or vision-model transcript. Extraction is a pure function of its
// inputs: it never touches a network, a database or the filesystem.
package invoice

import (
	"maps"
	"slices"

	"github.com/shopspring/decimal"
)

// Fragment is one positioned block of transcript text. Top and Left are
// page-relative anchors in the range [0, 1].
type Fragment struct {
	ID   string  `json:"id,omitempty"`
	Text string  `json:"text"`
	Top  float64 `json:"top"`
	Left float64 `json:"left"`
	Tag  string  `json:"tag,omitempty"`
}

// Transcript is the raw text of a scanned invoice plus its ordered
// positioned fragments.
type Transcript struct {
	Text      string     `json:"text"`
	Fragments []Fragment `json:"fragments,omitempty"`
}

// Empty reports whether the transcript carries no usable text.
func (t Transcript) Empty() bool {
	if !isBlank(t.Text) {
		return false
	}
	for _, f := range t.Fragments {
		if !isBlank(f.Text) {
			return false
		}
	}
	return true
}

// Source records where a field value came from.
type Source string

// Provenance values, in override order.
const (
	SourceUpstream Source = "upstream"
	SourcePattern  Source = "pattern"
	SourceLayout   Source = "layout"
)

// Field names a header-level scalar of an invoice.
type Field string

// Extractable fields. The string values are the canonical serialized names.
const (
	FieldInvoiceNumber  Field = "invoice_number"
	FieldInvoiceDate    Field = "invoice_date"
	FieldSellerGSTIN    Field = "seller_gstin"
	FieldBuyerGSTIN     Field = "buyer_gstin"
	FieldVendorName     Field = "vendor_name"
	FieldBuyerName      Field = "buyer_name"
	FieldIRN            Field = "irn"
	FieldPONumber       Field = "po_number"
	FieldBookingNumber  Field = "booking_number"
	FieldAckNumber      Field = "ack_number"
	FieldAckDate        Field = "ack_date"
	FieldAmountInWords  Field = "amount_in_words"
	FieldTaxableAmount  Field = "taxable_amount"
	FieldCGSTPercentage Field = "cgst_percentage"
	FieldCGSTAmount     Field = "cgst_amount"
	FieldSGSTPercentage Field = "sgst_percentage"
	FieldSGSTAmount     Field = "sgst_amount"
	FieldIGSTPercentage Field = "igst_percentage"
	FieldIGSTAmount     Field = "igst_amount"
	FieldTotalTax       Field = "total_tax"
	FieldTotalAmount    Field = "total_amount"
	FieldItems          Field = "items"
)

// FieldGuesses carries best-effort values supplied by an upstream
// extractor, keyed by field. They are the highest-priority candidates but
// must still pass the field's normalizer.
type FieldGuesses map[Field]string

// FieldGuess is a candidate value with its provenance. Lower Rank wins.
type FieldGuess struct {
	Value  string
	Source Source
	Rank   int
}

// Totals holds the document-level money figures as stated on the invoice,
// or derived during reconciliation when unstated.
type Totals struct {
	TaxableAmount  decimal.NullDecimal `json:"taxable_amount"`
	CGSTPercentage decimal.NullDecimal `json:"cgst_percentage"`
	CGSTAmount     decimal.NullDecimal `json:"cgst_amount"`
	SGSTPercentage decimal.NullDecimal `json:"sgst_percentage"`
	SGSTAmount     decimal.NullDecimal `json:"sgst_amount"`
	IGSTPercentage decimal.NullDecimal `json:"igst_percentage"`
	IGSTAmount     decimal.NullDecimal `json:"igst_amount"`
	TotalTax       decimal.NullDecimal `json:"total_tax"`
	TotalAmount    decimal.NullDecimal `json:"total_amount"`
}

// LineItem is one taxable line of an invoice. Percentages are in percent
// (18 means 18%). GSTPercentage is the combined rate across components.
type LineItem struct {
	HSN            string              `json:"hsn,omitempty"`
	TaxableValue   decimal.Decimal     `json:"taxable_value"`
	GSTPercentage  decimal.NullDecimal `json:"gst_percentage"`
	CGSTPercentage decimal.NullDecimal `json:"cgst_percentage"`
	CGSTAmount     decimal.NullDecimal `json:"cgst_amount"`
	SGSTPercentage decimal.NullDecimal `json:"sgst_percentage"`
	SGSTAmount     decimal.NullDecimal `json:"sgst_amount"`
	IGSTPercentage decimal.NullDecimal `json:"igst_percentage"`
	IGSTAmount     decimal.NullDecimal `json:"igst_amount"`
	LineTotal      decimal.NullDecimal `json:"line_total"`
	Notes          []string            `json:"notes,omitempty"`
}

// TaxAmount sums the component amounts that are present.
func (li LineItem) TaxAmount() decimal.Decimal {
	sum := decimal.Zero
	for _, v := range []decimal.NullDecimal{li.CGSTAmount, li.SGSTAmount, li.IGSTAmount} {
		if v.Valid {
			sum = sum.Add(v.Decimal)
		}
	}
	return sum
}

// HandwrittenAnnotation is text recovered from a handwritten mark on the
// scanned page.
type HandwrittenAnnotation struct {
	FragmentID string `json:"fragment_id,omitempty"`
	Text       string `json:"text"`
}

// Flag is a single anomaly raised against a reconciled document.
type Flag struct {
	Kind    string            `json:"kind"`
	Message string            `json:"message"`
	Detail  map[string]string `json:"detail,omitempty"`
}

// Document is the structured record recovered from one transcript.
type Document struct {
	InvoiceNumber  string                  `json:"invoice_number,omitempty"`
	InvoiceDate    string                  `json:"invoice_date,omitempty"`
	SellerGSTIN    string                  `json:"seller_gstin,omitempty"`
	BuyerGSTIN     string                  `json:"buyer_gstin,omitempty"`
	VendorName     string                  `json:"vendor_name,omitempty"`
	BuyerName      string                  `json:"buyer_name,omitempty"`
	IRN            string                  `json:"irn,omitempty"`
	PONumber       string                  `json:"po_number,omitempty"`
	BookingNumber  string                  `json:"booking_number,omitempty"`
	AckNumber      string                  `json:"ack_number,omitempty"`
	AckDate        string                  `json:"ack_date,omitempty"`
	AmountInWords  string                  `json:"amount_in_words,omitempty"`
	Totals         Totals                  `json:"totals"`
	Items          []LineItem              `json:"items"`
	Handwritten    []HandwrittenAnnotation `json:"handwritten_annotations"`
	Flags          []Flag                  `json:"flags"`
	Notes          []string                `json:"notes"`
	NeedsReview    bool                    `json:"needs_review"`
	Sources        map[Field]Source        `json:"sources"`
	ItemsSignature string                  `json:"items_signature,omitempty"`
	RawText        string                  `json:"raw_text"`
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	c := *d
	c.Items = make([]LineItem, len(d.Items))
	for i, it := range d.Items {
		it.Notes = slices.Clone(it.Notes)
		c.Items[i] = it
	}
	c.Handwritten = slices.Clone(d.Handwritten)
	c.Flags = make([]Flag, len(d.Flags))
	for i, f := range d.Flags {
		f.Detail = maps.Clone(f.Detail)
		c.Flags[i] = f
	}
	c.Notes = slices.Clone(d.Notes)
	c.Sources = maps.Clone(d.Sources)
	return &c
}

// ItemSum returns the sum of taxable values across all items.
func (d *Document) ItemSum() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range d.Items {
		sum = sum.Add(it.TaxableValue)
	}
	return sum
}
