package reconcile_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/JaimeStill/tally/hsn"
	"github.com/JaimeStill/tally/invoice"
	"github.com/JaimeStill/tally/reconcile"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cleanText = "TAX INVOICE\nAcme Traders Pvt Ltd\nGSTIN: 27ABCDE1234F1Z5\nPAN: ABCDE1234F\n" +
	"Invoice No: INV-001 Date: 15/03/2024\nHSN 8471 Laptop 1,000.00\nGrand Total 1,180.00\n"

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func null(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(dec(s))
}

func fixedOptions() reconcile.Options {
	opts := reconcile.DefaultOptions()
	opts.Now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return opts
}

func baseDocument() *invoice.Document {
	return &invoice.Document{
		InvoiceNumber: "INV-001",
		InvoiceDate:   "2024-03-15",
		SellerGSTIN:   "27ABCDE1234F1Z5",
		Items:         []invoice.LineItem{},
		Flags:         []invoice.Flag{},
		Notes:         []string{},
		Sources:       map[invoice.Field]invoice.Source{},
		RawText:       cleanText,
	}
}

func assertDecimal(t *testing.T, want string, got decimal.NullDecimal, field string) {
	t.Helper()
	require.True(t, got.Valid, "%s is null", field)
	assert.True(t, dec(want).Equal(got.Decimal), "%s: want %s, got %s", field, want, got.Decimal)
}

func TestSlabSplit(t *testing.T) {
	doc := baseDocument()
	doc.Items = append(doc.Items, invoice.LineItem{
		HSN:           "8471",
		TaxableValue:  dec("1000.00"),
		GSTPercentage: null("18"),
	})

	res := reconcile.Reconcile(doc, nil, fixedOptions())
	li := res.Document.Items[0]

	assertDecimal(t, "9", li.CGSTPercentage, "cgst_percentage")
	assertDecimal(t, "9", li.SGSTPercentage, "sgst_percentage")
	assertDecimal(t, "90.00", li.CGSTAmount, "cgst_amount")
	assertDecimal(t, "90.00", li.SGSTAmount, "sgst_amount")
	assertDecimal(t, "0", li.IGSTAmount, "igst_amount")
	assertDecimal(t, "1180.00", li.LineTotal, "line_total")
}

func TestIGSTPath(t *testing.T) {
	doc := baseDocument()
	doc.Items = append(doc.Items, invoice.LineItem{
		TaxableValue:   dec("1000.00"),
		IGSTPercentage: null("18"),
	})

	res := reconcile.Reconcile(doc, nil, fixedOptions())
	li := res.Document.Items[0]

	assertDecimal(t, "18", li.GSTPercentage, "gst_percentage")
	assertDecimal(t, "180.00", li.IGSTAmount, "igst_amount")
	assertDecimal(t, "0", li.CGSTAmount, "cgst_amount")
	assertDecimal(t, "0", li.SGSTAmount, "sgst_amount")
}

func TestNonSlabBecomesIGST(t *testing.T) {
	doc := baseDocument()
	doc.Items = append(doc.Items, invoice.LineItem{
		TaxableValue:  dec("1000.00"),
		GSTPercentage: null("7"),
	})

	res := reconcile.Reconcile(doc, nil, fixedOptions())
	li := res.Document.Items[0]

	assertDecimal(t, "7", li.IGSTPercentage, "igst_percentage")
	assertDecimal(t, "70.00", li.IGSTAmount, "igst_amount")
	assertDecimal(t, "0", li.CGSTAmount, "cgst_amount")
	assert.Contains(t, res.FlagKinds(), reconcile.KindNonstandardGSTSlab)
}

func TestRateTableLookup(t *testing.T) {
	table := hsn.NewTable(hsn.Entry{Code: "8471", Percentage: dec("18")})

	doc := baseDocument()
	doc.Items = append(doc.Items,
		invoice.LineItem{HSN: "84713010", TaxableValue: dec("500.00")},
		invoice.LineItem{HSN: "1001", TaxableValue: dec("100.00")},
		invoice.LineItem{TaxableValue: dec("50.00")},
	)

	res := reconcile.Reconcile(doc, table, fixedOptions())
	items := res.Document.Items

	assertDecimal(t, "18", items[0].GSTPercentage, "gst_percentage")
	assertDecimal(t, "45.00", items[0].CGSTAmount, "cgst_amount")
	assert.Contains(t, items[1].Notes, reconcile.NoteHSNNotInTable)
	assert.Contains(t, items[2].Notes, reconcile.NoteMissingHSNAndGST)

	require.NotEmpty(t, res.AutoFixes)
	assert.Equal(t, reconcile.AutoFix{
		Line:   1,
		Field:  "gst_percentage",
		Value:  "18",
		Reason: "rate table lookup for HSN 84713010",
	}, res.AutoFixes[0])
}

func TestReverseDerivation(t *testing.T) {
	doc := baseDocument()
	doc.Items = append(doc.Items, invoice.LineItem{
		TaxableValue: dec("1000.00"),
		CGSTAmount:   null("60.00"),
		SGSTAmount:   null("60.00"),
	})

	res := reconcile.Reconcile(doc, nil, fixedOptions())
	li := res.Document.Items[0]

	assertDecimal(t, "6", li.CGSTPercentage, "cgst_percentage")
	assertDecimal(t, "12", li.GSTPercentage, "gst_percentage")
	assertDecimal(t, "1120.00", li.LineTotal, "line_total")
	assert.Empty(t, li.Notes)
}

func TestReportedAmountDisagreement(t *testing.T) {
	doc := baseDocument()
	doc.Items = append(doc.Items, invoice.LineItem{
		TaxableValue:   dec("1000.00"),
		CGSTPercentage: null("9"),
		CGSTAmount:     null("95.00"),
		SGSTPercentage: null("9"),
		SGSTAmount:     null("90.00"),
	})

	res := reconcile.Reconcile(doc, nil, fixedOptions())
	li := res.Document.Items[0]

	assertDecimal(t, "90.00", li.CGSTAmount, "cgst_amount")
	assert.Equal(t, []string{"cgst_amount reported 95.00, computed 90.00"}, li.Notes)
}

func TestTotalsDerived(t *testing.T) {
	doc := baseDocument()
	doc.Items = append(doc.Items,
		invoice.LineItem{TaxableValue: dec("1000.00"), GSTPercentage: null("18")},
		invoice.LineItem{TaxableValue: dec("200.00"), GSTPercentage: null("5")},
	)

	res := reconcile.Reconcile(doc, nil, fixedOptions())
	totals := res.Document.Totals

	assertDecimal(t, "1200.00", totals.TaxableAmount, "taxable_amount")
	assertDecimal(t, "95.00", totals.CGSTAmount, "cgst_amount")
	assertDecimal(t, "95.00", totals.SGSTAmount, "sgst_amount")
	assertDecimal(t, "190.00", totals.TotalTax, "total_tax")
	assertDecimal(t, "1390.00", totals.TotalAmount, "total_amount")
	assert.Equal(t, reconcile.StatusOK, res.Status)
}

func TestStatedTotalTaxSplit(t *testing.T) {
	doc := baseDocument()
	doc.Totals.TotalTax = null("180.00")
	doc.Totals.TotalAmount = null("1180.00")
	doc.Totals.TaxableAmount = null("1000.00")

	res := reconcile.Reconcile(doc, nil, fixedOptions())
	totals := res.Document.Totals

	assertDecimal(t, "90.00", totals.CGSTAmount, "cgst_amount")
	assertDecimal(t, "90.00", totals.SGSTAmount, "sgst_amount")
	assert.Len(t, res.AutoFixes, 2)
	assert.Equal(t, reconcile.StatusOK, res.Status)
}

func TestInputUntouched(t *testing.T) {
	doc := baseDocument()
	doc.Items = append(doc.Items, invoice.LineItem{TaxableValue: dec("1000.00"), GSTPercentage: null("18")})

	reconcile.Reconcile(doc, nil, fixedOptions())

	assert.False(t, doc.Items[0].CGSTAmount.Valid)
	assert.False(t, doc.Totals.TotalAmount.Valid)
}

func TestIdempotent(t *testing.T) {
	doc := baseDocument()
	doc.Items = append(doc.Items, invoice.LineItem{TaxableValue: dec("1000.00"), GSTPercentage: null("18")})
	doc.Totals.TotalAmount = null("1180.00")

	once := reconcile.Reconcile(doc, nil, fixedOptions())
	twice := reconcile.Reconcile(once.Document, nil, fixedOptions())

	assert.Equal(t, once.Document, twice.Document)
	assert.Empty(t, twice.AutoFixes)
}

func TestDeterministicWithExtraction(t *testing.T) {
	table := hsn.NewTable(hsn.Entry{Code: "8471", Percentage: dec("18")})
	transcript := invoice.Transcript{Text: cleanText}

	run := func() []byte {
		doc, err := invoice.Extract(transcript, nil, invoice.DefaultOptions())
		require.NoError(t, err)
		data, err := json.Marshal(reconcile.Reconcile(doc, table, fixedOptions()))
		require.NoError(t, err)
		return data
	}

	first, second := run(), run()
	assert.Equal(t, string(first), string(second))
	assert.True(t, strings.Contains(string(first), `"status":"ok"`), string(first))
}
