package invoice_test

import (
	"testing"

	"github.com/JaimeStill/tally/invoice"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const taxInvoice = `TAX INVOICE
Acme Traders Pvt Ltd
GSTIN: 27ABCDE1234F1Z5
Invoice No: INV-2024/001
Invoice Date: 15-Mar-2024
Bill To: Globex Industries
GSTIN: 29AAACG1234K1Z9
HSN 8471 Laptop 1,000.00 CGST 9% 90.00 SGST 9% 90.00
Taxable Value 1,000.00
Total Tax 180.00
Grand Total 1,180.00
Rupees One Thousand One Hundred Eighty Only
`

func positionedInvoice() invoice.Transcript {
	return invoice.Transcript{
		Fragments: []invoice.Fragment{
			{ID: "f1", Text: "Sharma Electricals\nMain Road, Pune", Top: 0.02, Left: 0.1},
			{ID: "f2", Text: "Invoice No: SE/778\nDate: 02/01/2024", Top: 0.05, Left: 0.6},
			{ID: "f3", Text: "Item 85365090 Switch 250.00", Top: 0.40, Left: 0.05},
			{ID: "f4", Text: "Item 85444999 Wire 750.00", Top: 0.45, Left: 0.05},
			{ID: "f5", Text: "Total 1,000.00", Top: 0.90, Left: 0.6},
			{ID: "f6", Text: "Handwritten note. Readable Text: received ok", Top: 0.95, Left: 0.1, Tag: "attestation"},
		},
	}
}

func assertAmount(t *testing.T, want string, got decimal.NullDecimal) {
	t.Helper()
	require.True(t, got.Valid, "expected %s, got null", want)
	assert.True(t, decimal.RequireFromString(want).Equal(got.Decimal), "want %s, got %s", want, got.Decimal)
}

func TestExtractEmpty(t *testing.T) {
	tests := []struct {
		name string
		t    invoice.Transcript
	}{
		{"zero value", invoice.Transcript{}},
		{"whitespace", invoice.Transcript{Text: " \n\t", Fragments: []invoice.Fragment{{Text: "  "}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := invoice.Extract(tt.t, nil, invoice.DefaultOptions())
			assert.ErrorIs(t, err, invoice.ErrEmptyTranscript)
			assert.Nil(t, doc)
		})
	}
}

func TestExtractTaxInvoice(t *testing.T) {
	doc, err := invoice.Extract(invoice.Transcript{Text: taxInvoice}, nil, invoice.DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, "INV-2024/001", doc.InvoiceNumber)
	assert.Equal(t, "2024-03-15", doc.InvoiceDate)
	assert.Equal(t, "Acme Traders Pvt Ltd", doc.VendorName)
	assert.Equal(t, "Globex Industries", doc.BuyerName)
	assert.Equal(t, "27ABCDE1234F1Z5", doc.SellerGSTIN)
	assert.Equal(t, "29AAACG1234K1Z9", doc.BuyerGSTIN)
	assert.Equal(t, "Rupees One Thousand One Hundred Eighty Only", doc.AmountInWords)

	assertAmount(t, "1180.00", doc.Totals.TotalAmount)
	assertAmount(t, "1000.00", doc.Totals.TaxableAmount)
	assertAmount(t, "180.00", doc.Totals.TotalTax)
	assertAmount(t, "9", doc.Totals.CGSTPercentage)
	assertAmount(t, "90.00", doc.Totals.CGSTAmount)

	require.Len(t, doc.Items, 1)
	item := doc.Items[0]
	assert.Equal(t, "8471", item.HSN)
	assert.True(t, decimal.NewFromInt(1000).Equal(item.TaxableValue))
	assertAmount(t, "9", item.CGSTPercentage)
	assertAmount(t, "90.00", item.SGSTAmount)
	assert.False(t, item.IGSTAmount.Valid)

	assert.Equal(t, invoice.SourcePattern, doc.Sources[invoice.FieldInvoiceNumber])
	assert.Equal(t, invoice.SourcePattern, doc.Sources[invoice.FieldItems])
	assert.Equal(t, invoice.SourcePattern, doc.Sources[invoice.FieldBuyerGSTIN])
	assert.NotEmpty(t, doc.ItemsSignature)
	assert.Empty(t, doc.Notes)
	assert.False(t, doc.NeedsReview)
}

func TestExtractPositioned(t *testing.T) {
	doc, err := invoice.Extract(positionedInvoice(), nil, invoice.DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, "SE/778", doc.InvoiceNumber)
	assert.Equal(t, "2024-01-02", doc.InvoiceDate)
	assert.Equal(t, "Sharma Electricals", doc.VendorName)
	assert.Equal(t, invoice.SourceLayout, doc.Sources[invoice.FieldVendorName])
	assertAmount(t, "1000.00", doc.Totals.TotalAmount)

	require.Len(t, doc.Items, 2)
	assert.Equal(t, "85444999", doc.Items[0].HSN)
	assert.True(t, decimal.NewFromInt(750).Equal(doc.Items[0].TaxableValue))
	assert.Equal(t, "85365090", doc.Items[1].HSN)
	assert.Equal(t, invoice.SourceLayout, doc.Sources[invoice.FieldItems])

	assert.Equal(t, []invoice.HandwrittenAnnotation{{FragmentID: "f6", Text: "received ok"}}, doc.Handwritten)

	assert.Empty(t, doc.SellerGSTIN)
	assert.Contains(t, doc.Notes, "seller_gstin missing or ambiguous")
	assert.True(t, doc.NeedsReview)
}

func TestExtractUpstreamGuesses(t *testing.T) {
	guesses := invoice.FieldGuesses{
		invoice.FieldInvoiceNumber: "GUESS-42",
		invoice.FieldTotalAmount:   "₹ 2,000.00",
		invoice.FieldSellerGSTIN:   "27abcde1234f1z5",
		invoice.FieldInvoiceDate:   "not a date",
	}

	doc, err := invoice.Extract(invoice.Transcript{Text: taxInvoice}, guesses, invoice.DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, "GUESS-42", doc.InvoiceNumber)
	assert.Equal(t, invoice.SourceUpstream, doc.Sources[invoice.FieldInvoiceNumber])
	assertAmount(t, "2000.00", doc.Totals.TotalAmount)
	assert.Equal(t, "27ABCDE1234F1Z5", doc.SellerGSTIN)
	assert.Equal(t, invoice.SourceUpstream, doc.Sources[invoice.FieldSellerGSTIN])

	assert.Equal(t, "2024-03-15", doc.InvoiceDate)
	assert.Equal(t, invoice.SourcePattern, doc.Sources[invoice.FieldInvoiceDate])
}

func TestItemsSignatureOrderIndependent(t *testing.T) {
	forward := "HSN 1001 Wheat 500.00\nHSN 8471 Laptop 700.00\nGrand Total 1,200.00\n"
	reverse := "HSN 8471 Laptop 700.00\nHSN 1001 Wheat 500.00\nGrand Total 1,200.00\n"

	a, err := invoice.Extract(invoice.Transcript{Text: forward}, nil, invoice.DefaultOptions())
	require.NoError(t, err)
	b, err := invoice.Extract(invoice.Transcript{Text: reverse}, nil, invoice.DefaultOptions())
	require.NoError(t, err)

	require.Len(t, a.Items, 2)
	assert.Equal(t, a.ItemsSignature, b.ItemsSignature)
}

func TestExtractMissingEverything(t *testing.T) {
	doc, err := invoice.Extract(invoice.Transcript{Text: "blurry scan"}, nil, invoice.DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"invoice_number missing",
		"total_amount missing",
		"seller_gstin missing or ambiguous",
		"vendor_name missing or ambiguous",
		"no line items recovered",
	}, doc.Notes)
	assert.Empty(t, doc.Items)
	assert.NotNil(t, doc.Items)
	assert.Empty(t, doc.ItemsSignature)
}

func TestCloneIsDeep(t *testing.T) {
	doc, err := invoice.Extract(invoice.Transcript{Text: taxInvoice}, nil, invoice.DefaultOptions())
	require.NoError(t, err)

	c := doc.Clone()
	c.Items[0].HSN = "0000"
	c.Sources[invoice.FieldIRN] = invoice.SourceLayout
	c.Notes = append(c.Notes, "edited")

	assert.Equal(t, "8471", doc.Items[0].HSN)
	assert.NotContains(t, doc.Sources, invoice.FieldIRN)
	assert.Empty(t, doc.Notes)
}

func itemKeys(items []invoice.LineItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.HSN+"="+it.TaxableValue.StringFixed(2))
	}
	return out
}

func TestPositionalRowKeepsLargestAmount(t *testing.T) {
	transcript := invoice.Transcript{
		Fragments: []invoice.Fragment{
			{ID: "f1", Text: "8471 Laptop 1,000.00\nCGST 9% 90.00\nSGST 9% 90.00", Top: 0.50, Left: 0.05},
			{ID: "f2", Text: "Grand Total 1,180.00", Top: 0.90, Left: 0.6},
		},
	}

	doc, err := invoice.Extract(transcript, nil, invoice.DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"8471=1000.00"}, itemKeys(doc.Items))
	assert.Equal(t, invoice.SourceLayout, doc.Sources[invoice.FieldItems])
	assertAmount(t, "9", doc.Items[0].CGSTPercentage)
	assertAmount(t, "90.00", doc.Items[0].CGSTAmount)
	assertAmount(t, "90.00", doc.Items[0].SGSTAmount)
}

func TestExtractItemStrategies(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxItems int
		want     []string
		source   invoice.Source
	}{
		{
			name:   "lone amounts without codes",
			text:   "Sundry charges 450.00\nMisc 150.00\nGrand Total 600.00\n",
			want:   []string{"=450.00", "=150.00"},
			source: invoice.SourceLayout,
		},
		{
			name: "duplicate code and value collapse",
			text: "HSN 8471 Laptop 500.00\nHSN 8471 Laptop 500.00\nHSN 1001 Wheat 500.00\n" +
				"HSN 8471 Mouse 300.00\nGrand Total 1,600.00\n",
			want:   []string{"8471=500.00", "1001=500.00", "8471=300.00"},
			source: invoice.SourcePattern,
		},
		{
			name:     "candidates capped before selection",
			text:     "HSN 1001 A 100.00\nHSN 1002 B 200.00\nHSN 1003 C 300.00\nGrand Total 330.00\n",
			maxItems: 2,
			want:     []string{"1002=200.00", "1001=100.00"},
			source:   invoice.SourcePattern,
		},
		{
			name:   "uncapped selection",
			text:   "HSN 1001 A 100.00\nHSN 1002 B 200.00\nHSN 1003 C 300.00\nGrand Total 330.00\n",
			want:   []string{"1003=300.00"},
			source: invoice.SourcePattern,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := invoice.DefaultOptions()
			if tt.maxItems > 0 {
				opts.MaxItems = tt.maxItems
			}

			doc, err := invoice.Extract(invoice.Transcript{Text: tt.text}, nil, opts)
			require.NoError(t, err)

			assert.Equal(t, tt.want, itemKeys(doc.Items))
			assert.Equal(t, tt.source, doc.Sources[invoice.FieldItems])
		})
	}
}

func TestExtractItemTaxes(t *testing.T) {
	type pair struct{ pct, amt string }

	tests := []struct {
		name             string
		line             string
		cgst, sgst, igst pair
	}{
		{
			name: "percentage then amount",
			line: "HSN 8471 Laptop 1,000.00 CGST 9% 90.00 SGST 9% 90.00",
			cgst: pair{"9", "90.00"},
			sgst: pair{"9", "90.00"},
		},
		{
			name: "amount after label only",
			line: "HSN 8471 Laptop 1,000.00 CGST: 90.00 SGST - 90.00",
			cgst: pair{"", "90.00"},
			sgst: pair{"", "90.00"},
		},
		{
			name: "percentage and amount apart",
			line: "HSN 8471 Laptop 1,000.00 CGST Rate 9 % Amt Rs 90.00 SGST Rate 9 % Amt Rs 90.00",
			cgst: pair{"9", "90.00"},
			sgst: pair{"9", "90.00"},
		},
		{
			name: "integrated tax",
			line: "HSN 8471 Laptop 1,000.00 IGST @ 18% 180.00",
			igst: pair{"18", "180.00"},
		},
	}

	check := func(t *testing.T, component string, want pair, pct, amt decimal.NullDecimal) {
		t.Helper()
		if want.pct == "" {
			assert.False(t, pct.Valid, "%s percentage should be null", component)
		} else {
			assertAmount(t, want.pct, pct)
		}
		if want.amt == "" {
			assert.False(t, amt.Valid, "%s amount should be null", component)
		} else {
			assertAmount(t, want.amt, amt)
		}
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := tt.line + "\nGrand Total 1,180.00\n"
			doc, err := invoice.Extract(invoice.Transcript{Text: text}, nil, invoice.DefaultOptions())
			require.NoError(t, err)

			require.Equal(t, []string{"8471=1000.00"}, itemKeys(doc.Items))
			item := doc.Items[0]
			check(t, "cgst", tt.cgst, item.CGSTPercentage, item.CGSTAmount)
			check(t, "sgst", tt.sgst, item.SGSTPercentage, item.SGSTAmount)
			check(t, "igst", tt.igst, item.IGSTPercentage, item.IGSTAmount)
		})
	}
}

func TestExtractGSTINRoles(t *testing.T) {
	const (
		acme   = "27ABCDE1234F1Z5"
		globex = "29AAACG1234K1Z9"
	)

	tests := []struct {
		name   string
		text   string
		seller string
		buyer  string
	}{
		{
			name:   "supplier and consignee",
			text:   "Supplier: Acme Traders\nGSTIN: " + acme + "\nConsignee: Globex\nGSTIN: " + globex + "\n",
			seller: acme,
			buyer:  globex,
		},
		{
			name:   "from and ship to",
			text:   "From: Acme Traders\nGSTIN: " + acme + "\nShip To: Globex\nGSTIN: " + globex + "\n",
			seller: acme,
			buyer:  globex,
		},
		{
			name:   "buyer listed first",
			text:   "Consignee: Globex Industries\nGSTIN: " + globex + "\nSupplier: Acme Traders\nGSTIN: " + acme + "\n",
			seller: acme,
			buyer:  globex,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := invoice.Extract(invoice.Transcript{Text: tt.text}, nil, invoice.DefaultOptions())
			require.NoError(t, err)

			assert.Equal(t, tt.seller, doc.SellerGSTIN)
			assert.Equal(t, tt.buyer, doc.BuyerGSTIN)
			assert.Equal(t, invoice.SourcePattern, doc.Sources[invoice.FieldSellerGSTIN])
			assert.Equal(t, invoice.SourcePattern, doc.Sources[invoice.FieldBuyerGSTIN])
		})
	}
}

func TestVendorNameRejectsBoilerplate(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		vendor string
	}{
		{"tax invoice heading", "Seller: TAX INVOICE\nAcme Traders Pvt Ltd\n", "Acme Traders Pvt Ltd"},
		{"gstin line", "Vendor: GSTIN 27ABCDE1234F1Z5\nSharma Electricals\n", "Sharma Electricals"},
		{"total line", "Supplier: TOTAL\nGlobex Industries Ltd\n", "Globex Industries Ltd"},
		{"nothing usable", "Seller: TOTAL\nTAX INVOICE Pvt Ltd\n", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := invoice.Extract(invoice.Transcript{Text: tt.text}, nil, invoice.DefaultOptions())
			require.NoError(t, err)

			assert.Equal(t, tt.vendor, doc.VendorName)
			if tt.vendor == "" {
				assert.Contains(t, doc.Notes, "vendor_name missing or ambiguous")
			} else {
				assert.Equal(t, invoice.SourceLayout, doc.Sources[invoice.FieldVendorName])
			}
		})
	}
}
