package invoices

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/JaimeStill/tally/pkg/query"
	"github.com/JaimeStill/tally/pkg/repository"
)

const dateLayout = "2006-01-02"

var projection = query.
	NewProjectionMap("public", "invoices", "i").
	Project("id", "ID").
	Project("invoice_number", "InvoiceNumber").
	Project("invoice_date", "InvoiceDate").
	Project("seller_gstin", "SellerGSTIN").
	Project("buyer_gstin", "BuyerGSTIN").
	Project("vendor_name", "VendorName").
	Project("total_amount", "TotalAmount").
	Project("status", "Status").
	Project("needs_review", "NeedsReview").
	Project("items_signature", "ItemsSignature").
	Project("result", "Result").
	Project("created_at", "CreatedAt")

// returning lists the same columns as projection, unqualified, for
// INSERT ... RETURNING.
const returning = "id, invoice_number, invoice_date, seller_gstin, buyer_gstin, vendor_name, " +
	"total_amount, status, needs_review, items_signature, result, created_at"

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for invoice queries. Nil
// fields are ignored. DateFrom is inclusive and DateTo exclusive.
type Filters struct {
	Status         *string `json:"status,omitempty"`
	SellerGSTIN    *string `json:"seller_gstin,omitempty"`
	InvoiceNumber  *string `json:"invoice_number,omitempty"`
	ItemsSignature *string `json:"items_signature,omitempty"`
	NeedsReview    *bool   `json:"needs_review,omitempty"`
	DateFrom       *string `json:"date_from,omitempty"`
	DateTo         *string `json:"date_to,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Status", f.Status).
		WhereEquals("SellerGSTIN", f.SellerGSTIN).
		WhereEquals("InvoiceNumber", f.InvoiceNumber).
		WhereEquals("ItemsSignature", f.ItemsSignature).
		WhereEquals("NeedsReview", f.NeedsReview).
		WhereAtLeast("InvoiceDate", f.DateFrom).
		WhereBefore("InvoiceDate", f.DateTo)
}

// FiltersFromQuery extracts filter values from URL query parameters.
// Unparseable booleans are ignored.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	str := func(key string) *string {
		if v := values.Get(key); v != "" {
			return &v
		}
		return nil
	}

	f.Status = str("status")
	f.SellerGSTIN = str("seller_gstin")
	f.InvoiceNumber = str("invoice_number")
	f.ItemsSignature = str("items_signature")
	f.DateFrom = str("date_from")
	f.DateTo = str("date_to")

	if v := values.Get("needs_review"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			f.NeedsReview = &b
		}
	}

	return f
}

func scanRecord(s repository.Scanner) (Record, error) {
	var (
		r      Record
		date   sql.NullTime
		result []byte
	)
	err := s.Scan(
		&r.ID,
		&r.InvoiceNumber,
		&date,
		&r.SellerGSTIN,
		&r.BuyerGSTIN,
		&r.VendorName,
		&r.TotalAmount,
		&r.Status,
		&r.NeedsReview,
		&r.ItemsSignature,
		&result,
		&r.CreatedAt,
	)
	if err != nil {
		return r, err
	}

	if date.Valid {
		r.InvoiceDate = date.Time.Format(dateLayout)
	}
	if err := json.Unmarshal(result, &r.Result); err != nil {
		return r, fmt.Errorf("decode stored result %s: %w", r.ID, err)
	}
	return r, nil
}
