// Package invoices exposes the extraction pipeline over HTTP and persists
// processed invoices, rejecting a second record with the same invoice
// number and seller GSTIN.
package invoices

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JaimeStill/tally/reconcile"
)

// Record is a persisted reconciliation result with its searchable fields
// lifted out of the document.
type Record struct {
	ID             uuid.UUID           `json:"id"`
	InvoiceNumber  string              `json:"invoice_number"`
	InvoiceDate    string              `json:"invoice_date,omitempty"`
	SellerGSTIN    string              `json:"seller_gstin"`
	BuyerGSTIN     string              `json:"buyer_gstin"`
	VendorName     string              `json:"vendor_name"`
	TotalAmount    decimal.NullDecimal `json:"total_amount"`
	Status         reconcile.Status    `json:"status"`
	NeedsReview    bool                `json:"needs_review"`
	ItemsSignature string              `json:"items_signature"`
	Result         *reconcile.Result   `json:"result"`
	CreatedAt      time.Time           `json:"created_at"`
}
