package invoices

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/tally/internal/pipeline"
	"github.com/JaimeStill/tally/pkg/pagination"
	"github.com/JaimeStill/tally/pkg/query"
	"github.com/JaimeStill/tally/pkg/repository"
	"github.com/JaimeStill/tally/reconcile"
)

type repo struct {
	db         *sql.DB
	runner     *pipeline.Runner
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates an invoice system. db may be nil, in which case the
// pipeline endpoints work and persistence operations return
// ErrPersistenceDisabled.
func New(
	db *sql.DB,
	runner *pipeline.Runner,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		runner:     runner,
		logger:     logger.With("system", "invoices"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.runner, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Record], error) {
	if r.db == nil {
		return nil, ErrPersistenceDisabled
	}
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "InvoiceNumber", "VendorName", "SellerGSTIN")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count invoices: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	records, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("query invoices: %w", err)
	}

	result := pagination.NewPageResult(records, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Record, error) {
	if r.db == nil {
		return nil, ErrPersistenceDisabled
	}

	q, args := query.NewBuilder(projection).BuildSingle("ID", id)
	rec, err := repository.QueryOne(ctx, r.db, q, args, scanRecord)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &rec, nil
}

func (r *repo) Save(ctx context.Context, result *reconcile.Result) (*Record, error) {
	if r.db == nil {
		return nil, ErrPersistenceDisabled
	}

	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}

	doc := result.Document
	q := `
		INSERT INTO invoices (id, invoice_number, invoice_date, seller_gstin, buyer_gstin, vendor_name,
			total_amount, status, needs_review, items_signature, result)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb)
		RETURNING ` + returning

	args := []any{
		uuid.New(),
		doc.InvoiceNumber,
		nullString(doc.InvoiceDate),
		doc.SellerGSTIN,
		doc.BuyerGSTIN,
		doc.VendorName,
		doc.Totals.TotalAmount,
		string(result.Status),
		doc.NeedsReview,
		doc.ItemsSignature,
		string(data),
	}

	rec, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Record, error) {
		return repository.QueryOne(ctx, tx, q, args, scanRecord)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info(
		"invoice recorded",
		"id", rec.ID,
		"invoice_number", rec.InvoiceNumber,
		"status", rec.Status,
	)
	return &rec, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	if r.db == nil {
		return ErrPersistenceDisabled
	}

	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		return struct{}{}, repository.ExecExpectOne(ctx, tx, "DELETE FROM invoices WHERE id = $1", id)
	})
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("invoice deleted", "id", id)
	return nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
