package invoices

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/tally/pkg/pagination"
	"github.com/JaimeStill/tally/reconcile"
)

// System defines the public contract for invoice persistence.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Record], error)

	Find(ctx context.Context, id uuid.UUID) (*Record, error)
	Save(ctx context.Context, result *reconcile.Result) (*Record, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
