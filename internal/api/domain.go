package api

import (
	"database/sql"

	"github.com/JaimeStill/tally/internal/invoices"
	"github.com/JaimeStill/tally/internal/pipeline"
	"github.com/JaimeStill/tally/internal/rates"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Rates    rates.System
	Runner   *pipeline.Runner
	Invoices invoices.System
}

// NewDomain creates all domain systems from the API runtime. The pipeline
// reads the rate table on every document, so refreshed rates apply to the
// next request without a restart.
func NewDomain(runtime *Runtime) *Domain {
	var rateDB *sql.DB
	if runtime.Rates.UseDatabase {
		rateDB = runtime.Connection()
	}

	ratesSystem := rates.New(
		rates.Sources{
			CSVPath:         runtime.Rates.CSVPath,
			DB:              rateDB,
			Storage:         runtime.Storage,
			BlobKey:         runtime.Rates.BlobKey,
			RefreshInterval: runtime.Rates.RefreshIntervalDuration(),
		},
		runtime.Logger,
		runtime.Pagination,
	)

	runner := pipeline.New(
		ratesSystem,
		runtime.Pipeline.InvoiceOptions(),
		runtime.Pipeline.ReconcileOptions(),
		runtime.Pipeline.Workers,
		runtime.Logger,
	)

	invoicesSystem := invoices.New(
		runtime.Connection(),
		runner,
		runtime.Logger,
		runtime.Pagination,
	)

	return &Domain{
		Rates:    ratesSystem,
		Runner:   runner,
		Invoices: invoicesSystem,
	}
}
