package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-enrich/internal/model"
)

// ErrNotFound is returned when a list does not exist.
var ErrNotFound = eris.New("store: not found")

// Store defines the persistence interface for leads and lists.
type Store interface {
	// Lists
	CreateList(ctx context.Context, list model.List) (*model.List, error)
	GetList(ctx context.Context, listID int64) (*model.List, error)
	ListLists(ctx context.Context) ([]model.List, error)
	ListListsByStatus(ctx context.Context, statuses ...model.EnrichmentStatus) ([]model.List, error)
	SetListStatus(ctx context.Context, listID int64, status model.EnrichmentStatus) error
	ListProgress(ctx context.Context, listID int64) (model.Progress, error)

	// Leads
	//
	// UpsertLeads inserts or updates leads by nmlsid and links them to the
	// list. Only the given columns are written; descriptive columns are
	// overwritten while enrichment columns keep any stored value.
	UpsertLeads(ctx context.Context, listID int64, columns []string, leads []model.Lead) (int, error)
	// ImportList creates list and upserts leads into it in one
	// transaction; on error neither the list nor any lead is written.
	ImportList(ctx context.Context, list model.List, columns []string, leads []model.Lead) (*model.List, int, error)
	ListLeads(ctx context.Context, listID int64) ([]model.Lead, error)
	// FillLeads writes each non-empty enrichment value only where the
	// stored column is empty, in one transaction. It returns the number of
	// leads that changed.
	FillLeads(ctx context.Context, fills []model.Fill) (int, error)
	Coverage(ctx context.Context) (model.Coverage, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
