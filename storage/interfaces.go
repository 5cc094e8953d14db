package storage

import (
	"context"

	"github.com/shopspring/decimal"

	"catalog-importer/models"
)

// CatalogStore is the hierarchical page store the importer writes through.
type CatalogStore interface {
	// FindSingleton returns the only page of kind, or nil if none exists.
	FindSingleton(ctx context.Context, kind models.PageKind) (*models.Page, error)

	// FindChildByTitle returns the first page of kind with an exactly equal
	// title anywhere in parent's subtree, or nil if none matches.
	FindChildByTitle(ctx context.Context, parent *models.Page, kind models.PageKind, title string) (*models.Page, error)

	// ListLive returns the live pages of kind in parent's subtree, ordered by
	// title and then by creation.
	ListLive(ctx context.Context, parent *models.Page, kind models.PageKind) ([]models.Page, error)

	// CreateChild inserts page under parent and fills in its ID and Path.
	// page.Live is stored as given. parent is nil only for the home page.
	CreateChild(ctx context.Context, parent *models.Page, page *models.Page) error

	UpdatePrice(ctx context.Context, page *models.Page, price decimal.Decimal) error

	// WithinTx runs fn against a transactional view of the store. fn's error
	// rolls back everything it did. Nested calls act as savepoints.
	WithinTx(ctx context.Context, fn func(tx CatalogStore) error) error

	Close() error
}

// RowReportWriter persists per-row import outcomes.
type RowReportWriter interface {
	WriteOutcomes(outcomes []models.RowOutcome) error
	Close() error
}

// checkCreate applies the tree rules shared by every store implementation.
// existing is the current singleton of page.Kind, if any.
func checkCreate(parent, page, existing *models.Page) error {
	parentKind := models.PageKind("")
	if parent != nil {
		parentKind = parent.Kind
	}
	if err := models.ValidatePlacement(page.Kind, parentKind); err != nil {
		return err
	}
	if page.Kind.IsSingleton() && existing != nil && existing.ID != page.ID {
		return models.SingletonError(page.Kind)
	}
	return nil
}
